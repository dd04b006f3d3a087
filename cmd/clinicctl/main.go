package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/clinicsync/internal/api"
	"github.com/matheus3301/clinicsync/internal/config"
	"github.com/matheus3301/clinicsync/internal/lock"
	"github.com/matheus3301/clinicsync/internal/session"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	sessionName := session.Resolve(*sessionFlag, cfg)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	// Listing sessions reads the data directory and needs no daemon.
	if args[0] == "sessions" {
		cmdSessionsList(*jsonFlag)
		return
	}

	socketPath := session.SocketPath(sessionName)
	c, err := api.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot connect to daemon for session %q: %v\n", sessionName, err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out any
	switch args[0] {
	case "status":
		out, err = c.GetStatus(ctx)
	case "queue":
		limit := 0
		if len(args) >= 2 {
			if limit, err = strconv.Atoi(args[1]); err != nil {
				fail("usage: clinicctl queue [limit]")
			}
		}
		out, err = c.ListQueue(ctx, limit)
	case "drain":
		out, err = c.Drain(ctx)
	case "refresh":
		out, err = c.Refresh(ctx)
	case "signin":
		if len(args) < 3 {
			fail("usage: clinicctl signin <user-id> <token>")
		}
		out, err = c.SignIn(ctx, args[2], args[1])
	case "signout":
		out, err = c.SignOut(ctx)
	case "branch":
		if len(args) < 2 {
			fail("usage: clinicctl branch <branch-id>")
		}
		out, err = c.SwitchBranch(ctx, args[1])
	case "chat":
		if len(args) < 3 {
			fail("usage: clinicctl chat <client-id> <message...>")
		}
		out, err = c.SendChat(ctx, args[1], strings.Join(args[2:], " "))
	case "notifications":
		out, err = c.ListNotifications(ctx, len(args) >= 2 && args[1] == "unread")
	case "visible":
		if len(args) < 2 || (args[1] != "on" && args[1] != "off") {
			fail("usage: clinicctl visible <on|off>")
		}
		out, err = c.SetVisible(ctx, args[1] == "on")
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *jsonFlag {
		outputJSON(out)
		return
	}
	printHuman(out)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: clinicctl [--session <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                      Show session status")
	fmt.Fprintln(os.Stderr, "  queue [limit]               List queued requests, oldest first")
	fmt.Fprintln(os.Stderr, "  drain                       Deliver queued requests now")
	fmt.Fprintln(os.Stderr, "  refresh                     Pull remote state now")
	fmt.Fprintln(os.Stderr, "  signin <user-id> <token>    Sign in")
	fmt.Fprintln(os.Stderr, "  signout                     Sign out")
	fmt.Fprintln(os.Stderr, "  branch <branch-id>          Switch the active branch")
	fmt.Fprintln(os.Stderr, "  chat <client-id> <message>  Send a chat message")
	fmt.Fprintln(os.Stderr, "  notifications [unread]      List notifications")
	fmt.Fprintln(os.Stderr, "  visible <on|off>            Resume or pause background pulls")
	fmt.Fprintln(os.Stderr, "  sessions                    List known sessions")
}

func fail(usage string) {
	fmt.Fprintln(os.Stderr, usage)
	os.Exit(1)
}

func printHuman(v any) {
	switch r := v.(type) {
	case api.StatusReply:
		fmt.Printf("Session:  %s\n", r.Session)
		fmt.Printf("Status:   %s\n", r.Status)
		if r.SignedIn {
			fmt.Printf("User:     %s\n", r.UserID)
			fmt.Printf("Tenant:   %s\n", r.TenantID)
			fmt.Printf("Branch:   %s\n", r.BranchID)
		}
		fmt.Printf("Queue:    %d\n", r.QueueDepth)
		fmt.Printf("Unread:   %d\n", r.UnreadNotifications)
		fmt.Printf("Visible:  %v\n", r.Visible)
		fmt.Printf("Uptime:   %dms\n", r.UptimeMs)
		if !r.LastGeneralPull.IsZero() {
			fmt.Printf("Pulled:   %s (chats %s)\n", r.LastGeneralPull.Format(time.RFC3339), r.LastChatPull.Format(time.RFC3339))
		}
	case api.QueueReply:
		if len(r.Requests) == 0 {
			fmt.Println("Queue is empty.")
			return
		}
		for _, q := range r.Requests {
			fmt.Printf("%s  %-6s %-30s %s\n", q.EnqueuedAt.Format(time.RFC3339), q.Method, q.URL, q.ID)
		}
	case api.DrainReply:
		fmt.Printf("Sent: %d  Rejected: %d  Remaining: %d\n", r.Sent, r.Rejected, r.Remaining)
		if r.Skipped {
			fmt.Println("A drain was already running.")
		} else if r.Stopped {
			fmt.Println("Stopped: authority unreachable.")
		}
	case api.NotificationsReply:
		if len(r.Notifications) == 0 {
			fmt.Println("No notifications.")
			return
		}
		for _, n := range r.Notifications {
			mark := " "
			if !n.IsRead {
				mark = "*"
			}
			fmt.Printf("%s %s  %-16s %s\n", mark, n.Timestamp.Format(time.RFC3339), n.Type, n.Title)
		}
	case api.Ack:
		fmt.Println(r.Message)
	default:
		outputJSON(v)
	}
}

func cmdSessionsList(jsonOut bool) {
	names, err := session.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	type entry struct {
		Name    string `json:"name"`
		Path    string `json:"path"`
		Running bool   `json:"running"`
		PID     int    `json:"pid,omitempty"`
	}
	entries := make([]entry, 0, len(names))
	for _, name := range names {
		e := entry{Name: name, Path: session.Dir(name)}
		if _, err := os.Stat(session.SocketPath(name)); err == nil {
			e.Running = true
			if owner, err := lock.ReadOwner(session.Dir(name)); err == nil {
				e.PID = owner.PID
			}
		}
		entries = append(entries, e)
	}
	if jsonOut {
		outputJSON(entries)
		return
	}
	if len(entries) == 0 {
		fmt.Println("No sessions found.")
		return
	}
	for _, e := range entries {
		running := "stopped"
		if e.Running {
			running = fmt.Sprintf("running, pid %d", e.PID)
		}
		fmt.Printf("%-20s %s (%s)\n", e.Name, e.Path, running)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
