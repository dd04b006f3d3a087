// Package api implements the daemon's gRPC control service and its client.
package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/matheus3301/clinicsync/internal/outbox"
	"github.com/matheus3301/clinicsync/internal/state"
	"github.com/matheus3301/clinicsync/internal/status"
	intsync "github.com/matheus3301/clinicsync/internal/sync"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// SessionControl signs the daemon in and out.
type SessionControl interface {
	SignIn(ctx context.Context, token, userID string) error
	SignOut(ctx context.Context) error
}

// ControlService implements ControlServer.
type ControlService struct {
	sessionName string
	startedAt   time.Time
	machine     *status.Machine
	store       *state.Store
	queue       *outbox.Queue
	sched       *intsync.Scheduler
	recon       *intsync.Reconciler
	sessions    SessionControl
}

var _ ControlServer = (*ControlService)(nil)

// NewControlService creates the control service. recon may be nil.
func NewControlService(sessionName string, machine *status.Machine, st *state.Store, q *outbox.Queue, sched *intsync.Scheduler, recon *intsync.Reconciler, sessions SessionControl) *ControlService {
	return &ControlService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		machine:     machine,
		store:       st,
		queue:       q,
		sched:       sched,
		recon:       recon,
		sessions:    sessions,
	}
}

func (s *ControlService) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	snap := s.store.Snapshot()
	reply := StatusReply{
		Session:             s.sessionName,
		Status:              string(s.machine.Current()),
		SignedIn:            snap.CurrentUserID != "",
		UserID:              snap.CurrentUserID,
		TenantID:            snap.CurrentTenantID,
		BranchID:            snap.CurrentBranchID,
		UnreadNotifications: snap.UnreadNotifications(),
		Visible:             s.sched.Visible(),
		UptimeMs:            time.Since(s.startedAt).Milliseconds(),
	}
	if n, err := s.queue.Len(); err == nil {
		reply.QueueDepth = n
	}
	if s.recon != nil {
		reply.LastGeneralPull, _ = s.recon.LastPull(intsync.LoopGeneral)
		reply.LastChatPull, _ = s.recon.LastPull(intsync.LoopChats)
	}
	return respond(reply)
}

func (s *ControlService) ListQueue(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req QueueRequest
	if err := decode(in, &req); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	reqs, err := s.queue.List(req.Limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list queue: %v", err)
	}
	reply := QueueReply{Requests: make([]QueuedRequest, 0, len(reqs))}
	for _, r := range reqs {
		reply.Requests = append(reply.Requests, QueuedRequest{ID: r.ID, Method: r.Method, URL: r.URL, EnqueuedAt: r.EnqueuedAt})
	}
	return respond(reply)
}

func (s *ControlService) Drain(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res := s.queue.Drain(ctx)
	return respond(DrainReply{
		Sent:      res.Sent,
		Rejected:  res.Rejected,
		Remaining: res.Remaining,
		Stopped:   res.Stopped,
		Skipped:   res.Skipped,
	})
}

func (s *ControlService) Refresh(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if !s.store.SignedIn() {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "not signed in")
	}
	if err := s.sched.Refresh(ctx); err != nil {
		if errors.Is(err, intsync.ErrPullFailed) {
			return nil, grpcstatus.Errorf(codes.Unavailable, "refresh: %v", err)
		}
		return nil, grpcstatus.Errorf(codes.Internal, "refresh: %v", err)
	}
	return respond(Ack{Message: "refreshed"})
}

func (s *ControlService) SignIn(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SignInRequest
	if err := decode(in, &req); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	if strings.TrimSpace(req.Token) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "token and user_id are required")
	}
	if err := s.sessions.SignIn(ctx, req.Token, req.UserID); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "sign in: %v", err)
	}
	return respond(Ack{Message: "signed in as " + req.UserID})
}

func (s *ControlService) SignOut(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.sessions.SignOut(ctx); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "sign out: %v", err)
	}
	return respond(Ack{Message: "signed out"})
}

func (s *ControlService) SwitchBranch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req BranchRequest
	if err := decode(in, &req); err != nil || req.BranchID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "branch_id is required")
	}
	if !s.store.SignedIn() {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "not signed in")
	}
	if err := s.store.Dispatch(ctx, state.SwitchBranch{BranchID: req.BranchID}); err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "switch branch: %v", err)
	}
	if got := s.store.Snapshot().CurrentBranchID; got != req.BranchID {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "cannot switch to branch %q (current %q)", req.BranchID, got)
	}
	return respond(Ack{Message: "branch " + req.BranchID})
}

func (s *ControlService) SendChat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ChatRequest
	if err := decode(in, &req); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "content is required")
	}
	if !s.store.SignedIn() {
		return nil, grpcstatus.Errorf(codes.FailedPrecondition, "not signed in")
	}
	sent, err := s.store.Apply(ctx, state.SendChatMessage{ClientID: req.ClientID, Content: req.Content})
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "send chat: %v", err)
	}
	if !sent {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "client_id is required")
	}
	return respond(Ack{Message: "sent"})
}

func (s *ControlService) ListNotifications(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req NotificationsRequest
	if err := decode(in, &req); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	reply := NotificationsReply{}
	for _, n := range s.store.Snapshot().Notifications {
		if req.UnreadOnly && n.IsRead {
			continue
		}
		reply.Notifications = append(reply.Notifications, n)
	}
	return respond(reply)
}

func (s *ControlService) SetVisible(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req VisibleRequest
	if err := decode(in, &req); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "%v", err)
	}
	s.sched.SetVisible(req.Visible)
	if req.Visible {
		return respond(Ack{Message: "visible"})
	}
	return respond(Ack{Message: "hidden"})
}

func respond(v any) (*structpb.Struct, error) {
	out, err := encode(v)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}
