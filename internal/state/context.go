package state

import "github.com/matheus3301/clinicsync/internal/model"

// resolveContext defaults the active tenant and branch after the snapshot
// changed wholesale. It never fails.
func resolveContext(s *model.Snapshot) {
	resolveTenant(s)
	resolveBranch(s)
}

func resolveTenant(s *model.Snapshot) {
	if s.CurrentTenantID != "" {
		return
	}
	if u, ok := s.CurrentUser(); ok {
		s.CurrentTenantID = u.TenantID
	}
}

// resolveBranch pins single-branch roles to their own branch. Multi-branch
// roles keep their selection while it exists, otherwise fall back to the
// tenant's first active branch.
func resolveBranch(s *model.Snapshot) {
	u, ok := s.CurrentUser()
	if !ok {
		return
	}
	if !u.Role.MultiBranch() {
		s.CurrentBranchID = u.BranchID
		return
	}
	if s.CurrentBranchID != "" {
		for _, b := range s.Branches {
			if b.ID == s.CurrentBranchID && b.TenantID == s.CurrentTenantID {
				return
			}
		}
	}
	s.CurrentBranchID = ""
	for _, b := range s.Branches {
		if b.TenantID == s.CurrentTenantID && b.Active {
			s.CurrentBranchID = b.ID
			return
		}
	}
}
