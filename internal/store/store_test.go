package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/agentid-labs/a2a-authd/internal/authz"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func pendingAuth(requester, grantor string) *authz.Authorization {
	return &authz.Authorization{
		RequesterCredentialID: requester,
		GrantorCredentialID:   grantor,
		Permissions:           []authz.Permission{{Action: "data.read"}},
	}
}

func TestCreateAssignsIDAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Create(ctx, pendingAuth("cred_req", "cred_grant"))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if !strings.HasPrefix(created.ID, "auth_") {
		t.Errorf("id = %q, want auth_ prefix", created.ID)
	}
	if created.Status != authz.StatusPending {
		t.Errorf("status = %q, want %q", created.Status, authz.StatusPending)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}
}

func TestGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	in := &authz.Authorization{
		RequesterCredentialID: "cred_req",
		GrantorCredentialID:   "cred_grant",
		Permissions: []authz.Permission{
			{Action: "data.read", Resource: "doc1"},
			{Action: "data.*", Constraints: &authz.ConstraintSet{RateLimitPerMinute: 5}},
		},
		Constraints: &authz.ConstraintSet{
			TimeWindow:  "09:00-17:00",
			AllowedDays: []string{"monday", "friday"},
		},
		Scope:      "project-x",
		Message:    "for the nightly sync",
		ValidUntil: &until,
	}

	created, err := s.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if got.RequesterCredentialID != "cred_req" || got.GrantorCredentialID != "cred_grant" {
		t.Errorf("credentials = (%q, %q)", got.RequesterCredentialID, got.GrantorCredentialID)
	}
	if len(got.Permissions) != 2 {
		t.Fatalf("permissions = %d, want 2", len(got.Permissions))
	}
	if got.Permissions[0].Resource != "doc1" {
		t.Errorf("resource = %q, want doc1", got.Permissions[0].Resource)
	}
	if got.Permissions[1].Constraints == nil || got.Permissions[1].Constraints.RateLimitPerMinute != 5 {
		t.Error("permission-level constraints lost in round trip")
	}
	if got.Constraints == nil || got.Constraints.TimeWindow != "09:00-17:00" {
		t.Error("authorization-level constraints lost in round trip")
	}
	if got.Scope != "project-x" || got.Message != "for the nightly sync" {
		t.Errorf("scope/message = (%q, %q)", got.Scope, got.Message)
	}
	if got.ValidUntil == nil || !got.ValidUntil.Equal(until) {
		t.Errorf("valid_until = %v, want %v", got.ValidUntil, until)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "auth_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRespondTransitions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, _ := s.Create(ctx, pendingAuth("cred_req", "cred_grant"))

	approved, err := s.Respond(ctx, created.ID, true, "granted for Q2")
	if err != nil {
		t.Fatalf("Respond() failed: %v", err)
	}
	if approved.Status != authz.StatusApproved {
		t.Errorf("status = %q, want %q", approved.Status, authz.StatusApproved)
	}
	if approved.Message != "granted for Q2" {
		t.Errorf("message = %q", approved.Message)
	}

	// A resolved request cannot be responded to again.
	_, err = s.Respond(ctx, created.ID, false, "")
	if !errors.Is(err, ErrNotPending) {
		t.Errorf("second respond err = %v, want ErrNotPending", err)
	}

	_, err = s.Respond(ctx, "auth_missing", true, "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id err = %v, want ErrNotFound", err)
	}
}

func TestRespondDeny(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, _ := s.Create(ctx, pendingAuth("cred_req", "cred_grant"))

	denied, err := s.Respond(ctx, created.ID, false, "not this quarter")
	if err != nil {
		t.Fatalf("Respond() failed: %v", err)
	}
	if denied.Status != authz.StatusDenied {
		t.Errorf("status = %q, want %q", denied.Status, authz.StatusDenied)
	}
}

func TestRevoke(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, _ := s.Create(ctx, pendingAuth("cred_req", "cred_grant"))
	s.Respond(ctx, created.ID, true, "")

	revoked, err := s.Revoke(ctx, created.ID)
	if err != nil {
		t.Fatalf("Revoke() failed: %v", err)
	}
	if revoked.Status != authz.StatusRevoked {
		t.Errorf("status = %q, want %q", revoked.Status, authz.StatusRevoked)
	}

	// Idempotent on already revoked records.
	if _, err := s.Revoke(ctx, created.ID); err != nil {
		t.Errorf("second revoke failed: %v", err)
	}

	_, err = s.Revoke(ctx, "auth_missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id err = %v, want ErrNotFound", err)
	}
}

func TestListFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, pendingAuth("cred_alice", "cred_bob"))
	s.Create(ctx, pendingAuth("cred_alice", "cred_carol"))
	s.Create(ctx, pendingAuth("cred_dave", "cred_bob"))
	s.Respond(ctx, a.ID, true, "")

	tests := []struct {
		name      string
		filter    ListFilter
		wantTotal int
	}{
		{"all", ListFilter{}, 3},
		{"by requester", ListFilter{CredentialID: "cred_alice", Role: "requester"}, 2},
		{"by grantor", ListFilter{CredentialID: "cred_bob", Role: "grantor"}, 2},
		{"either side", ListFilter{CredentialID: "cred_bob"}, 2},
		{"by status", ListFilter{Status: authz.StatusPending}, 2},
		{"requester and status", ListFilter{CredentialID: "cred_alice", Role: "requester", Status: authz.StatusApproved}, 1},
		{"no matches", ListFilter{CredentialID: "cred_nobody"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() failed: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if len(items) != tt.wantTotal {
				t.Errorf("len(items) = %d, want %d", len(items), tt.wantTotal)
			}
		})
	}
}

func TestListLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Create(ctx, pendingAuth("cred_req", "cred_grant"))
	}

	items, total, err := s.List(ctx, ListFilter{Limit: 2})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(items) != 2 {
		t.Errorf("len(items) = %d, want 2", len(items))
	}
}

func TestCandidatesFiltering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Approved and unexpired: a candidate.
	ok, _ := s.Create(ctx, pendingAuth("cred_req", "cred_grant"))
	s.Respond(ctx, ok.ID, true, "")

	// Pending: not a candidate.
	s.Create(ctx, pendingAuth("cred_req", "cred_grant"))

	// Revoked: not a candidate.
	rv, _ := s.Create(ctx, pendingAuth("cred_req", "cred_grant"))
	s.Respond(ctx, rv.ID, true, "")
	s.Revoke(ctx, rv.ID)

	// Expired: not a candidate.
	past := time.Now().Add(-time.Hour)
	exp := pendingAuth("cred_req", "cred_grant")
	exp.ValidUntil = &past
	expCreated, _ := s.Create(ctx, exp)
	s.Respond(ctx, expCreated.ID, true, "")

	// Different grantor: not a candidate for this pair.
	other, _ := s.Create(ctx, pendingAuth("cred_req", "cred_other"))
	s.Respond(ctx, other.ID, true, "")

	candidates, err := s.Candidates(ctx, "cred_req", "cred_grant")
	if err != nil {
		t.Fatalf("Candidates() failed: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("candidates = %d, want 1", len(candidates))
	}
	if candidates[0].ID != ok.ID {
		t.Errorf("candidate id = %q, want %q", candidates[0].ID, ok.ID)
	}
}

func TestCandidatesOrderedByGrantTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		a, _ := s.Create(ctx, pendingAuth("cred_req", "cred_grant"))
		s.Respond(ctx, a.ID, true, "")
		ids = append(ids, a.ID)
	}

	candidates, err := s.Candidates(ctx, "cred_req", "cred_grant")
	if err != nil {
		t.Fatalf("Candidates() failed: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("candidates = %d, want 3", len(candidates))
	}
	for i := range ids {
		if candidates[i].ID != ids[i] {
			t.Errorf("candidate %d = %q, want %q (creation order)", i, candidates[i].ID, ids[i])
		}
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping() failed: %v", err)
	}
}
