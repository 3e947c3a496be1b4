package ctxkeys

import (
	"context"
	"testing"
	"time"
)

func TestAuthInfo_RoundTrip(t *testing.T) {
	ctx := context.Background()

	if _, ok := AuthInfoFrom(ctx); ok {
		t.Fatal("AuthInfoFrom on empty context should return ok=false")
	}

	info := AuthInfo{Mode: "jwt", Subject: "cred_abc", Scheme: "bearer", SubjectVerified: true}
	ctx = WithAuthInfo(ctx, info)

	got, ok := AuthInfoFrom(ctx)
	if !ok {
		t.Fatal("AuthInfoFrom should return ok=true after WithAuthInfo")
	}
	if got != info {
		t.Errorf("got %+v, want %+v", got, info)
	}
}

func TestAuditEntry_PointerSemantics(t *testing.T) {
	ctx := context.Background()

	if _, ok := AuditEntryFrom(ctx); ok {
		t.Fatal("AuditEntryFrom on empty context should return ok=false")
	}

	entry := &AuditEntry{
		Operation:           "check",
		RequesterCredential: "cred_req",
		GrantorCredential:   "cred_gra",
		StartTime:           time.Now(),
	}
	ctx = WithAuditEntry(ctx, entry)

	// Mutations through the retrieved pointer must be visible to later readers:
	// handlers fill in the decision after middleware created the entry.
	got, ok := AuditEntryFrom(ctx)
	if !ok {
		t.Fatal("AuditEntryFrom should return ok=true after WithAuditEntry")
	}
	got.Status = "granted"
	got.AuthorizationID = "auth_123"

	again, _ := AuditEntryFrom(ctx)
	if again.Status != "granted" || again.AuthorizationID != "auth_123" {
		t.Errorf("mutation not visible: %+v", again)
	}
}
