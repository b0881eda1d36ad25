package submissions_test

import (
	"context"
	"testing"

	"github.com/ethgigs/gigboard/internal/auth"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/internal/submissions"
)

// Full engagement path: credentials in, validated session, gated submit,
// persisted record carrying the token identity.
func TestLoginThenSubmit(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.srv.AddWorker("alice", "alice@example.com", "s3cret")

	authClient := auth.New(f.client, f.sessions, nil)
	if err := authClient.LoginWorker(ctx, "alice@example.com", "s3cret"); err != nil {
		t.Fatalf("LoginWorker: %v", err)
	}

	token, _, ok := f.sessions.Current(ctx, session.RoleWorker)
	if !ok || !f.sessions.Valid(token) {
		t.Fatalf("expected a stored, valid token after login")
	}

	w := submissions.New(ctx, f.client, f.sessions, nil, f.gig.ID)
	if got := w.State(); got != submissions.StateAuthenticated {
		t.Fatalf("state = %q, want authenticated", got)
	}
	if err := w.OpenDraft(ctx); err != nil {
		t.Fatalf("OpenDraft: %v", err)
	}

	created, err := w.Confirm(ctx, submissions.Draft{Link: "https://example.com/work", Email: "alice@example.com"})
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if created.Username != "alice" || created.Link != "https://example.com/work" {
		t.Fatalf("persisted record: %#v", created)
	}

	stored := f.srv.Submissions(f.gig.ID)
	if len(stored) != 1 || stored[0].Username != "alice" {
		t.Fatalf("stored: %#v", stored)
	}
}
