package chat_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ethgigs/gigboard/internal/apitest"
	"github.com/ethgigs/gigboard/internal/chat"
	"github.com/ethgigs/gigboard/internal/config"
	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/pkg/apierr"
	"github.com/ethgigs/gigboard/pkg/gigapi"
)

type fixture struct {
	srv      *apitest.Server
	client   *gigapi.Client
	sessions *session.Manager
	gig      models.Gig
}

func setup(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New()
	t.Cleanup(srv.Close)

	cfg := config.DefaultAPIConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 2 * time.Second

	client, err := gigapi.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	gig := srv.SeedGig(models.Gig{Title: "Fix the indexer", Company: "Acme", Bounty: 40, Skills: []string{"go"}})
	return &fixture{srv: srv, client: client, sessions: session.NewManager(session.NewMemStore()), gig: gig}
}

func countMessage(msgs []models.ChatMessage, text string) int {
	n := 0
	for _, m := range msgs {
		if m.Message == text {
			n++
		}
	}
	return n
}

func TestFetchEmptyThread(t *testing.T) {
	f := setup(t)
	thread := chat.NewThread(f.client, f.sessions, nil, f.gig.ID)

	msgs, err := thread.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected empty thread, got %#v", msgs)
	}
}

func TestSendAppearsExactlyOnceAfterReconcile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.srv.IssueWorkerToken("alice", time.Hour)
	if err := f.sessions.Establish(ctx, session.RoleWorker, token); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	thread := chat.NewThread(f.client, f.sessions, nil, f.gig.ID)
	if _, err := thread.Fetch(ctx); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	created, err := thread.Send(ctx, session.RoleWorker, "is the deadline firm?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if created.Username != "alice" {
		t.Fatalf("sender must come from the token, got %q", created.Username)
	}

	// the reconciled list holds the sent message exactly once: the optimistic
	// copy was replaced by the authoritative fetch
	msgs := thread.Messages()
	if got := countMessage(msgs, "is the deadline firm?"); got != 1 {
		t.Fatalf("message appears %d times, want exactly 1: %#v", got, msgs)
	}
}

func TestMessagesStayOldestFirst(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.srv.IssueWorkerToken("alice", time.Hour)
	if err := f.sessions.Establish(ctx, session.RoleWorker, token); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	thread := chat.NewThread(f.client, f.sessions, nil, f.gig.ID)
	for _, text := range []string{"first", "second", "third"} {
		if _, err := thread.Send(ctx, session.RoleWorker, text); err != nil {
			t.Fatalf("Send %q: %v", text, err)
		}
	}

	msgs := thread.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages: %#v", msgs)
	}
	for i, want := range []string{"first", "second", "third"} {
		if msgs[i].Message != want {
			t.Fatalf("msgs[%d] = %q, want %q", i, msgs[i].Message, want)
		}
	}
}

func TestBlankTextRejectedLocally(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.srv.IssueWorkerToken("alice", time.Hour)
	if err := f.sessions.Establish(ctx, session.RoleWorker, token); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	thread := chat.NewThread(f.client, f.sessions, nil, f.gig.ID)
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := thread.Send(ctx, session.RoleWorker, text)
		if !apierr.IsValidation(err) {
			t.Fatalf("text %q: expected validation error, got %v", text, err)
		}
	}
	if got := f.srv.Chats(f.gig.ID); len(got) != 0 {
		t.Fatalf("blank sends must never reach the backend: %#v", got)
	}
}

func TestServerRejectedTokenClearsSessionAndCreatesNothing(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// passes the local expiry check but fails backend verification: signed
	// with the wrong secret, the shape of a revoked or forged credential
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := f.sessions.Establish(ctx, session.RoleWorker, forged); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	thread := chat.NewThread(f.client, f.sessions, nil, f.gig.ID)
	_, err = thread.Send(ctx, session.RoleWorker, "hello?")
	if !apierr.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, found := f.sessions.Token(ctx, session.RoleWorker); found {
		t.Fatalf("401 must clear the stored token")
	}
	if got := f.srv.Chats(f.gig.ID); len(got) != 0 {
		t.Fatalf("no message may be created on a 401: %#v", got)
	}
	if got := thread.Messages(); len(got) != 0 {
		t.Fatalf("optimistic copy must be dropped on failure: %#v", got)
	}
}

func TestLocallyExpiredTokenIsClearedBeforeNetwork(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	expired := f.srv.IssueWorkerToken("alice", -time.Minute)
	if err := f.sessions.Establish(ctx, session.RoleWorker, expired); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	thread := chat.NewThread(f.client, f.sessions, nil, f.gig.ID)
	_, err := thread.Send(ctx, session.RoleWorker, "hello?")
	if !apierr.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, found := f.sessions.Token(ctx, session.RoleWorker); found {
		t.Fatalf("detected expiry must destroy the stored token")
	}
}

func TestFetchFailureKeepsStaleList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.srv.IssueWorkerToken("alice", time.Hour)
	if err := f.sessions.Establish(ctx, session.RoleWorker, token); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	thread := chat.NewThread(f.client, f.sessions, nil, f.gig.ID)
	if _, err := thread.Send(ctx, session.RoleWorker, "still there?"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	// backend goes away; the previously fetched list must stay available
	f.srv.Close()

	msgs, err := thread.Fetch(ctx)
	if err == nil {
		t.Fatalf("expected fetch failure after server shutdown")
	}
	if got := countMessage(msgs, "still there?"); got != 1 {
		t.Fatalf("stale list must remain displayed, got %#v", msgs)
	}
}

func TestBusinessActorCanChat(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	token := f.srv.IssueBusinessToken("Acme", time.Hour)
	if err := f.sessions.Establish(ctx, session.RoleBusiness, token); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	thread := chat.NewThread(f.client, f.sessions, nil, f.gig.ID)
	created, err := thread.Send(ctx, session.RoleBusiness, "we extended the deadline")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if created.Username != "Acme" {
		t.Fatalf("sender = %q, want company identity", created.Username)
	}
}
