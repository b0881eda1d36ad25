package gigs_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethgigs/gigboard/internal/apitest"
	"github.com/ethgigs/gigboard/internal/config"
	"github.com/ethgigs/gigboard/internal/gigs"
	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/pkg/apierr"
	"github.com/ethgigs/gigboard/pkg/gigapi"
)

func newRepo(t *testing.T, srv *apitest.Server) (*gigs.Repository, *session.Manager) {
	t.Helper()
	cfg := config.DefaultAPIConfig()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 2 * time.Second

	client, err := gigapi.NewClient(cfg, srv.Client())
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	sessions := session.NewManager(session.NewMemStore())
	return gigs.New(client, sessions, nil), sessions
}

func validDraft() models.GigDraft {
	return models.GigDraft{
		Title:              "Audit the staking contract",
		Description:        "Full review of the staking module",
		Deadline:           time.Now().Add(14 * 24 * time.Hour),
		Guidelines:         "Report findings as a markdown doc",
		EvaluationCriteria: "Coverage and severity accuracy",
		Bounty:             100,
		Breakdown:          "70 on delivery, 30 on fixes",
		Contact:            "security@acme.io",
		Skills:             []string{"solidity", "security"},
	}
}

func TestListAllAndGetByID(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()

	seeded := srv.SeedGig(models.Gig{Title: "Build a faucet", Company: "Acme", Bounty: 50, Skills: []string{"go"}})
	repo, _ := newRepo(t, srv)
	ctx := context.Background()

	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 1 || all[0].ID != seeded.ID {
		t.Fatalf("unexpected list: %#v", all)
	}

	got, err := repo.GetByID(ctx, seeded.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Build a faucet" {
		t.Fatalf("unexpected gig: %#v", got)
	}

	_, err = repo.GetByID(ctx, "no-such-gig")
	if !apierr.IsNotFound(err) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestListForCompanyScopes(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddBusiness("Acme", "ops@acme.io", "pw")
	srv.AddBusiness("OtherCo", "ops@other.co", "pw")

	first := srv.SeedGig(models.Gig{Title: "one", Company: "Acme", Bounty: 10, Skills: []string{"go"}})
	srv.SeedGig(models.Gig{Title: "two", Company: "OtherCo", Bounty: 10, Skills: []string{"go"}})
	second := srv.SeedGig(models.Gig{Title: "three", Company: "Acme", Bounty: 10, Skills: []string{"go"}})

	repo, _ := newRepo(t, srv)
	ctx := context.Background()

	acme, err := repo.ListForCompany(ctx, "Acme")
	if err != nil {
		t.Fatalf("ListForCompany: %v", err)
	}
	if len(acme) != 2 || acme[0].ID != first.ID || acme[1].ID != second.ID {
		t.Fatalf("scoping or order broken: %#v", acme)
	}

	_, err = repo.ListForCompany(ctx, "NobodyInc")
	if !apierr.IsNotFound(err) {
		t.Fatalf("unknown company should be not-found, got %v", err)
	}
}

func TestCreateRequiresBusinessSession(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	repo, _ := newRepo(t, srv)

	_, err := repo.Create(context.Background(), validDraft())
	if !apierr.IsAuth(err) {
		t.Fatalf("expected auth error without a session, got %v", err)
	}
}

func TestCreateRejectsBadDraftBeforeNetwork(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	repo, sessions := newRepo(t, srv)
	ctx := context.Background()

	token := srv.IssueBusinessToken("Acme", time.Hour)
	if err := sessions.Establish(ctx, session.RoleBusiness, token); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*models.GigDraft)
	}{
		{"zero bounty", func(d *models.GigDraft) { d.Bounty = 0 }},
		{"negative bounty", func(d *models.GigDraft) { d.Bounty = -5 }},
		{"no skills", func(d *models.GigDraft) { d.Skills = nil }},
		{"empty title", func(d *models.GigDraft) { d.Title = "" }},
		{"bad contact", func(d *models.GigDraft) { d.Contact = "not-an-email" }},
		{"zero deadline", func(d *models.GigDraft) { d.Deadline = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := validDraft()
			tt.mutate(&draft)

			_, err := repo.Create(ctx, draft)
			if !apierr.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	// nothing above must have reached the store
	all, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("invalid drafts leaked to the backend: %#v", all)
	}
}

func TestCreateSetsCompanyFromTokenAndCaches(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	srv.AddBusiness("Acme", "ops@acme.io", "pw")
	srv.AddBusiness("OtherCo", "ops@other.co", "pw")
	repo, sessions := newRepo(t, srv)
	ctx := context.Background()

	token := srv.IssueBusinessToken("Acme", time.Hour)
	if err := sessions.Establish(ctx, session.RoleBusiness, token); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	created, err := repo.Create(ctx, validDraft())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Company != "Acme" {
		t.Fatalf("company must come from the token, got %q", created.Company)
	}
	if created.ID == "" {
		t.Fatalf("store must assign an id")
	}

	// visible in the local cache without a refetch
	cached := repo.Cached()
	if len(cached) != 1 || cached[0].ID != created.ID {
		t.Fatalf("create must append to the cached list: %#v", cached)
	}

	// appears under its company, not under another
	acme, err := repo.ListForCompany(ctx, "Acme")
	if err != nil {
		t.Fatalf("ListForCompany: %v", err)
	}
	if len(acme) != 1 {
		t.Fatalf("expected gig under Acme: %#v", acme)
	}
	other, err := repo.ListForCompany(ctx, "OtherCo")
	if err != nil {
		t.Fatalf("ListForCompany: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("gig must not leak to OtherCo: %#v", other)
	}
}

func TestCreateWithExpiredTokenClearsSession(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	repo, sessions := newRepo(t, srv)
	ctx := context.Background()

	expired := srv.IssueBusinessToken("Acme", -time.Minute)
	if err := sessions.Establish(ctx, session.RoleBusiness, expired); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	// the local expiry check refuses before the network is touched
	_, err := repo.Create(ctx, validDraft())
	if !apierr.IsAuth(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, found := sessions.Token(ctx, session.RoleBusiness); found {
		t.Fatalf("detected expiry must destroy the stored token")
	}
}

func TestSplitSkills(t *testing.T) {
	got := gigs.SplitSkills(" solidity, security ,, go ")
	want := []string{"solidity", "security", "go"}
	if len(got) != len(want) {
		t.Fatalf("SplitSkills = %#v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SplitSkills[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestListSubmissionsForBusinessView(t *testing.T) {
	srv := apitest.New()
	defer srv.Close()
	gig := srv.SeedGig(models.Gig{Title: "one", Company: "Acme", Bounty: 10, Skills: []string{"go"}})
	repo, _ := newRepo(t, srv)

	subs, err := repo.ListSubmissions(context.Background(), gig.ID)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected no submissions yet: %#v", subs)
	}
}
