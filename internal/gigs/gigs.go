// Package gigs is the client-side repository for gig records.
package gigs

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/pkg/apierr"
	"github.com/ethgigs/gigboard/pkg/gigapi"
)

// Repository reads and creates gigs against the backend. It keeps the last
// fetched list cached so a successful create is visible without a refetch.
type Repository struct {
	api      *gigapi.Client
	sessions *session.Manager
	log      *slog.Logger

	mu    sync.Mutex
	cache []models.Gig
}

// New creates a Repository.
func New(api *gigapi.Client, sessions *session.Manager, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.Default()
	}
	return &Repository{api: api, sessions: sessions, log: log}
}

// ListAll returns the full current set of gigs in store order.
func (r *Repository) ListAll(ctx context.Context) ([]models.Gig, error) {
	var gigs []models.Gig
	if err := r.api.Get(ctx, "gigs", &gigs); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache = append([]models.Gig(nil), gigs...)
	r.mu.Unlock()
	return gigs, nil
}

// ListForCompany returns the gigs owned by company.
func (r *Repository) ListForCompany(ctx context.Context, company string) ([]models.Gig, error) {
	var gigs []models.Gig
	if err := r.api.Get(ctx, "gigs/"+company, &gigs); err != nil {
		return nil, err
	}
	return gigs, nil
}

// GetByID returns one gig, or a not-found error.
func (r *Repository) GetByID(ctx context.Context, gigID string) (models.Gig, error) {
	var gig models.Gig
	if err := r.api.Get(ctx, "getGigById/"+gigID, &gig); err != nil {
		return models.Gig{}, err
	}
	return gig, nil
}

// Create posts a new gig. It requires a live business session, validates the
// draft before any network call, and sends no company field: the backend
// derives ownership from the credential. The created gig is appended to the
// local cache.
func (r *Repository) Create(ctx context.Context, draft models.GigDraft) (models.Gig, error) {
	const op = "gigs.create"

	token, company, ok := r.sessions.Require(ctx, session.RoleBusiness)
	if !ok {
		return models.Gig{}, apierr.New(apierr.KindAuth, op, "business login required")
	}

	if err := validateDraft(ctx, draft); err != nil {
		return models.Gig{}, err
	}

	var created models.Gig
	if err := r.api.Post(ctx, "gigs", token, draft, &created); err != nil {
		if apierr.IsAuth(err) {
			// token rejected server-side: drop it so the next gate redirects
			if clearErr := r.sessions.Clear(ctx, session.RoleBusiness); clearErr != nil {
				r.log.Error("clear business session", slog.Any("err", clearErr))
			}
		}
		return models.Gig{}, err
	}

	r.log.Info("gig created",
		slog.String("gig_id", created.ID),
		slog.String("company", company),
		slog.Float64("bounty", created.Bounty),
	)

	r.mu.Lock()
	r.cache = append(r.cache, created)
	r.mu.Unlock()
	return created, nil
}

// ListSubmissions returns the submissions recorded against a gig, for the
// owning business's review view.
func (r *Repository) ListSubmissions(ctx context.Context, gigID string) ([]models.Submission, error) {
	var subs []models.Submission
	if err := r.api.Get(ctx, "submissions/"+gigID, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Cached returns a copy of the last known gig list without touching the
// network.
func (r *Repository) Cached() []models.Gig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Gig(nil), r.cache...)
}
