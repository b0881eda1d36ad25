// Package submissions drives a worker's submission against one gig through
// an explicit state machine, so the gating rules (who may submit, when a
// retry is allowed, when login is forced) live in one place.
package submissions

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/pkg/apierr"
	"github.com/ethgigs/gigboard/pkg/gigapi"
)

// State of the workflow for one gig-detail view.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateDraftOpen       State = "draft_open"
	StateSubmitting      State = "submitting"
	StateSubmitted       State = "submitted"
	StateFailed          State = "failed"
)

// Draft is the link-entry form the worker fills before confirming.
type Draft struct {
	Link  string
	Email string
}

// Workflow gates one actor's submission against one gig. It is scoped to a
// single view and, like the view, is driven from one goroutine.
type Workflow struct {
	api      *gigapi.Client
	sessions *session.Manager
	log      *slog.Logger
	gigID    string

	state      State
	draft      Draft
	hasDraft   bool
	result     models.Submission
	needsLogin bool
}

// New creates a workflow for gigID, reading the session fresh to pick the
// initial state.
func New(ctx context.Context, api *gigapi.Client, sessions *session.Manager, log *slog.Logger, gigID string) *Workflow {
	if log == nil {
		log = slog.Default()
	}
	w := &Workflow{api: api, sessions: sessions, log: log, gigID: gigID}
	w.Refresh(ctx)
	return w
}

// Refresh re-reads the worker session and settles the auth-dependent states.
// Tokens are never cached across renders: expiry can land between any two
// calls.
func (w *Workflow) Refresh(ctx context.Context) {
	switch w.state {
	case StateDraftOpen, StateSubmitting, StateSubmitted, StateFailed:
		return
	}
	if _, _, ok := w.sessions.Current(ctx, session.RoleWorker); ok {
		w.state = StateAuthenticated
	} else {
		w.state = StateUnauthenticated
	}
}

// State returns the current state.
func (w *Workflow) State() State { return w.state }

// NeedsLogin reports whether the last transition requires the user to
// re-authenticate before anything else.
func (w *Workflow) NeedsLogin() bool { return w.needsLogin }

// Draft returns the preserved draft, if any, so a failed attempt can be
// retried without retyping.
func (w *Workflow) Draft() (Draft, bool) { return w.draft, w.hasDraft }

// Result returns the created submission once the workflow reached Submitted.
func (w *Workflow) Result() models.Submission { return w.result }

// OpenDraft moves to DraftOpen when a live worker session exists. Without
// one it signals a login redirect instead.
func (w *Workflow) OpenDraft(ctx context.Context) error {
	const op = "submissions.open"

	if _, _, ok := w.sessions.Current(ctx, session.RoleWorker); !ok {
		w.state = StateUnauthenticated
		w.needsLogin = true
		return apierr.New(apierr.KindAuth, op, "worker login required")
	}

	w.state = StateDraftOpen
	w.needsLogin = false
	return nil
}

// Confirm validates the draft and submits it with the token read at submit
// time. On a 401 the stored token is cleared and the draft discarded: a
// submission is never silently retried on a failed credential. Any other
// failure preserves the draft for a user-initiated retry.
func (w *Workflow) Confirm(ctx context.Context, draft Draft) (models.Submission, error) {
	const op = "submissions.confirm"

	if w.state != StateDraftOpen {
		return models.Submission{}, apierr.New(apierr.KindValidation, op, "no draft is open")
	}

	w.draft = draft
	w.hasDraft = true

	if u, err := url.ParseRequestURI(strings.TrimSpace(draft.Link)); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		// stay in DraftOpen; the user fixes the link and confirms again
		return models.Submission{}, apierr.Field(op, "link", "must be a well-formed URL")
	}

	token, username, ok := w.sessions.Current(ctx, session.RoleWorker)
	if !ok {
		return models.Submission{}, w.failAuth(ctx, op, nil)
	}

	w.state = StateSubmitting
	body := models.Submission{Link: strings.TrimSpace(draft.Link), Email: draft.Email}

	var created models.Submission
	if err := w.api.Post(ctx, w.gigID+"/submissions", token, body, &created); err != nil {
		if apierr.IsAuth(err) {
			return models.Submission{}, w.failAuth(ctx, op, err)
		}
		// validation or transport: keep the draft so nothing is retyped
		w.state = StateFailed
		w.needsLogin = false
		return models.Submission{}, err
	}

	w.log.Info("submission recorded",
		slog.String("gig_id", w.gigID),
		slog.String("username", username),
		slog.String("link", created.Link),
	)

	w.state = StateSubmitted
	w.draft = Draft{}
	w.hasDraft = false
	w.result = created
	return created, nil
}

// failAuth is the expired-session exit: clear the token, drop the draft,
// and demand a fresh login.
func (w *Workflow) failAuth(ctx context.Context, op string, cause error) error {
	if err := w.sessions.Clear(ctx, session.RoleWorker); err != nil {
		w.log.Error("clear worker session", slog.Any("err", err))
	}
	w.state = StateFailed
	w.needsLogin = true
	w.draft = Draft{}
	w.hasDraft = false

	if cause != nil {
		return cause
	}
	return apierr.New(apierr.KindAuth, op, "session expired")
}

// Reopen returns a Failed workflow to DraftOpen for a retry, provided the
// session is still live.
func (w *Workflow) Reopen(ctx context.Context) error {
	const op = "submissions.reopen"

	if w.state != StateFailed {
		return apierr.New(apierr.KindValidation, op, "nothing to retry")
	}
	if _, _, ok := w.sessions.Current(ctx, session.RoleWorker); !ok {
		w.needsLogin = true
		return apierr.New(apierr.KindAuth, op, "worker login required")
	}

	w.state = StateDraftOpen
	w.needsLogin = false
	return nil
}
