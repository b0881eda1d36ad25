// Package chat synchronizes a gig-scoped, append-only message log by
// polling. There is no push channel: the view fetches on mount and again
// after every successful send, and the re-fetched list is always
// authoritative.
package chat

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/pkg/apierr"
	"github.com/ethgigs/gigboard/pkg/gigapi"
)

// Thread is the client-side view of one gig's chat. Safe for concurrent use.
type Thread struct {
	api      *gigapi.Client
	sessions *session.Manager
	log      *slog.Logger
	gigID    string

	mu   sync.Mutex
	msgs []models.ChatMessage
}

// NewThread creates a thread for gigID without touching the network; call
// Fetch to load it.
func NewThread(api *gigapi.Client, sessions *session.Manager, log *slog.Logger, gigID string) *Thread {
	if log == nil {
		log = slog.Default()
	}
	return &Thread{api: api, sessions: sessions, log: log, gigID: gigID}
}

// Fetch retrieves the full message list, oldest first, and overwrites the
// local copy wholesale. On failure the prior list stays displayed
// (stale-but-available) and the condition is logged.
func (t *Thread) Fetch(ctx context.Context) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := t.api.Get(ctx, t.gigID+"/chats", &msgs); err != nil {
		t.log.Warn("chat fetch failed, keeping stale list",
			slog.String("gig_id", t.gigID),
			slog.Any("err", err),
		)
		return t.Messages(), err
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})

	t.mu.Lock()
	t.msgs = msgs
	t.mu.Unlock()
	return t.Messages(), nil
}

// Messages returns a copy of the current local list.
func (t *Thread) Messages() []models.ChatMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.ChatMessage(nil), t.msgs...)
}

// Send posts text under the actor's token. Blank text is rejected before any
// network call. The message is appended locally at once (optimistic) and
// then reconciled by a follow-up fetch whose result replaces the optimistic
// copy, so the sent message ends up displayed exactly once. A 401 clears the
// stored token and creates nothing; other failures leave the caller's draft
// untouched for retry.
func (t *Thread) Send(ctx context.Context, role session.Role, text string) (models.ChatMessage, error) {
	const op = "chat.send"

	text = strings.TrimSpace(text)
	if text == "" {
		return models.ChatMessage{}, apierr.Field(op, "message", "must not be empty")
	}

	token, username, ok := t.sessions.Require(ctx, role)
	if !ok {
		return models.ChatMessage{}, apierr.New(apierr.KindAuth, op, "login required")
	}

	optimistic := models.ChatMessage{
		GigID:     t.gigID,
		Username:  username,
		Message:   text,
		CreatedAt: time.Now(),
	}
	t.mu.Lock()
	t.msgs = append(t.msgs, optimistic)
	t.mu.Unlock()

	var created models.ChatMessage
	err := t.api.Post(ctx, t.gigID+"/chat", token, models.ChatMessage{Message: text}, &created)
	if err != nil {
		t.dropOptimistic(optimistic)
		if apierr.IsAuth(err) {
			if clearErr := t.sessions.Clear(ctx, role); clearErr != nil {
				t.log.Error("clear session", slog.Any("err", clearErr))
			}
		}
		return models.ChatMessage{}, err
	}

	// reconcile: the server list replaces the optimistic copy; a transient
	// duplicate only survives until this fetch lands
	if _, err := t.Fetch(ctx); err != nil {
		t.log.Warn("post-send reconcile failed", slog.String("gig_id", t.gigID), slog.Any("err", err))
	}

	return created, nil
}

// dropOptimistic removes the tentative local copy after a failed send.
func (t *Thread) dropOptimistic(msg models.ChatMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.msgs) - 1; i >= 0; i-- {
		m := t.msgs[i]
		if m.ID == "" && m.Message == msg.Message && m.CreatedAt.Equal(msg.CreatedAt) {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
			return
		}
	}
}
