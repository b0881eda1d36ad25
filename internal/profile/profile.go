// Package profile reads and upserts the per-identity descriptive record.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/pkg/apierr"
	"github.com/ethgigs/gigboard/pkg/gigapi"
)

// profileSchema mirrors the backend's required fields. The link fields are
// checked separately because "optional but must be a URL" reads better in Go
// than in schema keywords.
const profileSchema = `{
	"$schema": "https://json-schema.org/draft/2019-09/schema",
	"type": "object",
	"required": ["About", "skills"],
	"properties": {
		"About": {"type": "string", "minLength": 1},
		"skills": {"type": "string", "minLength": 1}
	}
}`

var compiledSchema = mustSchema(profileSchema)

func mustSchema(src string) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(src), rs); err != nil {
		panic(fmt.Sprintf("profile: compile schema: %v", err))
	}
	return rs
}

// Store reads and writes profiles for the current worker identity.
type Store struct {
	api      *gigapi.Client
	sessions *session.Manager
	log      *slog.Logger
}

// New creates a Store.
func New(api *gigapi.Client, sessions *session.Manager, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{api: api, sessions: sessions, log: log}
}

// Fetch returns the profile for identity. A not-found error means "no
// profile yet" and is an expected first-visit condition, not a fault.
func (s *Store) Fetch(ctx context.Context, identity string) (models.Profile, error) {
	var p models.Profile
	if err := s.api.Get(ctx, identity, &p); err != nil {
		return models.Profile{}, err
	}
	return p, nil
}

// Save upserts the current actor's profile: POST on first save, PATCH once
// one exists. The username is taken from the session token, so the record a
// caller passes cannot claim another identity; the backend enforces the same
// match on its side.
func (s *Store) Save(ctx context.Context, data models.Profile) (models.Profile, error) {
	const op = "profile.save"

	token, identity, ok := s.sessions.Require(ctx, session.RoleWorker)
	if !ok {
		return models.Profile{}, apierr.New(apierr.KindAuth, op, "worker login required")
	}
	data.Username = identity

	if err := validate(ctx, data); err != nil {
		return models.Profile{}, err
	}

	exists := true
	if _, err := s.Fetch(ctx, identity); err != nil {
		if !apierr.IsNotFound(err) {
			return models.Profile{}, err
		}
		exists = false
	}

	var saved models.Profile
	var err error
	if exists {
		err = s.api.Patch(ctx, "update", token, data, &saved)
	} else {
		err = s.api.Post(ctx, "profile", token, data, &saved)
	}
	if err != nil {
		if apierr.IsAuth(err) {
			if clearErr := s.sessions.Clear(ctx, session.RoleWorker); clearErr != nil {
				s.log.Error("clear worker session", slog.Any("err", clearErr))
			}
		}
		return models.Profile{}, err
	}

	s.log.Info("profile saved", slog.String("username", identity), slog.Bool("created", !exists))
	return saved, nil
}

func validate(ctx context.Context, p models.Profile) error {
	const op = "profile.save"

	b, err := json.Marshal(p)
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, op, err)
	}
	keyErrs, err := compiledSchema.ValidateBytes(ctx, b)
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, op, err)
	}
	if len(keyErrs) > 0 {
		ke := keyErrs[0]
		return apierr.Field(op, strings.TrimPrefix(ke.PropertyPath, "/"), ke.Message)
	}

	links := map[string]string{
		"twitter":  p.Twitter,
		"github":   p.Github,
		"linkedIn": p.LinkedIn,
	}
	for field, link := range links {
		if link == "" {
			continue
		}
		if u, err := url.ParseRequestURI(link); err != nil || u.Host == "" {
			return apierr.Field(op, field, "must be a well-formed URL")
		}
	}
	return nil
}
