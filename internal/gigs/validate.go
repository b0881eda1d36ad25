package gigs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"

	"github.com/qri-io/jsonschema"

	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/pkg/apierr"
)

// gigDraftSchema mirrors the backend's validation so a bad draft is rejected
// before any network call. The server remains authoritative.
const gigDraftSchema = `{
	"$schema": "https://json-schema.org/draft/2019-09/schema",
	"type": "object",
	"required": ["title", "description", "deadline", "guidelines", "evaluationCriteria", "bounty", "breakdown", "contact", "skills"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"description": {"type": "string", "minLength": 1},
		"guidelines": {"type": "string", "minLength": 1},
		"evaluationCriteria": {"type": "string", "minLength": 1},
		"bounty": {"type": "number", "exclusiveMinimum": 0},
		"breakdown": {"type": "string", "minLength": 1},
		"contact": {"type": "string", "minLength": 1},
		"skills": {
			"type": "array",
			"minItems": 1,
			"items": {"type": "string", "minLength": 1}
		}
	}
}`

var draftSchema = mustSchema(gigDraftSchema)

func mustSchema(src string) *jsonschema.Schema {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(src), rs); err != nil {
		panic(fmt.Sprintf("gigs: compile draft schema: %v", err))
	}
	return rs
}

// validateDraft checks a draft against the schema plus the constraints JSON
// Schema cannot express (email-shaped contact, non-zero deadline).
func validateDraft(ctx context.Context, d models.GigDraft) error {
	const op = "gigs.create"

	b, err := json.Marshal(d)
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, op, err)
	}

	keyErrs, err := draftSchema.ValidateBytes(ctx, b)
	if err != nil {
		return apierr.Wrap(apierr.KindValidation, op, err)
	}
	if len(keyErrs) > 0 {
		ke := keyErrs[0]
		return apierr.Field(op, strings.TrimPrefix(ke.PropertyPath, "/"), ke.Message)
	}

	if _, err := mail.ParseAddress(d.Contact); err != nil {
		return apierr.Field(op, "contact", "must be a valid email address")
	}
	if d.Deadline.IsZero() {
		return apierr.Field(op, "deadline", "is required")
	}
	return nil
}

// SplitSkills turns a comma-separated skills entry into the trimmed,
// non-empty list the draft carries.
func SplitSkills(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
