// Package models holds the wire-level entities of the marketplace. JSON tags
// follow the backend contract, including its Mongo-style "_id" keys.
package models

import "time"

// Gig is a paid task posted by a business. Company is set by the backend from
// the authenticated business identity and is immutable after creation.
type Gig struct {
	ID                 string    `json:"_id,omitempty"`
	Title              string    `json:"title"`
	Company            string    `json:"company"`
	Description        string    `json:"description"`
	Deadline           time.Time `json:"deadline"`
	Guidelines         string    `json:"guidelines"`
	EvaluationCriteria string    `json:"evaluationCriteria"`
	Bounty             float64   `json:"bounty"`
	Breakdown          string    `json:"breakdown"`
	Contact            string    `json:"contact"`
	Skills             []string  `json:"skills"`
	CreatedAt          time.Time `json:"createdAt,omitempty"`
	UpdatedAt          time.Time `json:"updatedAt,omitempty"`
}

// GigDraft is the client-side input for creating a gig. It deliberately has
// no company field: the owning business comes from the session token.
type GigDraft struct {
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Deadline           time.Time `json:"deadline"`
	Guidelines         string    `json:"guidelines"`
	EvaluationCriteria string    `json:"evaluationCriteria"`
	Bounty             float64   `json:"bounty"`
	Breakdown          string    `json:"breakdown"`
	Contact            string    `json:"contact"`
	Skills             []string  `json:"skills"`
}

// Submission is a worker's claim of completed work against one gig. Username
// is derived server-side from the bearer token, never client-supplied.
type Submission struct {
	ID        string    `json:"_id,omitempty"`
	GigID     string    `json:"gigId"`
	Link      string    `json:"link"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// ChatMessage is one entry of a gig-scoped, append-only thread.
type ChatMessage struct {
	ID        string    `json:"_id,omitempty"`
	GigID     string    `json:"gigId"`
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Profile is the per-identity descriptive record, keyed by username.
type Profile struct {
	Username string `json:"username"`
	About    string `json:"About"`
	Skills   string `json:"skills"`
	Twitter  string `json:"twitter,omitempty"`
	Github   string `json:"github,omitempty"`
	LinkedIn string `json:"linkedIn,omitempty"`
}

// Business is the public record of a posting company.
type Business struct {
	ID    string `json:"_id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Credentials is a login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// WorkerRegistration is the signup body for workers.
type WorkerRegistration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// BusinessRegistration is the signup body for businesses.
type BusinessRegistration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the bearer token issued on login.
type AuthResponse struct {
	Token string `json:"token"`
}
