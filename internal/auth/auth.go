// Package auth talks to the backend's login and registration endpoints.
// Password hashing and token issuance live server-side; this client only
// forwards credentials and hands the issued token to the session manager.
package auth

import (
	"context"
	"log/slog"

	"github.com/ethgigs/gigboard/internal/models"
	"github.com/ethgigs/gigboard/internal/session"
	"github.com/ethgigs/gigboard/pkg/apierr"
	"github.com/ethgigs/gigboard/pkg/gigapi"
)

// Client performs login, logout, and registration.
type Client struct {
	api      *gigapi.Client
	sessions *session.Manager
	log      *slog.Logger
}

// New creates an auth Client.
func New(api *gigapi.Client, sessions *session.Manager, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{api: api, sessions: sessions, log: log}
}

// LoginWorker exchanges worker credentials for a token and establishes the
// worker session.
func (c *Client) LoginWorker(ctx context.Context, email, password string) error {
	return c.login(ctx, "users/login", session.RoleWorker, email, password)
}

// LoginBusiness exchanges business credentials for a token and establishes
// the business session.
func (c *Client) LoginBusiness(ctx context.Context, email, password string) error {
	return c.login(ctx, "businesses/login", session.RoleBusiness, email, password)
}

func (c *Client) login(ctx context.Context, path string, role session.Role, email, password string) error {
	const op = "auth.login"

	if email == "" || password == "" {
		return apierr.Field(op, "credentials", "email and password are required")
	}

	var resp models.AuthResponse
	if err := c.api.Post(ctx, path, "", models.Credentials{Email: email, Password: password}, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return apierr.New(apierr.KindTransport, op, "backend returned no token")
	}

	if err := c.sessions.Establish(ctx, role, resp.Token); err != nil {
		return err
	}
	c.log.Info("session established", slog.String("role", string(role)))
	return nil
}

// RegisterWorker signs up a worker and establishes the session from the
// issued token.
func (c *Client) RegisterWorker(ctx context.Context, reg models.WorkerRegistration) error {
	const op = "auth.register"

	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return apierr.Field(op, "registration", "username, email and password are required")
	}

	var resp models.AuthResponse
	if err := c.api.Post(ctx, "users/register", "", reg, &resp); err != nil {
		return err
	}
	if resp.Token != "" {
		return c.sessions.Establish(ctx, session.RoleWorker, resp.Token)
	}
	return nil
}

// RegisterBusiness signs up a business and establishes the session from the
// issued token.
func (c *Client) RegisterBusiness(ctx context.Context, reg models.BusinessRegistration) error {
	const op = "auth.register"

	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		return apierr.Field(op, "registration", "name, email and password are required")
	}

	var resp models.AuthResponse
	if err := c.api.Post(ctx, "businesses/register", "", reg, &resp); err != nil {
		return err
	}
	if resp.Token != "" {
		return c.sessions.Establish(ctx, session.RoleBusiness, resp.Token)
	}
	return nil
}

// Logout clears the stored token for role. Stateless tokens need no server
// call.
func (c *Client) Logout(ctx context.Context, role session.Role) error {
	return c.sessions.Clear(ctx, role)
}

// Business fetches the public record of a posting company, for the
// dashboard view.
func (c *Client) Business(ctx context.Context, name string) (models.Business, error) {
	var b models.Business
	if err := c.api.Get(ctx, "businesses/"+name, &b); err != nil {
		return models.Business{}, err
	}
	return b, nil
}
