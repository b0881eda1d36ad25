// Package apitest runs an in-process marketplace backend for tests. It
// implements the REST contract the engagement core is written against,
// issues real HS256 tokens, and derives every identity server-side from the
// bearer credential, so tests exercise the same trust boundary as
// production.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ethgigs/gigboard/internal/models"
)

type account struct {
	email    string
	password string
}

// Server is a fake marketplace backend.
type Server struct {
	// URL is the base URL clients should use, including the /api prefix.
	URL    string
	Secret string

	srv *httptest.Server

	mu          sync.Mutex
	gigs        []models.Gig
	submissions map[string][]models.Submission
	chats       map[string][]models.ChatMessage
	profiles    map[string]models.Profile
	workers     map[string]account
	businesses  map[string]account
}

// New starts the fake backend. Callers must Close it.
func New() *Server {
	s := &Server{
		Secret:      "apitest-secret",
		submissions: make(map[string][]models.Submission),
		chats:       make(map[string][]models.ChatMessage),
		profiles:    make(map[string]models.Profile),
		workers:     make(map[string]account),
		businesses:  make(map[string]account),
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	// literal routes first; the catch-all profile route must lose every tie
	api.HandleFunc("/gigs", s.listGigs).Methods("GET")
	api.HandleFunc("/gigs", s.createGig).Methods("POST")
	api.HandleFunc("/gigs/{company}", s.listGigsForCompany).Methods("GET")
	api.HandleFunc("/getGigById/{gigId}", s.getGig).Methods("GET")
	api.HandleFunc("/submissions/{gigId}", s.listSubmissions).Methods("GET")
	api.HandleFunc("/users/login", s.loginWorker).Methods("POST")
	api.HandleFunc("/users/register", s.registerWorker).Methods("POST")
	api.HandleFunc("/businesses/login", s.loginBusiness).Methods("POST")
	api.HandleFunc("/businesses/register", s.registerBusiness).Methods("POST")
	api.HandleFunc("/businesses/{name}", s.getBusiness).Methods("GET")
	api.HandleFunc("/profile", s.createProfile).Methods("POST")
	api.HandleFunc("/update", s.updateProfile).Methods("PATCH")
	api.HandleFunc("/{gigId}/submissions", s.createSubmission).Methods("POST")
	api.HandleFunc("/{gigId}/chats", s.listChats).Methods("GET")
	api.HandleFunc("/{gigId}/chat", s.postChat).Methods("POST")
	api.HandleFunc("/{username}", s.getProfile).Methods("GET")

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL + "/api"
	return s
}

func (s *Server) Close() { s.srv.Close() }

// Client returns the HTTP client wired to the test server.
func (s *Server) Client() *http.Client { return s.srv.Client() }

// --- seeding and inspection helpers ---

// AddWorker registers a worker account.
func (s *Server) AddWorker(username, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[username] = account{email: email, password: password}
}

// AddBusiness registers a business account.
func (s *Server) AddBusiness(name, email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[name] = account{email: email, password: password}
}

// SeedGig stores a gig directly, assigning an id and timestamps.
func (s *Server) SeedGig(g models.Gig) models.Gig {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = uuid.NewString()
	g.CreatedAt = time.Now().UTC()
	g.UpdatedAt = g.CreatedAt
	s.gigs = append(s.gigs, g)
	return g
}

// Submissions returns the stored submissions for a gig.
func (s *Server) Submissions(gigID string) []models.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Submission(nil), s.submissions[gigID]...)
}

// Chats returns the stored messages for a gig, oldest first.
func (s *Server) Chats(gigID string) []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.chats[gigID]...)
}

// IssueWorkerToken mints a signed worker token with the given lifetime. A
// non-positive ttl produces an already-expired token.
func (s *Server) IssueWorkerToken(username string, ttl time.Duration) string {
	return s.sign(jwt.MapClaims{"username": username, "exp": time.Now().Add(ttl).Unix()})
}

// IssueBusinessToken mints a signed business token.
func (s *Server) IssueBusinessToken(company string, ttl time.Duration) string {
	return s.sign(jwt.MapClaims{"company": company, "exp": time.Now().Add(ttl).Unix()})
}

func (s *Server) sign(claims jwt.MapClaims) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Secret))
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return tok
}

// identity verifies the bearer token and returns the actor name it encodes.
func (s *Server) identity(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return "", false
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.Secret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	for _, key := range []string{"username", "company"} {
		if v, found := claims[key].(string); found && v != "" {
			return v, true
		}
	}
	return "", false
}

// --- handlers ---

func (s *Server) listGigs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.gigs)
}

func (s *Server) listGigsForCompany(w http.ResponseWriter, r *http.Request) {
	company := mux.Vars(r)["company"]

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := []models.Gig{}
	for _, g := range s.gigs {
		if g.Company == company {
			matched = append(matched, g)
		}
	}
	if _, known := s.businesses[company]; !known && len(matched) == 0 {
		httpError(w, http.StatusNotFound, "unknown company")
		return
	}
	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) getGig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["gigId"]

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.gigs {
		if g.ID == id {
			writeJSON(w, http.StatusOK, g)
			return
		}
	}
	httpError(w, http.StatusNotFound, "gig not found")
}

func (s *Server) createGig(w http.ResponseWriter, r *http.Request) {
	company, ok := s.identity(r)
	if !ok {
		httpError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	var g models.Gig
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if g.Bounty <= 0 {
		httpError(w, http.StatusBadRequest, "bounty must be positive")
		return
	}
	if len(g.Skills) == 0 {
		httpError(w, http.StatusBadRequest, "at least one skill is required")
		return
	}

	// company always comes from the credential, never the body
	g.Company = company
	g.ID = uuid.NewString()
	g.CreatedAt = time.Now().UTC()
	g.UpdatedAt = g.CreatedAt

	s.mu.Lock()
	s.gigs = append(s.gigs, g)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	username, ok := s.identity(r)
	if !ok {
		httpError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	gigID := mux.Vars(r)["gigId"]
	if !s.gigExists(gigID) {
		httpError(w, http.StatusNotFound, "gig not found")
		return
	}

	var sub models.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if u, err := url.ParseRequestURI(sub.Link); err != nil || u.Host == "" {
		httpError(w, http.StatusBadRequest, "link must be a well-formed URL")
		return
	}

	sub.ID = uuid.NewString()
	sub.GigID = gigID
	sub.Username = username // ignore any client-supplied value
	sub.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.submissions[gigID] = append(s.submissions[gigID], sub)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	gigID := mux.Vars(r)["gigId"]

	s.mu.Lock()
	defer s.mu.Unlock()
	subs := s.submissions[gigID]
	if subs == nil {
		subs = []models.Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	gigID := mux.Vars(r)["gigId"]

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.chats[gigID]
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) postChat(w http.ResponseWriter, r *http.Request) {
	username, ok := s.identity(r)
	if !ok {
		httpError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	gigID := mux.Vars(r)["gigId"]
	var msg models.ChatMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(msg.Message) == "" {
		httpError(w, http.StatusBadRequest, "message must not be empty")
		return
	}

	msg.ID = uuid.NewString()
	msg.GigID = gigID
	msg.Username = username
	msg.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	s.chats[gigID] = append(s.chats[gigID], msg)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) loginWorker(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for username, acct := range s.workers {
		if acct.email == creds.Email && acct.password == creds.Password {
			token := s.sign(jwt.MapClaims{"username": username, "exp": time.Now().Add(time.Hour).Unix()})
			writeJSON(w, http.StatusOK, models.AuthResponse{Token: token})
			return
		}
	}
	httpError(w, http.StatusUnauthorized, "invalid credentials")
}

func (s *Server) loginBusiness(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for name, acct := range s.businesses {
		if acct.email == creds.Email && acct.password == creds.Password {
			token := s.sign(jwt.MapClaims{"company": name, "exp": time.Now().Add(time.Hour).Unix()})
			writeJSON(w, http.StatusOK, models.AuthResponse{Token: token})
			return
		}
	}
	httpError(w, http.StatusUnauthorized, "invalid credentials")
}

func (s *Server) registerWorker(w http.ResponseWriter, r *http.Request) {
	var reg models.WorkerRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		httpError(w, http.StatusBadRequest, "missing fields")
		return
	}

	s.mu.Lock()
	s.workers[reg.Username] = account{email: reg.Email, password: reg.Password}
	s.mu.Unlock()

	token := s.sign(jwt.MapClaims{"username": reg.Username, "exp": time.Now().Add(time.Hour).Unix()})
	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: token})
}

func (s *Server) registerBusiness(w http.ResponseWriter, r *http.Request) {
	var reg models.BusinessRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if reg.Name == "" || reg.Email == "" || reg.Password == "" {
		httpError(w, http.StatusBadRequest, "missing fields")
		return
	}

	s.mu.Lock()
	s.businesses[reg.Name] = account{email: reg.Email, password: reg.Password}
	s.mu.Unlock()

	token := s.sign(jwt.MapClaims{"company": reg.Name, "exp": time.Now().Add(time.Hour).Unix()})
	writeJSON(w, http.StatusCreated, models.AuthResponse{Token: token})
}

func (s *Server) getBusiness(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, found := s.businesses[name]; found {
		writeJSON(w, http.StatusOK, models.Business{Name: name, Email: acct.email})
		return
	}
	httpError(w, http.StatusNotFound, "business not found")
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, found := s.profiles[username]; found {
		writeJSON(w, http.StatusOK, p)
		return
	}
	httpError(w, http.StatusNotFound, "profile not found")
}

func (s *Server) createProfile(w http.ResponseWriter, r *http.Request) {
	s.upsertProfile(w, r, http.StatusCreated)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	s.upsertProfile(w, r, http.StatusOK)
}

func (s *Server) upsertProfile(w http.ResponseWriter, r *http.Request, status int) {
	identity, ok := s.identity(r)
	if !ok {
		httpError(w, http.StatusUnauthorized, "invalid or expired token")
		return
	}

	var p models.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if p.Username != "" && p.Username != identity {
		httpError(w, http.StatusForbidden, "identity mismatch")
		return
	}
	if p.About == "" || p.Skills == "" {
		httpError(w, http.StatusBadRequest, "about and skills are required")
		return
	}

	p.Username = identity
	s.mu.Lock()
	s.profiles[identity] = p
	s.mu.Unlock()

	writeJSON(w, status, p)
}

func (s *Server) gigExists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.gigs {
		if g.ID == id {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
