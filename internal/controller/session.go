package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/speedwagon-io/wificonnector/internal/lib/logger/sl"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

var (
	ErrSessionFailed  = errors.New("session failed for this cycle")
	ErrReauthRejected = errors.New("call rejected again after reauthentication")
	ErrNoCredential   = errors.New("login response carried no session credential")
)

type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateAuthenticating
	StateAuthenticated
	StateReauthenticating
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateReauthenticating:
		return "reauthenticating"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Credential is what the controller handed out at login.
type Credential struct {
	Token   string
	Ticket  string
	Cookies []*http.Cookie
}

func (c Credential) apply(req *http.Request) {
	for _, cookie := range c.Cookies {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token         string `json:"token"`
	ServiceTicket string `json:"serviceTicket"`
}

// SessionManager owns the controller session. All credential writes go
// through mu; generation lets concurrent callers that saw the same
// rejected credential share a single reauthentication.
type SessionManager struct {
	log      *slog.Logger
	client   *Client
	username string
	password string

	mu         sync.Mutex
	state      SessionState
	cred       Credential
	generation uint64
	logins     int
}

func NewSessionManager(log *slog.Logger, client *Client, username, password string) *SessionManager {
	return &SessionManager{
		log:      log,
		client:   client,
		username: username,
		password: password,
		state:    StateUnauthenticated,
	}
}

func (s *SessionManager) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Logins reports how many login requests were issued.
func (s *SessionManager) Logins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

// BeginCycle clears a failure left by the previous cycle.
func (s *SessionManager) BeginCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFailed {
		s.state = StateUnauthenticated
		s.cred = Credential{}
	}
}

func (s *SessionManager) EnsureSession(ctx context.Context) (Credential, error) {
	cred, _, err := s.current(ctx)
	return cred, err
}

func (s *SessionManager) current(ctx context.Context) (Credential, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateAuthenticated:
		return s.cred, s.generation, nil
	case StateFailed:
		return Credential{}, 0, retry.New(retry.KindAuth, "session", ErrSessionFailed)
	}

	s.state = StateAuthenticating
	if err := s.loginLocked(ctx); err != nil {
		return Credential{}, 0, err
	}
	return s.cred, s.generation, nil
}

// Do runs call with the current credential. An authorization failure
// triggers one reauthentication and one retry of call; a second
// rejection fails the session for the rest of the cycle.
func (s *SessionManager) Do(ctx context.Context, call func(ctx context.Context, cred Credential) error) error {
	cred, gen, err := s.current(ctx)
	if err != nil {
		return err
	}

	err = call(ctx, cred)
	if !retry.Is(err, retry.KindAuth) {
		return err
	}

	s.log.Warn("controller rejected session, reauthenticating", sl.Err(err))

	cred, err = s.reauthenticate(ctx, gen)
	if err != nil {
		return err
	}

	err = call(ctx, cred)
	if retry.Is(err, retry.KindAuth) {
		s.fail()
		return &retry.Error{Kind: retry.KindAuth, Op: "session", Err: errors.Join(ErrReauthRejected, err)}
	}
	return err
}

func (s *SessionManager) reauthenticate(ctx context.Context, seen uint64) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateFailed {
		return Credential{}, retry.New(retry.KindAuth, "session", ErrSessionFailed)
	}
	// Another caller already replaced the rejected credential.
	if s.state == StateAuthenticated && s.generation != seen {
		return s.cred, nil
	}

	s.state = StateReauthenticating
	if err := s.loginLocked(ctx); err != nil {
		return Credential{}, err
	}
	return s.cred, nil
}

func (s *SessionManager) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.cred = Credential{}
}

func (s *SessionManager) loginLocked(ctx context.Context) error {
	s.logins++

	resp, err := s.client.do(ctx, "login", http.MethodPost,
		s.client.endpoint(s.client.loginVersion, "/session"), nil,
		loginRequest{Username: s.username, Password: s.password}, nil)
	if err != nil {
		s.cred = Credential{}
		if retry.Is(err, retry.KindPermanent) {
			// 403 and friends on login mean the credentials are unusable.
			err = &retry.Error{Kind: retry.KindAuth, Op: "login", Err: err}
		}
		if !retry.Is(err, retry.KindAuth) {
			// Transient failure: the next attempt logs in again.
			s.state = StateUnauthenticated
			s.log.Warn("controller login failed", sl.Err(err))
			return err
		}
		s.state = StateFailed
		s.log.Error("controller login failed", sl.Err(err))
		return err
	}

	var body loginResponse
	if len(resp.body) > 0 {
		if err := json.Unmarshal(resp.body, &body); err != nil {
			s.log.Debug("login response is not JSON", sl.Err(err))
		}
	}

	cred := Credential{
		Token:   body.Token,
		Ticket:  body.ServiceTicket,
		Cookies: resp.cookies,
	}
	if cred.Token == "" {
		cred.Token = resp.header.Get("X-Auth-Token")
	}
	if cred.Token == "" && cred.Ticket == "" && len(cred.Cookies) == 0 {
		s.state = StateFailed
		return retry.New(retry.KindAuth, "login", ErrNoCredential)
	}

	s.cred = cred
	s.generation++
	s.state = StateAuthenticated
	s.log.Info("controller session established", slog.Uint64("generation", s.generation))
	return nil
}

// Close ends the controller session. Failures are logged only.
func (s *SessionManager) Close(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAuthenticated {
		return
	}

	cred := s.cred
	if _, err := s.client.do(ctx, "logout", http.MethodDelete,
		s.client.endpoint(s.client.loginVersion, "/session"), nil, nil, &cred); err != nil {
		s.log.Debug("controller logout failed", sl.Err(err))
	}

	s.state = StateUnauthenticated
	s.cred = Credential{}
}
