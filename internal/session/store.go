// Package session holds the authentication state machine shared by the route
// guards, the dashboard handlers and the CLI. All writes go through the Store
// operations; readers take snapshots or subscribe to transitions.
package session

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	// ErrRemoteLogout is returned by Logout when the backend could not
	// invalidate the session. Local state is cleared regardless.
	ErrRemoteLogout = errors.New("remote logout failed")
	// ErrInvalidInput wraps request validation failures
	ErrInvalidInput = errors.New("invalid input")
	// ErrClosed is returned by operations on a closed store
	ErrClosed = errors.New("session store closed")
	// ErrSignInRequired means registration succeeded but no session was established
	ErrSignInRequired = errors.New("account created, sign in required")
	// ErrSuperseded means a later transition replaced the operation's result
	ErrSuperseded = errors.New("superseded by a later session change")
)

// User-facing messages
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgVerificationFailed = "Verification failed"
	MsgRegisterFailed     = "Registration failed"
	MsgLogoutFailed       = "Logout failed"
	MsgSessionExpired     = "Your session has expired. Please sign in again."
	MsgSignInRequired     = "Account created. Please sign in."
)

// API is the subset of the session transport the store drives
type API interface {
	Get(ctx context.Context, path string, params url.Values, out any) error
	Post(ctx context.Context, path string, body, out any) error
	ClearSession()
	OnSessionExpired(fn func(error))
}

// Endpoints are the backend auth routes
type Endpoints struct {
	Login    string
	Register string
	Logout   string
	Verify   string
}

// DefaultEndpoints match the reference backend
var DefaultEndpoints = Endpoints{
	Login:    "/auth/login",
	Register: "/auth/register",
	Logout:   "/auth/logout",
	Verify:   "/auth/verify",
}

type Options struct {
	Endpoints Endpoints
	// ReverifyInterval enables periodic re-verification while authenticated
	ReverifyInterval time.Duration
	Logger           zerolog.Logger
	Registerer       prometheus.Registerer
}

// Store is the single writer of the session state
type Store struct {
	api         API
	endpoints   Endpoints
	validate    *validator.Validate
	logger      zerolog.Logger
	transitions *prometheus.CounterVec
	reverify    *reverifier

	// ctx bounds background verification; cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc

	// emitMu serialises transitions with their notifications so listeners
	// observe them in order
	emitMu sync.Mutex

	mu             sync.Mutex
	snap           Snapshot
	epoch          uint64
	verifyStarted  bool
	verifyInFlight bool
	closed         bool
	listeners      map[int]func(Snapshot)
	nextListener   int
	settled        chan struct{}
}

// NewStore creates a store in the Unknown state and registers it for the
// transport's session-expiry signal.
func NewStore(api API, opts Options) *Store {
	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		api:       api,
		endpoints: opts.Endpoints,
		validate:  newValidator(),
		logger:    opts.Logger.With().Str("component", "session").Logger(),
		transitions: promauto.With(opts.Registerer).NewCounterVec(
			prometheus.CounterOpts{
				Name: "paneld_session_transitions_total",
				Help: "Session state transitions by target state",
			},
			[]string{"state"},
		),
		ctx:       ctx,
		cancel:    cancel,
		snap:      Snapshot{Status: StatusUnknown},
		listeners: make(map[int]func(Snapshot)),
		settled:   make(chan struct{}),
	}

	if opts.ReverifyInterval > 0 {
		s.reverify = newReverifier(opts.ReverifyInterval, s.logger)
		s.logger.Debug().Stringer("schedule", s.reverify).Msg("Periodic re-verification enabled")
	}

	api.OnSessionExpired(s.sessionExpired)
	return s
}

// Snapshot returns the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Subscribe registers fn to receive every subsequent transition. fn must not
// call Store operations synchronously.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// WaitSettled blocks until the state is Authenticated or Unauthenticated
func (s *Store) WaitSettled(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		snap, settled, closed := s.snap, s.settled, s.closed
		s.mu.Unlock()

		if snap.Status.Settled() {
			return snap, nil
		}
		if closed {
			return snap, ErrClosed
		}

		select {
		case <-settled:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// ClearError drops the error text attached to the Unauthenticated state
func (s *Store) ClearError() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || s.snap.Error == "" {
		s.mu.Unlock()
		return
	}
	next := s.snap
	next.Error = ""
	s.notifyLocked(next)
}

// Close stops the periodic job and detaches listeners. Results of operations
// still in flight are discarded.
func (s *Store) Close() {
	s.emitMu.Lock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.emitMu.Unlock()
		return
	}
	s.closed = true
	s.epoch++
	s.listeners = make(map[int]func(Snapshot))
	if s.reverify != nil {
		s.reverify.cancel()
	}
	if !s.snap.Status.Settled() {
		close(s.settled)
	}
	s.mu.Unlock()
	s.emitMu.Unlock()

	s.cancel()
	if s.reverify != nil {
		s.reverify.stop()
	}
}

// begin moves the store to Verifying and returns the epoch owning the result
func (s *Store) begin() (uint64, error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.epoch++
	epoch := s.epoch
	s.notifyLocked(Snapshot{Status: StatusVerifying})
	return epoch, nil
}

// finish applies next if no later transition happened since epoch was taken
func (s *Store) finish(epoch uint64, next Snapshot) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		s.logger.Debug().Stringer("state", next.Status).Msg("Dropping stale session result")
		return false
	}
	s.notifyLocked(next)
	return true
}

// notifyLocked installs next, releases s.mu and notifies listeners. Callers
// hold emitMu and s.mu.
func (s *Store) notifyLocked(next Snapshot) {
	prev := s.snap
	s.snap = next

	if next.Status.Settled() && !prev.Status.Settled() {
		close(s.settled)
	} else if !next.Status.Settled() && prev.Status.Settled() {
		s.settled = make(chan struct{})
	}

	if s.reverify != nil {
		if next.Status == StatusAuthenticated {
			s.reverify.schedule(s.reverifyTick)
		} else {
			s.reverify.cancel()
		}
	}

	listeners := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if prev.Status != next.Status {
		s.transitions.WithLabelValues(next.Status.String()).Inc()
		s.logger.Debug().
			Stringer("from", prev.Status).
			Stringer("to", next.Status).
			Msg("Session state changed")
	}

	for _, fn := range listeners {
		fn(next)
	}
}

// sessionExpired handles the transport's refresh-failure signal. An operation
// in flight settles the state itself.
func (s *Store) sessionExpired(err error) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || s.snap.Status == StatusVerifying {
		s.mu.Unlock()
		return
	}

	next := Snapshot{Status: StatusUnauthenticated}
	if s.snap.Status == StatusAuthenticated {
		next.Error = MsgSessionExpired
	}
	s.epoch++
	s.logger.Info().Err(err).Msg("Session expired")
	s.notifyLocked(next)
}
