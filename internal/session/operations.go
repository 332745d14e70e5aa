package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paneld-dev/paneld/internal/transport"
)

// EnsureVerified starts the initial verification exactly once per store.
// Later or concurrent calls return immediately.
func (s *Store) EnsureVerified(ctx context.Context) {
	s.mu.Lock()
	if s.verifyStarted || s.closed || s.snap.Status != StatusUnknown {
		s.mu.Unlock()
		return
	}
	s.verifyStarted = true
	s.mu.Unlock()

	if err := s.Verify(ctx); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Debug().Err(err).Msg("Initial verification did not authenticate")
	}
}

// Verify asks the backend who the current session belongs to
func (s *Store) Verify(ctx context.Context) error {
	ctx, release := s.bind(ctx)
	defer release()

	epoch, err := s.begin()
	if err != nil {
		return err
	}

	s.setVerifyInFlight(true)
	user, err := s.fetchUser(ctx)
	s.setVerifyInFlight(false)

	if err != nil {
		next := Snapshot{Status: StatusUnauthenticated, Error: verifyFailureMessage(err)}
		if !s.finish(epoch, next) {
			return ErrSuperseded
		}
		return fmt.Errorf("verification failed: %w", err)
	}

	if !s.finish(epoch, Snapshot{Status: StatusAuthenticated, User: user}) {
		return ErrSuperseded
	}
	return nil
}

// Login submits credentials and authenticates on success. Failures land in
// Unauthenticated with a user-facing message.
func (s *Store) Login(ctx context.Context, req LoginRequest) error {
	ctx, release := s.bind(ctx)
	defer release()

	epoch, err := s.begin()
	if err != nil {
		return err
	}

	if err := s.validate.Struct(req); err != nil {
		s.finish(epoch, Snapshot{Status: StatusUnauthenticated, Error: validationMessage(err)})
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	var raw json.RawMessage
	err = s.api.Post(ctx, s.endpoints.Login, req, &raw)
	if err != nil {
		msg := transport.UserMessage(err)
		if msg == "" {
			msg = MsgInvalidCredentials
		}
		if !s.finish(epoch, Snapshot{Status: StatusUnauthenticated, Error: msg}) {
			return ErrSuperseded
		}
		return fmt.Errorf("login failed: %w", err)
	}

	user, err := decodeUser(raw)
	if err != nil {
		// Session established without a profile in the body
		s.setVerifyInFlight(true)
		user, err = s.fetchUser(ctx)
		s.setVerifyInFlight(false)
		if err != nil {
			s.finish(epoch, Snapshot{Status: StatusUnauthenticated, Error: MsgInvalidCredentials})
			return fmt.Errorf("login failed: %w", err)
		}
	}

	if !s.finish(epoch, Snapshot{Status: StatusAuthenticated, User: user}) {
		return ErrSuperseded
	}
	s.logger.Info().Str("user_id", user.ID).Msg("Logged in")
	return nil
}

// Register creates the account and then verifies instead of trusting the
// registration response.
func (s *Store) Register(ctx context.Context, req RegisterRequest) error {
	ctx, release := s.bind(ctx)
	defer release()

	epoch, err := s.begin()
	if err != nil {
		return err
	}

	if err := s.validate.Struct(req); err != nil {
		s.finish(epoch, Snapshot{Status: StatusUnauthenticated, Error: validationMessage(err)})
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	if err := s.api.Post(ctx, s.endpoints.Register, req, nil); err != nil {
		msg := transport.UserMessage(err)
		if msg == "" {
			msg = MsgRegisterFailed
		}
		if !s.finish(epoch, Snapshot{Status: StatusUnauthenticated, Error: msg}) {
			return ErrSuperseded
		}
		return fmt.Errorf("registration failed: %w", err)
	}

	s.setVerifyInFlight(true)
	user, err := s.fetchUser(ctx)
	s.setVerifyInFlight(false)

	if err != nil {
		if !s.finish(epoch, Snapshot{Status: StatusUnauthenticated, Error: MsgSignInRequired}) {
			return ErrSuperseded
		}
		return ErrSignInRequired
	}

	if !s.finish(epoch, Snapshot{Status: StatusAuthenticated, User: user}) {
		return ErrSuperseded
	}
	s.logger.Info().Str("user_id", user.ID).Msg("Registered and logged in")
	return nil
}

// Logout invalidates the session remotely and always clears it locally. A
// remote failure is returned wrapped in ErrRemoteLogout after the local state
// is already Unauthenticated.
func (s *Store) Logout(ctx context.Context) error {
	epoch, err := s.begin()
	if err != nil {
		return err
	}

	remoteErr := s.api.Post(ctx, s.endpoints.Logout, nil, nil)
	if isSessionLoss(remoteErr) {
		// Already invalid remotely
		remoteErr = nil
	}
	s.api.ClearSession()
	s.finish(epoch, Snapshot{Status: StatusUnauthenticated})

	if remoteErr != nil {
		s.logger.Warn().Err(remoteErr).Msg(MsgLogoutFailed)
		return fmt.Errorf("%w: %w", ErrRemoteLogout, remoteErr)
	}
	s.logger.Info().Msg("Logged out")
	return nil
}

// reverifyTick re-checks the session while authenticated. The state stays
// Authenticated during the check so guards keep rendering.
func (s *Store) reverifyTick() {
	s.mu.Lock()
	if s.closed || s.snap.Status != StatusAuthenticated || s.verifyInFlight {
		s.mu.Unlock()
		return
	}
	epoch := s.epoch
	s.verifyInFlight = true
	s.mu.Unlock()

	user, err := s.fetchUser(s.ctx)
	s.setVerifyInFlight(false)

	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		msg := verifyFailureMessage(err)
		if isSessionLoss(err) {
			msg = MsgSessionExpired
		}
		s.logger.Warn().Err(err).Msg("Periodic re-verification failed")
		s.finishSilent(epoch, Snapshot{Status: StatusUnauthenticated, Error: msg})
		return
	}

	s.finishSilent(epoch, Snapshot{Status: StatusAuthenticated, User: user})
}

// finishSilent applies a background result against an epoch that was not bumped
func (s *Store) finishSilent(epoch uint64, next Snapshot) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.closed || s.epoch != epoch || s.snap.Status != StatusAuthenticated {
		s.mu.Unlock()
		return
	}
	if next.Status == StatusUnauthenticated {
		s.epoch++
	}
	s.notifyLocked(next)
}

func (s *Store) fetchUser(ctx context.Context) (*User, error) {
	var raw json.RawMessage
	if err := s.api.Get(ctx, s.endpoints.Verify, nil, &raw); err != nil {
		return nil, err
	}
	user, err := decodeUser(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return user, nil
}

// bind cancels ctx when the store is closed
func (s *Store) bind(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Store) setVerifyInFlight(v bool) {
	s.mu.Lock()
	s.verifyInFlight = v
	s.mu.Unlock()
}

func isSessionLoss(err error) bool {
	return errors.Is(err, transport.ErrUnauthenticated) ||
		errors.Is(err, transport.ErrSessionExpired)
}

// verifyFailureMessage is empty for a plain "no session" outcome
func verifyFailureMessage(err error) string {
	if isSessionLoss(err) || errors.Is(err, transport.ErrClient) {
		return ""
	}
	return MsgVerificationFailed
}
