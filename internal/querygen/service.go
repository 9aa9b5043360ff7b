package querygen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ivanhe123/jstor-gen/internal/observability/metrics"
	"github.com/ivanhe123/jstor-gen/internal/platform"
	"github.com/ivanhe123/jstor-gen/pkg/logging"
)

// Service manages query generation sessions: it mints them, hydrates them
// from the store after restarts, and runs the request cycle against the
// generation client. Each session remains the unit of isolation; the
// service only routes calls to the owning session object.
type Service struct {
	registry *platform.Registry
	client   GenerationClient
	store    SessionStore
	metrics  *metrics.GenerationMetrics
	logger   *logging.Logger

	defaults SessionParameters

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService wires a session manager around the supplied collaborators.
func NewService(registry *platform.Registry, client GenerationClient, store SessionStore, m *metrics.GenerationMetrics, logger *logging.Logger, defaults SessionParameters) *Service {
	if registry == nil {
		panic("querygen: registry cannot be nil")
	}
	if client == nil {
		panic("querygen: generation client cannot be nil")
	}
	if store == nil {
		panic("querygen: session store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if defaults.VariationCount < minVariations || defaults.VariationCount > maxVariations {
		defaults.VariationCount = minVariations
	}

	return &Service{
		registry: registry,
		client:   client,
		store:    store,
		metrics:  m,
		logger:   logger,
		defaults: defaults,
		sessions: make(map[string]*Session),
	}
}

// CreateSession mints a new session. Zero-valued parameters fall back to
// the service defaults.
func (s *Service) CreateSession(ctx context.Context, params SessionParameters) (*Session, error) {
	if params.PlatformID == "" {
		params.PlatformID = s.defaults.PlatformID
	}
	if params.VariationCount == 0 {
		params.VariationCount = s.defaults.VariationCount
	}
	if params.VariationCount < minVariations || params.VariationCount > maxVariations {
		return nil, ErrInvalidVariationCount
	}
	if _, err := s.registry.Lookup(params.PlatformID); err != nil {
		return nil, err
	}

	sess := NewSession(uuid.NewString(), params)

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	if err := s.persist(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("session created",
		"session_id", sess.ID,
		"platform", params.PlatformID,
		"variations", params.VariationCount,
	)
	return sess, nil
}

// GetSession returns a live session, rehydrating it from the store if this
// process has not seen it yet.
func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	snap, found, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrSessionNotFound
	}

	sess = sessionFromSnapshot(id, snap)
	s.mu.Lock()
	// Another request may have hydrated the same session concurrently.
	if existing, ok := s.sessions[id]; ok {
		sess = existing
	} else {
		s.sessions[id] = sess
	}
	s.mu.Unlock()
	return sess, nil
}

// Submit runs one user request through the session's orchestrator and
// persists the resulting state. History is persisted on failure too, since
// the failed request's user turn is retained for resubmission.
func (s *Service) Submit(ctx context.Context, sessionID, text string) (Turn, ExtractionResult, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return Turn{}, ExtractionResult{}, err
	}

	profile, err := s.registry.Lookup(sess.Params().PlatformID)
	if err != nil {
		return Turn{}, ExtractionResult{}, err
	}

	started := time.Now()
	turn, result, err := sess.Submit(ctx, profile, s.client, text)
	elapsed := time.Since(started).Seconds()

	switch {
	case err == nil:
		s.metrics.ObserveGeneration(profile.ID, "ok", elapsed)
		s.metrics.ObserveExtractedQueries(profile.ID, len(result.Queries))
		s.logger.Info("generation succeeded",
			"session_id", sessionID,
			"platform", profile.ID,
			"queries", len(result.Queries),
		)
	case errors.Is(err, ErrSessionBusy), errors.Is(err, ErrEmptyInput):
		// No turn was appended; nothing new to persist or count.
		return Turn{}, ExtractionResult{}, err
	default:
		s.metrics.ObserveGeneration(profile.ID, failureStatus(err), elapsed)
		s.logger.Error("generation failed",
			"session_id", sessionID,
			"platform", profile.ID,
			"error", err,
		)
	}

	if persistErr := s.persist(ctx, sess); persistErr != nil {
		s.logger.Error("failed to persist session", "session_id", sessionID, "error", persistErr)
	}
	return turn, result, err
}

// Reset clears a session's conversation and extraction result.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := sess.Reset(); err != nil {
		return err
	}
	return s.persist(ctx, sess)
}

// ChangePlatform switches the session's target platform, implicitly
// resetting its conversation when the platform actually changes.
func (s *Service) ChangePlatform(ctx context.Context, sessionID, platformID string) error {
	if _, err := s.registry.Lookup(platformID); err != nil {
		return err
	}
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := sess.ChangePlatform(platformID); err != nil {
		return err
	}
	return s.persist(ctx, sess)
}

// ChangeVariationCount updates how many query variations the next request
// asks for.
func (s *Service) ChangeVariationCount(ctx context.Context, sessionID string, n int) error {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := sess.ChangeVariationCount(n); err != nil {
		return err
	}
	return s.persist(ctx, sess)
}

// DeleteSession drops a session from memory and the store.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return s.store.Delete(ctx, sessionID)
}

// Registry exposes the platform registry for transcript/link rendering.
func (s *Service) Registry() *platform.Registry {
	return s.registry
}

func (s *Service) persist(ctx context.Context, sess *Session) error {
	snap := sess.snapshot()
	snap.UpdatedAt = time.Now().UTC()
	return s.store.Save(ctx, sess.ID, snap)
}

func failureStatus(err error) string {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return string(genErr.Kind)
	}
	if errors.Is(err, ErrInvalidVariationCount) {
		return "invalid_parameter"
	}
	return "error"
}
