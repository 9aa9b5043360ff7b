package querygen

import (
	"context"
	"sync"

	"github.com/ivanhe123/jstor-gen/internal/platform"
)

// Status is the orchestrator's current position in its state machine.
type Status string

const (
	StatusIdle             Status = "idle"
	StatusAwaitingResponse Status = "awaiting_response"
	StatusError            Status = "error"
)

// SessionParameters are the operator-tunable settings for one session.
type SessionParameters struct {
	PlatformID     string `json:"platform_id"`
	VariationCount int    `json:"variation_count"`
}

// Session owns one conversation: its parameters, retained turns, latest
// extraction result and orchestrator status. Sessions are isolated from
// each other; all access to one session is serialised by its mutex, and at
// most one generation call is in flight at a time.
type Session struct {
	ID string

	mu           sync.Mutex
	params       SessionParameters
	conversation ConversationState
	result       ExtractionResult
	status       Status
	lastErr      error
}

// NewSession creates an idle session with an empty conversation.
func NewSession(id string, params SessionParameters) *Session {
	return &Session{
		ID:     id,
		params: params,
		status: StatusIdle,
	}
}

// Submit runs one full request cycle: append the user turn, compose the
// platform instruction, send the payload, and on success commit the
// assistant turn and re-derive the extraction result. On failure the user
// turn is retained for resubmission and the stale extraction result is
// cleared. A submission while another is awaiting its response is rejected
// with ErrSessionBusy.
func (s *Session) Submit(ctx context.Context, profile platform.Profile, client GenerationClient, text string) (Turn, ExtractionResult, error) {
	s.mu.Lock()
	if s.status == StatusAwaitingResponse {
		s.mu.Unlock()
		return Turn{}, ExtractionResult{}, ErrSessionBusy
	}

	if err := s.conversation.AppendUser(text); err != nil {
		// Nothing was appended and no result is pending, so the previous
		// extraction survives a blank submission.
		s.status = StatusError
		s.lastErr = err
		s.mu.Unlock()
		return Turn{}, ExtractionResult{}, err
	}
	s.status = StatusAwaitingResponse
	s.lastErr = nil

	instruction, err := ComposePrompt(profile, s.params.VariationCount)
	if err != nil {
		s.failLocked(err)
		s.mu.Unlock()
		return Turn{}, ExtractionResult{}, err
	}
	payload := s.conversation.BuildPayload(instruction)
	s.mu.Unlock()

	turn, err := client.Send(ctx, payload)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failLocked(err)
		return Turn{}, ExtractionResult{}, err
	}

	s.conversation.AppendAssistant(turn.Content)
	s.result = Extract(turn.Content)
	s.status = StatusIdle
	return turn, s.result, nil
}

// failLocked records a failed request: the pending user turn stays in the
// retained history, only the derived result is dropped.
func (s *Session) failLocked(err error) {
	s.status = StatusError
	s.lastErr = err
	s.result = ExtractionResult{}
}

// Reset clears the conversation and extraction result, keeping parameters.
// Rejected with ErrSessionBusy while a generation call is in flight.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusAwaitingResponse {
		return ErrSessionBusy
	}
	s.conversation.Reset()
	s.result = ExtractionResult{}
	s.status = StatusIdle
	s.lastErr = nil
	return nil
}

// ChangePlatform switches the session to another platform. A prompt built
// for one platform's grammar must never be continued under another's, so a
// real change implicitly resets the conversation and result, and the
// switch is rejected with ErrSessionBusy while a generation call prompted
// by the old platform is still in flight.
func (s *Session) ChangePlatform(platformID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusAwaitingResponse {
		return ErrSessionBusy
	}
	if s.params.PlatformID == platformID {
		return nil
	}
	s.params.PlatformID = platformID
	s.conversation.Reset()
	s.result = ExtractionResult{}
	s.status = StatusIdle
	s.lastErr = nil
	return nil
}

// ChangeVariationCount updates the requested variation count. The
// conversation is kept; only the next composed instruction changes.
// Rejected with ErrSessionBusy while a generation call is in flight.
func (s *Session) ChangeVariationCount(n int) error {
	if n < minVariations || n > maxVariations {
		return ErrInvalidVariationCount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusAwaitingResponse {
		return ErrSessionBusy
	}
	s.params.VariationCount = n
	return nil
}

// Params returns the current session parameters.
func (s *Session) Params() SessionParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Turns returns the retained transcript (system turns are never retained).
func (s *Session) Turns() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversation.Turns()
}

// Result returns the latest extraction result.
func (s *Session) Result() ExtractionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Status returns the orchestrator status and the last surfaced error.
func (s *Session) Status() (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status, s.lastErr
}

func (s *Session) snapshot() sessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sessionSnapshot{
		PlatformID:     s.params.PlatformID,
		VariationCount: s.params.VariationCount,
		Turns:          s.conversation.Turns(),
		Result:         s.result,
	}
}

func sessionFromSnapshot(id string, snap sessionSnapshot) *Session {
	s := NewSession(id, SessionParameters{
		PlatformID:     snap.PlatformID,
		VariationCount: snap.VariationCount,
	})
	s.conversation.restore(snap.Turns)
	s.result = snap.Result
	return s
}
