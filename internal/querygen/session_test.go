package querygen

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubGenClient struct {
	calls       int
	lastPayload []Turn
	responses   []Turn
	err         error
	block       chan struct{}
}

func (s *stubGenClient) Send(_ context.Context, payload []Turn) (Turn, error) {
	s.calls++
	s.lastPayload = append([]Turn(nil), payload...)
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return Turn{}, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return s.responses[idx], nil
}

func scriptedClient(texts ...string) *stubGenClient {
	c := &stubGenClient{}
	for _, text := range texts {
		c.responses = append(c.responses, Turn{Role: RoleAssistant, Content: text})
	}
	return c
}

func TestSubmitScenarioTwoVariations(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("Here is my reasoning.\n" +
		"<query>(novel) AND (author) AND (influences)</query>\n" +
		"<query>(novel) AND ((historical context) OR (historical factors))</query>")
	sess := NewSession("sess-1", SessionParameters{PlatformID: "jstor", VariationCount: 2})

	turn, result, err := sess.Submit(context.Background(), profile, client,
		"influences on the writing of a famous novel by its author")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if result.Explanation != "Here is my reasoning." {
		t.Fatalf("unexpected explanation %q", result.Explanation)
	}
	wantQueries := []string{
		"(novel) AND (author) AND (influences)",
		"(novel) AND ((historical context) OR (historical factors))",
	}
	if len(result.Queries) != 2 || result.Queries[0] != wantQueries[0] || result.Queries[1] != wantQueries[1] {
		t.Fatalf("unexpected queries %v", result.Queries)
	}
	if turn.Role != RoleAssistant {
		t.Fatalf("expected assistant turn, got %+v", turn)
	}

	// Payload: system instruction first, then the user turn.
	if len(client.lastPayload) != 2 {
		t.Fatalf("expected 2 payload turns, got %d", len(client.lastPayload))
	}
	if client.lastPayload[0].Role != RoleSystem {
		t.Fatalf("payload must start with system instruction")
	}

	turns := sess.Turns()
	if len(turns) != 2 || turns[0].Role != RoleUser || turns[1].Role != RoleAssistant {
		t.Fatalf("unexpected retained turns %+v", turns)
	}
	status, lastErr := sess.Status()
	if status != StatusIdle || lastErr != nil {
		t.Fatalf("expected idle session, got %s (%v)", status, lastErr)
	}
}

func TestSubmitFailureRetainsUserTurnAndClearsResult(t *testing.T) {
	profile := jstorProfile(t)

	// Seed a prior successful exchange so there is a result to clear.
	client := scriptedClient("Done.\n<query>(a) AND (b)</query>")
	sess := NewSession("sess-2", SessionParameters{PlatformID: "jstor", VariationCount: 1})
	if _, _, err := sess.Submit(context.Background(), profile, client, "first request"); err != nil {
		t.Fatalf("seed submit: %v", err)
	}
	if len(sess.Result().Queries) != 1 {
		t.Fatalf("seed result missing")
	}

	client.err = &GenerationError{Kind: FailureUnavailable, Detail: "connection refused"}
	_, _, err := sess.Submit(context.Background(), profile, client, "second request")

	var genErr *GenerationError
	if !errors.As(err, &genErr) || genErr.Kind != FailureUnavailable {
		t.Fatalf("expected unavailable failure, got %v", err)
	}

	status, lastErr := sess.Status()
	if status != StatusError {
		t.Fatalf("expected error status, got %s", status)
	}
	if lastErr == nil {
		t.Fatalf("expected last error to be surfaced")
	}

	turns := sess.Turns()
	if len(turns) != 3 {
		t.Fatalf("expected 3 retained turns (user, assistant, failed user), got %d", len(turns))
	}
	if turns[2].Role != RoleUser || turns[2].Content != "second request" {
		t.Fatalf("failed submission's user turn must be retained, got %+v", turns[2])
	}

	result := sess.Result()
	if result.Explanation != "" || len(result.Queries) != 0 {
		t.Fatalf("extraction result must be cleared on failure, got %+v", result)
	}

	// Resubmission recovers from the error state.
	client.err = nil
	if _, _, err := sess.Submit(context.Background(), profile, client, "try again"); err != nil {
		t.Fatalf("resubmit after failure: %v", err)
	}
	status, _ = sess.Status()
	if status != StatusIdle {
		t.Fatalf("expected idle after recovery, got %s", status)
	}
}

func TestSubmitInvalidVariationCountBeforeNetworkCall(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("never used")
	sess := NewSession("sess-3", SessionParameters{PlatformID: "jstor", VariationCount: 11})

	_, _, err := sess.Submit(context.Background(), profile, client, "some request")
	if !errors.Is(err, ErrInvalidVariationCount) {
		t.Fatalf("expected ErrInvalidVariationCount, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("no network call may be made for an invalid variation count, got %d", client.calls)
	}
	if status, _ := sess.Status(); status != StatusError {
		t.Fatalf("expected error status, got %s", status)
	}
}

func TestSubmitEmptyInput(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("unused")
	sess := NewSession("sess-4", SessionParameters{PlatformID: "jstor", VariationCount: 1})

	_, _, err := sess.Submit(context.Background(), profile, client, "   ")
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
	if client.calls != 0 {
		t.Fatalf("blank input must not reach the network")
	}
	if len(sess.Turns()) != 0 {
		t.Fatalf("blank input must not be appended")
	}
}

func TestSubmitRejectsConcurrentRequests(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("slow reply")
	client.block = make(chan struct{})
	sess := NewSession("sess-5", SessionParameters{PlatformID: "jstor", VariationCount: 1})

	done := make(chan error, 1)
	go func() {
		_, _, err := sess.Submit(context.Background(), profile, client, "first")
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for {
		status, _ := sess.Status()
		if status == StatusAwaitingResponse {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("session never entered awaiting_response")
		case <-time.After(time.Millisecond):
		}
	}

	_, _, err := sess.Submit(context.Background(), profile, client, "second")
	if !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy, got %v", err)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
}

func TestParameterChangesRejectedWhileAwaitingResponse(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("Reply.\n<query>(x) AND (y)</query>")
	client.block = make(chan struct{})
	sess := NewSession("sess-10", SessionParameters{PlatformID: "jstor", VariationCount: 1})

	done := make(chan error, 1)
	go func() {
		_, _, err := sess.Submit(context.Background(), profile, client, "request")
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for {
		status, _ := sess.Status()
		if status == StatusAwaitingResponse {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("session never entered awaiting_response")
		case <-time.After(time.Millisecond):
		}
	}

	if err := sess.ChangePlatform("google-scholar"); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy from platform change, got %v", err)
	}
	if err := sess.Reset(); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy from reset, got %v", err)
	}
	if err := sess.ChangeVariationCount(3); !errors.Is(err, ErrSessionBusy) {
		t.Fatalf("expected ErrSessionBusy from variation change, got %v", err)
	}

	close(client.block)
	if err := <-done; err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// The completion commits under the platform that prompted it.
	if got := sess.Params().PlatformID; got != "jstor" {
		t.Fatalf("platform changed mid-request, got %q", got)
	}
	if got := len(sess.Turns()); got != 2 {
		t.Fatalf("expected user+assistant turns, got %d", got)
	}
	if result := sess.Result(); len(result.Queries) != 1 {
		t.Fatalf("expected the extraction result to survive, got %+v", result)
	}
}

func TestChangePlatformResetsConversationAndResult(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("Reply.\n<query>(x) AND (y)</query>")
	sess := NewSession("sess-6", SessionParameters{PlatformID: "jstor", VariationCount: 1})
	if _, _, err := sess.Submit(context.Background(), profile, client, "request"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := sess.ChangePlatform("google-scholar"); err != nil {
		t.Fatalf("change platform: %v", err)
	}

	if got := sess.Params().PlatformID; got != "google-scholar" {
		t.Fatalf("platform not changed, got %q", got)
	}
	if len(sess.Turns()) != 0 {
		t.Fatalf("platform change must reset the conversation")
	}
	result := sess.Result()
	if result.Explanation != "" || len(result.Queries) != 0 {
		t.Fatalf("platform change must clear the extraction result")
	}
}

func TestChangePlatformSameIDKeepsConversation(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("Reply.\n<query>q</query>")
	sess := NewSession("sess-7", SessionParameters{PlatformID: "jstor", VariationCount: 1})
	if _, _, err := sess.Submit(context.Background(), profile, client, "request"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := sess.ChangePlatform("jstor"); err != nil {
		t.Fatalf("change platform: %v", err)
	}

	if len(sess.Turns()) != 2 {
		t.Fatalf("unchanged platform must not reset the conversation")
	}
}

func TestChangeVariationCountBoundsAndHistory(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("Reply.\n<query>q</query>")
	sess := NewSession("sess-8", SessionParameters{PlatformID: "jstor", VariationCount: 1})
	if _, _, err := sess.Submit(context.Background(), profile, client, "request"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := sess.ChangeVariationCount(11); !errors.Is(err, ErrInvalidVariationCount) {
		t.Fatalf("expected rejection of 11, got %v", err)
	}
	if err := sess.ChangeVariationCount(5); err != nil {
		t.Fatalf("change to 5: %v", err)
	}
	if got := sess.Params().VariationCount; got != 5 {
		t.Fatalf("expected 5 variations, got %d", got)
	}
	if len(sess.Turns()) != 2 {
		t.Fatalf("variation change must keep the conversation")
	}
}

func TestResetClearsEverythingButParameters(t *testing.T) {
	profile := jstorProfile(t)
	client := scriptedClient("Reply.\n<query>q</query>")
	sess := NewSession("sess-9", SessionParameters{PlatformID: "jstor", VariationCount: 4})
	if _, _, err := sess.Submit(context.Background(), profile, client, "request"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := sess.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if len(sess.Turns()) != 0 {
		t.Fatalf("reset must clear turns")
	}
	if result := sess.Result(); len(result.Queries) != 0 {
		t.Fatalf("reset must clear the result")
	}
	params := sess.Params()
	if params.PlatformID != "jstor" || params.VariationCount != 4 {
		t.Fatalf("reset must keep parameters, got %+v", params)
	}
	if status, lastErr := sess.Status(); status != StatusIdle || lastErr != nil {
		t.Fatalf("reset must return to idle")
	}
}
