package querygen

import "strings"

// ConversationState is the ordered, append-only log of exchanged turns.
// It retains only user and assistant turns; the system instruction is
// synthesized per request by BuildPayload and never persisted.
type ConversationState struct {
	turns []Turn
}

// AppendUser appends a user turn. Blank text is rejected and not appended.
func (c *ConversationState) AppendUser(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	c.turns = append(c.turns, Turn{Role: RoleUser, Content: text})
	return nil
}

// AppendAssistant appends an assistant turn. Callers only invoke this after
// a successful generation call.
func (c *ConversationState) AppendAssistant(text string) {
	c.turns = append(c.turns, Turn{Role: RoleAssistant, Content: text})
}

// BuildPayload returns the request payload: the system instruction first,
// then the retained turns in chronological order. Any stray system turns in
// the retained history are filtered out rather than sent twice.
func (c *ConversationState) BuildPayload(systemInstruction string) []Turn {
	payload := make([]Turn, 0, len(c.turns)+1)
	payload = append(payload, Turn{Role: RoleSystem, Content: systemInstruction})
	for _, t := range c.turns {
		if t.Role == RoleSystem {
			continue
		}
		payload = append(payload, t)
	}
	return payload
}

// Turns returns a copy of the retained turns for transcript rendering.
func (c *ConversationState) Turns() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len reports how many turns are retained.
func (c *ConversationState) Len() int { return len(c.turns) }

// Reset clears the retained turns.
func (c *ConversationState) Reset() {
	c.turns = nil
}

// restore replaces the retained turns from a persisted snapshot, dropping
// any system turns that should never have been stored.
func (c *ConversationState) restore(turns []Turn) {
	c.turns = c.turns[:0]
	for _, t := range turns {
		if t.Role == RoleSystem {
			continue
		}
		c.turns = append(c.turns, t)
	}
}
