package querygen

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message exchanged with the generation service. A system turn
// never originates from user input; it only appears in request payloads.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
