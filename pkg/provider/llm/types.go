package llm

// Message roles understood by every backend.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the prompt sent to the model.
type Message struct {
	Role    string
	Content string
}

// UserPrompt returns the single-message conversation used by every coaching
// prompt: one user turn carrying the instructions.
func UserPrompt(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

// Usage reports the tokens billed for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
