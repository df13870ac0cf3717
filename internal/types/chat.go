package types

// ChatRequest is the body accepted by POST /api/chat. The system message is
// built client-side from the selected persona; the server treats it as opaque
// text. Temperature is a pointer so that a missing field is distinguishable
// from an explicit 0.
type ChatRequest struct {
	UserInput     string   `json:"userInput"`
	SystemMessage string   `json:"systemMessage"`
	Temperature   *float64 `json:"temperature"`
}

// ChatResponse is the success envelope for /api/chat.
type ChatResponse struct {
	OK     bool     `json:"ok"`
	Result string   `json:"result"`
	Meta   ChatMeta `json:"meta"`
}

// ChatMeta describes how a result was produced.
type ChatMeta struct {
	Model           string  `json:"model"`
	Temperature     float64 `json:"temperature"`
	CacheHit        bool    `json:"cacheHit"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	BudgetProfile   string  `json:"budgetProfile"`
}

// Message is a single chat message sent to the upstream completion API.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the normalized outcome of one upstream call. Model reflects
// the identifier the upstream actually served, which can differ from the
// configured one when the router substitutes a deployment.
type Completion struct {
	Text        string
	Model       string
	Temperature float64
}
