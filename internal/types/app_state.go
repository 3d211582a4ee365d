package types

// AppState is the terminal UI state kept between runs.
type AppState struct {
	ActiveSessionID string              `json:"active_session_id,omitempty"`
	Language        string              `json:"language,omitempty"`
	PromptHistory   map[string][]string `json:"prompt_history,omitempty"`
}
