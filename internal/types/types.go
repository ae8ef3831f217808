package types

type CommandRequest struct {
	SessionID  string `json:"sessionId"`
	Transcript string `json:"transcript" validate:"required,max=2000"`
}

type CommandResponse struct {
	SessionID  string          `json:"sessionId"`
	Reply      string          `json:"reply"`
	Utterances []string        `json:"utterances"`
	Transcript string          `json:"transcript,omitempty"`
	Intent     *IntentResponse `json:"intent,omitempty"`
	// Failed is set when a ticket submission failed; Reply then holds the apology.
	Failed bool `json:"failed,omitempty"`
}

type TTSRequest struct {
	Text    string `json:"text" validate:"required,max=5000"`
	VoiceID string `json:"voiceId,omitempty"`
}

type ListeningRequest struct {
	Listening bool `json:"listening"`
}

type ListeningResponse struct {
	SessionID string `json:"sessionId"`
	Listening bool   `json:"listening"`
	Title     string `json:"title"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// IntentResponse tells the page what the assistant did, with the data it
// used, so it can render more than the spoken reply.
type IntentResponse struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}
