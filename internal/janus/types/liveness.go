package types

type LivenessSessionResponse struct {
	SessionID string `json:"session_id"`
	StartedAt string `json:"started_at"`
	Deadline  string `json:"deadline"`
}

type EARSample struct {
	Value float64 `json:"value"`
	// At is an RFC3339 timestamp. Empty means the time the server received it.
	At string `json:"at,omitempty"`
}

type EARSamplesRequest struct {
	Samples []EARSample `json:"samples"`
}

type EARSamplesResponse struct {
	State      string `json:"state"`
	BlinkCount int    `json:"blink_count"`
	Held       int    `json:"held"`
}

// TextureRequest reports an external texture-analysis verdict. A non-empty
// Error means the analysis failed.
type TextureRequest struct {
	Score float64 `json:"score"`
	Error string  `json:"error,omitempty"`
}

type LivenessResultResponse struct {
	SessionID      string   `json:"session_id"`
	Confirmed      bool     `json:"confirmed"`
	BlinkCount     int      `json:"blink_count"`
	NaturalPattern bool     `json:"natural_pattern"`
	TextureScore   *float64 `json:"texture_score,omitempty"`
	TexturePassed  bool     `json:"texture_passed"`
	TimedOut       bool     `json:"timed_out"`
}
