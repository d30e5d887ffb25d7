package types

type AccessRequest struct {
	DoorID  string `json:"door_id"`
	Subject string `json:"subject"`          // E.164 phone number
	Method  string `json:"method,omitempty"` // "otp" (default) | "face"
	Code    string `json:"code,omitempty"`

	// Biometric entry.
	LivenessSessionID string    `json:"liveness_session_id,omitempty"`
	FaceEncoding      []float64 `json:"face_encoding,omitempty"`

	RequestedAt string `json:"requested_at,omitempty"` // optional door timestamp
}

type AccessResponse struct {
	OK            bool   `json:"ok"`
	Known         bool   `json:"known"`
	Granted       bool   `json:"granted"`
	Outcome       string `json:"outcome"`
	Reason        string `json:"reason,omitempty"`
	Method        string `json:"method,omitempty"`
	DoorID        string `json:"door_id"`
	Subject       string `json:"subject,omitempty"`
	ChallengeSent bool   `json:"challenge_sent,omitempty"`
	ServerTime    string `json:"server_time"`
}
