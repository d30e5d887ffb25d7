package types

// ScheduleDay is one weekday of the global schedule. Open and Close are
// "HH:MM" in the site time zone; both empty means no window.
type ScheduleDay struct {
	Weekday       string `json:"weekday"`
	Open          string `json:"open,omitempty"`
	Close         string `json:"close,omitempty"`
	ForceUnlocked bool   `json:"force_unlocked,omitempty"`
}

type ScheduleResponse struct {
	TimeZone string        `json:"time_zone"`
	Days     []ScheduleDay `json:"days"`
}

type ScheduleRequest struct {
	Days []ScheduleDay `json:"days"`
}

type ApproveRequest struct {
	// Allowed defaults to true.
	Allowed *bool `json:"allowed,omitempty"`
}

type SubjectResponse struct {
	Subject     string `json:"subject"`
	Allowed     bool   `json:"allowed"`
	HasTemplate bool   `json:"has_template"`
	CreatedAt   string `json:"created_at"`
	ApprovedAt  string `json:"approved_at,omitempty"`
}

type SubjectsResponse struct {
	Subjects []SubjectResponse `json:"subjects"`
}

type GrantRequest struct {
	Subject string `json:"subject"`
	Start   string `json:"start"` // RFC3339
	End     string `json:"end"`   // RFC3339
}

type GrantResponse struct {
	ID      int64  `json:"id"`
	Subject string `json:"subject"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

type TemplateRequest struct {
	Encoding []float64 `json:"encoding"`
}

type AccessEvent struct {
	DoorID     string `json:"door_id,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Method     string `json:"method"`
	Outcome    string `json:"outcome"`
	Reason     string `json:"reason"`
	ReceivedAt string `json:"received_at"`
	DecidedAt  string `json:"decided_at"`
}

type EventsResponse struct {
	Events []AccessEvent `json:"events"`
}

type GrantsResponse struct {
	Grants []GrantResponse `json:"grants"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}
