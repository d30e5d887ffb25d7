package correlate

import "time"

// Doors subscribe to these topics for pushed state. Both are shared by every
// door; a command names the door it is meant for.
const (
	ScheduleTopic = "door/schedule"
	CommandTopic  = "door/commands"
)

type DoorCommandKind string

const (
	CommandUnlock DoorCommandKind = "unlock_door"
	CommandLock   DoorCommandKind = "lock_door"
)

// DoorCommand asks one door to change its lock state.
type DoorCommand struct {
	DoorID   string          `json:"door_id"`
	Command  DoorCommandKind `json:"command"`
	IssuedAt time.Time       `json:"issued_at"`
}

// ScheduleDay is one weekday of a schedule broadcast. Open and Close are
// "HH:MM" in the site time zone, empty when the day has no window.
type ScheduleDay struct {
	Weekday       string `json:"weekday"`
	Open          string `json:"open,omitempty"`
	Close         string `json:"close,omitempty"`
	ForceUnlocked bool   `json:"force_unlocked,omitempty"`
}

// ScheduleUpdate carries the whole stored week so a door can replace its
// local copy in one step.
type ScheduleUpdate struct {
	Days      []ScheduleDay `json:"days"`
	UpdatedAt time.Time     `json:"updated_at"`
}
