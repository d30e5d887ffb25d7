package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/janus/internal/janus/decision"
)

// ScheduleFile is the YAML form of the weekly schedule:
//
//	days:
//	  - weekday: monday
//	    open: "09:00"
//	    close: "17:00"
//	  - weekday: saturday
//	    force_unlocked: true
type ScheduleFile struct {
	Days []ScheduleEntry `yaml:"days"`
}

type ScheduleEntry struct {
	Weekday       string `yaml:"weekday"`
	Open          string `yaml:"open,omitempty"`
	Close         string `yaml:"close,omitempty"`
	ForceUnlocked bool   `yaml:"force_unlocked,omitempty"`
}

// LoadScheduleFile reads and parses path.
func LoadScheduleFile(path string) ([]decision.DaySchedule, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Key: "JANUS_SCHEDULE_FILE", Value: path, Msg: err.Error()}
	}
	return ParseSchedule(b)
}

// ParseSchedule decodes a schedule document. Unknown fields, unknown
// weekdays and unparseable times are errors. A day with a single bound or
// open after close is returned as is; the decision engine gives it no
// global window.
func ParseSchedule(b []byte) ([]decision.DaySchedule, error) {
	var f ScheduleFile
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}

	seen := make(map[time.Weekday]bool)
	out := make([]decision.DaySchedule, 0, len(f.Days))
	for i, e := range f.Days {
		wd, err := decision.ParseWeekday(e.Weekday)
		if err != nil {
			return nil, fmt.Errorf("schedule entry %d: %w", i, err)
		}
		if seen[wd] {
			return nil, fmt.Errorf("schedule entry %d: %s listed twice", i, wd)
		}
		seen[wd] = true

		d := decision.DaySchedule{Weekday: wd, ForceUnlocked: e.ForceUnlocked}
		if d.Open, err = optionalClock(e.Open); err != nil {
			return nil, fmt.Errorf("schedule %s open: %w", wd, err)
		}
		if d.Close, err = optionalClock(e.Close); err != nil {
			return nil, fmt.Errorf("schedule %s close: %w", wd, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func optionalClock(s string) (*decision.Clock, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	c, err := decision.ParseClock(s)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
