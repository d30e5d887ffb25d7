// Package liveness turns a stream of per-frame eye-aspect-ratio samples
// into a spoof-resistant verdict on whether a live person is in front of
// the camera.
package liveness

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"
)

// State is the eye state of the blink cycle.
type State int

const (
	Open State = iota
	Closing
	Closed
	Opening
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	case Opening:
		return "opening"
	default:
		return "unknown"
	}
}

// maxEAR bounds plausible eye-aspect-ratio values. Anything larger comes
// from a broken landmark fit.
const maxEAR = 1.0

// Sample is one eye-aspect-ratio measurement.
type Sample struct {
	Value float64
	At    time.Time
}

// Config holds the tunables of the blink detector.
type Config struct {
	// Threshold is the static EAR threshold and the floor of the adaptive one.
	Threshold float64
	// ConsecFrames is the number of consecutive samples required on one side
	// of the threshold before the eye state changes.
	ConsecFrames int
	MinBlinks    int
	// Adaptive raises the threshold to 75% of the 70th percentile of the
	// open-eye history, never below Threshold. Samples below the threshold
	// are only held when they arrive while the eye is Open.
	Adaptive    bool
	HistorySize int

	MinInterval time.Duration
	MaxInterval time.Duration
	// MinVariation is the lowest accepted coefficient of variation of the
	// inter-blink intervals once three or more have been recorded.
	MinVariation float64

	// TextureThreshold is the minimum texture score counted as skin.
	TextureThreshold float64
}

func DefaultConfig() Config {
	return Config{
		Threshold:        0.20,
		ConsecFrames:     2,
		MinBlinks:        2,
		Adaptive:         true,
		HistorySize:      64,
		MinInterval:      time.Second,
		MaxInterval:      8 * time.Second,
		MinVariation:     0.1,
		TextureThreshold: 4.0,
	}
}

var ErrInvalidConfig = errors.New("invalid liveness config")

func (c Config) Validate() error {
	switch {
	case math.IsNaN(c.Threshold) || c.Threshold <= 0 || c.Threshold >= maxEAR:
		return fmt.Errorf("%w: threshold %v", ErrInvalidConfig, c.Threshold)
	case c.ConsecFrames < 1:
		return fmt.Errorf("%w: consecutive frames %d", ErrInvalidConfig, c.ConsecFrames)
	case c.MinBlinks < 1:
		return fmt.Errorf("%w: min blinks %d", ErrInvalidConfig, c.MinBlinks)
	case c.HistorySize < c.ConsecFrames:
		return fmt.Errorf("%w: history size %d", ErrInvalidConfig, c.HistorySize)
	case c.MinInterval <= 0 || c.MaxInterval < c.MinInterval:
		return fmt.Errorf("%w: interval bounds [%s, %s]", ErrInvalidConfig, c.MinInterval, c.MaxInterval)
	case c.MinVariation < 0:
		return fmt.Errorf("%w: min variation %v", ErrInvalidConfig, c.MinVariation)
	case math.IsNaN(c.TextureThreshold):
		return fmt.Errorf("%w: texture threshold", ErrInvalidConfig)
	}
	return nil
}

// Transition reports the machine state after one sample.
type Transition struct {
	State      State
	BlinkCount int
	Changed    bool
	// Held is set when the sample was rejected and the state left as is.
	Held bool
}

// Result is the liveness verdict at a point in time.
type Result struct {
	Confirmed      bool
	BlinkCount     int
	NaturalPattern bool
	TextureScore   *float64
	TexturePassed  bool
	TimedOut       bool
}

// maxIntervals bounds the recorded inter-blink intervals.
const maxIntervals = 32

// Machine is the blink state machine for one capture session. It is not
// safe for concurrent use; Session adds locking.
type Machine struct {
	cfg    Config
	logger *log.Logger

	state State
	below int
	above int

	blinks    int
	lastBlink time.Time
	intervals []time.Duration

	history []float64
	next    int
	lastAt  time.Time

	textureScore  *float64
	texturePassed bool

	rejected int
}

// New returns a machine in the Open state.
func New(cfg Config, logger *log.Logger) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	m := &Machine{cfg: cfg, logger: logger}
	m.Reset()
	return m, nil
}

// Reset discards all samples, counters and texture observations.
func (m *Machine) Reset() {
	m.state = Open
	m.below, m.above = 0, 0
	m.blinks = 0
	m.lastBlink = time.Time{}
	m.intervals = make([]time.Duration, 0, maxIntervals)
	m.history = make([]float64, 0, m.cfg.HistorySize)
	m.next = 0
	m.lastAt = time.Time{}
	m.textureScore = nil
	m.texturePassed = false
	m.rejected = 0
}

func (m *Machine) State() State   { return m.state }
func (m *Machine) BlinkCount() int { return m.blinks }

// Rejected returns how many samples were held since the last reset.
func (m *Machine) Rejected() int { return m.rejected }

// Update feeds one sample. Corrupt values and samples older than the last
// accepted one leave the state unchanged.
func (m *Machine) Update(value float64, at time.Time) Transition {
	if math.IsNaN(value) || math.IsInf(value, 0) || value < 0 || value > maxEAR {
		return m.hold(fmt.Sprintf("corrupt ear value %v", value))
	}
	if !m.lastAt.IsZero() && at.Before(m.lastAt) {
		return m.hold(fmt.Sprintf("sample at %s precedes %s", at.Format(time.RFC3339Nano), m.lastAt.Format(time.RFC3339Nano)))
	}
	m.lastAt = at

	before := m.state
	below := value < m.Threshold()
	if !below || m.state == Open {
		m.remember(value)
	}
	k := m.cfg.ConsecFrames

	switch m.state {
	case Open:
		if below {
			m.state = Closing
			m.below, m.above = 1, 0
			if m.below >= k {
				m.state = Closed
			}
		}
	case Closing:
		if below {
			m.below++
			m.above = 0
			if m.below >= k {
				m.state = Closed
			}
		} else {
			m.above++
			m.below = 0
			if m.above >= k {
				m.state = Open
			}
		}
	case Closed:
		if !below {
			m.state = Opening
			m.above, m.below = 1, 0
			if m.above >= k {
				m.completeBlink(at)
			}
		}
	case Opening:
		if below {
			m.below++
			m.above = 0
			if m.below >= k {
				m.state = Closed
			}
		} else {
			m.above++
			m.below = 0
			if m.above >= k {
				m.completeBlink(at)
			}
		}
	}

	return Transition{
		State:      m.state,
		BlinkCount: m.blinks,
		Changed:    m.state != before,
	}
}

func (m *Machine) hold(why string) Transition {
	m.rejected++
	m.logger.Printf("liveness: holding state %s: %s", m.state, why)
	return Transition{State: m.state, BlinkCount: m.blinks, Held: true}
}

func (m *Machine) completeBlink(at time.Time) {
	m.state = Open
	m.below, m.above = 0, 0
	m.blinks++
	if !m.lastBlink.IsZero() {
		if len(m.intervals) == maxIntervals {
			copy(m.intervals, m.intervals[1:])
			m.intervals = m.intervals[:maxIntervals-1]
		}
		m.intervals = append(m.intervals, at.Sub(m.lastBlink))
	}
	m.lastBlink = at
}

func (m *Machine) remember(v float64) {
	if len(m.history) < m.cfg.HistorySize {
		m.history = append(m.history, v)
		return
	}
	m.history[m.next] = v
	m.next = (m.next + 1) % m.cfg.HistorySize
}

// adaptiveMinSamples is how many samples must be held before the
// threshold adapts to the subject's eye shape.
const adaptiveMinSamples = 10

// Threshold returns the EAR threshold currently in force.
func (m *Machine) Threshold() float64 {
	t := m.cfg.Threshold
	if !m.cfg.Adaptive || len(m.history) <= adaptiveMinSamples {
		return t
	}
	if a := percentile(m.history, 70) * 0.75; a > t {
		return a
	}
	return t
}

// ObserveTexture records the verdict of the external texture analysis.
// A failed analysis never counts as a pass.
func (m *Machine) ObserveTexture(score float64, err error) {
	if err != nil {
		m.logger.Printf("liveness: texture analysis failed: %v", err)
		m.texturePassed = false
		return
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		m.logger.Printf("liveness: ignoring corrupt texture score %v", score)
		return
	}
	s := score
	m.textureScore = &s
	m.texturePassed = score >= m.cfg.TextureThreshold
}

// Result combines the blink pattern and the texture verdict. Either is
// sufficient on its own.
func (m *Machine) Result() Result {
	natural := m.naturalPattern()
	r := Result{
		BlinkCount:     m.blinks,
		NaturalPattern: natural,
		TexturePassed:  m.texturePassed,
		Confirmed:      natural || m.texturePassed,
	}
	if m.textureScore != nil {
		s := *m.textureScore
		r.TextureScore = &s
	}
	return r
}

func (m *Machine) naturalPattern() bool {
	if m.blinks < m.cfg.MinBlinks || len(m.intervals) == 0 {
		return false
	}
	mean, cv := intervalStats(m.intervals)
	if mean < m.cfg.MinInterval || mean > m.cfg.MaxInterval {
		return false
	}
	if len(m.intervals) >= 3 && cv < m.cfg.MinVariation {
		return false
	}
	return true
}
