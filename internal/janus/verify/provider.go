// Package verify talks to the one-time-code provider. It holds both sides
// of the exchange: the Challenger that sends codes to a subject, and the
// Responder that answers door verification requests arriving on the bus.
package verify

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Status is the provider's verdict on a submitted code.
type Status string

const (
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusError    Status = "error"
)

// Channel is the delivery channel for a code.
const ChannelSMS = "sms"

var (
	ErrNotConfigured = errors.New("verification provider not configured")
	ErrRateLimited   = errors.New("too many codes requested for subject")
)

// Provider sends and checks one-time codes. Check never reports
// StatusApproved together with a non-nil error.
type Provider interface {
	Send(ctx context.Context, subject, channel string) (requestID string, err error)
	Check(ctx context.Context, subject, code string) (Status, error)
}

// Static accepts a single fixed code for every subject. It is meant for
// development sites without provider credentials.
type Static struct {
	Code string
}

func (s Static) Send(_ context.Context, subject, _ string) (string, error) {
	if strings.TrimSpace(s.Code) == "" {
		return "", ErrNotConfigured
	}
	return "static-" + uuid.NewString(), nil
}

func (s Static) Check(_ context.Context, _ string, code string) (Status, error) {
	want := strings.TrimSpace(s.Code)
	if want == "" {
		return StatusError, ErrNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(want)) == 1 {
		return StatusApproved, nil
	}
	return StatusDenied, nil
}
