package verify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	verifyv2 "github.com/twilio/twilio-go/rest/verify/v2"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	ServiceSID string

	// BaseURL redirects every API call to another scheme and host. Empty
	// means production.
	BaseURL string
	Client  *http.Client
}

// Twilio is a Provider backed by the Twilio Verify v2 API.
type Twilio struct {
	service string
	api     *verifyv2.ApiService
}

func NewTwilio(cfg TwilioConfig) (*Twilio, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.ServiceSID == "" {
		return nil, fmt.Errorf("%w: twilio account sid, auth token and verify service sid are required", ErrNotConfigured)
	}

	hc := &http.Client{Timeout: 10 * time.Second}
	if cfg.Client != nil {
		c := *cfg.Client
		hc = &c
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: invalid twilio base url %q", ErrNotConfigured, cfg.BaseURL)
		}
		next := hc.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		hc.Transport = rewriteHost{scheme: u.Scheme, host: u.Host, next: next}
	}

	rc := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	if c, ok := rc.RequestHandler.Client.(*twclient.Client); ok {
		c.HTTPClient = hc
	}
	return &Twilio{service: cfg.ServiceSID, api: rc.VerifyV2}, nil
}

// rewriteHost sends requests built for the Twilio hosts to BaseURL.
type rewriteHost struct {
	scheme, host string
	next         http.RoundTripper
}

func (r rewriteHost) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = r.scheme
	out.URL.Host = r.host
	out.Host = r.host
	return r.next.RoundTrip(out)
}

func (t *Twilio) Send(ctx context.Context, subject, channel string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if channel == "" {
		channel = ChannelSMS
	}
	params := &verifyv2.CreateVerificationParams{}
	params.SetTo(subject)
	params.SetChannel(channel)

	v, err := t.api.CreateVerification(t.service, params)
	if err != nil {
		return "", fmt.Errorf("twilio send: %w", err)
	}
	if v.Sid == nil {
		return "", errors.New("twilio send: response carried no sid")
	}
	return *v.Sid, nil
}

// Check maps Twilio's verification status onto Status. A 404 means the
// verification expired or was never started, which is a denial rather
// than a provider fault.
func (t *Twilio) Check(ctx context.Context, subject, code string) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusError, err
	}
	params := &verifyv2.CreateVerificationCheckParams{}
	params.SetTo(subject)
	params.SetCode(code)

	v, err := t.api.CreateVerificationCheck(t.service, params)
	if err != nil {
		var rest *twclient.TwilioRestError
		if errors.As(err, &rest) && rest.Status == http.StatusNotFound {
			return StatusDenied, nil
		}
		return StatusError, fmt.Errorf("twilio check: %w", err)
	}
	if v.Status != nil && *v.Status == "approved" {
		return StatusApproved, nil
	}
	return StatusDenied, nil
}
