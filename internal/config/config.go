package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BrandonDHaskell/janus/internal/janus/correlate"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string // empty disables the gRPC health endpoint

	// DB
	Env    string // "dev" | "prod"
	Store  string // "sqlite" | "memory"
	DBPath string // e.g. "./data/janus.db"

	KnownDoors []string
	Location   *time.Location

	// Bus
	Bus           string // "memory" | "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BusCodec      string // "json" | "proto"
	Responder     bool   // run the verification responder in this process

	VerifyTimeout time.Duration

	// Liveness
	EARThreshold       float64
	EARConsecFrames    int
	MinBlinks          int
	AdaptiveEAR        bool
	LivenessTimeout    time.Duration
	TextureThreshold   float64
	FaceMatchThreshold float64

	// Verification provider
	Provider          string // "twilio" | "static"
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioVerifySID   string
	StaticOTPCode     string
	OTPSendsPerMinute int

	AdminToken   string // empty disables the admin API
	ScheduleFile string

	// Audit retention
	AuditRetentionDays int // 0 = keep forever
	PruneIntervalHours int // how often the pruner runs (default 6)
}

// Error reports a configuration value that cannot be used. The server
// refuses to start rather than fall back to a default.
type Error struct {
	Key   string
	Value string
	Msg   string
}

func (e *Error) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("config %s: %s", e.Key, e.Msg)
	}
	return fmt.Sprintf("config %s=%q: %s", e.Key, e.Value, e.Msg)
}

// FromEnv reads JANUS_* variables. All problems are reported together.
func FromEnv() (Config, error) {
	p := &parser{}

	// An unrecognised env must not fall back to dev, which allows the
	// static provider.
	env := p.oneOf("JANUS_ENV", "dev", "dev", "prod")

	cfg := Config{
		HTTPAddr: getenvDefault("JANUS_HTTP_ADDR", ":8080"),
		GRPCAddr: getenvDefault("JANUS_GRPC_ADDR", ":9090"),

		Env:    env,
		Store:  p.oneOf("JANUS_STORE", "sqlite", "sqlite", "memory"),
		DBPath: getenvDefault("JANUS_DB_PATH", "./data/janus.db"),

		KnownDoors: splitCSV(os.Getenv("JANUS_KNOWN_DOORS")),
		Location:   p.location("JANUS_TIMEZONE"),

		Bus:           p.oneOf("JANUS_BUS", "memory", "memory", "redis"),
		RedisAddr:     getenvDefault("JANUS_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("JANUS_REDIS_PASSWORD"),
		RedisDB:       p.intv("JANUS_REDIS_DB", 0, 0),
		BusCodec:      p.codec("JANUS_BUS_CODEC"),
		Responder:     p.boolv("JANUS_RESPONDER", true),

		VerifyTimeout: p.seconds("JANUS_VERIFY_TIMEOUT_SECONDS", 30),

		EARThreshold:       p.unit("JANUS_EAR_THRESHOLD", 0.20),
		EARConsecFrames:    p.intv("JANUS_EAR_CONSEC_FRAMES", 2, 1),
		MinBlinks:          p.intv("JANUS_MIN_BLINKS", 2, 1),
		AdaptiveEAR:        p.boolv("JANUS_ADAPTIVE_EAR", true),
		LivenessTimeout:    p.seconds("JANUS_LIVENESS_TIMEOUT_SECONDS", 30),
		TextureThreshold:   p.positive("JANUS_TEXTURE_THRESHOLD", 4.0),
		FaceMatchThreshold: p.positive("JANUS_FACE_MATCH_THRESHOLD", 0.6),

		Provider:          p.oneOf("JANUS_PROVIDER", "", "twilio", "static"),
		TwilioAccountSID:  os.Getenv("JANUS_TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("JANUS_TWILIO_AUTH_TOKEN"),
		TwilioVerifySID:   os.Getenv("JANUS_TWILIO_VERIFY_SID"),
		StaticOTPCode:     strings.TrimSpace(os.Getenv("JANUS_STATIC_OTP_CODE")),
		OTPSendsPerMinute: p.intv("JANUS_OTP_SENDS_PER_MINUTE", 3, 0),

		AdminToken:   strings.TrimSpace(os.Getenv("JANUS_ADMIN_TOKEN")),
		ScheduleFile: strings.TrimSpace(os.Getenv("JANUS_SCHEDULE_FILE")),

		AuditRetentionDays: p.intv("JANUS_AUDIT_RETENTION_DAYS", 90, 0),
		PruneIntervalHours: p.intv("JANUS_PRUNE_INTERVAL_HOURS", 6, 1),
	}

	if cfg.Provider == "" {
		cfg.Provider = "twilio"
		if cfg.Env == "dev" && cfg.TwilioAccountSID == "" {
			cfg.Provider = "static"
		}
	}
	p.check(cfg)

	return cfg, errors.Join(p.errs...)
}

type parser struct {
	errs []error
}

func (p *parser) fail(key, value, msg string) {
	p.errs = append(p.errs, &Error{Key: key, Value: value, Msg: msg})
}

func (p *parser) check(cfg Config) {
	switch cfg.Provider {
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioVerifySID == "" {
			p.fail("JANUS_PROVIDER", "twilio", "requires JANUS_TWILIO_ACCOUNT_SID, JANUS_TWILIO_AUTH_TOKEN and JANUS_TWILIO_VERIFY_SID")
		}
	case "static":
		if cfg.Env == "prod" {
			p.fail("JANUS_PROVIDER", "static", "the static provider is not allowed in prod")
		}
		if len(cfg.StaticOTPCode) < 4 {
			p.fail("JANUS_STATIC_OTP_CODE", "", "must be at least 4 characters when the static provider is used")
		}
	}
	if cfg.Bus == "redis" && strings.TrimSpace(cfg.RedisAddr) == "" {
		p.fail("JANUS_REDIS_ADDR", "", "required when JANUS_BUS=redis")
	}
	if cfg.Env == "prod" && cfg.Store == "memory" {
		p.fail("JANUS_STORE", "memory", "the memory store is not allowed in prod")
	}
}

func (p *parser) oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	p.fail(key, v, "must be one of "+strings.Join(allowed, ", "))
	return def
}

// codec accepts every name the wire codecs answer to and returns the
// canonical one.
func (p *parser) codec(key string) string {
	v := os.Getenv(key)
	c, err := correlate.CodecByName(v)
	if err != nil {
		p.fail(key, v, "must be one of json, proto, protobuf")
		return "json"
	}
	return c.Name()
}

func (p *parser) intv(key string, def, min int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min {
		p.fail(key, v, fmt.Sprintf("must be an integer >= %d", min))
		return def
	}
	return n
}

func (p *parser) seconds(key string, def int) time.Duration {
	return time.Duration(p.intv(key, def, 1)) * time.Second
}

func (p *parser) float(key string, def float64) (float64, string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, "", true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, v, "must be a number")
		return def, v, false
	}
	return f, v, true
}

// unit reads a value in the open interval (0, 1).
func (p *parser) unit(key string, def float64) float64 {
	f, raw, ok := p.float(key, def)
	if ok && (f <= 0 || f >= 1) {
		p.fail(key, raw, "must be between 0 and 1")
		return def
	}
	return f
}

func (p *parser) positive(key string, def float64) float64 {
	f, raw, ok := p.float(key, def)
	if ok && f <= 0 {
		p.fail(key, raw, "must be positive")
		return def
	}
	return f
}

func (p *parser) boolv(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, "must be true or false")
		return def
	}
	return b
}

func (p *parser) location(key string) *time.Location {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(v)
	if err != nil {
		p.fail(key, v, "unknown time zone")
		return time.Local
	}
	return loc
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
