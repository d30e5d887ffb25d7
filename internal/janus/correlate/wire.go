package correlate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Status is the verification provider's verdict as carried on the bus.
type Status string

const (
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusError    Status = "error"
)

// VerifyRequest is published by the door on the subject's request topic.
type VerifyRequest struct {
	Subject       string `json:"subject"`
	Code          string `json:"code"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// VerifyResponse is published by the decision service on the subject's
// response topic.
type VerifyResponse struct {
	Subject       string `json:"subject"`
	Status        Status `json:"status"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// VerificationRequest is the broker's record of one outstanding challenge.
// It is resolved exactly once and then discarded.
type VerificationRequest struct {
	Subject       string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	CorrelationID string
}

// Codec encodes bus payloads.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

var ErrUnknownCodec = errors.New("unknown bus codec")

// CodecByName returns the codec registered under name ("json" or "proto").
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "proto", "protobuf":
		return ProtoCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// JSONCodec is the default payload encoding.
type JSONCodec struct{}

func (JSONCodec) Name() string                       { return "json" }
func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// ProtoCodec carries payloads as a binary google.protobuf.Struct, which
// keeps frames compact for constrained door hardware without a schema
// compiler in the loop. Field names match the JSON encoding.
type ProtoCodec struct{}

func (ProtoCodec) Name() string { return "proto" }

func (ProtoCodec) Marshal(v any) ([]byte, error) {
	j, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(j, &m); err != nil {
		return nil, fmt.Errorf("proto codec: payload is not an object: %w", err)
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("proto codec: %w", err)
	}
	return proto.Marshal(s)
}

func (ProtoCodec) Unmarshal(data []byte, v any) error {
	var s structpb.Struct
	if err := proto.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("proto codec: %w", err)
	}
	j, err := protojson.Marshal(&s)
	if err != nil {
		return fmt.Errorf("proto codec: %w", err)
	}
	return json.Unmarshal(j, v)
}
