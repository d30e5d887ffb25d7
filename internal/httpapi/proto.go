package httpapi

import (
	"io"
	"net/http"

	"github.com/BrandonDHaskell/janus/internal/janus/correlate"
)

// maxRequestBody caps the request body size for both protobuf and JSON
// payloads. A 512-dimension face encoding is about 10 KiB of JSON.
const maxRequestBody = 64 << 10

// protoCodec carries the same field names as the JSON API inside a
// binary google.protobuf.Struct.
var protoCodec correlate.ProtoCodec

// isProtobuf returns true if the request's Content-Type indicates a
// protobuf payload. Door controllers send "application/x-protobuf".
func isProtobuf(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return ct == "application/x-protobuf" ||
		ct == "application/protobuf" ||
		ct == "application/octet-stream"
}

// readProto reads the request body and unmarshals it into v.
func readProto(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	return protoCodec.Unmarshal(body, v)
}

// writeProto marshals v and writes it with the given HTTP status.
func writeProto(w http.ResponseWriter, status int, v any) {
	data, err := protoCodec.Marshal(v)
	if err != nil {
		// Fall back to a plain-text error if marshalling fails.
		http.Error(w, "proto marshal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// decodeBody reads either encoding depending on Content-Type.
func decodeBody(r *http.Request, v any) error {
	if isProtobuf(r) {
		return readProto(r, v)
	}
	return decodeJSON(r, v)
}

// reply answers in the encoding the request arrived in.
func reply(w http.ResponseWriter, r *http.Request, status int, v any) {
	if isProtobuf(r) {
		writeProto(w, status, v)
		return
	}
	writeJSON(w, status, v)
}
