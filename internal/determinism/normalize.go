// Package determinism provides the pure canonicalization functions applied to
// every generated file, and to the manifest itself, before bytes are written
// or hashed. Identical inputs must yield byte-identical outputs across
// machines and operating systems; these helpers are where that guarantee is
// enforced.
package determinism

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// NormalizeNewlines rewrites CRLF and bare CR line endings to LF.
func NormalizeNewlines(data []byte) []byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
}

// CanonicalJSON re-encodes a JSON document with lexicographically sorted
// object keys, two-space indentation, and a trailing newline. The input must
// be valid JSON.
func CanonicalJSON(data []byte) ([]byte, error) {
	var decoded any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to parse JSON for canonicalization: %w", err)
	}
	return MarshalCanonical(decoded)
}

// MarshalCanonical encodes a value as canonical JSON: sorted keys, two-space
// indent, no HTML escaping, trailing newline. encoding/json already sorts map
// keys; struct values are round-tripped through a map so their keys sort too.
func MarshalCanonical(v any) ([]byte, error) {
	plain, err := toPlain(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plain); err != nil {
		return nil, fmt.Errorf("failed to encode canonical JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// toPlain reduces any value to maps/slices/primitives so key ordering is
// controlled by the encoder rather than by struct field order.
func toPlain(v any) (any, error) {
	switch v.(type) {
	case nil, bool, string, float64, json.Number:
		return v, nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}

	var plain any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&plain); err != nil {
		return nil, fmt.Errorf("failed to decode value: %w", err)
	}
	return plain, nil
}

// Normalize canonicalizes generated file bytes according to the file's
// extension: text formats get LF line endings, JSON is additionally
// re-encoded with sorted keys, and binary formats pass through untouched.
// This is the transformation applied before a file is persisted and before
// its hash enters the manifest.
func Normalize(name string, data []byte) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		canonical, err := CanonicalJSON(NormalizeNewlines(data))
		if err != nil {
			return nil, fmt.Errorf("normalize %s: %w", name, err)
		}
		return canonical, nil
	case ".md", ".mmd", ".txt", ".yaml", ".yml", ".jsonl":
		return NormalizeNewlines(data), nil
	default:
		return data, nil
	}
}

// UTCStamp formats a timestamp as RFC 3339 UTC, the single timestamp
// convention for everything the pipeline writes.
func UTCStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// volatileKeys are the fields excluded when comparing reruns for idempotence.
// The manifest's own generated_at is the one sanctioned exception to
// byte-identical output.
var volatileKeys = []string{"generated_at", "run_id"}

// StripVolatile removes rerun-varying top-level keys from a JSON document and
// returns the canonical encoding of what remains. Non-JSON input is returned
// with normalized newlines only.
func StripVolatile(data []byte) []byte {
	var decoded map[string]any
	dec := json.NewDecoder(bytes.NewReader(NormalizeNewlines(data)))
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return NormalizeNewlines(data)
	}
	for _, key := range volatileKeys {
		delete(decoded, key)
	}
	out, err := MarshalCanonical(decoded)
	if err != nil {
		return NormalizeNewlines(data)
	}
	return out
}
