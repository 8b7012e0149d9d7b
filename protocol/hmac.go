package protocol

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// signable is the ordered list of JSON-encoded parts the Jupyter wire
// protocol signs: header, parent_header, metadata, content, in that order.
// This is a fixed part of the external wire format, not a design choice a
// third-party library would make differently, so it is computed directly
// here rather than through a general-purpose signing library.
func signable(msg Message) ([][]byte, error) {
	parts := make([][]byte, 4)
	var err error
	if parts[0], err = json.Marshal(msg.Header); err != nil {
		return nil, fmt.Errorf("marshal header: %w", err)
	}
	if parts[1], err = json.Marshal(msg.ParentHeader); err != nil {
		return nil, fmt.Errorf("marshal parent_header: %w", err)
	}
	meta := msg.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	if parts[2], err = json.Marshal(meta); err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	content := msg.Content
	if content == nil {
		content = map[string]any{}
	}
	if parts[3], err = json.Marshal(content); err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	return parts, nil
}

// sign returns the hex-encoded HMAC-SHA256 signature of msg under key, or
// the empty string if key is empty (an unsigned connection, per the Jupyter
// spec's "key": "" convention for local, unauthenticated sessions).
func sign(key []byte, msg Message) (string, error) {
	if len(key) == 0 {
		return "", nil
	}
	parts, err := signable(msg)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, key)
	for _, p := range parts {
		mac.Write(p)
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// verify reports whether sig is the correct signature for msg under key.
func verify(key []byte, msg Message, sig string) (bool, error) {
	want, err := sign(key, msg)
	if err != nil {
		return false, err
	}
	if len(key) == 0 {
		return true, nil
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false, nil
	}
	wantBytes, err := hex.DecodeString(want)
	if err != nil {
		return false, err
	}
	return hmac.Equal(got, wantBytes), nil
}
