// Package envelope recovers display-safe text from the encrypted wrapper
// around message content. Upstream producers sometimes re-wrap an already
// encrypted payload, so the codec tolerates one nested layer instead of
// assuming exactly one.
package envelope

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/bsekhosana/sechat-app-sub011/contract"
)

// Placeholder is shown when no layer of an encrypted blob can be recovered.
const Placeholder = "[Encrypted Message]"

const (
	// Plain chat text rarely exceeds this length while also resembling a
	// base64 JSON envelope; both conditions must hold before we pay for a
	// decrypt call.
	detectionThreshold = 100

	// Base64 prefix of `{"ciphertext"`, the first key of the envelope
	// document.
	envelopeMarker = "eyJjaXBoZXJ0ZXh0"
)

// LooksEncrypted is the structural heuristic shared by both layers: long
// enough to be an envelope and carrying the base64 JSON marker.
func LooksEncrypted(blob string) bool {
	return len(blob) > detectionThreshold && strings.Contains(blob, envelopeMarker)
}

// Codec unwraps a possibly doubly-applied encryption envelope.
type Codec struct {
	log       *slog.Logger
	decryptor contract.IDecryptor
}

func NewCodec(log *slog.Logger, decryptor contract.IDecryptor) *Codec {
	return &Codec{log: log, decryptor: decryptor}
}

// DecodePreview returns a human-readable preview for a received blob.
//
// Plain text below the detection threshold passes through unchanged. An
// encrypted blob is decrypted once; if that fails the fixed placeholder is
// returned. When the recovered text itself looks like another envelope, one
// more decrypt is attempted; an inner failure falls back to the first
// layer's text because partial success beats total failure. A malformed
// message never stops the pipeline.
func (c *Codec) DecodePreview(ctx context.Context, blob string) string {
	if !LooksEncrypted(blob) {
		return blob
	}

	doc, err := c.decryptor.Decrypt(ctx, blob)
	if err != nil {
		c.log.Debug("Envelope decryption failed", "error", err)
		return Placeholder
	}
	text, ok := extractText(doc)
	if !ok {
		c.log.Debug("Decrypted envelope carries no text field")
		return Placeholder
	}

	if !LooksEncrypted(text) {
		return text
	}

	// Second layer only; never recurse further.
	innerDoc, err := c.decryptor.Decrypt(ctx, text)
	if err != nil {
		c.log.Debug("Inner envelope decryption failed, keeping outer text", "error", err)
		return text
	}
	if innerText, ok := extractText(innerDoc); ok {
		return innerText
	}
	return text
}

// extractText pulls the expected text field out of a decrypted payload
// document.
func extractText(doc string) (string, bool) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(doc), &payload); err != nil {
		return "", false
	}
	if payload.Text == "" {
		return "", false
	}
	return payload.Text, true
}
