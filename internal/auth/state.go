package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// StateMode selects the flow variant carried through the OAuth redirect.
type StateMode string

const (
	ModeLogin StateMode = "login"
	ModeLink  StateMode = "link"
)

// StatePayload is the anti-forgery payload round-tripped through the provider
// redirect. It is self-contained: no server-side storage is required beyond
// the short-lived cookie used for the equality check.
type StatePayload struct {
	Nonce       string    `json:"nonce"`
	RedirectURL string    `json:"redirectUrl"`
	Mode        StateMode `json:"mode,omitempty"`
}

// StateCodec encodes and decodes the opaque state string.
type StateCodec struct {
	defaultRedirect string
}

// NewStateCodec creates a codec that falls back to defaultRedirect when the
// caller supplies no redirect target.
func NewStateCodec(defaultRedirect string) *StateCodec {
	return &StateCodec{defaultRedirect: defaultRedirect}
}

// Encode produces the opaque state string: base64url-encoded JSON with a
// 16-byte random nonce.
func (c *StateCodec) Encode(redirectURL string, mode StateMode) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate state nonce: %w", err)
	}

	if redirectURL == "" {
		redirectURL = c.defaultRedirect
	}
	if mode == "" {
		mode = ModeLogin
	}

	payload := StatePayload{
		Nonce:       hex.EncodeToString(nonce),
		RedirectURL: redirectURL,
		Mode:        mode,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(data), nil
}

// Decode verifies and decodes a state string returned by the provider
// callback. savedState is the value stored in the oauth_state cookie at login
// time; the callback is rejected when the cookie is absent or does not match
// exactly.
func (c *StateCodec) Decode(state, savedState string) (StatePayload, error) {
	if state == "" {
		return StatePayload{}, fmt.Errorf("%w: missing state parameter", ErrInvalidState)
	}
	if savedState == "" {
		return StatePayload{}, fmt.Errorf("%w: missing state cookie", ErrInvalidState)
	}
	if subtle.ConstantTimeCompare([]byte(state), []byte(savedState)) != 1 {
		return StatePayload{}, fmt.Errorf("%w: state does not match saved value", ErrInvalidState)
	}

	data, err := base64.RawURLEncoding.DecodeString(state)
	if err != nil {
		return StatePayload{}, fmt.Errorf("%w: undecodable state", ErrInvalidState)
	}

	var payload StatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return StatePayload{}, fmt.Errorf("%w: malformed state payload", ErrInvalidState)
	}
	if payload.Nonce == "" {
		return StatePayload{}, fmt.Errorf("%w: state payload missing nonce", ErrInvalidState)
	}

	if payload.RedirectURL == "" {
		payload.RedirectURL = c.defaultRedirect
	}
	if payload.Mode != ModeLink {
		payload.Mode = ModeLogin
	}

	return payload, nil
}
