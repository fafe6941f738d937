package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
)

func TestStateCodecRoundTrip(t *testing.T) {
	codec := NewStateCodec("http://localhost:3000")

	state, err := codec.Encode("http://localhost:3000/dashboard", ModeLink)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	payload, err := codec.Decode(state, state)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.RedirectURL != "http://localhost:3000/dashboard" {
		t.Fatalf("unexpected redirect: %s", payload.RedirectURL)
	}
	if payload.Mode != ModeLink {
		t.Fatalf("unexpected mode: %s", payload.Mode)
	}
	if len(payload.Nonce) != 32 {
		t.Fatalf("expected 32 hex chars of nonce, got %d", len(payload.Nonce))
	}
}

func TestStateCodecDefaults(t *testing.T) {
	codec := NewStateCodec("http://localhost:3000")

	state, err := codec.Encode("", "")
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	payload, err := codec.Decode(state, state)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.RedirectURL != "http://localhost:3000" {
		t.Fatalf("expected default redirect, got %s", payload.RedirectURL)
	}
	if payload.Mode != ModeLogin {
		t.Fatalf("expected login mode, got %s", payload.Mode)
	}
}

func TestStateCodecRejectsMissingCookie(t *testing.T) {
	codec := NewStateCodec("http://localhost:3000")

	state, err := codec.Encode("", ModeLogin)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if _, err := codec.Decode(state, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestStateCodecRejectsMismatch(t *testing.T) {
	codec := NewStateCodec("http://localhost:3000")

	first, _ := codec.Encode("", ModeLogin)
	second, _ := codec.Encode("", ModeLogin)

	if _, err := codec.Decode(first, second); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestStateCodecRejectsMalformedPayload(t *testing.T) {
	codec := NewStateCodec("http://localhost:3000")

	cases := map[string]string{
		"not base64":    "%%%",
		"not json":      base64.RawURLEncoding.EncodeToString([]byte("hello")),
		"missing nonce": mustEncodeState(t, StatePayload{RedirectURL: "http://localhost:3000"}),
	}

	for name, state := range cases {
		if _, err := codec.Decode(state, state); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("%s: expected ErrInvalidState, got %v", name, err)
		}
	}
}

func TestStateCodecUnknownModeFallsBackToLogin(t *testing.T) {
	codec := NewStateCodec("http://localhost:3000")

	state := mustEncodeState(t, StatePayload{Nonce: "abc", Mode: "replay"})
	payload, err := codec.Decode(state, state)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if payload.Mode != ModeLogin {
		t.Fatalf("expected login mode, got %s", payload.Mode)
	}
}

func mustEncodeState(t *testing.T, payload StatePayload) string {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(data)
}
