package relaycore

import (
	"testing"
)

func TestParseEnvelope_CreateRoom(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"create-room","roomName":"Standup"}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Kind != KindCreateRoom {
		t.Errorf("Kind = %q, want create-room", env.Kind)
	}
	if env.RoomName != "Standup" {
		t.Errorf("RoomName = %q", env.RoomName)
	}
}

func TestParseEnvelope_OpaquePayloadSurvives(t *testing.T) {
	raw := `{"type":"candidate","roomId":"r1","payload":{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 54400 typ host","sdpMid":"0"}}`
	env, err := ParseEnvelope([]byte(raw))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Kind != KindCandidate {
		t.Errorf("Kind = %q", env.Kind)
	}
	if string(env.Payload) != `{"candidate":"candidate:1 1 udp 2130706431 192.0.2.1 54400 typ host","sdpMid":"0"}` {
		t.Errorf("Payload not preserved verbatim: %s", env.Payload)
	}
}

func TestParseEnvelope_UnknownKindParses(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"telemetry","weird":true}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.Kind != Kind("telemetry") {
		t.Errorf("Kind = %q", env.Kind)
	}
}

func TestParseEnvelope_Malformed(t *testing.T) {
	cases := []string{
		`not json`,
		`{"roomName":"x"}`,
		`{"type":"get-rooms"}{"type":"get-rooms"}`,
		``,
	}
	for _, raw := range cases {
		if _, err := ParseEnvelope([]byte(raw)); err == nil {
			t.Errorf("ParseEnvelope(%q) succeeded, want error", raw)
		}
	}
}

func TestParseEnvelope_MediaStateAndIdentity(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"type":"media-state","roomId":"r","mediaState":{"video":false,"audio":true}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.MediaState == nil || env.MediaState.Video || !env.MediaState.Audio {
		t.Errorf("MediaState = %+v", env.MediaState)
	}

	env, err = ParseEnvelope([]byte(`{"type":"authenticate","user":{"email":"a@b.c","name":"Ada","role":"admin"}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if env.User == nil || env.User.Email != "a@b.c" || env.User.Role != "admin" {
		t.Errorf("User = %+v", env.User)
	}
}
