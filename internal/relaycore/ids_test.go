package relaycore

import (
	"regexp"
	"strconv"
	"testing"
)

var hex32 = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewConnectionID_Shape(t *testing.T) {
	id, err := NewConnectionID()
	if err != nil {
		t.Fatalf("NewConnectionID: %v", err)
	}
	if !hex32.MatchString(id) {
		t.Errorf("id %q is not 32 lowercase hex chars", id)
	}
}

func TestNewChatMessageID_Shape(t *testing.T) {
	id, err := NewChatMessageID()
	if err != nil {
		t.Fatalf("NewChatMessageID: %v", err)
	}
	if len(id) != 16 || !regexp.MustCompile(`^[0-9a-f]{16}$`).MatchString(id) {
		t.Errorf("id %q is not 16 lowercase hex chars", id)
	}
}

func TestNewPasskey_Range(t *testing.T) {
	for i := 0; i < 200; i++ {
		key, err := NewPasskey()
		if err != nil {
			t.Fatalf("NewPasskey: %v", err)
		}
		if len(key) != 8 {
			t.Fatalf("passkey %q is not 8 digits", key)
		}
		n, err := strconv.Atoi(key)
		if err != nil {
			t.Fatalf("passkey %q is not decimal: %v", key, err)
		}
		if n < 10000000 || n > 99999999 {
			t.Fatalf("passkey %d out of [10000000, 99999999]", n)
		}
	}
}

func TestIDs_Distinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := NewRoomID()
		if err != nil {
			t.Fatalf("NewRoomID: %v", err)
		}
		if seen[id] {
			t.Fatalf("duplicate room id %q", id)
		}
		seen[id] = true
	}
}
