package relaycore

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// newToken returns n random bytes as lowercase hex. Connection and room ids
// use n=16; collisions are cryptographically negligible for the process
// lifetime.
func newToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func NewConnectionID() (string, error) { return newToken(16) }

func NewRoomID() (string, error) { return newToken(16) }

func NewChatMessageID() (string, error) { return newToken(8) }

var passkeySpan = big.NewInt(90000000)

// NewPasskey draws an 8-digit decimal passkey uniformly from
// [10000000, 99999999]. Passkeys are not unique across live rooms; lookups
// take the first match in directory order.
func NewPasskey() (string, error) {
	n, err := rand.Int(rand.Reader, passkeySpan)
	if err != nil {
		return "", fmt.Errorf("generate passkey: %w", err)
	}
	return fmt.Sprintf("%08d", n.Int64()+10000000), nil
}
