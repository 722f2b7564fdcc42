package security

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/segmentio/ksuid"
)

const opaqueTokenBytes = 32

func NewOpaqueToken() (string, error) {
	buf := make([]byte, opaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// NewSessionToken returns a time-sortable unique session handle.
func NewSessionToken() string {
	return ksuid.New().String()
}
