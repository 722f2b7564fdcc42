package security

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Digester is a one-way hash. Fingerprints and anonymized ids are derived
// through it so tests can substitute a deterministic fake.
type Digester interface {
	Sum(data []byte) []byte
}

type SHA256Digester struct{}

func (SHA256Digester) Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

const anonymizedIDLength = 16

// DeviceFingerprint is base64(digest("deviceID|userAgent|ip")). Missing parts
// contribute an empty segment.
func DeviceFingerprint(d Digester, deviceID, userAgent, ipAddress string) string {
	combined := deviceID + "|" + userAgent + "|" + ipAddress
	return base64.StdEncoding.EncodeToString(d.Sum([]byte(combined)))
}

// AnonymizeID returns the first 16 characters of base64(digest(id)).
func AnonymizeID(d Digester, id string) string {
	encoded := base64.StdEncoding.EncodeToString(d.Sum([]byte(id)))
	if len(encoded) > anonymizedIDLength {
		return encoded[:anonymizedIDLength]
	}
	return encoded
}

func HashToken(d Digester, token string) string {
	return hex.EncodeToString(d.Sum([]byte(token)))
}
