package security

import (
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

type PublicIDCodec interface {
	ToPublicID(kind string, id uuid.UUID) string
	FromPublicID(publicID string) (uuid.UUID, bool)
}

var publicIDPrefixes = map[string]string{
	"user":       "usr",
	"membership": "mbr",
	"tenant":     "tnt",
	"session":    "ses",
	"device":     "dev",
	"event":      "evt",
}

// PrefixedIDCodec renders ids as "<prefix>_<base64url(uuid bytes)>". Plain
// uuid strings are accepted on input.
type PrefixedIDCodec struct{}

func NewPrefixedIDCodec() PrefixedIDCodec { return PrefixedIDCodec{} }

func (PrefixedIDCodec) ToPublicID(kind string, id uuid.UUID) string {
	prefix, ok := publicIDPrefixes[strings.ToLower(kind)]
	if !ok {
		prefix = strings.ToLower(kind)
	}
	return prefix + "_" + base64.RawURLEncoding.EncodeToString(id[:])
}

func (PrefixedIDCodec) FromPublicID(publicID string) (uuid.UUID, bool) {
	publicID = strings.TrimSpace(publicID)
	if publicID == "" {
		return uuid.Nil, false
	}
	if id, err := uuid.Parse(publicID); err == nil {
		return id, id != uuid.Nil
	}
	idx := strings.LastIndexByte(publicID, '_')
	if idx <= 0 || idx == len(publicID)-1 {
		return uuid.Nil, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(publicID[idx+1:])
	if err != nil || len(raw) != 16 {
		return uuid.Nil, false
	}
	id, err := uuid.FromBytes(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}
