package xatomic

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/oxhq/morfx/internal/xerrors"
)

func hexEncode(b []byte) string { return strings.ToUpper(hex.EncodeToString(b)) }

func base64Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// ParseHexBinary validates and decodes an xs:hexBinary lexical form.
func ParseHexBinary(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, xerrors.Newf(xerrors.FORG0001, "invalid hexBinary lexical form: %v", err)
	}
	return b, nil
}

// ParseBase64Binary validates and decodes an xs:base64Binary lexical form.
func ParseBase64Binary(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
	if err != nil {
		return nil, xerrors.Newf(xerrors.FORG0001, "invalid base64Binary lexical form: %v", err)
	}
	return b, nil
}

// BinaryEqual compares two binary values byte-wise; cross-subtype equality
// is always false per spec §4.5.
func BinaryEqual(a, b Value) bool {
	if a.Tag != b.Tag {
		return false
	}
	return bytes.Equal(a.binary, b.binary)
}
