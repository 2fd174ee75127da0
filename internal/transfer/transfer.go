// Package transfer decodes MIME Content-Transfer-Encoding bodies.
package transfer

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/quotedprintable"
	"strings"
)

// Encoding names recognised by Decode.
const (
	QuotedPrintable = "quoted-printable"
	Base64          = "base64"
)

// Normalize lower-cases and trims an encoding name.
func Normalize(encoding string) string {
	return strings.ToLower(strings.TrimSpace(encoding))
}

// Decode reverses the named transfer encoding. Unknown encodings ("7bit",
// "8bit", "binary" or empty) return raw unchanged.
func Decode(encoding string, raw []byte) ([]byte, error) {
	switch Normalize(encoding) {
	case Base64:
		return DecodeBase64(raw)
	case QuotedPrintable:
		return DecodeQuotedPrintable(raw)
	default:
		return raw, nil
	}
}

// DecodeBase64 decodes base64 content that may contain line breaks or lack
// padding.
func DecodeBase64(raw []byte) ([]byte, error) {
	cleaned := strings.NewReplacer("\r", "", "\n", "", " ", "", "\t", "").Replace(string(raw))
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		// Try with RawStdEncoding for unpadded base64
		decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 content: %w", err)
		}
	}
	return decoded, nil
}

// DecodeQuotedPrintable decodes quoted-printable content.
func DecodeQuotedPrintable(raw []byte) ([]byte, error) {
	decoded, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(string(raw))))
	if err != nil {
		return nil, fmt.Errorf("failed to decode quoted-printable content: %w", err)
	}
	return decoded, nil
}
