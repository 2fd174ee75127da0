// Package mime decodes the MIME part trees Mailpit exposes for a message.
package mime

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/shineum/mailpit-go/header"
	"github.com/shineum/mailpit-go/internal/transfer"
	"github.com/shineum/mailpit-go/response"
)

const (
	// DefaultContentType is used for parts without a Content-Type header.
	DefaultContentType = "application/octet-stream"

	// UnknownFilename is reported for attachments without a filename.
	UnknownFilename = "unknown"
)

var filenamePattern = regexp.MustCompile(`(?i)filename=(.*?)(;|$)`)

// Attachment is a file attached to a message.
type Attachment struct {
	Filename string
	MimeType string
	Content  []byte
}

// Part is a single leaf of a MIME tree.
type Part struct {
	contentType      string
	transferEncoding string
	attachment       bool
	filename         string
	body             string
}

// PartFromResponse builds a Part from one part object of a Mailpit response.
func PartFromResponse(raw *response.Object) Part {
	headers := header.FromMimePart(raw)

	p := Part{
		contentType: DefaultContentType,
		body:        response.String(raw, "Body", ""),
	}

	if headers.Has("Content-Type") {
		p.contentType = strings.TrimSpace(strings.SplitN(headers.Get("Content-Type", ""), ";", 2)[0])
	}
	if headers.Has("Content-Transfer-Encoding") {
		p.transferEncoding = headers.Get("Content-Transfer-Encoding", "")
	}

	disposition := headers.Get("Content-Disposition", "")
	if strings.HasPrefix(strings.ToLower(disposition), "attachment") {
		p.attachment = true
		if m := filenamePattern.FindStringSubmatch(disposition); m != nil {
			p.filename = m[1]
		}
	}

	return p
}

// ContentType returns the media type without parameters.
func (p Part) ContentType() string { return p.contentType }

// TransferEncoding returns the Content-Transfer-Encoding header, if any.
func (p Part) TransferEncoding() string { return p.transferEncoding }

// IsAttachment reports whether the part has an attachment disposition.
func (p Part) IsAttachment() bool { return p.attachment }

// Filename returns the attachment filename, or UnknownFilename.
func (p Part) Filename() string {
	if p.filename == "" {
		return UnknownFilename
	}
	return p.filename
}

// Body returns the part's content with its transfer encoding reversed.
// Content that fails to decode is returned as-is.
func (p Part) Body() string {
	enc := strings.ToLower(p.transferEncoding)

	var (
		decoded []byte
		err     error
	)
	switch {
	case strings.Contains(enc, transfer.QuotedPrintable):
		decoded, err = transfer.DecodeQuotedPrintable([]byte(p.body))
	case strings.Contains(enc, transfer.Base64):
		decoded, err = transfer.DecodeBase64([]byte(p.body))
	default:
		return p.body
	}
	if err != nil {
		slog.Warn("failed to decode MIME part body",
			"content_type", p.contentType,
			"encoding", p.transferEncoding,
			"error", err,
		)
		return p.body
	}
	return string(decoded)
}

// Attachment converts the part to an Attachment.
func (p Part) Attachment() Attachment {
	return Attachment{
		Filename: p.Filename(),
		MimeType: p.contentType,
		Content:  []byte(p.Body()),
	}
}
