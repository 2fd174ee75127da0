package message

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shineum/mailpit-go/header"
	"github.com/shineum/mailpit-go/internal/transfer"
	"github.com/shineum/mailpit-go/mime"
	"github.com/shineum/mailpit-go/response"
)

// ErrInvalidMessageData is returned when a response cannot identify a
// message.
var ErrInvalidMessageData = errors.New("invalid message data")

// Fields the client adds to a message detail response before it is built.
const (
	// FieldHeaders holds the full header map of the message.
	FieldHeaders = "Headers"
	// FieldAttachmentsData holds an object mapping part IDs to content.
	FieldAttachmentsData = "AttachmentsData"
)

// FromResponse builds a Message from a Mailpit message detail response,
// optionally enriched with FieldHeaders and FieldAttachmentsData.
//
// The response must carry a non-empty string "ID".
func FromResponse(raw *response.Object) (*Message, error) {
	idValue, ok := raw.Get("ID")
	if !ok {
		return nil, fmt.Errorf("%w: missing ID", ErrInvalidMessageData)
	}
	id, ok := idValue.(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: ID must be a non-empty string", ErrInvalidMessageData)
	}

	headers := header.FromResponse(raw)
	parts, hasParts := mime.FromMessage(raw)

	from, _ := raw.Get("From")
	to, _ := raw.Get("To")
	cc, _ := raw.Get("Cc")
	bcc, _ := raw.Get("Bcc")

	msg := &Message{
		ID:         id,
		Sender:     buildContact(response.StringKeyed(from), headers.Get("From", "")),
		Recipients: buildContactCollection(response.ObjectList(to), headers.Get("To", "")),
		CC:         buildContactCollection(response.ObjectList(cc), headers.Get("Cc", "")),
		BCC:        buildContactCollection(response.ObjectList(bcc), headers.Get("Bcc", "")),
		Subject:    headers.Get("Subject", ""),
		Headers:    headers,
	}

	body := response.String(raw, "HTML", "")
	if body == "" {
		body = response.String(raw, "Text", "")
	}
	if body == "" && hasParts {
		body = parts.Body()
	}
	msg.Body = strings.TrimSuffix(decodeBody(headers, body), "\r\n")

	if descriptors, ok := raw.Get("Attachments"); !ok && hasParts {
		msg.Attachments = parts.Attachments()
	} else {
		data, _ := raw.Get(FieldAttachmentsData)
		msg.Attachments = buildAttachments(response.ObjectList(descriptors), response.StringKeyed(data))
	}

	return msg, nil
}

func buildContact(data *response.Object, fallback string) Contact {
	if address := response.String(data, "Address", ""); address != "" {
		return Contact{Address: address, Name: response.String(data, "Name", "")}
	}
	if fallback != "" {
		return ContactFromString(fallback)
	}
	return Contact{}
}

// buildContactCollection prefers the header text over the structured list.
func buildContactCollection(data []*response.Object, fallback string) ContactCollection {
	if fallback != "" {
		return ContactCollectionFromString(fallback)
	}

	var contacts []Contact
	for _, item := range data {
		address := response.String(item, "Address", "")
		if address == "" {
			continue
		}
		contacts = append(contacts, Contact{Address: address, Name: response.String(item, "Name", "")})
	}
	return ContactCollection{contacts: contacts}
}

func buildAttachments(descriptors []*response.Object, data *response.Object) []Attachment {
	var out []Attachment
	for _, d := range descriptors {
		partIDValue, _ := d.Get("PartID")
		partID, ok := response.Scalar(partIDValue)
		if !ok {
			continue
		}

		out = append(out, Attachment{
			Filename: response.String(d, "FileName", ""),
			MimeType: response.String(d, "ContentType", mime.DefaultContentType),
			Content:  attachmentContent(data, partID),
		})
	}
	return out
}

func attachmentContent(data *response.Object, partID string) []byte {
	v, _ := data.Get(partID)
	switch c := v.(type) {
	case []byte:
		return c
	case string:
		return []byte(c)
	}
	return []byte{}
}

func decodeBody(headers header.Headers, body string) string {
	if transfer.Normalize(headers.Get("Content-Transfer-Encoding", "")) != transfer.QuotedPrintable {
		return body
	}
	decoded, err := transfer.DecodeQuotedPrintable([]byte(body))
	if err != nil {
		slog.Warn("failed to decode quoted-printable body", "error", err)
		return body
	}
	return string(decoded)
}
