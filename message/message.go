// Package message defines the typed view of a message captured by Mailpit
// and builds it from the server's JSON.
package message

import (
	"strings"

	"github.com/k3a/html2text"

	"github.com/shineum/mailpit-go/header"
	"github.com/shineum/mailpit-go/mime"
)

// Attachment is a file attached to a message.
type Attachment = mime.Attachment

// Message is one captured e-mail.
type Message struct {
	ID          string
	Sender      Contact
	Recipients  ContactCollection
	CC          ContactCollection
	BCC         ContactCollection
	Subject     string
	Body        string
	Attachments []Attachment
	Headers     header.Headers
}

// IsHTML reports whether the body looks like HTML markup.
func (m *Message) IsHTML() bool {
	return looksLikeHTML(m.Body)
}

// PlainTextBody returns the body with any HTML markup converted to text.
func (m *Message) PlainTextBody() string {
	if !m.IsHTML() {
		return m.Body
	}
	return strings.TrimSpace(html2text.HTML2Text(m.Body))
}

// Attachment returns the first attachment with the given filename.
func (m *Message) Attachment(filename string) (Attachment, bool) {
	for _, a := range m.Attachments {
		if a.Filename == filename {
			return a, true
		}
	}
	return Attachment{}, false
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}
