// Package specification provides composable predicates over captured
// messages, used to search a Mailpit inbox.
package specification

import (
	"strings"

	"github.com/shineum/mailpit-go/message"
)

// Specification is a boolean predicate over a message.
type Specification interface {
	IsSatisfiedBy(msg *message.Message) bool
}

// Func adapts an ordinary function to a Specification.
type Func func(msg *message.Message) bool

// IsSatisfiedBy calls f(msg).
func (f Func) IsSatisfiedBy(msg *message.Message) bool { return f(msg) }

// Sender matches messages sent by the contact.
type Sender message.Contact

func (s Sender) IsSatisfiedBy(msg *message.Message) bool {
	return msg.Sender.Equals(message.Contact(s))
}

// Recipient matches messages addressed to the contact in To.
type Recipient message.Contact

func (r Recipient) IsSatisfiedBy(msg *message.Message) bool {
	return msg.Recipients.Contains(message.Contact(r))
}

// CC matches messages copied to the contact.
type CC message.Contact

func (c CC) IsSatisfiedBy(msg *message.Message) bool {
	return msg.CC.Contains(message.Contact(c))
}

// Subject matches the exact subject.
type Subject string

func (s Subject) IsSatisfiedBy(msg *message.Message) bool {
	return msg.Subject == string(s)
}

// Body matches messages whose body contains the snippet.
type Body string

func (b Body) IsSatisfiedBy(msg *message.Message) bool {
	return strings.Contains(msg.Body, string(b))
}

// BodyText is like Body but searches the body with HTML markup removed.
type BodyText string

func (b BodyText) IsSatisfiedBy(msg *message.Message) bool {
	return strings.Contains(msg.PlainTextBody(), string(b))
}

// Attachment matches messages with an attachment of the exact filename.
type Attachment string

func (a Attachment) IsSatisfiedBy(msg *message.Message) bool {
	_, ok := msg.Attachment(string(a))
	return ok
}

// Header matches on a header. With an empty Value the header only needs to
// be present; otherwise its decoded value must equal Value.
type Header struct {
	Name  string
	Value string
}

// HasHeader matches messages carrying the named header.
func HasHeader(name string) Header {
	return Header{Name: name}
}

// HeaderEquals matches messages whose named header equals value.
func HeaderEquals(name, value string) Header {
	return Header{Name: name, Value: value}
}

func (h Header) IsSatisfiedBy(msg *message.Message) bool {
	if h.Value == "" {
		return msg.Headers.Has(h.Name)
	}
	return msg.Headers.Get(h.Name, "") == h.Value
}
