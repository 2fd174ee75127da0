package message

import (
	"iter"
	"strings"
)

// Contact is an e-mail participant. An empty Name means the contact has no
// display name.
type Contact struct {
	Address string
	Name    string
}

// NewContact returns a Contact with the given address and optional name.
func NewContact(address string, name ...string) Contact {
	c := Contact{Address: address}
	if len(name) > 0 {
		c.Name = name[0]
	}
	return c
}

// ContactFromString parses "Name <address>" or a bare address. The address
// is taken from the final <...> pair, so the display name may itself
// contain angle brackets. Surrounding double quotes are removed from the
// name and \" is unescaped.
func ContactFromString(s string) Contact {
	s = strings.TrimSpace(s)

	open := strings.LastIndex(s, "<")
	if open < 0 || !strings.HasSuffix(s, ">") || open == len(s)-1 {
		return Contact{Address: s}
	}

	address := strings.TrimSpace(s[open+1 : len(s)-1])
	name := strings.TrimSpace(s[:open])

	if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		name = name[1 : len(name)-1]
	}
	name = strings.ReplaceAll(name, `\"`, `"`)

	return Contact{Address: address, Name: name}
}

// HasName reports whether the contact has a display name.
func (c Contact) HasName() bool {
	return c.Name != ""
}

// Equals reports whether c and other denote the same participant. Addresses
// must match exactly; names are compared only when both sides have one.
func (c Contact) Equals(other Contact) bool {
	if c.Address != other.Address {
		return false
	}
	if !c.HasName() || !other.HasName() {
		return true
	}
	return c.Name == other.Name
}

// String renders the contact as "Name <address>" or just the address.
func (c Contact) String() string {
	if !c.HasName() {
		return c.Address
	}
	return c.Name + " <" + c.Address + ">"
}

// ContactCollection is an ordered list of contacts.
type ContactCollection struct {
	contacts []Contact
}

// NewContactCollection returns a collection of the given contacts.
func NewContactCollection(contacts ...Contact) ContactCollection {
	c := ContactCollection{contacts: make([]Contact, len(contacts))}
	copy(c.contacts, contacts)
	return c
}

// ContactCollectionFromString parses a comma-separated address list. Commas
// inside double quotes do not separate entries and empty entries are
// skipped.
func ContactCollectionFromString(s string) ContactCollection {
	var contacts []Contact
	for _, field := range splitAddressList(s) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		contacts = append(contacts, ContactFromString(field))
	}
	return ContactCollection{contacts: contacts}
}

func splitAddressList(s string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			quoted = !quoted
		case r == ',' && !quoted:
			fields = append(fields, current.String())
			current.Reset()
			continue
		}
		current.WriteRune(r)
	}
	return append(fields, current.String())
}

// Contains reports whether any contact in the collection equals needle.
func (c ContactCollection) Contains(needle Contact) bool {
	for _, contact := range c.contacts {
		if contact.Equals(needle) {
			return true
		}
	}
	return false
}

// Len returns the number of contacts.
func (c ContactCollection) Len() int {
	return len(c.contacts)
}

// At returns the i-th contact.
func (c ContactCollection) At(i int) Contact {
	return c.contacts[i]
}

// All iterates over the contacts in order.
func (c ContactCollection) All() iter.Seq2[int, Contact] {
	return func(yield func(int, Contact) bool) {
		for i, contact := range c.contacts {
			if !yield(i, contact) {
				return
			}
		}
	}
}

// Addresses returns the bare addresses in order.
func (c ContactCollection) Addresses() []string {
	out := make([]string, 0, len(c.contacts))
	for _, contact := range c.contacts {
		out = append(out, contact.Address)
	}
	return out
}

// String renders the collection as a comma-separated list.
func (c ContactCollection) String() string {
	parts := make([]string, 0, len(c.contacts))
	for _, contact := range c.contacts {
		parts = append(parts, contact.String())
	}
	return strings.Join(parts, ", ")
}
