package mime

import (
	"log/slog"
	"strings"

	"github.com/shineum/mailpit-go/response"
)

// MaxDepth bounds how deeply nested MIME trees are followed.
const MaxDepth = 32

// PartCollection is a MIME tree flattened depth-first into its leaves.
type PartCollection struct {
	parts []Part
}

// FromResponse flattens a list of Mailpit part objects. A part whose
// "MIME" object carries a "Parts" list is replaced by its children.
func FromResponse(parts any) PartCollection {
	var c PartCollection
	c.parts = flatten(parts, 0)
	return c
}

// FromMessage returns the part tree of a message detail response and true,
// or false when the response carries none. Both a top-level "Parts" list and
// a "MIME" object with "Parts" are accepted.
func FromMessage(raw *response.Object) (PartCollection, bool) {
	if parts, ok := raw.Get("Parts"); ok {
		if _, isList := parts.([]any); isList {
			return FromResponse(parts), true
		}
	}
	if _, ok := childParts(raw); ok {
		return FromResponse([]any{raw}), true
	}
	return PartCollection{}, false
}

func flatten(value any, depth int) []Part {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	if depth >= MaxDepth {
		slog.Warn("MIME tree too deep, ignoring nested parts", "depth", depth)
		return nil
	}

	var out []Part
	for _, item := range list {
		obj, ok := item.(*response.Object)
		if !ok {
			continue
		}
		if children, ok := childParts(obj); ok {
			out = append(out, flatten(children, depth+1)...)
			continue
		}
		out = append(out, PartFromResponse(obj))
	}
	return out
}

func childParts(obj *response.Object) (any, bool) {
	v, _ := obj.Get("MIME")
	mimeData, ok := v.(*response.Object)
	if !ok {
		return nil, false
	}
	parts, ok := mimeData.Get("Parts")
	if !ok {
		return nil, false
	}
	if _, isList := parts.([]any); !isList {
		return nil, false
	}
	return parts, true
}

// Parts returns the leaves in order.
func (c PartCollection) Parts() []Part {
	out := make([]Part, len(c.parts))
	copy(out, c.parts)
	return out
}

// IsEmpty reports whether the collection has no leaves.
func (c PartCollection) IsEmpty() bool {
	return len(c.parts) == 0
}

// Attachments returns the leaves with an attachment disposition.
func (c PartCollection) Attachments() []Attachment {
	var out []Attachment
	for _, p := range c.parts {
		if p.IsAttachment() {
			out = append(out, p.Attachment())
		}
	}
	return out
}

// Body returns the decoded body of the first inline text/html leaf, else of
// the first inline text/plain leaf, else "".
func (c PartCollection) Body() string {
	for _, mediaType := range []string{"text/html", "text/plain"} {
		for _, p := range c.parts {
			if p.IsAttachment() {
				continue
			}
			if strings.HasPrefix(strings.ToLower(p.ContentType()), mediaType) {
				return p.Body()
			}
		}
	}
	return ""
}
