// Package header provides case-insensitive access to decoded message headers.
package header

import (
	"mime"
	"sort"
	"strings"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/charmap"

	"github.com/shineum/mailpit-go/response"
)

func init() {
	// Register additional charsets that are commonly used in emails
	charset.RegisterEncoding("windows-1252", charmap.Windows1252)
	charset.RegisterEncoding("iso-8859-1", charmap.ISO8859_1)
	charset.RegisterEncoding("iso-8859-15", charmap.ISO8859_15)
	charset.RegisterEncoding("koi8-r", charmap.KOI8R)
}

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// Headers maps lower-cased header names to a single decoded value.
// The zero value is an empty set of headers.
type Headers struct {
	values map[string]string
}

// New builds Headers from a plain name/value map. Names are lower-cased.
func New(values map[string]string) Headers {
	h := Headers{values: make(map[string]string, len(values))}
	for name, v := range values {
		h.values[strings.ToLower(name)] = v
	}
	return h
}

// FromResponse builds Headers from a Mailpit response. The response's
// "Headers" object is used when present; otherwise the response itself is
// used when every value in it is a list.
func FromResponse(raw *response.Object) Headers {
	if v, ok := raw.Get("Headers"); ok {
		if obj, ok := v.(*response.Object); ok {
			return fromRaw(obj)
		}
	}
	if isHeaderMap(raw) {
		return fromRaw(raw)
	}
	return Headers{}
}

// FromMimePart builds Headers from the "Headers" object of a MIME part.
func FromMimePart(part *response.Object) Headers {
	v, _ := part.Get("Headers")
	obj, ok := v.(*response.Object)
	if !ok {
		return Headers{}
	}
	return fromRaw(obj)
}

func fromRaw(raw *response.Object) Headers {
	h := Headers{values: make(map[string]string)}
	for _, name := range raw.Keys() {
		v, _ := raw.Get(name)
		first, ok := firstString(v)
		if !ok {
			continue
		}
		h.values[strings.ToLower(name)] = Decode(first)
	}
	return h
}

func firstString(v any) (string, bool) {
	switch list := v.(type) {
	case []any:
		if len(list) == 0 {
			return "", false
		}
		s, ok := list[0].(string)
		return s, ok
	case []string:
		if len(list) == 0 {
			return "", false
		}
		return list[0], true
	}
	return "", false
}

func isHeaderMap(raw *response.Object) bool {
	for _, name := range raw.Keys() {
		v, _ := raw.Get(name)
		switch v.(type) {
		case []any, []string:
		default:
			return false
		}
	}
	return true
}

// Decode decodes RFC 2047 encoded-words in value. The raw value is returned
// when decoding fails or yields nothing.
func Decode(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil || decoded == "" {
		return value
	}
	return decoded
}

// Get returns the value of the named header, or def when it is absent.
func (h Headers) Get(name, def string) string {
	if v, ok := h.values[strings.ToLower(name)]; ok {
		return v
	}
	return def
}

// Has reports whether the named header is present.
func (h Headers) Has(name string) bool {
	_, ok := h.values[strings.ToLower(name)]
	return ok
}

// Names returns the lower-cased header names in sorted order.
func (h Headers) Names() []string {
	names := make([]string, 0, len(h.values))
	for name := range h.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of headers.
func (h Headers) Len() int {
	return len(h.values)
}
