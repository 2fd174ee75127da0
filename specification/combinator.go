package specification

import "github.com/shineum/mailpit-go/message"

// And is satisfied when both sides are. Right is not evaluated when Left
// fails.
type And struct {
	Left, Right Specification
}

func (a And) IsSatisfiedBy(msg *message.Message) bool {
	return a.Left.IsSatisfiedBy(msg) && a.Right.IsSatisfiedBy(msg)
}

// Or is satisfied when either side is.
type Or struct {
	Left, Right Specification
}

func (o Or) IsSatisfiedBy(msg *message.Message) bool {
	return o.Left.IsSatisfiedBy(msg) || o.Right.IsSatisfiedBy(msg)
}

// Not negates Inner.
type Not struct {
	Inner Specification
}

func (n Not) IsSatisfiedBy(msg *message.Message) bool {
	return !n.Inner.IsSatisfiedBy(msg)
}

// All combines specs into a right-nested And. A single spec is returned
// unchanged.
func All(spec Specification, more ...Specification) Specification {
	if len(more) == 0 {
		return spec
	}
	return And{Left: spec, Right: All(more[0], more[1:]...)}
}

// Any combines specs into a right-nested Or. A single spec is returned
// unchanged.
func Any(spec Specification, more ...Specification) Specification {
	if len(more) == 0 {
		return spec
	}
	return Or{Left: spec, Right: Any(more[0], more[1:]...)}
}

// Filter returns the messages satisfying spec, in order.
func Filter(spec Specification, msgs []*message.Message) []*message.Message {
	var out []*message.Message
	for _, m := range msgs {
		if spec.IsSatisfiedBy(m) {
			out = append(out, m)
		}
	}
	return out
}
