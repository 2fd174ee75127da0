package mailpit

import (
	"context"
	"iter"

	"github.com/shineum/mailpit-go/message"
)

// MessageIterator walks the inbox lazily, newest first. Summary pages are
// requested only when the previous page has been consumed, and each message
// is fetched in full just before it is yielded.
//
// An iterator is not safe for concurrent use.
type MessageIterator struct {
	client   *Client
	pageSize int

	nextStart int
	lastTotal int
	started   bool

	pending []string
	current *message.Message
	err     error
	done    bool
}

// Next advances to the next message. It returns false when the inbox is
// exhausted or an error occurred; check Err to tell them apart.
func (it *MessageIterator) Next(ctx context.Context) bool {
	if it.done {
		return false
	}

	for len(it.pending) == 0 {
		if it.started && it.nextStart >= it.lastTotal {
			it.finish(nil)
			return false
		}
		if err := it.fetchPage(ctx); err != nil {
			it.finish(err)
			return false
		}
	}

	id := it.pending[0]
	it.pending = it.pending[1:]

	msg, err := it.client.GetMessageByID(ctx, id)
	if err != nil {
		it.finish(err)
		return false
	}
	it.current = msg
	return true
}

// fetchPage requests the next summary page. A page without any usable IDs
// still advances the cursor so a malformed page cannot stall iteration.
func (it *MessageIterator) fetchPage(ctx context.Context) error {
	p, err := it.client.listPage(ctx, it.pageSize, it.nextStart)
	if err != nil {
		return err
	}
	it.started = true
	it.lastTotal = p.total
	it.nextStart += it.pageSize
	it.pending = p.ids
	return nil
}

func (it *MessageIterator) finish(err error) {
	it.done = true
	it.current = nil
	it.pending = nil
	it.err = err
}

// Message returns the message produced by the last successful call to Next.
func (it *MessageIterator) Message() *message.Message {
	return it.current
}

// Err returns the error that stopped the iteration, if any.
func (it *MessageIterator) Err() error {
	return it.err
}

// All adapts the iterator to a range-over-func sequence. The sequence yields
// a non-nil error at most once, as its final element.
func (it *MessageIterator) All(ctx context.Context) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		for it.Next(ctx) {
			if !yield(it.Message(), nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield(nil, err)
		}
	}
}
