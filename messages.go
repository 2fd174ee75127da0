package mailpit

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/shineum/mailpit-go/message"
	"github.com/shineum/mailpit-go/relay"
	"github.com/shineum/mailpit-go/response"
	"github.com/shineum/mailpit-go/specification"
)

const (
	messagesPath = "/api/v1/messages"
	messagePath  = "/api/v1/message/"
)

// page is one response of the message list endpoint.
type page struct {
	ids   []string
	total int
}

// listPage fetches the summaries at [start, start+limit).
func (c *Client) listPage(ctx context.Context, limit, start int) (*page, error) {
	path := fmt.Sprintf("%s?limit=%d&start=%d", messagesPath, limit, start)
	data, err := c.doOK(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	raw, err := response.DecodeJSON(data, "messages")
	if err != nil {
		return nil, err
	}

	summaries, ok := raw.Get("messages")
	if _, isList := summaries.([]any); !ok || !isList {
		return nil, &response.MalformedError{Context: "messages", Reason: "messages field is missing or not a list"}
	}

	p := &page{total: response.Int(raw, "total")}
	for _, summary := range response.ObjectList(summaries) {
		id := response.String(summary, "ID", "")
		if id == "" {
			c.logger.Warn("skipping message summary without ID", "start", start)
			continue
		}
		p.ids = append(p.ids, id)
	}
	return p, nil
}

// FindAllMessages returns a lazy iterator over every message in the inbox,
// fetched pageSize summaries at a time. A pageSize below 1 uses the
// client's default.
func (c *Client) FindAllMessages(pageSize int) *MessageIterator {
	if pageSize < 1 {
		pageSize = c.pageSize
	}
	return &MessageIterator{client: c, pageSize: pageSize}
}

// FindLatestMessages returns up to n of the most recent messages, newest
// first.
func (c *Client) FindLatestMessages(ctx context.Context, n int) ([]*message.Message, error) {
	if n < 1 {
		return []*message.Message{}, nil
	}
	p, err := c.listPage(ctx, n, 0)
	if err != nil {
		return nil, err
	}

	msgs := make([]*message.Message, 0, len(p.ids))
	for _, id := range p.ids {
		msg, err := c.GetMessageByID(ctx, id)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// FindMessagesSatisfying returns every message matching spec, in inbox
// order.
func (c *Client) FindMessagesSatisfying(ctx context.Context, spec specification.Specification) ([]*message.Message, error) {
	var matches []*message.Message
	for msg, err := range c.FindAllMessages(c.pageSize).All(ctx) {
		if err != nil {
			return nil, err
		}
		if spec.IsSatisfiedBy(msg) {
			matches = append(matches, msg)
		}
	}
	return matches, nil
}

// GetLastMessage returns the most recent message, or ErrNoSuchMessage when
// the inbox is empty.
func (c *Client) GetLastMessage(ctx context.Context) (*message.Message, error) {
	msgs, err := c.FindLatestMessages(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("%w: no last message found, inbox empty?", ErrNoSuchMessage)
	}
	return msgs[0], nil
}

// GetNumberOfMessages returns the total number of messages in the inbox.
// A missing or non-numeric total counts as zero.
func (c *Client) GetNumberOfMessages(ctx context.Context) (int, error) {
	data, err := c.doOK(ctx, http.MethodGet, messagesPath+"?limit=1&start=0", nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	raw, err := response.DecodeJSON(data, "messages")
	if err != nil {
		return 0, err
	}
	return response.Int(raw, "total"), nil
}

// GetMessageByID fetches a message together with its full headers and the
// content of each attachment.
func (c *Client) GetMessageByID(ctx context.Context, id string) (*message.Message, error) {
	base := messagePath + url.PathEscape(id)

	status, data, err := c.do(ctx, http.MethodGet, base, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message %s: %w", id, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchMessage, id)
	}
	if !isSuccess(status) {
		return nil, newAPIError(http.MethodGet, c.baseURL+base, status, data)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchMessage, id)
	}

	raw, err := response.DecodeJSON(data, "message "+id)
	if err != nil {
		return nil, err
	}

	headers, err := c.fetchHeaders(ctx, id)
	if err != nil {
		return nil, err
	}
	raw.Set(message.FieldHeaders, headers)

	attachments, err := c.fetchAttachments(ctx, id, raw)
	if err != nil {
		return nil, err
	}
	raw.Set(message.FieldAttachmentsData, attachments)

	msg, err := message.FromResponse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to build message %s: %w", id, err)
	}
	return msg, nil
}

func (c *Client) fetchHeaders(ctx context.Context, id string) (*response.Object, error) {
	data, err := c.doOK(ctx, http.MethodGet, messagePath+url.PathEscape(id)+"/headers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch headers of message %s: %w", id, err)
	}
	raw, err := response.DecodeJSON(data, "headers of message "+id)
	if err != nil {
		return nil, err
	}
	return response.HeaderMap(raw), nil
}

// fetchAttachments downloads the content of every attachment descriptor with
// a part ID. Up to c.concurrency parts are fetched at once.
func (c *Client) fetchAttachments(ctx context.Context, id string, raw *response.Object) (*response.Object, error) {
	descriptors, _ := raw.Get("Attachments")

	var partIDs []string
	for _, d := range response.ObjectList(descriptors) {
		v, _ := d.Get("PartID")
		if partID, ok := response.Scalar(v); ok {
			partIDs = append(partIDs, partID)
		}
	}

	contents := make([][]byte, len(partIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, partID := range partIDs {
		g.Go(func() error {
			path := messagePath + url.PathEscape(id) + "/part/" + url.PathEscape(partID)
			data, err := c.doOK(gctx, http.MethodGet, path, nil)
			if err != nil {
				return fmt.Errorf("failed to fetch part %s of message %s: %w", partID, id, err)
			}
			contents[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := response.NewObject()
	for i, partID := range partIDs {
		out.Set(partID, contents[i])
	}
	return out, nil
}

// DeleteMessage deletes one message.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	payload := map[string][]string{"IDs": {id}}
	if _, err := c.doOK(ctx, http.MethodDelete, messagesPath, payload); err != nil {
		return fmt.Errorf("failed to delete message %s: %w", id, err)
	}
	return nil
}

// PurgeMessages deletes every message in the inbox.
func (c *Client) PurgeMessages(ctx context.Context) error {
	if _, err := c.doOK(ctx, http.MethodDelete, messagesPath, nil); err != nil {
		return fmt.Errorf("failed to purge messages: %w", err)
	}
	return nil
}

// ReleaseMessage asks Mailpit to deliver a captured message to address
// through its configured SMTP relay.
func (c *Client) ReleaseMessage(ctx context.Context, id, address string) error {
	payload := map[string][]string{"To": {address}}
	path := messagePath + url.PathEscape(id) + "/release"
	if _, err := c.doOK(ctx, http.MethodPost, path, payload); err != nil {
		return fmt.Errorf("failed to release message %s: %w", id, err)
	}
	return nil
}

// ForwardMessage fetches a message and hands it to provider for delivery to
// the given addresses.
func (c *Client) ForwardMessage(ctx context.Context, id string, provider relay.Provider, to ...string) error {
	msg, err := c.GetMessageByID(ctx, id)
	if err != nil {
		return err
	}
	if err := provider.Send(ctx, msg, to); err != nil {
		return fmt.Errorf("failed to forward message %s via %s: %w", id, provider.Name(), err)
	}
	c.logger.Info("forwarded message",
		"id", id,
		"provider", provider.Name(),
		"recipients", len(to),
	)
	return nil
}

// Forward is ForwardMessage using the client's relay provider.
func (c *Client) Forward(ctx context.Context, id string, to ...string) error {
	if c.relay == nil {
		return ErrNoRelay
	}
	return c.ForwardMessage(ctx, id, c.relay, to...)
}
