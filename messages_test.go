package mailpit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/mailpit-go/message"
	"github.com/shineum/mailpit-go/relay/stdout"
	"github.com/shineum/mailpit-go/response"
	"github.com/shineum/mailpit-go/specification"
)

func helloWorld() fakeMessage {
	return fakeMessage{
		id:      "hello",
		subject: "Hello world!",
		from:    "me@myself.example",
		to:      "someoneelse@myself.example",
		text:    "Hi there",
		attachments: []fakeAttachment{
			{partID: "2", filename: "lorem-ipsum.txt", contentType: "text/plain", content: "Lorem ipsum dolor sit amet!"},
		},
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "http://localhost:8025", want: "http://localhost:8025"},
		{in: "http://localhost:8025/", want: "http://localhost:8025"},
		{in: "http://localhost:8025//", want: "http://localhost:8025"},
	}
	for _, tt := range tests {
		if got := New(tt.in).BaseURL(); got != tt.want {
			t.Errorf("New(%q).BaseURL(): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNew_TrailingSlashRequestsStillResolve(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, numberedMessages(3)...)
	c := New(f.server.URL + "/")

	n, err := c.GetNumberOfMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestGetMessageByID(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, helloWorld())
	msg, err := f.client().GetMessageByID(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, "hello", msg.ID)
	assert.Equal(t, "Hello world!", msg.Subject)
	assert.Equal(t, "me@myself.example", msg.Sender.Address)
	assert.True(t, msg.Recipients.Contains(message.NewContact("someoneelse@myself.example")))
	assert.Equal(t, "Hi there", msg.Body)
	assert.Equal(t, "<hello@mailpit.example>", msg.Headers.Get("Message-ID", ""))

	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "lorem-ipsum.txt", att.Filename)
	assert.Equal(t, "text/plain", att.MimeType)
	assert.Equal(t, "Lorem ipsum dolor sit amet!", string(att.Content))
}

func TestGetMessageByID_NotFound(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t)
	_, err := f.client().GetMessageByID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSuchMessage)
}

func TestGetMessageByID_EmptyBodies(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"", "null", "  null\n"} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		}))
		_, err := New(srv.URL).GetMessageByID(context.Background(), "x")
		srv.Close()

		if !errors.Is(err, ErrNoSuchMessage) {
			t.Errorf("body %q: got %v, want ErrNoSuchMessage", body, err)
		}
	}
}

func TestGetMessageByID_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).GetMessageByID(context.Background(), "x")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "boom", apiErr.Body)
	assert.False(t, IsNotFound(err))
	assert.NotErrorIs(t, err, ErrNoSuchMessage)
}

func TestGetMessageByID_ServerErrorWithEmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).GetMessageByID(context.Background(), "x")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.NotErrorIs(t, err, ErrNoSuchMessage)
}

func TestGetMessageByID_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ID": "x",`)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).GetMessageByID(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, response.ErrMalformed)
	assert.Contains(t, err.Error(), "message x")
}

func TestGetMessageByID_EscapesID(t *testing.T) {
	t.Parallel()

	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.EscapedPath())
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).GetMessageByID(context.Background(), "a/b c")
	require.ErrorIs(t, err, ErrNoSuchMessage)
	assert.Equal(t, "/api/v1/message/a%2Fb%20c", gotPath.Load())
}

func TestGetMessageByID_AttachmentsKeepOrder(t *testing.T) {
	t.Parallel()

	msg := fakeMessage{id: "many", subject: "Many", from: "a@example.com", to: "b@example.com"}
	for i := 0; i < 8; i++ {
		msg.attachments = append(msg.attachments, fakeAttachment{
			partID:      fmt.Sprintf("%d", i+2),
			filename:    fmt.Sprintf("file-%d.txt", i),
			contentType: "text/plain",
			content:     fmt.Sprintf("content %d", i),
		})
	}
	f := newFakeMailpit(t, msg)

	got, err := f.client(WithConcurrency(4)).GetMessageByID(context.Background(), "many")
	require.NoError(t, err)
	require.Len(t, got.Attachments, 8)
	for i, att := range got.Attachments {
		assert.Equal(t, fmt.Sprintf("file-%d.txt", i), att.Filename)
		assert.Equal(t, fmt.Sprintf("content %d", i), string(att.Content))
	}
	assert.EqualValues(t, 8, f.partCalls.Load())
}

func TestGetLastMessage(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, numberedMessages(3)...)
	msg, err := f.client().GetLastMessage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "msg-000", msg.ID)
}

func TestGetLastMessage_EmptyInbox(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t)
	_, err := f.client().GetLastMessage(context.Background())
	require.ErrorIs(t, err, ErrNoSuchMessage)
	assert.Contains(t, err.Error(), "inbox empty")
}

func TestGetNumberOfMessages(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, numberedMessages(7)...)
	n, err := f.client().GetNumberOfMessages(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.EqualValues(t, 0, f.detailCalls.Load())
}

func TestGetNumberOfMessages_TotalOnly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "total without messages", body: `{"total": 5}`, want: 5},
		{name: "empty object", body: `{}`, want: 0},
		{name: "non-numeric total", body: `{"total": "x"}`, want: 0},
		{name: "numeric string total", body: `{"total": "12"}`, want: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, tt.body)
			}))
			t.Cleanup(srv.Close)

			got, err := New(srv.URL).GetNumberOfMessages(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("GetNumberOfMessages(): got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetNumberOfMessages_Malformed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1, 2]`)
	}))
	t.Cleanup(srv.Close)

	_, err := New(srv.URL).GetNumberOfMessages(context.Background())
	assert.ErrorIs(t, err, response.ErrMalformed)
}

func TestFindLatestMessages_NonPositiveCount(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, numberedMessages(3)...)
	for _, n := range []int{0, -1} {
		msgs, err := f.client().FindLatestMessages(context.Background(), n)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	}
	assert.EqualValues(t, 0, f.listCalls.Load())
}

func TestFindLatestMessages(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, numberedMessages(5)...)
	msgs, err := f.client().FindLatestMessages(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg-000", msgs[0].ID)
	assert.Equal(t, "msg-001", msgs[1].ID)
}

func TestFindMessagesSatisfying(t *testing.T) {
	t.Parallel()

	noAttachment := helloWorld()
	noAttachment.id = "plain"
	noAttachment.attachments = nil

	otherSubject := helloWorld()
	otherSubject.id = "other"
	otherSubject.subject = "Goodbye"

	f := newFakeMailpit(t, noAttachment, helloWorld(), otherSubject)

	spec := specification.And{
		Left:  specification.Subject("Hello world!"),
		Right: specification.Attachment("lorem-ipsum.txt"),
	}
	msgs, err := f.client(WithPageSize(2)).FindMessagesSatisfying(context.Background(), spec)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].ID)
}

func TestListMessages_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing messages", body: `{"total": 3}`},
		{name: "messages not a list", body: `{"total": 3, "messages": "nope"}`},
		{name: "top level list", body: `[{"ID": "a"}]`},
		{name: "invalid json", body: `{"total":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFakeMailpit(t)
			f.setListOverride(tt.body)

			_, err := f.client().FindLatestMessages(context.Background(), 5)
			require.Error(t, err)
			assert.ErrorIs(t, err, response.ErrMalformed)
			assert.Contains(t, err.Error(), "while fetching messages")
		})
	}
}

func TestListMessages_SkipsSummariesWithoutID(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, numberedMessages(1)...)
	f.setListOverride(`{"total": 3, "messages": [{"Subject": "no id"}, {"ID": "msg-000"}, {"ID": ""}]}`)

	msgs, err := f.client().FindLatestMessages(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "msg-000", msgs[0].ID)
}

func TestDeleteMessage(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t)
	require.NoError(t, f.client().DeleteMessage(context.Background(), "abc"))

	writes := f.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodDelete, writes[0].method)
	assert.Equal(t, "/api/v1/messages", writes[0].path)
	assert.JSONEq(t, `{"IDs": ["abc"]}`, writes[0].body)
}

func TestPurgeMessages(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t)
	require.NoError(t, f.client().PurgeMessages(context.Background()))

	writes := f.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodDelete, writes[0].method)
	assert.Empty(t, writes[0].body)
}

func TestReleaseMessage(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t)
	require.NoError(t, f.client().ReleaseMessage(context.Background(), "abc", "someone@example.com"))

	writes := f.recordedWrites()
	require.Len(t, writes, 1)
	assert.Equal(t, http.MethodPost, writes[0].method)
	assert.Equal(t, "/api/v1/message/abc/release", writes[0].path)
	assert.JSONEq(t, `{"To": ["someone@example.com"]}`, writes[0].body)
}

func TestWriteOperations_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)
	c := New(srv.URL)
	ctx := context.Background()

	for name, err := range map[string]error{
		"delete":  c.DeleteMessage(ctx, "a"),
		"purge":   c.PurgeMessages(ctx),
		"release": c.ReleaseMessage(ctx, "a", "b@example.com"),
	} {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: got %v, want APIError with status 400", name, err)
		}
	}
}

func TestForward(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, helloWorld())
	var buf bytes.Buffer
	c := f.client(WithRelay(stdout.NewWithWriter(&buf)))

	require.NoError(t, c.Forward(context.Background(), "hello", "qa@example.com"))

	out := buf.String()
	for _, want := range []string{
		"Mailpit-ID: hello",
		"To: qa@example.com",
		"Subject: Hello world!",
		"lorem-ipsum.txt",
	} {
		assert.Contains(t, out, want)
	}
}

func TestForward_NoRelay(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, helloWorld())
	err := f.client().Forward(context.Background(), "hello", "qa@example.com")
	assert.ErrorIs(t, err, ErrNoRelay)
	assert.EqualValues(t, 0, f.detailCalls.Load())
}

type failingRelay struct{}

func (failingRelay) Send(context.Context, *message.Message, []string) error {
	return errors.New("relay down")
}

func (failingRelay) Name() string { return "failing" }

func TestForwardMessage_RelayError(t *testing.T) {
	t.Parallel()

	f := newFakeMailpit(t, helloWorld())
	err := f.client().ForwardMessage(context.Background(), "hello", failingRelay{}, "qa@example.com")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "via failing"), "got %v", err)
	assert.Contains(t, err.Error(), "relay down")
}
