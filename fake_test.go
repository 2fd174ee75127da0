package mailpit

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
)

type fakeAttachment struct {
	partID      string
	filename    string
	contentType string
	content     string
}

type fakeMessage struct {
	id          string
	subject     string
	from        string
	to          string
	text        string
	attachments []fakeAttachment
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

// fakeMailpit serves the subset of the Mailpit API the client uses.
type fakeMailpit struct {
	server *httptest.Server

	mu       sync.Mutex
	messages []fakeMessage
	starts   []int
	writes   []recordedRequest

	listCalls   atomic.Int32
	detailCalls atomic.Int32
	partCalls   atomic.Int32

	// listOverride replaces the list response body when non-empty.
	listOverride string
}

func newFakeMailpit(t *testing.T, messages ...fakeMessage) *fakeMailpit {
	t.Helper()

	f := &fakeMailpit{messages: messages}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/messages", f.handleList)
	mux.HandleFunc("DELETE /api/v1/messages", f.handleWrite)
	mux.HandleFunc("GET /api/v1/message/{id}", f.handleDetail)
	mux.HandleFunc("GET /api/v1/message/{id}/headers", f.handleHeaders)
	mux.HandleFunc("GET /api/v1/message/{id}/part/{part}", f.handlePart)
	mux.HandleFunc("POST /api/v1/message/{id}/release", f.handleWrite)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeMailpit) client(opts ...Option) *Client {
	return New(f.server.URL, opts...)
}

func (f *fakeMailpit) find(id string) (fakeMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.messages {
		if m.id == id {
			return m, true
		}
	}
	return fakeMessage{}, false
}

func (f *fakeMailpit) handleList(w http.ResponseWriter, r *http.Request) {
	f.listCalls.Add(1)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	start, _ := strconv.Atoi(r.URL.Query().Get("start"))

	f.mu.Lock()
	f.starts = append(f.starts, start)
	override := f.listOverride
	all := f.messages
	f.mu.Unlock()

	if override != "" {
		fmt.Fprint(w, override)
		return
	}

	summaries := []map[string]any{}
	for i := start; i < len(all) && i < start+limit; i++ {
		summaries = append(summaries, map[string]any{"ID": all[i].id, "Subject": all[i].subject})
	}
	writeJSON(w, map[string]any{
		"total":    len(all),
		"start":    start,
		"messages": summaries,
	})
}

func (f *fakeMailpit) handleDetail(w http.ResponseWriter, r *http.Request) {
	f.detailCalls.Add(1)

	m, ok := f.find(r.PathValue("id"))
	if !ok {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}

	attachments := []map[string]any{}
	for _, a := range m.attachments {
		attachments = append(attachments, map[string]any{
			"PartID":      a.partID,
			"FileName":    a.filename,
			"ContentType": a.contentType,
			"Size":        len(a.content),
		})
	}
	writeJSON(w, map[string]any{
		"ID":          m.id,
		"From":        map[string]any{"Name": "", "Address": m.from},
		"To":          []map[string]any{{"Name": "", "Address": m.to}},
		"Subject":     m.subject,
		"Text":        m.text,
		"HTML":        "",
		"Attachments": attachments,
	})
}

func (f *fakeMailpit) handleHeaders(w http.ResponseWriter, r *http.Request) {
	m, ok := f.find(r.PathValue("id"))
	if !ok {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string][]string{
		"Subject":    {m.subject},
		"From":       {m.from},
		"To":         {m.to},
		"Message-ID": {"<" + m.id + "@mailpit.example>"},
	})
}

func (f *fakeMailpit) handlePart(w http.ResponseWriter, r *http.Request) {
	f.partCalls.Add(1)

	m, ok := f.find(r.PathValue("id"))
	if !ok {
		http.Error(w, "message not found", http.StatusNotFound)
		return
	}
	for _, a := range m.attachments {
		if a.partID == r.PathValue("part") {
			w.Header().Set("Content-Type", a.contentType)
			fmt.Fprint(w, a.content)
			return
		}
	}
	http.Error(w, "part not found", http.StatusNotFound)
}

func (f *fakeMailpit) handleWrite(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.writes = append(f.writes, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
	f.mu.Unlock()

	fmt.Fprint(w, "ok")
}

func (f *fakeMailpit) setListOverride(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listOverride = body
}

func (f *fakeMailpit) recordedStarts() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.starts...)
}

func (f *fakeMailpit) recordedWrites() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.writes...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func numberedMessages(n int) []fakeMessage {
	out := make([]fakeMessage, n)
	for i := range out {
		out[i] = fakeMessage{
			id:      fmt.Sprintf("msg-%03d", i),
			subject: fmt.Sprintf("Message %d", i),
			from:    "me@myself.example",
			to:      "someoneelse@myself.example",
			text:    "Hi there",
		}
	}
	return out
}
