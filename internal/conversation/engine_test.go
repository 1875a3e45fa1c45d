// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/raise-tui/internal/api"
	"github.com/jeranaias/raise-tui/internal/model"
	"github.com/jeranaias/raise-tui/internal/storage"
)

// =============================================================================
// FAKES
// =============================================================================

// scriptStream replays a fixed sequence of byte chunks.
type scriptStream struct {
	chunks [][]byte
	i      int
	err    error           // returned after the chunks instead of done
	block  <-chan struct{} // if set, Read blocks here after the chunks
	closed bool
}

func (s *scriptStream) Read() ([]byte, bool, error) {
	if s.i < len(s.chunks) {
		c := s.chunks[s.i]
		s.i++
		if s.i == len(s.chunks) && s.err == nil && s.block == nil {
			return c, true, nil
		}
		return c, false, nil
	}
	if s.block != nil {
		<-s.block
		return nil, false, context.Canceled
	}
	if s.err != nil {
		return nil, false, s.err
	}
	return nil, true, nil
}

func (s *scriptStream) Close() error {
	s.closed = true
	return nil
}

// fakeBackend scripts the server side of the engine.
type fakeBackend struct {
	mu        sync.Mutex
	nextID    int
	created   []string
	deleted   []string
	history   map[string][]*model.Message
	loadErr   error
	loadCalls int
	sendFn    func(ctx context.Context, sessionID, query string) (MessageStream, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{history: make(map[string][]*model.Message)}
}

func (b *fakeBackend) Create(ctx context.Context, documentID string) (*model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := fmt.Sprintf("sess-%d", b.nextID)
	b.created = append(b.created, id)
	return &model.Session{ID: id, DocumentID: documentID}, nil
}

func (b *fakeBackend) Delete(ctx context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleted = append(b.deleted, sessionID)
	return nil
}

func (b *fakeBackend) LoadHistory(ctx context.Context, sessionID string) ([]*model.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadCalls++
	if b.loadErr != nil {
		return nil, b.loadErr
	}
	msgs, ok := b.history[sessionID]
	if !ok {
		return nil, api.ErrNotFound
	}
	return msgs, nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, sessionID, query string) (MessageStream, error) {
	return b.sendFn(ctx, sessionID, query)
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestEngine(t *testing.T, backend Backend) (*Engine, chan Update) {
	t.Helper()
	updates := make(chan Update, 64)
	eng := NewEngine(backend, storage.NewReconciler(storage.NewMemoryStore())).
		OnUpdate(func(u Update) { updates <- u })
	return eng, updates
}

// waitFor drains updates until one of the wanted kind arrives.
func waitFor(t *testing.T, updates chan Update, kind UpdateKind) Update {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case u := <-updates:
			if u.Kind == kind {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for update kind %d", kind)
		}
	}
}

func chunkLine(content string) string {
	return fmt.Sprintf(`{"type":"chunk","content":%q}`+"\n", content)
}

func streamOf(parts ...string) *scriptStream {
	chunks := make([][]byte, len(parts))
	for i, p := range parts {
		chunks[i] = []byte(p)
	}
	return &scriptStream{chunks: chunks}
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestSubmitStreamsResponse(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		if query != "What does clause 4 require?" {
			t.Errorf("query = %q", query)
		}
		// Lines deliberately split mid-JSON across transport chunks.
		return streamOf(
			`{"type":"chunk","content":"This circular `,
			`covers "}`+"\n"+chunkLine("quarterly reporting."),
			`{"type":"references","data":[{"document_id":"doc-1","file_name":"circular-a.pdf","title":"Circular A"}]}`+"\n",
		), nil
	}

	eng, updates := newTestEngine(t, backend)
	if err := eng.Open(context.Background(), ""); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if err := eng.Submit(context.Background(), "What does clause 4 require?"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if eng.State() != StateSending {
		t.Errorf("state after Submit = %v, want sending", eng.State())
	}

	waitFor(t, updates, UpdateDone)

	if eng.State() != StateIdle {
		t.Errorf("state after done = %v, want idle", eng.State())
	}

	msgs := eng.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want user + bot", len(msgs))
	}
	if msgs[0].Role != model.RoleUser {
		t.Errorf("first message role = %q", msgs[0].Role)
	}
	bot := msgs[1]
	want := "This circular covers quarterly reporting."
	if bot.Content != want {
		t.Errorf("bot content = %q, want %q", bot.Content, want)
	}
	if len(bot.References) != 1 || bot.References[0].Title != "Circular A" {
		t.Errorf("references = %+v", bot.References)
	}
}

func TestReferencesLastWriteWins(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(
			`{"type":"references","data":[{"document_id":"doc-1","title":"Early"}]}` + "\n" +
				chunkLine("answer") +
				`{"type":"references","data":[{"document_id":"doc-2","title":"Final"}]}` + "\n",
		), nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateDone)

	msgs := eng.Messages()
	bot := msgs[len(msgs)-1]
	if len(bot.References) != 1 || bot.References[0].Title != "Final" {
		t.Errorf("references = %+v, want only the last event's list", bot.References)
	}
}

// =============================================================================
// SINGLE FLIGHT
// =============================================================================

func TestSubmitWhileSendingIsRejected(t *testing.T) {
	release := make(chan struct{})
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return &scriptStream{
			chunks: [][]byte{[]byte(chunkLine("partial"))},
			block:  release,
		}, nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	if err := eng.Submit(context.Background(), "first"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, updates, UpdateStream)

	if err := eng.Submit(context.Background(), "second"); !errors.Is(err, ErrBusy) {
		t.Errorf("second Submit() error = %v, want ErrBusy", err)
	}

	// The in-flight stream was untouched: only the first query's messages
	// are in the log.
	msgs := eng.Messages()
	if len(msgs) != 2 || msgs[0].Content != "first" {
		t.Errorf("messages = %d entries, first = %q", len(msgs), msgs[0].Content)
	}

	close(release)
	waitFor(t, updates, UpdateFailed)
}

func TestNewSessionAbortsInFlightSend(t *testing.T) {
	rec := storage.NewReconciler(storage.NewMemoryStore())
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return &scriptStream{
			chunks: [][]byte{[]byte(chunkLine("partial"))},
			block:  ctx.Done(),
		}, nil
	}

	updates := make(chan Update, 64)
	eng := NewEngine(backend, rec).OnUpdate(func(u Update) { updates <- u })
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateStream)
	oldID := eng.SessionID()

	if err := eng.NewSession(context.Background()); err != nil {
		t.Fatalf("NewSession() while sending error = %v", err)
	}
	waitFor(t, updates, UpdateCanceled)

	if eng.State() != StateIdle {
		t.Errorf("state after NewSession = %v, want idle", eng.State())
	}
	if eng.SessionID() == oldID || eng.SessionID() == "" {
		t.Errorf("session = %q, want a fresh one", eng.SessionID())
	}
	if len(eng.Messages()) != 0 {
		t.Error("new session should start empty")
	}

	// The aborted conversation was archived with its partial content.
	hist := eng.History()
	if len(hist) != 1 || hist[0].SessionID != oldID {
		t.Fatalf("history = %+v, want the aborted session", hist)
	}
	msgs, ok, err := rec.LoadMessages(oldID)
	if err != nil || !ok {
		t.Fatalf("LoadMessages(%q) ok=%v err=%v", oldID, ok, err)
	}
	last := msgs[len(msgs)-1]
	if last.Content != "partial" || last.IsError {
		t.Errorf("archived partial = %+v, want content kept without an error", last)
	}
}

func TestSwitchSessionAbortsInFlightSend(t *testing.T) {
	rec := storage.NewReconciler(storage.NewMemoryStore())
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(chunkLine("done answer")), nil
	}

	updates := make(chan Update, 64)
	eng := NewEngine(backend, rec).OnUpdate(func(u Update) { updates <- u })
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q1")
	waitFor(t, updates, UpdateDone)
	firstID := eng.SessionID()

	eng.NewSession(context.Background())
	secondID := eng.SessionID()

	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return &scriptStream{
			chunks: [][]byte{[]byte(chunkLine("interrupted"))},
			block:  ctx.Done(),
		}, nil
	}
	eng.Submit(context.Background(), "q2")
	waitFor(t, updates, UpdateStream)

	if err := eng.SwitchSession(context.Background(), firstID); err != nil {
		t.Fatalf("SwitchSession() while sending error = %v", err)
	}
	waitFor(t, updates, UpdateCanceled)

	if eng.SessionID() != firstID {
		t.Errorf("session = %q, want %q", eng.SessionID(), firstID)
	}
	if eng.State() != StateIdle {
		t.Errorf("state after switch = %v, want idle", eng.State())
	}

	msgs, ok, _ := rec.LoadMessages(secondID)
	if !ok {
		t.Fatalf("no cached log for the session we left")
	}
	if last := msgs[len(msgs)-1]; last.Content != "interrupted" {
		t.Errorf("partial in left session = %q, want kept", last.Content)
	}
}

func TestSubmitValidation(t *testing.T) {
	eng, _ := newTestEngine(t, newFakeBackend())

	if err := eng.Submit(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank Submit() error = %v, want ErrEmptyQuery", err)
	}
	if err := eng.Submit(context.Background(), "hi"); !errors.Is(err, ErrNoSession) {
		t.Errorf("Submit() before Open error = %v, want ErrNoSession", err)
	}
}

// =============================================================================
// FAILURE PATHS
// =============================================================================

func TestMidStreamFailureKeepsPartialContent(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return &scriptStream{
			chunks: [][]byte{[]byte(chunkLine("partial answer "))},
			err:    errors.New("connection reset"),
		}, nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	u := waitFor(t, updates, UpdateFailed)
	if u.Err == nil {
		t.Error("UpdateFailed.Err is nil")
	}

	msgs := eng.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want user + partial bot + error", len(msgs))
	}
	if msgs[1].Content != "partial answer " {
		t.Errorf("partial content = %q", msgs[1].Content)
	}
	if !msgs[2].IsError {
		t.Error("last message should be a synthetic error message")
	}
	if eng.State() != StateIdle {
		t.Errorf("state after failure = %v, want idle", eng.State())
	}

	// The engine accepts a new submission after the failure.
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(chunkLine("recovered")), nil
	}
	if err := eng.Submit(context.Background(), "again"); err != nil {
		t.Fatalf("Submit() after failure error = %v", err)
	}
	waitFor(t, updates, UpdateDone)
}

func TestFailureBeforeAnyBytes(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return nil, &api.APIError{Status: 500, Message: "boom"}
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateFailed)

	// The empty bot placeholder is dropped; the log reads user then error.
	msgs := eng.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want user + error", len(msgs))
	}
	if !msgs[1].IsError {
		t.Error("second message should be the error message")
	}
	if !strings.Contains(msgs[1].Content, "boom") {
		t.Errorf("error message = %q, want the failure detail", msgs[1].Content)
	}
}

func TestAuthFailureMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return nil, api.ErrAuthFailed
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	u := waitFor(t, updates, UpdateFailed)
	if !errors.Is(u.Err, api.ErrAuthFailed) {
		t.Errorf("UpdateFailed.Err = %v, want ErrAuthFailed", u.Err)
	}

	msgs := eng.Messages()
	last := msgs[len(msgs)-1]
	if !strings.Contains(last.Content, "raise login") {
		t.Errorf("auth failure message = %q, want a reauthentication hint", last.Content)
	}
}

func TestStallTimeoutAbortsSend(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return &scriptStream{
			chunks: [][]byte{[]byte(chunkLine("started "))},
			block:  ctx.Done(),
		}, nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.WithStallTimeout(50 * time.Millisecond)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")

	u := waitFor(t, updates, UpdateFailed)
	if u.Err == nil || !strings.Contains(u.Err.Error(), "stalled") {
		t.Errorf("UpdateFailed.Err = %v, want a stall error", u.Err)
	}

	msgs := eng.Messages()
	if msgs[1].Content != "started " {
		t.Errorf("partial content = %q, want kept", msgs[1].Content)
	}
	if !msgs[len(msgs)-1].IsError {
		t.Error("stall should append a synthetic error message")
	}
}

func TestCancelKeepsPartialWithoutError(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return &scriptStream{
			chunks: [][]byte{[]byte(chunkLine("partial"))},
			block:  ctx.Done(),
		}, nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateStream)

	eng.Cancel()
	waitFor(t, updates, UpdateCanceled)

	msgs := eng.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want user + partial bot only", len(msgs))
	}
	if msgs[1].Content != "partial" {
		t.Errorf("partial content = %q", msgs[1].Content)
	}
	if msgs[1].IsError {
		t.Error("cancel must not mark the partial message as an error")
	}
	if eng.State() != StateIdle {
		t.Errorf("state after cancel = %v, want idle", eng.State())
	}
}

// =============================================================================
// SESSIONS AND CACHE
// =============================================================================

func TestFoldsPersistPartialContentMidStream(t *testing.T) {
	rec := storage.NewReconciler(storage.NewMemoryStore())
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return &scriptStream{
			chunks: [][]byte{[]byte(chunkLine("persist me"))},
			block:  ctx.Done(),
		}, nil
	}

	updates := make(chan Update, 64)
	eng := NewEngine(backend, rec).OnUpdate(func(u Update) { updates <- u })
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateStream)

	// The send is still in flight, but the fold already reached the cache:
	// a crash here loses at most the unflushed tail.
	msgs, ok, err := rec.LoadMessages(eng.SessionID())
	if err != nil || !ok {
		t.Fatalf("LoadMessages() ok=%v err=%v", ok, err)
	}
	if last := msgs[len(msgs)-1]; last.Content != "persist me" {
		t.Errorf("cached partial = %q, want %q", last.Content, "persist me")
	}

	eng.Cancel()
	waitFor(t, updates, UpdateCanceled)
}

func TestOpenRestoresFromCacheWithoutNetwork(t *testing.T) {
	store := storage.NewMemoryStore()
	rec := storage.NewReconciler(store)

	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(chunkLine("cached answer")), nil
	}

	updates := make(chan Update, 64)
	eng := NewEngine(backend, rec).OnUpdate(func(u Update) { updates <- u })
	eng.Open(context.Background(), "doc-1")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateDone)
	sessionID := eng.SessionID()

	// A second engine over the same cache restores the conversation
	// without calling the server.
	eng2 := NewEngine(backend, rec)
	if err := eng2.Open(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if eng2.SessionID() != sessionID {
		t.Errorf("restored session = %q, want %q", eng2.SessionID(), sessionID)
	}
	msgs := eng2.Messages()
	if len(msgs) != 2 || msgs[1].Content != "cached answer" {
		t.Errorf("restored messages = %+v", msgs)
	}
	if backend.loadCalls != 0 {
		t.Errorf("LoadHistory called %d times, want 0", backend.loadCalls)
	}
	if len(backend.created) != 1 {
		t.Errorf("%d sessions created, want 1", len(backend.created))
	}
}

func TestOpenFallsBackToServerHistory(t *testing.T) {
	rec := storage.NewReconciler(storage.NewMemoryStore())
	// A scope entry without a cached message log, as after a cache prune.
	rec.SaveScope("doc-1", &storage.Entry{SessionID: "sess-remote"})

	backend := newFakeBackend()
	backend.history["sess-remote"] = []*model.Message{
		model.NewUserMessage("earlier question"),
	}

	eng := NewEngine(backend, rec)
	if err := eng.Open(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if eng.SessionID() != "sess-remote" {
		t.Errorf("session = %q, want sess-remote", eng.SessionID())
	}
	if msgs := eng.Messages(); len(msgs) != 1 || msgs[0].Content != "earlier question" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestOpenExpiredSessionCreatesFresh(t *testing.T) {
	rec := storage.NewReconciler(storage.NewMemoryStore())
	rec.SaveScope("doc-1", &storage.Entry{SessionID: "sess-expired"})

	backend := newFakeBackend() // knows no history: 404 for sess-expired

	eng := NewEngine(backend, rec)
	if err := eng.Open(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if eng.SessionID() == "sess-expired" || eng.SessionID() == "" {
		t.Errorf("session = %q, want a freshly created one", eng.SessionID())
	}
	if len(eng.Messages()) != 0 {
		t.Error("fresh session should have no messages")
	}
}

func TestNewSessionArchivesCurrent(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(chunkLine("answer")), nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "first question")
	waitFor(t, updates, UpdateDone)
	oldID := eng.SessionID()

	if err := eng.NewSession(context.Background()); err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}

	if eng.SessionID() == oldID {
		t.Error("NewSession() kept the old session id")
	}
	if len(eng.Messages()) != 0 {
		t.Error("new session should start empty")
	}
	hist := eng.History()
	if len(hist) != 1 || hist[0].SessionID != oldID {
		t.Errorf("history = %+v, want the archived session", hist)
	}
	if hist[0].Preview == "" {
		t.Error("archived entry has no preview")
	}
}

func TestSwitchSessionRestoresFromCache(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(chunkLine("answer for " + sessionID)), nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q1")
	waitFor(t, updates, UpdateDone)
	firstID := eng.SessionID()

	eng.NewSession(context.Background())
	eng.Submit(context.Background(), "q2")
	waitFor(t, updates, UpdateDone)
	secondID := eng.SessionID()

	if err := eng.SwitchSession(context.Background(), firstID); err != nil {
		t.Fatalf("SwitchSession() error = %v", err)
	}
	if eng.SessionID() != firstID {
		t.Errorf("session = %q, want %q", eng.SessionID(), firstID)
	}
	msgs := eng.Messages()
	if len(msgs) != 2 || msgs[0].Content != "q1" {
		t.Errorf("restored messages = %+v", msgs)
	}
	if backend.loadCalls != 0 {
		t.Errorf("LoadHistory called %d times, want cache restore", backend.loadCalls)
	}

	// The session we left is now in history; the resumed one is not.
	hist := eng.History()
	found := false
	for _, he := range hist {
		if he.SessionID == firstID {
			t.Error("active session still listed in history")
		}
		if he.SessionID == secondID {
			found = true
		}
	}
	if !found {
		t.Errorf("history %+v missing the session we left", hist)
	}
}

func TestSwitchToExpiredSessionCreatesFresh(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(chunkLine("answer")), nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateDone)

	// Not in cache, not on the server.
	if err := eng.SwitchSession(context.Background(), "sess-vanished"); err != nil {
		t.Fatalf("SwitchSession() error = %v", err)
	}
	if eng.SessionID() == "sess-vanished" || eng.SessionID() == "" {
		t.Errorf("session = %q, want a fresh one", eng.SessionID())
	}
	if eng.History()[0].Preview == "" {
		t.Error("prior conversation should have been archived")
	}
}

func TestDeleteActiveSessionStartsFresh(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(chunkLine("answer")), nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateDone)
	oldID := eng.SessionID()

	if err := eng.DeleteSession(context.Background(), oldID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if len(backend.deleted) != 1 || backend.deleted[0] != oldID {
		t.Errorf("deleted = %v", backend.deleted)
	}
	if eng.SessionID() == oldID {
		t.Error("active session not replaced after delete")
	}
	if len(eng.Messages()) != 0 {
		t.Error("message log not cleared after delete")
	}
}

func TestRefreshReplacesLocalLog(t *testing.T) {
	backend := newFakeBackend()
	backend.sendFn = func(ctx context.Context, sessionID, query string) (MessageStream, error) {
		return streamOf(chunkLine("local answer")), nil
	}

	eng, updates := newTestEngine(t, backend)
	eng.Open(context.Background(), "")
	eng.Submit(context.Background(), "q")
	waitFor(t, updates, UpdateDone)

	backend.mu.Lock()
	backend.history[eng.SessionID()] = []*model.Message{
		model.NewUserMessage("server copy"),
	}
	backend.mu.Unlock()

	if err := eng.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	msgs := eng.Messages()
	if len(msgs) != 1 || msgs[0].Content != "server copy" {
		t.Errorf("messages after refresh = %+v, want the server transcript", msgs)
	}
}
