// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/raise-tui/internal/api"
	"github.com/jeranaias/raise-tui/internal/logging"
	"github.com/jeranaias/raise-tui/internal/model"
	"github.com/jeranaias/raise-tui/internal/ndjson"
	"github.com/jeranaias/raise-tui/internal/storage"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// DefaultStallTimeout aborts a streaming response after this much silence.
// The stream has no heartbeat, so silence is the only stall signal.
const DefaultStallTimeout = 60 * time.Second

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the conversation state machine for one document scope. It owns
// the message log and enforces single-flight sends: one response stream at
// a time, strict arrival order within it.
type Engine struct {
	backend Backend
	rec     *storage.Reconciler

	stallTimeout time.Duration
	onUpdate     func(Update)

	mu         sync.Mutex
	documentID string
	sessionID  string
	messages   []*model.Message
	history    []model.HistoryEntry
	state      State

	cancelSend context.CancelFunc
	sendDone   chan struct{} // closed when the in-flight send resolves
	canceled   bool          // user cancel of the in-flight send
	stalled    bool          // stall timer fired for the in-flight send
}

// NewEngine creates an engine over the given backend and cache.
func NewEngine(backend Backend, rec *storage.Reconciler) *Engine {
	return &Engine{
		backend:      backend,
		rec:          rec,
		stallTimeout: DefaultStallTimeout,
	}
}

// WithStallTimeout overrides the stall timeout.
func (e *Engine) WithStallTimeout(d time.Duration) *Engine {
	if d > 0 {
		e.stallTimeout = d
	}
	return e
}

// OnUpdate registers the notification callback. Must be set before Open.
func (e *Engine) OnUpdate(fn func(Update)) *Engine {
	e.onUpdate = fn
	return e
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current send state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionID returns the active session id.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// DocumentID returns the document scope ("" for general chat).
func (e *Engine) DocumentID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.documentID
}

// Messages returns a snapshot of the message log. Streaming content is
// flattened, so the snapshot is safe to read while a send is in flight.
func (e *Engine) Messages() []*model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// History returns a copy of the recent-session list for this scope.
func (e *Engine) History() []model.HistoryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.HistoryEntry(nil), e.history...)
}

func (e *Engine) snapshotLocked() []*model.Message {
	snaps := make([]*model.Message, len(e.messages))
	for i, m := range e.messages {
		snaps[i] = m.Snapshot()
	}
	return snaps
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Open prepares the engine for a document scope. A cached session is
// restored without touching the network; otherwise the cached session id
// is rehydrated from server history, and failing that a fresh session is
// created. A cached id the server no longer knows is replaced silently.
func (e *Engine) Open(ctx context.Context, documentID string) error {
	entry, err := e.rec.LoadScope(documentID)
	if err != nil {
		logging.Logger.Warn().Err(err).Msg("cache unavailable, starting clean")
		entry = &storage.Entry{}
	}

	if entry.SessionID != "" {
		if msgs, ok, _ := e.rec.LoadMessages(entry.SessionID); ok {
			e.install(documentID, entry.SessionID, msgs, entry.History)
			e.notify(Update{Kind: UpdateSession})
			return nil
		}

		msgs, err := e.backend.LoadHistory(ctx, entry.SessionID)
		if err == nil {
			e.install(documentID, entry.SessionID, msgs, entry.History)
			e.persist()
			e.notify(Update{Kind: UpdateSession})
			return nil
		}
		if !errors.Is(err, api.ErrNotFound) {
			return err
		}
		logging.Logger.Info().
			Str("session_id", entry.SessionID).
			Msg("cached session expired on server, creating a new one")
	}

	sess, err := e.backend.Create(ctx, documentID)
	if err != nil {
		return err
	}

	e.install(documentID, sess.ID, nil, entry.History)
	e.persist()
	e.notify(Update{Kind: UpdateSession})
	return nil
}

// install replaces the engine's scope state.
func (e *Engine) install(documentID, sessionID string, msgs []*model.Message, history []model.HistoryEntry) {
	e.mu.Lock()
	e.documentID = documentID
	e.sessionID = sessionID
	e.messages = msgs
	e.history = history
	e.state = StateIdle
	e.mu.Unlock()
}

// NewSession archives the current conversation into the recent-session
// list and starts a fresh one in the same scope. An in-flight send is
// canceled first; content already received stays in the archived log.
func (e *Engine) NewSession(ctx context.Context) error {
	e.abortInFlight()

	e.mu.Lock()
	documentID := e.documentID
	e.archiveLocked()
	history := append([]model.HistoryEntry(nil), e.history...)
	e.mu.Unlock()

	sess, err := e.backend.Create(ctx, documentID)
	if err != nil {
		return err
	}

	e.install(documentID, sess.ID, nil, history)
	e.persist()
	e.notify(Update{Kind: UpdateSession})
	return nil
}

// SwitchSession resumes a prior session in the same scope. The cached
// message log is used when present; otherwise the transcript is fetched
// from the server. A session the server has expired is replaced by a
// fresh one rather than surfacing an error. An in-flight send is canceled
// first; content already received stays in the archived log.
func (e *Engine) SwitchSession(ctx context.Context, sessionID string) error {
	e.abortInFlight()

	e.mu.Lock()
	if sessionID == e.sessionID {
		e.mu.Unlock()
		return nil
	}
	documentID := e.documentID
	e.archiveLocked()
	entry := &storage.Entry{History: append([]model.HistoryEntry(nil), e.history...)}
	e.mu.Unlock()

	msgs, ok, _ := e.rec.LoadMessages(sessionID)
	if !ok {
		var err error
		msgs, err = e.backend.LoadHistory(ctx, sessionID)
		if errors.Is(err, api.ErrNotFound) {
			e.rec.RemoveFromHistory(entry, sessionID)
			e.mu.Lock()
			e.history = entry.History
			e.mu.Unlock()
			return e.NewSession(ctx)
		}
		if err != nil {
			return err
		}
	}

	e.rec.RemoveFromHistory(entry, sessionID)
	e.install(documentID, sessionID, msgs, entry.History)
	e.persist()
	e.notify(Update{Kind: UpdateSession})
	return nil
}

// Refresh replaces the local message log with the server transcript. The
// server copy wins; local divergence is discarded. An expired session is
// replaced by a fresh one.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	if e.state == StateSending {
		e.mu.Unlock()
		return ErrBusy
	}
	sessionID := e.sessionID
	e.mu.Unlock()

	if sessionID == "" {
		return ErrNoSession
	}

	msgs, err := e.backend.LoadHistory(ctx, sessionID)
	if errors.Is(err, api.ErrNotFound) {
		return e.NewSession(ctx)
	}
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.messages = msgs
	e.mu.Unlock()
	e.persist()
	e.notify(Update{Kind: UpdateSession})
	return nil
}

// DeleteSession removes a session on the server and locally. Deleting the
// active session starts a fresh one.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	if e.state == StateSending {
		e.mu.Unlock()
		return ErrBusy
	}
	active := sessionID == e.sessionID
	e.mu.Unlock()

	if err := e.backend.Delete(ctx, sessionID); err != nil {
		return err
	}
	if err := e.rec.DeleteMessages(sessionID); err != nil {
		logging.Logger.Warn().Err(err).Msg("failed to drop cached messages")
	}

	e.mu.Lock()
	entry := &storage.Entry{History: e.history}
	e.rec.RemoveFromHistory(entry, sessionID)
	e.history = entry.History
	e.mu.Unlock()

	if active {
		e.mu.Lock()
		e.messages = nil
		e.sessionID = ""
		documentID := e.documentID
		history := append([]model.HistoryEntry(nil), e.history...)
		e.mu.Unlock()

		sess, err := e.backend.Create(ctx, documentID)
		if err != nil {
			return err
		}
		e.install(documentID, sess.ID, nil, history)
		e.notify(Update{Kind: UpdateSession})
	}

	e.persist()
	return nil
}

// archiveLocked records the current session in the history list. Caller
// holds e.mu.
func (e *Engine) archiveLocked() {
	if e.sessionID == "" || len(e.messages) == 0 {
		return
	}
	entry := &storage.Entry{History: e.history}
	e.rec.Archive(entry, e.sessionID, e.messages)
	e.history = entry.History
}

// =============================================================================
// SENDING
// =============================================================================

// Submit sends a query on the active session. It returns immediately; the
// response is consumed on a background goroutine and surfaced through
// OnUpdate. Exactly one send may be in flight: a second Submit while
// sending returns ErrBusy and leaves the stream untouched.
func (e *Engine) Submit(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}

	e.mu.Lock()
	if e.state == StateSending {
		e.mu.Unlock()
		return ErrBusy
	}
	if e.sessionID == "" {
		e.mu.Unlock()
		return ErrNoSession
	}

	sendCtx, cancel := context.WithCancel(ctx)
	e.state = StateSending
	e.cancelSend = cancel
	e.sendDone = make(chan struct{})
	e.canceled = false
	e.stalled = false

	bot := model.NewBotMessage()
	e.messages = append(e.messages, model.NewUserMessage(query), bot)
	sessionID := e.sessionID
	e.mu.Unlock()

	e.persist()
	go e.consume(sendCtx, cancel, sessionID, query, bot)
	return nil
}

// Cancel aborts the in-flight send. Partial content already received is
// kept; no error message is appended for a user-initiated cancel.
func (e *Engine) Cancel() {
	e.mu.Lock()
	if e.state != StateSending || e.cancelSend == nil {
		e.mu.Unlock()
		return
	}
	e.canceled = true
	cancel := e.cancelSend
	e.mu.Unlock()
	cancel()
}

// abortInFlight cancels an in-flight send and waits for it to resolve,
// so the canceled partial is settled into the log before the caller
// replaces the session. No-op when idle.
func (e *Engine) abortInFlight() {
	e.mu.Lock()
	if e.state != StateSending || e.cancelSend == nil {
		e.mu.Unlock()
		return
	}
	e.canceled = true
	cancel := e.cancelSend
	done := e.sendDone
	e.mu.Unlock()

	cancel()
	if done != nil {
		<-done
	}
}

// consume drains one response stream into the bot message.
func (e *Engine) consume(ctx context.Context, cancel context.CancelFunc, sessionID, query string, bot *model.Message) {
	defer cancel()

	// The stall timer cancels the request context; the read then fails
	// with a context error and the failure path below classifies it.
	stall := time.AfterFunc(e.stallTimeout, func() {
		e.mu.Lock()
		e.stalled = true
		e.mu.Unlock()
		cancel()
	})
	defer stall.Stop()

	stream, err := e.backend.SendMessage(ctx, sessionID, query)
	if err != nil {
		e.finishFailure(bot, err)
		return
	}
	defer stream.Close()

	dec := ndjson.NewDecoder(stream)
	for {
		ev, err := dec.Next()
		if err == io.EOF {
			e.finishSuccess(bot)
			return
		}
		if err != nil {
			e.finishFailure(bot, err)
			return
		}
		stall.Reset(e.stallTimeout)

		e.mu.Lock()
		switch ev.Type {
		case ndjson.EventChunk:
			bot.AppendChunk(ev.Content)
		case ndjson.EventReferences:
			// Wholesale replacement: a later references event wins.
			bot.SetReferences(ev.References)
		}
		e.mu.Unlock()
		// Re-persist on each fold so a crash mid-stream loses at most
		// the unflushed tail of the response.
		e.persist()
		e.notify(Update{Kind: UpdateStream})
	}
}

// finishSuccess finalizes a completed response.
func (e *Engine) finishSuccess(bot *model.Message) {
	e.mu.Lock()
	bot.Finalize()
	e.state = StateIdle
	e.cancelSend = nil
	done := e.sendDone
	e.sendDone = nil
	e.mu.Unlock()

	e.persist()
	e.notify(Update{Kind: UpdateDone})
	if done != nil {
		close(done)
	}
}

// finishFailure resolves a failed, stalled, or canceled send. Partial
// content stays in the log; an empty placeholder is dropped. Failures
// (not user cancels) append a synthetic error message so the outcome is
// visible in the transcript.
func (e *Engine) finishFailure(bot *model.Message, err error) {
	e.mu.Lock()
	bot.Finalize()
	canceled := e.canceled
	stalled := e.stalled

	if bot.IsEmpty() && len(bot.References) == 0 {
		e.removeMessageLocked(bot)
	}

	var update Update
	switch {
	case canceled:
		update = Update{Kind: UpdateCanceled}
	case stalled:
		stallErr := fmt.Errorf("response stalled: no data received for %s", e.stallTimeout)
		e.messages = append(e.messages, model.NewErrorMessage(failureText(stallErr)))
		update = Update{Kind: UpdateFailed, Err: stallErr}
	default:
		e.messages = append(e.messages, model.NewErrorMessage(failureText(err)))
		update = Update{Kind: UpdateFailed, Err: err}
	}

	e.state = StateIdle
	e.cancelSend = nil
	done := e.sendDone
	e.sendDone = nil
	e.mu.Unlock()

	if !canceled {
		logging.Logger.Warn().Err(err).Bool("stalled", stalled).Msg("send failed")
	}
	e.persist()
	e.notify(update)
	if done != nil {
		close(done)
	}
}

// removeMessageLocked drops a message from the log. Caller holds e.mu.
func (e *Engine) removeMessageLocked(target *model.Message) {
	for i, m := range e.messages {
		if m == target {
			e.messages = append(e.messages[:i], e.messages[i+1:]...)
			return
		}
	}
}

// failureText maps a send error to the synthetic transcript message.
func failureText(err error) string {
	switch {
	case errors.Is(err, api.ErrAuthFailed):
		return "Your login is no longer valid. Run 'raise login' and try again."
	case errors.Is(err, api.ErrNotFound):
		return "This conversation has expired on the server. Start a new session to continue."
	case errors.Is(err, api.ErrRateLimited):
		return "The server is receiving too many requests. Wait a moment and try again."
	default:
		return fmt.Sprintf("The response could not be completed: %v", err)
	}
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// persist writes the current scope state to the cache. Cache failures are
// logged, never fatal: the conversation continues without persistence.
func (e *Engine) persist() {
	e.mu.Lock()
	documentID := e.documentID
	sessionID := e.sessionID
	snaps := e.snapshotLocked()
	history := append([]model.HistoryEntry(nil), e.history...)
	e.mu.Unlock()

	if sessionID == "" {
		return
	}
	if err := e.rec.Persist(documentID, sessionID, snaps, history); err != nil {
		logging.Logger.Warn().Err(err).Msg("cache write failed")
	}
}

// notify delivers an update outside the engine lock.
func (e *Engine) notify(u Update) {
	if e.onUpdate != nil {
		e.onUpdate(u)
	}
}
