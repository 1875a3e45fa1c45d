// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeranaias/raise-tui/internal/api"
	"github.com/jeranaias/raise-tui/internal/model"
)

// fakeTokens is a static token source for tests.
type fakeTokens struct{ token string }

func (f *fakeTokens) Token() string { return f.token }
func (f *fakeTokens) Invalidate()   { f.token = "" }

func newTestManager(t *testing.T, handler http.Handler) *Manager {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := api.NewClient(server.URL, &fakeTokens{token: "tok"})
	return NewManager(client)
}

func TestList(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/chat/no-document" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]model.Session{
			{ID: "sess-1"},
			{ID: "sess-2"},
		})
	}))

	sessions, err := m.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != "sess-1" {
		t.Errorf("List() = %+v", sessions)
	}
}

func TestCreate(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/chat/new" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]string{
			"session_id":  "sess-new",
			"document_id": req["document_id"],
		})
	}))

	sess, err := m.Create(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sess.ID != "sess-new" || sess.DocumentID != "doc-1" {
		t.Errorf("Create() = %+v", sess)
	}
}

func TestCreateGeneralOmitsDocumentID(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			if _, present := req["document_id"]; present {
				t.Error("general session create should not send document_id")
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-gen"})
	}))

	sess, err := m.Create(context.Background(), "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !sess.IsGeneral() {
		t.Errorf("Create(\"\") = %+v, want general session", sess)
	}
}

func TestCreateEmptySessionID(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))

	if _, err := m.Create(context.Background(), ""); err == nil {
		t.Error("Create() with empty session_id in response should fail")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method: %s", r.Method)
		}
		http.NotFound(w, r)
	}))

	// 404 on delete is success: the session is gone either way.
	if err := m.Delete(context.Background(), "sess-gone"); err != nil {
		t.Errorf("Delete() of missing session error = %v, want nil", err)
	}
}

func TestLoadHistory(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/sess-1/history" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"chat_history": []map[string]any{
				{"role": "user", "content": "What does clause 4 require?"},
				{
					"role":    "bot",
					"content": "Quarterly reporting.",
					"references": []map[string]string{
						{"document_id": "doc-1", "title": "Circular A"},
					},
				},
			},
		})
	}))

	msgs, err := m.LoadHistory(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[1].Role != model.RoleBot {
		t.Errorf("roles = %q, %q", msgs[0].Role, msgs[1].Role)
	}
	if len(msgs[1].References) != 1 || msgs[1].References[0].Title != "Circular A" {
		t.Errorf("references = %+v", msgs[1].References)
	}
}

func TestLoadHistoryNotFound(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := m.LoadHistory(context.Background(), "sess-expired")
	if !errors.Is(err, api.ErrNotFound) {
		t.Errorf("LoadHistory() error = %v, want ErrNotFound", err)
	}
}

func TestSendMessageStreams(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat/sess-1/message" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["query"] != "hello" {
			t.Errorf("query = %q, want hello", req["query"])
		}
		w.Write([]byte(`{"type":"chunk","content":"hi"}` + "\n"))
	}))

	stream, err := m.SendMessage(context.Background(), "sess-1", "hello")
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	defer stream.Close()

	var got []byte
	for {
		chunk, done, err := stream.Read()
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		got = append(got, chunk...)
		if done {
			break
		}
	}
	if string(got) != `{"type":"chunk","content":"hi"}`+"\n" {
		t.Errorf("streamed body = %q", got)
	}
}

func TestListDocuments(t *testing.T) {
	m := newTestManager(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/documents" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]model.Document{
			{ID: "doc-1", FileName: "circular-a.pdf", Title: "Circular A"},
		})
	}))

	docs, err := m.ListDocuments(context.Background())
	if err != nil {
		t.Fatalf("ListDocuments() error = %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Circular A" {
		t.Errorf("ListDocuments() = %+v", docs)
	}
}
