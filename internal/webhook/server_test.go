// Copyright 2025 The bors-mg Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package webhook

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr/funcr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/event"
)

const testSecret = "test-webhook-secret"

type recordingDispatcher struct {
	mu     sync.Mutex
	events  []event.Event
	ctxErr  error
	lastCtx context.Context
}

func (d *recordingDispatcher) HandleEvent(ctx context.Context, ev event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
	d.ctxErr = ctx.Err()
	d.lastCtx = ctx
}

func (d *recordingDispatcher) received() []event.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]event.Event(nil), d.events...)
}

func setupTest(t *testing.T) (*Server, *recordingDispatcher) {
	t.Helper()

	dispatcher := &recordingDispatcher{}
	server := NewServer("localhost", 8080, dispatcher, testSecret)
	return server, dispatcher
}

func newDelivery(t *testing.T, eventType string, payload []byte, signature string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, DefaultPath, bytes.NewReader(payload))
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(HeaderSignature, signature)
	}
	return req
}

func TestHandleHealth(t *testing.T) {
	server, _ := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("handleHealth returns %d, expected %d", w.Code, http.StatusOK)
	}

	if w.Body.String() != "OK" {
		t.Errorf("handleHealth body is %q, expected %q", w.Body.String(), "OK")
	}
}

func TestHandleWebhook_MethodNotAllowed(t *testing.T) {
	server, dispatcher := setupTest(t)

	req := httptest.NewRequest(http.MethodGet, DefaultPath, nil)
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("handleWebhook returns %d for GET, expected %d", w.Code, http.StatusMethodNotAllowed)
	}
	if len(dispatcher.received()) != 0 {
		t.Error("GET request was dispatched")
	}
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	tests := []struct {
		name      string
		signature string
	}{
		{name: "missing", signature: ""},
		{name: "wrong secret", signature: Sign(issueCommentPayload("created", true), "other-secret")},
		{name: "not hex", signature: "sha256=not-hex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, dispatcher := setupTest(t)

			req := newDelivery(t, EventIssueComment, issueCommentPayload("created", true), tt.signature)
			w := httptest.NewRecorder()

			server.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("handleWebhook returns %d, expected %d", w.Code, http.StatusBadRequest)
			}
			if len(dispatcher.received()) != 0 {
				t.Error("unsigned delivery was dispatched")
			}
		})
	}
}

func TestHandleWebhook_IgnoredEvent(t *testing.T) {
	server, dispatcher := setupTest(t)

	payload := []byte(`{"ref": "refs/heads/master"}`)
	req := newDelivery(t, "push", payload, Sign(payload, testSecret))
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("handleWebhook returns %d for ignored event, expected %d", w.Code, http.StatusOK)
	}
	if len(dispatcher.received()) != 0 {
		t.Error("ignored event was dispatched")
	}
}

func TestHandleWebhook_InvalidJSON(t *testing.T) {
	server, dispatcher := setupTest(t)

	payload := []byte(`{invalid json`)
	req := newDelivery(t, EventIssueComment, payload, Sign(payload, testSecret))
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("handleWebhook returns %d for invalid JSON, expected %d", w.Code, http.StatusBadRequest)
	}
	if len(dispatcher.received()) != 0 {
		t.Error("invalid payload was dispatched")
	}
}

func TestHandleWebhook_DispatchesComment(t *testing.T) {
	server, dispatcher := setupTest(t)

	payload := issueCommentPayload("created", true)
	req := newDelivery(t, EventIssueComment, payload, Sign(payload, testSecret))
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("handleWebhook returns %d, expected %d", w.Code, http.StatusOK)
	}

	events := dispatcher.received()
	if len(events) != 1 {
		t.Fatalf("dispatcher received %d events, expected 1", len(events))
	}
	comment, ok := events[0].(event.Comment)
	if !ok {
		t.Fatalf("dispatched %T, expected event.Comment", events[0])
	}
	if comment.PullRequest.Number() != 5 {
		t.Errorf("dispatched comment for PR #%d, expected #5", comment.PullRequest.Number())
	}
	if dispatcher.ctxErr != nil {
		t.Errorf("dispatch context is already done: %v", dispatcher.ctxErr)
	}
}

func TestHandleWebhook_DispatchOutlivesRequest(t *testing.T) {
	server, dispatcher := setupTest(t)

	payload := workflowRunPayload("requested", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := newDelivery(t, EventWorkflowRun, payload, Sign(payload, testSecret)).WithContext(ctx)
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if len(dispatcher.received()) != 1 {
		t.Fatalf("dispatcher received %d events, expected 1", len(dispatcher.received()))
	}
	if dispatcher.ctxErr != nil {
		t.Errorf("dispatch context inherits request cancellation: %v", dispatcher.ctxErr)
	}
}

func TestHTTPServer_RequestsInheritLogger(t *testing.T) {
	server, dispatcher := setupTest(t)

	var mu sync.Mutex
	var lines []string
	logger := funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, prefix+" "+args)
	}, funcr.Options{})

	ctx, cancel := context.WithCancel(log.IntoContext(context.Background(), logger.WithName("bors")))
	httpServer := server.newHTTPServer(ctx)
	cancel()

	payload := issueCommentPayload("created", true)
	req := newDelivery(t, EventIssueComment, payload, Sign(payload, testSecret)).
		WithContext(httpServer.BaseContext(nil))
	w := httptest.NewRecorder()

	httpServer.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("handleWebhook returns %d, expected %d", w.Code, http.StatusOK)
	}
	if dispatcher.ctxErr != nil {
		t.Errorf("dispatch context inherits server cancellation: %v", dispatcher.ctxErr)
	}

	log.FromContext(dispatcher.lastCtx).Info("Delivered")

	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 1 {
		t.Fatalf("captured %d log lines, expected 1", len(lines))
	}
	if !strings.HasPrefix(lines[0], "bors ") || !strings.Contains(lines[0], `"event"="issue_comment"`) {
		t.Errorf("log line %q does not come from the server logger", lines[0])
	}
}

func TestNewServer_Options(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	server := NewServer("", 9000, dispatcher, testSecret, WithPath("/hooks/bors"), WithHandlerTimeout(0))

	payload := []byte(`{"action": "created"}`)
	req := httptest.NewRequest(http.MethodPost, "/hooks/bors", bytes.NewReader(payload))
	req.Header.Set(HeaderEvent, EventInstallation)
	req.Header.Set(HeaderSignature, Sign(payload, testSecret))
	w := httptest.NewRecorder()

	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("custom path returns %d, expected %d", w.Code, http.StatusOK)
	}
	if len(dispatcher.received()) != 1 {
		t.Errorf("dispatcher received %d events on custom path, expected 1", len(dispatcher.received()))
	}
}

func TestShutdown_NotStarted(t *testing.T) {
	server, _ := setupTest(t)

	if err := server.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown returns error for a server that never started: %v", err)
	}
}
