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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/event"
)

const (
	// DefaultPath is the route GitHub delivers webhooks to
	DefaultPath = "/github"

	// DefaultHandlerTimeout bounds the processing of a single delivery
	DefaultHandlerTimeout = 5 * time.Minute

	// maxPayloadBytes is GitHub's documented webhook payload cap
	maxPayloadBytes = 25 << 20
)

// Dispatcher consumes parsed events. It owns error handling for each event.
type Dispatcher interface {
	HandleEvent(ctx context.Context, ev event.Event)
}

// Server handles GitHub webhook requests
type Server struct {
	addr           string
	port           int
	dispatcher     Dispatcher
	webhookSecret  string
	path           string
	handlerTimeout time.Duration
	server         *http.Server
}

// Option configures a Server
type Option func(*Server)

// WithPath overrides the webhook route
func WithPath(path string) Option {
	return func(s *Server) { s.path = path }
}

// WithHandlerTimeout bounds the time spent dispatching one delivery
func WithHandlerTimeout(d time.Duration) Option {
	return func(s *Server) { s.handlerTimeout = d }
}

// NewServer creates a new webhook server
func NewServer(addr string, port int, dispatcher Dispatcher, webhookSecret string, opts ...Option) *Server {
	s := &Server{
		addr:           addr,
		port:           port,
		dispatcher:     dispatcher,
		webhookSecret:  webhookSecret,
		path:           DefaultPath,
		handlerTimeout: DefaultHandlerTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP routes served by the webhook server
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleWebhook)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start starts the webhook server and blocks until ctx is cancelled.
// Requests inherit the values of ctx, such as its logger.
func (s *Server) Start(ctx context.Context) error {
	s.server = s.newHTTPServer(ctx)
	logger := log.FromContext(ctx)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting webhook server", "addr", s.server.Addr, "path", s.path)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(log.IntoContext(context.Background(), logger))
	case err := <-errChan:
		return err
	}
}

// newHTTPServer builds the HTTP server. Request contexts carry the values of
// ctx but not its cancellation, so Shutdown can drain in-flight deliveries.
func (s *Server) newHTTPServer(ctx context.Context) *http.Server {
	base := context.WithoutCancel(ctx)
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.addr, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return base },
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.FromContext(ctx).Info("Shutting down webhook server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleWebhook verifies, parses and dispatches one GitHub delivery
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	eventType := r.Header.Get(HeaderEvent)
	logger := log.FromContext(r.Context()).WithValues(
		"event", eventType,
		"delivery", r.Header.Get(HeaderDelivery),
	)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	defer r.Body.Close()
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		logger.Error(err, "Failed to read request body")
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	if !ValidateSignature(payload, r.Header.Get(HeaderSignature), s.webhookSecret) {
		logger.Info("Invalid webhook signature")
		http.Error(w, "Invalid signature", http.StatusBadRequest)
		return
	}

	// The delivery outlives the request if GitHub gives up waiting.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.handlerTimeout)
	defer cancel()
	ctx = log.IntoContext(ctx, logger)

	ev, err := ParseEvent(ctx, eventType, payload)
	if err != nil {
		logger.Error(err, "Cannot parse webhook event")
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if ev == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	s.dispatcher.HandleEvent(ctx, ev)
	w.WriteHeader(http.StatusOK)
}
