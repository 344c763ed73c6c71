/*
Copyright (c) 2025 The bors-mg Authors

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

// Package bors is the decision core of the merge bot.
//
// A Handler receives parsed webhook events, runs the commands found in pull
// request comments (ping, try, try cancel) and keeps try build records in a
// store.Store up to date as workflows start and finish. Every event is
// handled in isolation: errors are logged at the dispatch boundary and never
// affect the next event.
package bors

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/command"
	"github.com/sagudev/bors-mg/internal/event"
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/repoconfig"
	"github.com/sagudev/bors-mg/internal/store"
)

// DefaultPrefix is the command prefix used when none is configured
const DefaultPrefix = "@bors-servo"

// ClientFactory returns the API client used for one event
type ClientFactory func(ctx context.Context) github.Client

// RefreshHook runs on every Refresh event
type RefreshHook interface {
	Refresh(ctx context.Context, client github.Client) error
}

// Handler dispatches bot events
type Handler struct {
	prefix       string
	parser       *command.Parser
	resolver     *repoconfig.Resolver
	newClient    ClientFactory
	store        store.Store
	refreshHooks []RefreshHook
}

// Option configures a Handler
type Option func(*Handler)

// WithPrefix sets the command prefix, such as "@bors"
func WithPrefix(prefix string) Option {
	return func(h *Handler) { h.prefix = prefix }
}

// WithOrgConfigRepo sets the repository holding organization-wide configuration
func WithOrgConfigRepo(name string) Option {
	return func(h *Handler) { h.resolver = repoconfig.NewResolver(name) }
}

// WithRefreshHook registers a hook run on every Refresh event
func WithRefreshHook(hook RefreshHook) Option {
	return func(h *Handler) { h.refreshHooks = append(h.refreshHooks, hook) }
}

// NewHandler creates a Handler. newClient is called once per event.
func NewHandler(newClient ClientFactory, st store.Store, opts ...Option) *Handler {
	h := &Handler{
		prefix:    DefaultPrefix,
		resolver:  repoconfig.NewResolver(repoconfig.DefaultOrgConfigRepo),
		newClient: newClient,
		store:     st,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.parser = command.NewParser(h.prefix)
	return h
}

// HandleEvent handles one event and logs any failure
func (h *Handler) HandleEvent(ctx context.Context, ev event.Event) {
	ctx = log.IntoContext(ctx, log.FromContext(ctx).WithValues(eventKeysAndValues(ev)...))
	if err := h.Handle(ctx, ev); err != nil {
		log.FromContext(ctx).Error(err, "Failed to handle event", "type", fmt.Sprintf("%T", ev))
	}
}

// Handle handles one event and returns the first error encountered
func (h *Handler) Handle(ctx context.Context, ev event.Event) error {
	logger := log.FromContext(ctx)
	client := h.newClient(ctx)

	switch e := ev.(type) {
	case event.Comment:
		return h.handleComment(ctx, client, e)
	case event.WorkflowStarted:
		return h.handleWorkflowStarted(ctx, e)
	case event.WorkflowCompleted:
		return h.handleWorkflowCompleted(ctx, client, e)
	case event.CheckSuiteCompleted:
		return h.handleCheckSuiteCompleted(ctx, client, e)
	case event.InstallationsChanged:
		logger.Info("Installations changed")
		return nil
	case event.Refresh:
		return h.refresh(ctx, client)
	default:
		logger.V(1).Info("Ignoring unsupported event", "type", fmt.Sprintf("%T", ev))
		return nil
	}
}

func (h *Handler) refresh(ctx context.Context, client github.Client) error {
	log.FromContext(ctx).V(1).Info("Refreshing", "hooks", len(h.refreshHooks))

	var errs error
	for _, hook := range h.refreshHooks {
		errs = multierr.Append(errs, hook.Refresh(ctx, client))
	}
	return errs
}

func eventKeysAndValues(ev event.Event) []any {
	switch e := ev.(type) {
	case event.Comment:
		return []any{
			"repository", e.Repository.String(),
			"pr", e.PullRequest.Number(),
			"author", e.Author.Login,
		}
	case event.WorkflowStarted:
		return []any{"repository", e.Repository.String(), "runID", int64(e.RunID), "workflow", e.Name}
	case event.WorkflowCompleted:
		return []any{"repository", e.Repository.String(), "runID", int64(e.RunID)}
	case event.CheckSuiteCompleted:
		return []any{"repository", e.Repository.String(), "sha", e.CommitSHA.String()}
	default:
		return nil
	}
}
