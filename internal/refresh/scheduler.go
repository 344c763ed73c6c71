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

package refresh

import (
	"context"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/event"
)

// DefaultInterval is the time between two Refresh events
const DefaultInterval = time.Minute

// Dispatcher consumes Refresh events
type Dispatcher interface {
	HandleEvent(ctx context.Context, ev event.Event)
}

// Scheduler emits a Refresh event on every tick
type Scheduler struct {
	dispatcher Dispatcher
	interval   time.Duration
}

// NewScheduler creates a scheduler. A non-positive interval falls back to DefaultInterval.
func NewScheduler(dispatcher Dispatcher, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		dispatcher: dispatcher,
		interval:   interval,
	}
}

// Start emits Refresh events until the context is canceled. It returns nil
// on graceful shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger := log.FromContext(ctx).WithValues("interval", s.interval.String())
	logger.Info("Starting refresh scheduler")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping refresh scheduler")
			return nil
		case <-ticker.C:
			// Handler errors are logged by the dispatcher; the next tick runs regardless.
			s.dispatcher.HandleEvent(ctx, event.Refresh{})
		}
	}
}
