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
	"fmt"
	"time"

	"go.uber.org/multierr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/bors"
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/store"
)

// DefaultTimeout is how long a try build may stay pending
const DefaultTimeout = time.Hour

// TimeoutSweeper marks pending builds that ran out of time as Timeouted
type TimeoutSweeper struct {
	store   store.Store
	timeout time.Duration
	now     func() time.Time
}

var _ bors.RefreshHook = (*TimeoutSweeper)(nil)

// NewTimeoutSweeper creates a sweeper. A non-positive timeout falls back to DefaultTimeout.
func NewTimeoutSweeper(st store.Store, timeout time.Duration) *TimeoutSweeper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TimeoutSweeper{
		store:   st,
		timeout: timeout,
		now:     time.Now,
	}
}

// Refresh times out every expired pending build. A failure on one build does
// not stop the others; all failures are returned together.
func (s *TimeoutSweeper) Refresh(ctx context.Context, client github.Client) error {
	builds, err := s.store.ListPendingBuilds(ctx)
	if err != nil {
		return fmt.Errorf("cannot list pending builds: %w", err)
	}

	now := s.now()
	var errs error
	for _, build := range builds {
		if !now.After(build.CreatedAt.Add(s.timeout)) {
			continue
		}
		errs = multierr.Append(errs, s.timeoutBuild(ctx, client, build))
	}
	return errs
}

func (s *TimeoutSweeper) timeoutBuild(ctx context.Context, client github.Client, build store.BuildModel) error {
	logger := log.FromContext(ctx).WithValues(
		"repository", build.Repository.String(),
		"pr", build.PRNumber,
		"build", build.ID,
	)
	ctx = log.IntoContext(ctx, logger)

	if err := bors.CancelBuildWorkflows(ctx, client, s.store, build); err != nil {
		logger.Error(err, "Could not cancel workflows", "sha", build.CommitSHA.String())
	}

	if err := s.store.UpdateBuildStatus(ctx, build.ID, store.BuildStatusTimeouted); err != nil {
		return fmt.Errorf("cannot mark build %s timed out: %w", build.ID, err)
	}
	logger.Info("Try build timed out", "timeout", s.timeout.String())

	message := fmt.Sprintf(":boom: Test timed out after `%d`s", int64(s.timeout/time.Second))
	if err := client.PostComment(ctx, build.Repository, build.PRNumber, message); err != nil {
		return fmt.Errorf("cannot report timeout of build %s: %w", build.ID, err)
	}
	return nil
}
