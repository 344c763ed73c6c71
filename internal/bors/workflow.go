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

package bors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/event"
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/repoconfig"
	"github.com/sagudev/bors-mg/internal/store"
)

// handleWorkflowStarted attaches a CI run to the pending build of its commit
func (h *Handler) handleWorkflowStarted(ctx context.Context, ev event.WorkflowStarted) error {
	logger := log.FromContext(ctx)

	build, err := h.store.FindBuild(ctx, ev.Repository, ev.Branch, ev.CommitSHA)
	if err != nil {
		return fmt.Errorf("cannot look up build: %w", err)
	}
	if build == nil {
		logger.V(1).Info("Ignoring workflow of an unknown build", "branch", ev.Branch, "sha", ev.CommitSHA.String())
		return nil
	}
	if build.Status != store.BuildStatusPending {
		logger.V(1).Info("Ignoring workflow of a finished build", "build", build.ID, "status", string(build.Status))
		return nil
	}

	workflow, err := h.store.CreateWorkflow(ctx, store.WorkflowModel{
		BuildID: build.ID,
		Name:    ev.Name,
		URL:     ev.URL,
		RunID:   ev.RunID,
		Type:    ev.Type,
		Status:  store.WorkflowStatusPending,
	})
	if err != nil {
		return fmt.Errorf("cannot record workflow: %w", err)
	}

	logger.Info("Workflow started", "build", build.ID, "workflow", workflow.ID, "type", string(ev.Type))
	return nil
}

// handleWorkflowCompleted records the outcome of a run and completes its build
// once every check suite has concluded.
func (h *Handler) handleWorkflowCompleted(ctx context.Context, client github.Client, ev event.WorkflowCompleted) error {
	err := h.store.UpdateWorkflowStatus(ctx, ev.Repository, ev.RunID, ev.Status)
	if errors.Is(err, store.ErrNotFound) {
		log.FromContext(ctx).V(1).Info("Ignoring completion of an unknown workflow")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot update workflow status: %w", err)
	}

	log.FromContext(ctx).Info("Workflow completed", "status", string(ev.Status))
	return h.tryCompleteBuild(ctx, client, ev.Repository, ev.Branch, ev.CommitSHA)
}

func (h *Handler) handleCheckSuiteCompleted(ctx context.Context, client github.Client, ev event.CheckSuiteCompleted) error {
	return h.tryCompleteBuild(ctx, client, ev.Repository, ev.Branch, ev.CommitSHA)
}

// tryCompleteBuild marks the pending try build of a commit as succeeded or
// failed when none of its check suites are still running.
func (h *Handler) tryCompleteBuild(ctx context.Context, client github.Client, repo github.RepositoryID, branch string, sha github.CommitSHA) error {
	logger := log.FromContext(ctx).WithValues("branch", branch, "sha", sha.String())

	if branch != TryBranch {
		logger.V(1).Info("Ignoring completion on a branch without builds")
		return nil
	}

	build, err := h.store.FindBuild(ctx, repo, branch, sha)
	if err != nil {
		return fmt.Errorf("cannot look up build: %w", err)
	}
	if build == nil || build.Status != store.BuildStatusPending {
		logger.V(1).Info("No pending build for commit")
		return nil
	}

	suites, err := client.GetCheckSuitesForCommit(ctx, repo, branch, sha)
	if err != nil {
		return fmt.Errorf("cannot list check suites: %w", err)
	}
	if len(suites) == 0 {
		logger.V(1).Info("No check suites reported yet")
		return nil
	}

	failed := false
	for _, suite := range suites {
		switch suite.Status {
		case github.CheckSuiteStatusPending:
			logger.V(1).Info("Waiting for check suite", "suite", suite.ID)
			return nil
		case github.CheckSuiteStatusFailure:
			failed = true
		}
	}

	status, trigger := store.BuildStatusSuccess, repoconfig.TryBuildSucceeded
	if failed {
		status, trigger = store.BuildStatusFailure, repoconfig.TryBuildFailed
	}
	if err := h.store.UpdateBuildStatus(ctx, build.ID, status); err != nil {
		return fmt.Errorf("cannot mark build %s %s: %w", build.ID, status, err)
	}
	logger.Info("Try build finished", "build", build.ID, "status", string(status))

	cfg := h.resolver.Resolve(ctx, client, repo)
	applyLabels(ctx, client, cfg, repo, build.PRNumber, trigger)

	workflows, err := h.store.GetWorkflowsForBuild(ctx, build.ID)
	if err != nil {
		return fmt.Errorf("cannot list workflows of build %s: %w", build.ID, err)
	}

	var message string
	if failed {
		message = fmt.Sprintf(":broken_heart: Test failed\n%s", workflowList(workflows))
	} else {
		message = fmt.Sprintf(":sunny: Try build successful\n%s\nBuild commit: %s (`%s`)", workflowList(workflows), sha, sha)
	}
	return client.PostComment(ctx, repo, build.PRNumber, message)
}

func workflowList(workflows []store.WorkflowModel) string {
	var b strings.Builder
	for _, w := range workflows {
		fmt.Fprintf(&b, "- [%s](%s) %s\n", w.Name, w.URL, workflowEmoji(w.Status))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func workflowEmoji(status store.WorkflowStatus) string {
	switch status {
	case store.WorkflowStatusSuccess:
		return ":white_check_mark:"
	case store.WorkflowStatusFailure:
		return ":x:"
	default:
		return ":hourglass:"
	}
}
