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
	"fmt"

	"go.uber.org/multierr"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/event"
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/permissions"
	"github.com/sagudev/bors-mg/internal/repoconfig"
	"github.com/sagudev/bors-mg/internal/store"
)

const (
	// TryMergeBranch is reset to the PR base and merged with the PR head.
	// The reset and merge are not atomic, so CI must not run on it.
	TryMergeBranch = "automation/bors/try-merge"

	// TryBranch receives the finished merge commit and runs CI
	TryBranch = "automation/bors/try"

	tryReviewer = "<try>"
)

// tryBuild merges the PR head into the base on TryMergeBranch and pushes the
// result to TryBranch.
func (h *Handler) tryBuild(ctx context.Context, client github.Client, comment event.Comment) error {
	logger := log.FromContext(ctx)
	repo := comment.Repository
	number := comment.PullRequest.Number()

	cfg := h.resolver.Resolve(ctx, client, repo)
	allowed, err := checkTryPermissions(ctx, client, cfg, repo, number, comment.Author)
	if err != nil || !allowed {
		return err
	}

	pending, err := h.store.GetPendingBuild(ctx, repo, number)
	if err != nil {
		return fmt.Errorf("cannot look up pending build: %w", err)
	}
	if pending != nil {
		logger.Info("Try build already in progress", "build", pending.ID)
		return client.PostComment(ctx, repo, number, fmt.Sprintf(
			":exclamation: A try build is currently in progress. You can cancel it using %s try cancel.", h.prefix))
	}

	pr, err := comment.PullRequest.Resolve(ctx, client)
	if err != nil {
		return err
	}

	if err := client.SetBranchToSHA(ctx, repo, TryMergeBranch, pr.Base.SHA); err != nil {
		return fmt.Errorf("cannot set try merge branch to %s: %w", pr.Base.SHA, err)
	}

	mergeSHA, err := client.MergeBranches(ctx, repo, TryMergeBranch, pr.Head.SHA, autoMergeCommitMessage(pr, tryReviewer))
	if github.IsMergeError(err, github.MergeConflict) {
		logger.Info("Merge conflict", "head", pr.Head.SHA.String())
		return client.PostComment(ctx, repo, number, mergeConflictMessage(pr.Head.Name))
	}
	if err != nil {
		return fmt.Errorf("cannot merge %s into %s: %w", pr.Head.SHA, TryMergeBranch, err)
	}
	logger.V(1).Info("Merge successful", "sha", mergeSHA.String())

	if err := client.SetBranchToSHA(ctx, repo, TryBranch, mergeSHA); err != nil {
		return fmt.Errorf("cannot set try branch to %s: %w", mergeSHA, err)
	}

	build, err := h.store.AttachTryBuild(ctx, repo, number, TryBranch, mergeSHA)
	if err != nil {
		return fmt.Errorf("cannot record try build: %w", err)
	}
	logger.Info("Try build started", "build", build.ID, "sha", mergeSHA.String())

	applyLabels(ctx, client, cfg, repo, number, repoconfig.TryBuildStarted)

	return client.PostComment(ctx, repo, number, fmt.Sprintf(
		":hourglass: Trying commit %s with merge %s…", pr.Head.SHA, mergeSHA))
}

// tryCancel cancels the pending try build of the PR. Failing to cancel its
// workflows is logged and does not keep the build pending.
func (h *Handler) tryCancel(ctx context.Context, client github.Client, comment event.Comment) error {
	logger := log.FromContext(ctx)
	repo := comment.Repository
	number := comment.PullRequest.Number()

	cfg := h.resolver.Resolve(ctx, client, repo)
	allowed, err := checkTryPermissions(ctx, client, cfg, repo, number, comment.Author)
	if err != nil || !allowed {
		return err
	}

	build, err := h.store.GetPendingBuild(ctx, repo, number)
	if err != nil {
		return fmt.Errorf("cannot look up pending build: %w", err)
	}
	if build == nil {
		logger.Info("No try build in progress")
		return client.PostComment(ctx, repo, number, ":exclamation: There is currently no try build in progress.")
	}

	if err := CancelBuildWorkflows(ctx, client, h.store, *build); err != nil {
		logger.Error(err, "Could not cancel workflows", "sha", build.CommitSHA.String())
	}

	if err := h.store.UpdateBuildStatus(ctx, build.ID, store.BuildStatusCancelled); err != nil {
		return fmt.Errorf("cannot mark build %s cancelled: %w", build.ID, err)
	}
	logger.Info("Try build cancelled", "build", build.ID)

	return client.PostComment(ctx, repo, number, "Try build cancelled.")
}

// CancelBuildWorkflows cancels the pending GitHub Actions runs of a build.
// External check runs cannot be cancelled through the API and are skipped.
func CancelBuildWorkflows(ctx context.Context, client github.Client, st store.Store, build store.BuildModel) error {
	workflows, err := st.GetWorkflowsForBuild(ctx, build.ID)
	if err != nil {
		return fmt.Errorf("cannot list workflows of build %s: %w", build.ID, err)
	}

	var runIDs []github.RunID
	for _, w := range workflows {
		if w.Status == store.WorkflowStatusPending && w.Type == store.WorkflowTypeHosted {
			runIDs = append(runIDs, w.RunID)
		}
	}
	if len(runIDs) == 0 {
		return nil
	}

	log.FromContext(ctx).Info("Cancelling workflows", "runIDs", runIDs)
	return client.CancelWorkflows(ctx, build.Repository, runIDs)
}

// checkTryPermissions posts a rejection comment and returns false if the
// author may not start try builds.
func checkTryPermissions(ctx context.Context, client github.Client, cfg *repoconfig.Configuration, repo github.RepositoryID, number int, author github.User) (bool, error) {
	if permissions.HasPermission(cfg, author.Login, permissions.Try) {
		return true, nil
	}

	log.FromContext(ctx).Info("Permission denied", "permission", permissions.Try.String())
	if err := client.PostComment(ctx, repo, number, fmt.Sprintf(
		"@%s: :key: Insufficient privileges: not in try users", author.Login)); err != nil {
		return false, err
	}
	return false, nil
}

// applyLabels updates the PR labels for trigger. Failures are logged: labels
// never block the comment that reports the build.
func applyLabels(ctx context.Context, client github.Client, cfg *repoconfig.Configuration, repo github.RepositoryID, number int, trigger repoconfig.LabelTrigger) {
	logger := log.FromContext(ctx).WithValues("trigger", string(trigger))
	add, remove := cfg.LabelsFor(trigger)

	var errs error
	if len(add) > 0 {
		logger.V(1).Info("Adding labels", "labels", add)
		if err := client.AddLabels(ctx, repo, number, add); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cannot add labels %v: %w", add, err))
		}
	}
	if len(remove) > 0 {
		logger.V(1).Info("Removing labels", "labels", remove)
		if err := client.RemoveLabels(ctx, repo, number, remove); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cannot remove labels %v: %w", remove, err))
		}
	}
	if errs != nil {
		logger.Error(errs, "Could not update labels")
	}
}

func autoMergeCommitMessage(pr github.PullRequest, reviewer string) string {
	return fmt.Sprintf("Auto merge of #%d - %s, r=%s\n%s\n\n%s", pr.Number, pr.HeadLabel, reviewer, pr.Title, pr.Body)
}

func mergeConflictMessage(branch string) string {
	return fmt.Sprintf(`:lock: Merge conflict

This pull request and the master branch diverged in a way that cannot
 be automatically merged. Please rebase on top of the latest master
 branch, and let the reviewer approve again.

<details><summary>How do I rebase?</summary>

Assuming `+"`self`"+` is your fork and `+"`upstream`"+` is this repository,
 you can resolve the conflict following these steps:

1. `+"`git checkout %[1]s`"+` *(switch to your branch)*
2. `+"`git fetch upstream master`"+` *(retrieve the latest master)*
3. `+"`git rebase upstream/master -p`"+` *(rebase on top of it)*
4. Follow the on-screen instruction to resolve conflicts (check `+"`git status`"+` if you got lost).
5. `+"`git push self %[1]s --force-with-lease`"+` *(update this PR)*

You may also read
 [*Git Rebasing to Resolve Conflicts* by Drew Blessing](http://blessing.io/git/git-rebase/open-source/2015/08/23/git-rebasing-to-resolve-conflicts.html)
 for a short tutorial.

Please avoid the ["**Resolve conflicts**" button](https://help.github.com/articles/resolving-a-merge-conflict-on-github/) on GitHub.
 It uses `+"`git merge`"+` instead of `+"`git rebase`"+` which makes the PR commit history more difficult to read.

Sometimes step 4 will complete without asking for resolution. This is usually due to difference between how `+"`Cargo.lock`"+` conflict is
handled during merge and rebase. This is normal, and you should still perform step 5 to update this PR.

</details>
`, branch)
}
