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

// Package storetest holds the behavioral checks every store.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/store"
)

// Factory builds an empty store whose build timestamps come from now
type Factory func(t *testing.T, now func() time.Time) store.Store

// RunContract exercises s against the store.Store contract
func RunContract(t *testing.T, newStore Factory) {
	repo := github.NewRepositoryID("rust-lang", "example")
	other := github.NewRepositoryID("servo", "servo")
	ctx := context.Background()

	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}

	t.Run("pending build lookup", func(t *testing.T) {
		s := newStore(t, tick)

		if got, err := s.GetPendingBuild(ctx, repo, 1); err != nil || got != nil {
			t.Fatalf("GetPendingBuild() on empty store = %v, %v", got, err)
		}

		first, err := s.AttachTryBuild(ctx, repo, 1, "automation/bors/try", "aaa")
		if err != nil {
			t.Fatalf("AttachTryBuild() unexpected error: %v", err)
		}
		if first.Status != store.BuildStatusPending || first.ID == "" {
			t.Errorf("AttachTryBuild() = %+v, want pending build with id", first)
		}
		second, err := s.AttachTryBuild(ctx, repo, 1, "automation/bors/try", "bbb")
		if err != nil {
			t.Fatalf("AttachTryBuild() unexpected error: %v", err)
		}

		got, err := s.GetPendingBuild(ctx, repo, 1)
		if err != nil || got == nil {
			t.Fatalf("GetPendingBuild() = %v, %v", got, err)
		}
		if got.ID != second.ID || got.CommitSHA != "bbb" || got.PRNumber != 1 || got.Repository != repo {
			t.Errorf("GetPendingBuild() = %+v, want newest build %+v", got, second)
		}

		if got, _ := s.GetPendingBuild(ctx, repo, 2); got != nil {
			t.Errorf("GetPendingBuild() for another PR = %+v, want nil", got)
		}
		if got, _ := s.GetPendingBuild(ctx, other, 1); got != nil {
			t.Errorf("GetPendingBuild() for another repository = %+v, want nil", got)
		}
	})

	t.Run("status updates", func(t *testing.T) {
		s := newStore(t, tick)

		build, err := s.AttachTryBuild(ctx, repo, 3, "automation/bors/try", "ccc")
		if err != nil {
			t.Fatalf("AttachTryBuild() unexpected error: %v", err)
		}
		if err := s.UpdateBuildStatus(ctx, build.ID, store.BuildStatusCancelled); err != nil {
			t.Fatalf("UpdateBuildStatus() unexpected error: %v", err)
		}
		if got, _ := s.GetPendingBuild(ctx, repo, 3); got != nil {
			t.Errorf("cancelled build still pending: %+v", got)
		}

		found, err := s.FindBuild(ctx, repo, "automation/bors/try", "ccc")
		if err != nil || found == nil {
			t.Fatalf("FindBuild() = %v, %v", found, err)
		}
		if found.Status != store.BuildStatusCancelled {
			t.Errorf("FindBuild().Status = %s, want Cancelled", found.Status)
		}
		if found, _ := s.FindBuild(ctx, repo, "automation/bors/try", "zzz"); found != nil {
			t.Errorf("FindBuild() for unknown commit = %+v, want nil", found)
		}

		retried, err := s.AttachTryBuild(ctx, repo, 3, "automation/bors/try", "ccc")
		if err != nil {
			t.Fatalf("AttachTryBuild() unexpected error: %v", err)
		}
		found, err = s.FindBuild(ctx, repo, "automation/bors/try", "ccc")
		if err != nil || found == nil || found.ID != retried.ID {
			t.Errorf("FindBuild() after retry = %+v, %v, want newest build %s", found, err, retried.ID)
		}

		if err := s.UpdateBuildStatus(ctx, "does-not-exist", store.BuildStatusFailure); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("UpdateBuildStatus() unknown build error = %v, want ErrNotFound", err)
		}
	})

	t.Run("pending builds listing", func(t *testing.T) {
		s := newStore(t, tick)

		a, _ := s.AttachTryBuild(ctx, repo, 4, "automation/bors/try", "ddd")
		b, _ := s.AttachTryBuild(ctx, other, 5, "automation/bors/try", "eee")
		c, _ := s.AttachTryBuild(ctx, repo, 6, "automation/bors/try", "fff")
		if err := s.UpdateBuildStatus(ctx, b.ID, store.BuildStatusSuccess); err != nil {
			t.Fatalf("UpdateBuildStatus() unexpected error: %v", err)
		}

		pending, err := s.ListPendingBuilds(ctx)
		if err != nil {
			t.Fatalf("ListPendingBuilds() unexpected error: %v", err)
		}
		if len(pending) != 2 || pending[0].ID != a.ID || pending[1].ID != c.ID {
			t.Errorf("ListPendingBuilds() = %+v, want [%s %s]", pending, a.ID, c.ID)
		}
		if !pending[0].CreatedAt.Before(pending[1].CreatedAt) {
			t.Errorf("pending builds should be ordered oldest first")
		}
	})

	t.Run("workflows", func(t *testing.T) {
		s := newStore(t, tick)

		build, _ := s.AttachTryBuild(ctx, repo, 7, "automation/bors/try", "ggg")
		wf := store.WorkflowModel{
			BuildID: build.ID,
			Name:    "CI",
			URL:     "https://github.com/rust-lang/example/actions/runs/100",
			RunID:   100,
			Type:    store.WorkflowTypeHosted,
		}
		created, err := s.CreateWorkflow(ctx, wf)
		if err != nil {
			t.Fatalf("CreateWorkflow() unexpected error: %v", err)
		}
		if created.Status != store.WorkflowStatusPending {
			t.Errorf("CreateWorkflow().Status = %s, want Pending", created.Status)
		}
		if _, err := s.CreateWorkflow(ctx, wf); err != nil {
			t.Fatalf("CreateWorkflow() redelivery unexpected error: %v", err)
		}
		if _, err := s.CreateWorkflow(ctx, store.WorkflowModel{
			BuildID: build.ID, Name: "lint", RunID: 101, Type: store.WorkflowTypeExternal,
		}); err != nil {
			t.Fatalf("CreateWorkflow() unexpected error: %v", err)
		}

		if err := s.UpdateWorkflowStatus(ctx, repo, 100, store.WorkflowStatusSuccess); err != nil {
			t.Fatalf("UpdateWorkflowStatus() unexpected error: %v", err)
		}
		if err := s.UpdateWorkflowStatus(ctx, other, 101, store.WorkflowStatusSuccess); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("UpdateWorkflowStatus() in another repository error = %v, want ErrNotFound", err)
		}

		workflows, err := s.GetWorkflowsForBuild(ctx, build.ID)
		if err != nil {
			t.Fatalf("GetWorkflowsForBuild() unexpected error: %v", err)
		}
		if len(workflows) != 2 {
			t.Fatalf("GetWorkflowsForBuild() returned %d workflows, want 2", len(workflows))
		}
		if workflows[0].RunID != 100 || workflows[0].Status != store.WorkflowStatusSuccess || workflows[0].Name != "CI" {
			t.Errorf("workflow[0] = %+v", workflows[0])
		}
		if workflows[1].RunID != 101 || workflows[1].Status != store.WorkflowStatusPending || workflows[1].Type != store.WorkflowTypeExternal {
			t.Errorf("workflow[1] = %+v", workflows[1])
		}

		if _, err := s.CreateWorkflow(ctx, store.WorkflowModel{BuildID: "missing", RunID: 1}); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("CreateWorkflow() for unknown build error = %v, want ErrNotFound", err)
		}
	})
}
