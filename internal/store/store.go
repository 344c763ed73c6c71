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

// Package store defines the persistence contract for try builds and their workflows.
//
// The bot keeps no state between webhook deliveries on its own. Everything it
// needs to remember about a build (its merge commit, the CI runs attached to it
// and their outcome) lives behind the Store interface. Two implementations are
// provided: an in-memory store for single-replica deployments and tests, and a
// Kubernetes-backed store in the kube subpackage that persists records as
// custom resources.
package store

import (
	"context"
	"errors"

	"github.com/sagudev/bors-mg/internal/github"
)

// ErrNotFound is returned when a build or workflow does not exist
var ErrNotFound = errors.New("not found")

// Store persists build and workflow records
type Store interface {
	// AttachTryBuild records a new pending try build for a pull request
	AttachTryBuild(ctx context.Context, repo github.RepositoryID, pr int, branch string, sha github.CommitSHA) (BuildModel, error)
	// GetPendingBuild returns the pending build of a pull request, or nil if there is none
	GetPendingBuild(ctx context.Context, repo github.RepositoryID, pr int) (*BuildModel, error)
	// FindBuild returns the newest build for a commit on a branch, or nil if there is none
	FindBuild(ctx context.Context, repo github.RepositoryID, branch string, sha github.CommitSHA) (*BuildModel, error)
	// ListPendingBuilds returns every pending build
	ListPendingBuilds(ctx context.Context) ([]BuildModel, error)
	// UpdateBuildStatus sets the status of a build
	UpdateBuildStatus(ctx context.Context, buildID string, status BuildStatus) error

	// CreateWorkflow attaches a workflow to a build. Recording the same run twice is a no-op.
	CreateWorkflow(ctx context.Context, workflow WorkflowModel) (WorkflowModel, error)
	// UpdateWorkflowStatus sets the status of the workflow with the given run id
	UpdateWorkflowStatus(ctx context.Context, repo github.RepositoryID, runID github.RunID, status WorkflowStatus) error
	// GetWorkflowsForBuild lists the workflows attached to a build
	GetWorkflowsForBuild(ctx context.Context, buildID string) ([]WorkflowModel, error)
}
