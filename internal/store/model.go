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

package store

import (
	"time"

	"github.com/sagudev/bors-mg/internal/github"
)

// BuildStatus is the lifecycle state of a try build
type BuildStatus string

const (
	// BuildStatusPending indicates the build is waiting for its workflows
	BuildStatusPending BuildStatus = "Pending"
	// BuildStatusSuccess indicates every check suite succeeded
	BuildStatusSuccess BuildStatus = "Success"
	// BuildStatusFailure indicates at least one check suite failed
	BuildStatusFailure BuildStatus = "Failure"
	// BuildStatusCancelled indicates the build was cancelled by a user
	BuildStatusCancelled BuildStatus = "Cancelled"
	// BuildStatusTimeouted indicates the build ran longer than the configured timeout
	BuildStatusTimeouted BuildStatus = "Timeouted"
)

// WorkflowStatus is the state of one CI run
type WorkflowStatus string

const (
	WorkflowStatusPending WorkflowStatus = "Pending"
	WorkflowStatusSuccess WorkflowStatus = "Success"
	WorkflowStatusFailure WorkflowStatus = "Failure"
)

// WorkflowType tells GitHub Actions runs apart from third-party CI check runs
type WorkflowType string

const (
	// WorkflowTypeHosted is a GitHub Actions workflow run, which the bot can cancel
	WorkflowTypeHosted WorkflowType = "Hosted"
	// WorkflowTypeExternal is a check run reported by an external CI app
	WorkflowTypeExternal WorkflowType = "External"
)

// BuildModel is one merge commit attempt on a branch
type BuildModel struct {
	ID         string
	Repository github.RepositoryID
	PRNumber   int
	Branch     string
	CommitSHA  github.CommitSHA
	Status     BuildStatus
	CreatedAt  time.Time
}

// WorkflowModel is one CI run attached to a build
type WorkflowModel struct {
	ID      string
	BuildID string
	Name    string
	URL     string
	RunID   github.RunID
	Type    WorkflowType
	Status  WorkflowStatus
}
