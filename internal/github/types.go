// MIT License
//
// Copyright (c) 2025 The bors-mg Authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package github

import (
	"context"
	"fmt"
	"strings"
)

// Client is the capability surface the bot needs from the GitHub API
type Client interface {
	// Get issues a raw GET against an API path and decodes the JSON response into out
	Get(ctx context.Context, path string, out any) error
	// Post issues a raw POST with a JSON body
	Post(ctx context.Context, path string, body, out any) error
	// Patch issues a raw PATCH with a JSON body
	Patch(ctx context.Context, path string, body, out any) error

	// PostComment posts a comment on the pull request
	PostComment(ctx context.Context, repo RepositoryID, pr int, text string) error
	// GetPullRequest resolves a pull request by number
	GetPullRequest(ctx context.Context, repo RepositoryID, number int) (PullRequest, error)
	// SetBranchToSHA force-updates the branch, creating it if it does not exist
	SetBranchToSHA(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error
	// CreateBranch creates a new branch pointing at sha
	CreateBranch(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error
	// UpdateBranch force-updates an existing branch to sha
	UpdateBranch(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error
	// MergeBranches merges head into base and returns the merge commit SHA
	MergeBranches(ctx context.Context, repo RepositoryID, base string, head CommitSHA, message string) (CommitSHA, error)
	// GetCheckSuitesForCommit lists the check suites of a commit on the given branch
	GetCheckSuitesForCommit(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) ([]CheckSuite, error)
	// CancelWorkflows cancels the given workflow runs concurrently
	CancelWorkflows(ctx context.Context, repo RepositoryID, runIDs []RunID) error
	// AddLabels adds labels to the pull request
	AddLabels(ctx context.Context, repo RepositoryID, pr int, labels []string) error
	// RemoveLabels removes labels from the pull request, ignoring labels that are not set
	RemoveLabels(ctx context.Context, repo RepositoryID, pr int, labels []string) error
	// GetFileContent returns the decoded content of a file on a branch
	GetFileContent(ctx context.Context, repo RepositoryID, branch, path string) (string, error)
}

// RepositoryID identifies a repository. Owner and name are lower-cased so
// that values compare equal regardless of how the payload spelled them.
type RepositoryID struct {
	owner string
	name  string
}

// NewRepositoryID returns a normalized repository identifier
func NewRepositoryID(owner, name string) RepositoryID {
	return RepositoryID{owner: strings.ToLower(owner), name: strings.ToLower(name)}
}

// ParseRepositoryID parses an "owner/name" string
func ParseRepositoryID(fullName string) (RepositoryID, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return RepositoryID{}, fmt.Errorf("invalid repository name %q", fullName)
	}
	return NewRepositoryID(owner, name), nil
}

// Owner returns the lower-cased repository owner
func (r RepositoryID) Owner() string { return r.owner }

// Name returns the lower-cased repository name
func (r RepositoryID) Name() string { return r.name }

// String returns "owner/name"
func (r RepositoryID) String() string {
	return r.owner + "/" + r.name
}

// CommitSHA is an opaque commit identifier
type CommitSHA string

func (s CommitSHA) String() string { return string(s) }

// Branch is a branch name together with the commit it points at
type Branch struct {
	Name string
	SHA  CommitSHA
}

// PullRequest is an immutable snapshot of a pull request
type PullRequest struct {
	Number    int
	HeadLabel string
	Head      Branch
	Base      Branch
	Title     string
	Body      string
}

// User identifies a GitHub account
type User struct {
	ID    int64
	Login string
}

// RunID identifies a workflow run
type RunID int64

// CheckSuiteStatus is the aggregate status of a check suite
type CheckSuiteStatus string

const (
	// CheckSuiteStatusPending indicates the suite has not concluded yet
	CheckSuiteStatusPending CheckSuiteStatus = "pending"
	// CheckSuiteStatusFailure indicates the suite concluded unsuccessfully
	CheckSuiteStatusFailure CheckSuiteStatus = "failure"
	// CheckSuiteStatusSuccess indicates the suite succeeded
	CheckSuiteStatusSuccess CheckSuiteStatus = "success"
)

// CheckSuite is the status of all checks of one commit on one branch
type CheckSuite struct {
	ID     int64
	Status CheckSuiteStatus
}

// checkSuiteStatusFromConclusion maps a check suite conclusion to its status.
// A suite without a conclusion is still running.
func checkSuiteStatusFromConclusion(conclusion string) (CheckSuiteStatus, bool) {
	switch conclusion {
	case "success":
		return CheckSuiteStatusSuccess, true
	case "failure", "neutral", "cancelled", "skipped", "timed_out",
		"action_required", "startup_failure", "stale":
		return CheckSuiteStatusFailure, true
	case "":
		return CheckSuiteStatusPending, true
	default:
		return CheckSuiteStatusPending, false
	}
}
