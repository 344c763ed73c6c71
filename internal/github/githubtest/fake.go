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

// Package githubtest provides an in-memory github.Client for handler tests.
package githubtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sagudev/bors-mg/internal/github"
)

// ErrFileNotFound is returned by GetFileContent for files that were never set
var ErrFileNotFound = errors.New("file not found")

// Comment is a comment posted through the fake
type Comment struct {
	Repository github.RepositoryID
	PR         int
	Text       string
}

// BranchUpdate is a SetBranchToSHA call
type BranchUpdate struct {
	Repository github.RepositoryID
	Branch     string
	SHA        github.CommitSHA
}

// Merge is a MergeBranches call
type Merge struct {
	Repository github.RepositoryID
	Base       string
	Head       github.CommitSHA
	Message    string
}

// Client records every call and answers from canned data. The zero value is
// not usable; create it with NewClient.
type Client struct {
	mu sync.Mutex

	pullRequests map[string]github.PullRequest
	files        map[string]string

	// MergeSHA is returned by a successful MergeBranches
	MergeSHA github.CommitSHA
	// MergeErr, when set, is returned by MergeBranches instead of MergeSHA
	MergeErr error
	// CheckSuites is returned by GetCheckSuitesForCommit
	CheckSuites []github.CheckSuite
	// CheckSuitesErr, when set, fails GetCheckSuitesForCommit
	CheckSuitesErr error
	// SetBranchErr, when set, fails SetBranchToSHA
	SetBranchErr error
	// CancelErr, when set, fails CancelWorkflows after recording the runs
	CancelErr error
	// PostCommentErr, when set, fails PostComment without recording the comment
	PostCommentErr error
	// GetPullRequestErr, when set, fails GetPullRequest
	GetPullRequestErr error
	// LabelsErr, when set, fails AddLabels and RemoveLabels without recording the labels
	LabelsErr error

	comments       []Comment
	branchUpdates  []BranchUpdate
	merges         []Merge
	cancelled      []github.RunID
	labelsAdded    map[int][]string
	labelsRemoved  map[int][]string
	pullRequestGet int
}

var _ github.Client = (*Client)(nil)

// NewClient creates an empty fake
func NewClient() *Client {
	return &Client{
		pullRequests:  map[string]github.PullRequest{},
		files:         map[string]string{},
		labelsAdded:   map[int][]string{},
		labelsRemoved: map[int][]string{},
	}
}

func prKey(repo github.RepositoryID, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

func fileKey(repo github.RepositoryID, branch, path string) string {
	return fmt.Sprintf("%s@%s:%s", repo, branch, path)
}

// AddPullRequest makes a pull request available to GetPullRequest
func (c *Client) AddPullRequest(repo github.RepositoryID, pr github.PullRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pullRequests[prKey(repo, pr.Number)] = pr
}

// SetFile makes a file available to GetFileContent
func (c *Client) SetFile(repo github.RepositoryID, branch, path, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[fileKey(repo, branch, path)] = content
}

// Comments returns the posted comments in order
func (c *Client) Comments() []Comment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Comment(nil), c.comments...)
}

// BranchUpdates returns the SetBranchToSHA calls in order
func (c *Client) BranchUpdates() []BranchUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]BranchUpdate(nil), c.branchUpdates...)
}

// Merges returns the MergeBranches calls in order
func (c *Client) Merges() []Merge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Merge(nil), c.merges...)
}

// Cancelled returns every run id passed to CancelWorkflows
func (c *Client) Cancelled() []github.RunID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]github.RunID(nil), c.cancelled...)
}

// LabelsAdded returns the labels added to a pull request
func (c *Client) LabelsAdded(pr int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.labelsAdded[pr]...)
}

// LabelsRemoved returns the labels removed from a pull request
func (c *Client) LabelsRemoved(pr int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.labelsRemoved[pr]...)
}

// PullRequestFetches counts GetPullRequest calls
func (c *Client) PullRequestFetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pullRequestGet
}

func (c *Client) Get(_ context.Context, _ string, _ any) error { return nil }

func (c *Client) Post(_ context.Context, _ string, _, _ any) error { return nil }

func (c *Client) Patch(_ context.Context, _ string, _, _ any) error { return nil }

func (c *Client) PostComment(_ context.Context, repo github.RepositoryID, pr int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PostCommentErr != nil {
		return c.PostCommentErr
	}
	c.comments = append(c.comments, Comment{Repository: repo, PR: pr, Text: text})
	return nil
}

func (c *Client) GetPullRequest(_ context.Context, repo github.RepositoryID, number int) (github.PullRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pullRequestGet++
	if c.GetPullRequestErr != nil {
		return github.PullRequest{}, c.GetPullRequestErr
	}
	pr, ok := c.pullRequests[prKey(repo, number)]
	if !ok {
		return github.PullRequest{}, fmt.Errorf("pull request %s not found", prKey(repo, number))
	}
	return pr, nil
}

func (c *Client) SetBranchToSHA(_ context.Context, repo github.RepositoryID, branch string, sha github.CommitSHA) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SetBranchErr != nil {
		return c.SetBranchErr
	}
	c.branchUpdates = append(c.branchUpdates, BranchUpdate{Repository: repo, Branch: branch, SHA: sha})
	return nil
}

func (c *Client) CreateBranch(ctx context.Context, repo github.RepositoryID, branch string, sha github.CommitSHA) error {
	return c.SetBranchToSHA(ctx, repo, branch, sha)
}

func (c *Client) UpdateBranch(ctx context.Context, repo github.RepositoryID, branch string, sha github.CommitSHA) error {
	return c.SetBranchToSHA(ctx, repo, branch, sha)
}

func (c *Client) MergeBranches(_ context.Context, repo github.RepositoryID, base string, head github.CommitSHA, message string) (github.CommitSHA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.merges = append(c.merges, Merge{Repository: repo, Base: base, Head: head, Message: message})
	if c.MergeErr != nil {
		return "", c.MergeErr
	}
	return c.MergeSHA, nil
}

func (c *Client) GetCheckSuitesForCommit(_ context.Context, _ github.RepositoryID, _ string, _ github.CommitSHA) ([]github.CheckSuite, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CheckSuitesErr != nil {
		return nil, c.CheckSuitesErr
	}
	return append([]github.CheckSuite(nil), c.CheckSuites...), nil
}

func (c *Client) CancelWorkflows(_ context.Context, _ github.RepositoryID, runIDs []github.RunID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, runIDs...)
	return c.CancelErr
}

func (c *Client) AddLabels(_ context.Context, _ github.RepositoryID, pr int, labels []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LabelsErr != nil {
		return c.LabelsErr
	}
	c.labelsAdded[pr] = append(c.labelsAdded[pr], labels...)
	return nil
}

func (c *Client) RemoveLabels(_ context.Context, _ github.RepositoryID, pr int, labels []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.LabelsErr != nil {
		return c.LabelsErr
	}
	c.labelsRemoved[pr] = append(c.labelsRemoved[pr], labels...)
	return nil
}

func (c *Client) GetFileContent(_ context.Context, repo github.RepositoryID, branch, path string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.files[fileKey(repo, branch, path)]
	if !ok {
		return "", ErrFileNotFound
	}
	return content, nil
}
