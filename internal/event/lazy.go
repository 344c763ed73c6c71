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

package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/sagudev/bors-mg/internal/github"
)

// PullRequestFetcher fetches a pull request snapshot
type PullRequestFetcher interface {
	GetPullRequest(ctx context.Context, repo github.RepositoryID, number int) (github.PullRequest, error)
}

// LazyPullRequest references a pull request that is fetched on first use.
// Once resolved it never goes back to the unresolved state, and later calls
// to Resolve return the cached snapshot without a network call.
type LazyPullRequest struct {
	repo   github.RepositoryID
	number int

	mu       sync.Mutex
	resolved *github.PullRequest
}

// NewLazyPullRequest references a pull request that has not been fetched yet
func NewLazyPullRequest(repo github.RepositoryID, number int) *LazyPullRequest {
	return &LazyPullRequest{repo: repo, number: number}
}

// NewResolvedPullRequest wraps a snapshot that is already known
func NewResolvedPullRequest(repo github.RepositoryID, pr github.PullRequest) *LazyPullRequest {
	return &LazyPullRequest{repo: repo, number: pr.Number, resolved: &pr}
}

// Repository returns the repository the pull request belongs to
func (l *LazyPullRequest) Repository() github.RepositoryID { return l.repo }

// Number returns the pull request number
func (l *LazyPullRequest) Number() int { return l.number }

// IsResolved reports whether the snapshot is available without a fetch
func (l *LazyPullRequest) IsResolved() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolved != nil
}

// Resolve returns the snapshot, fetching it if needed. A failed fetch leaves
// the reference unresolved so a later call can try again.
func (l *LazyPullRequest) Resolve(ctx context.Context, fetcher PullRequestFetcher) (github.PullRequest, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resolved != nil {
		return *l.resolved, nil
	}

	pr, err := fetcher.GetPullRequest(ctx, l.repo, l.number)
	if err != nil {
		return github.PullRequest{}, fmt.Errorf("failed to resolve pull request %s#%d: %w", l.repo, l.number, err)
	}
	l.resolved = &pr
	return pr, nil
}
