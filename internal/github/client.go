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
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// unknownHeadLabel is used when the API omits the head label of a pull request
const unknownHeadLabel = "<unknown>"

// RetryConfig defines the retry behavior for API calls
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

// DefaultRetryConfig returns the retry policy used when none is configured
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		BackoffFactor:  2.0,
	}
}

// Option configures a Transport
type Option func(*options)

type options struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig *RetryConfig
	now         func() time.Time
}

// WithBaseURL points the transport at a different API root, e.g. GitHub Enterprise
func WithBaseURL(baseURL string) Option {
	return func(o *options) { o.baseURL = baseURL }
}

// WithHTTPClient sets the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithRetryConfig overrides the retry policy
func WithRetryConfig(rc *RetryConfig) Option {
	return func(o *options) { o.retryConfig = rc }
}

func buildOptions(opts []Option) *options {
	o := &options{
		retryConfig: DefaultRetryConfig(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Transport implements Client on top of go-github with a single bearer credential
type Transport struct {
	client      *github.Client
	retryConfig *RetryConfig
}

var _ Client = (*Transport)(nil)

// NewClient creates a token transport authenticated with a personal access token
func NewClient(token string, opts ...Option) (*Transport, error) {
	if token == "" {
		return nil, errors.New("github token is required")
	}
	return newTransport(token, buildOptions(opts))
}

func newTransport(bearer string, o *options) (*Transport, error) {
	gh := github.NewClient(o.httpClient).WithAuthToken(bearer)
	if o.baseURL != "" {
		u, err := url.Parse(strings.TrimSuffix(o.baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", o.baseURL, err)
		}
		gh.BaseURL = u
	}
	return &Transport{client: gh, retryConfig: o.retryConfig}, nil
}

// Get issues a GET request against an API path
func (c *Transport) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body
func (c *Transport) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Patch issues a PATCH request with a JSON body
func (c *Transport) Patch(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Transport) do(ctx context.Context, method, path string, body, out any) error {
	err := c.executeWithRetry(ctx, func() error {
		req, err := c.client.NewRequest(method, strings.TrimPrefix(path, "/"), body)
		if err != nil {
			return err
		}
		_, err = c.client.Do(ctx, req, out)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// PostComment posts a comment on the pull request
func (c *Transport) PostComment(ctx context.Context, repo RepositoryID, pr int, text string) error {
	log.FromContext(ctx).V(1).Info("Posting comment", "repository", repo.String(), "pr", pr, "body", text)

	err := c.executeWithRetry(ctx, func() error {
		_, _, err := c.client.Issues.CreateComment(ctx, repo.Owner(), repo.Name(), pr, &github.IssueComment{
			Body: github.String(text),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to post comment to %s#%d: %w", repo, pr, err)
	}
	return nil
}

// GetPullRequest retrieves a pull request snapshot
func (c *Transport) GetPullRequest(ctx context.Context, repo RepositoryID, number int) (PullRequest, error) {
	var pr *github.PullRequest

	err := c.executeWithRetry(ctx, func() error {
		var err error
		pr, _, err = c.client.PullRequests.Get(ctx, repo.Owner(), repo.Name(), number)
		return err
	})
	if err != nil {
		return PullRequest{}, fmt.Errorf("failed to get pull request %s#%d: %w", repo, number, err)
	}

	return ConvertPullRequest(pr), nil
}

// SetBranchToSHA force-updates the branch and creates it if it does not exist yet
func (c *Transport) SetBranchToSHA(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error {
	return setBranchToSHA(ctx, c, repo, branch, sha)
}

type branchWriter interface {
	CreateBranch(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error
	UpdateBranch(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error
}

// setBranchToSHA tries the update endpoint first since the branch usually exists.
// The API has no single create-or-update call for refs.
func setBranchToSHA(ctx context.Context, w branchWriter, repo RepositoryID, branch string, sha CommitSHA) error {
	err := w.UpdateBranch(ctx, repo, branch, sha)
	if err == nil {
		return nil
	}

	var notFound *BranchNotFoundError
	if !errors.As(err, &notFound) {
		return err
	}

	log.FromContext(ctx).V(1).Info("Branch does not exist yet, creating it", "repository", repo.String(), "branch", branch)
	if err := w.CreateBranch(ctx, repo, branch, sha); err != nil {
		return fmt.Errorf("failed to create branch %s after update reported it missing: %w", branch, err)
	}
	return nil
}

// CreateBranch creates refs/heads/<branch> pointing at sha
func (c *Transport) CreateBranch(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error {
	err := c.executeWithRetry(ctx, func() error {
		_, _, err := c.client.Git.CreateRef(ctx, repo.Owner(), repo.Name(), branchRef(branch, sha))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create branch %s in %s: %w", branch, repo, err)
	}
	return nil
}

// UpdateBranch force-updates refs/heads/<branch> to sha.
// A missing branch is reported as *BranchNotFoundError.
func (c *Transport) UpdateBranch(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error {
	err := c.executeWithRetry(ctx, func() error {
		_, _, err := c.client.Git.UpdateRef(ctx, repo.Owner(), repo.Name(), branchRef(branch, sha), true)
		return err
	})
	if err != nil {
		// the ref endpoint answers 422 "Reference does not exist" as often as 404
		if hasStatus(err, http.StatusNotFound, http.StatusUnprocessableEntity) {
			return &BranchNotFoundError{Branch: branch, Err: err}
		}
		return fmt.Errorf("failed to update branch %s in %s: %w", branch, repo, err)
	}
	return nil
}

func branchRef(branch string, sha CommitSHA) *github.Reference {
	return &github.Reference{
		Ref:    github.String("refs/heads/" + branch),
		Object: &github.GitObject{SHA: github.String(string(sha))},
	}
}

// MergeBranches merges head into the base branch.
// Every outcome other than a new merge commit is returned as *MergeError.
func (c *Transport) MergeBranches(ctx context.Context, repo RepositoryID, base string, head CommitSHA, message string) (CommitSHA, error) {
	request := &github.RepositoryMergeRequest{
		Base:          github.String(base),
		Head:          github.String(string(head)),
		CommitMessage: github.String(message),
	}

	var commit *github.RepositoryCommit
	var resp *github.Response
	// A gateway error may hide a merge that landed, and repeating it would
	// answer 204. Only rate-limit rejections are retried.
	err := c.retry(ctx, isRateLimitError, func() error {
		var err error
		commit, resp, err = c.client.Repositories.Merge(ctx, repo.Owner(), repo.Name(), request)
		return err
	})

	return classifyMerge(commit, resp, err)
}

// classifyMerge maps the merge endpoint response onto the merge outcome
func classifyMerge(commit *github.RepositoryCommit, resp *github.Response, err error) (CommitSHA, error) {
	if resp == nil || resp.Response == nil {
		if err == nil {
			err = errors.New("no response from merge endpoint")
		}
		return "", &MergeError{Kind: MergeNetworkError, Err: err}
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		if sha := commit.GetSHA(); sha != "" {
			return CommitSHA(sha), nil
		}
		return "", &MergeError{Kind: MergeUnknown, Status: resp.StatusCode, Text: "merge commit without SHA", Err: err}
	case http.StatusNotFound:
		return "", &MergeError{Kind: MergeNotFound, Status: resp.StatusCode, Err: err}
	case http.StatusConflict:
		return "", &MergeError{Kind: MergeConflict, Status: resp.StatusCode, Err: err}
	case http.StatusNoContent:
		return "", &MergeError{Kind: MergeAlreadyMerged, Status: resp.StatusCode, Err: err}
	default:
		return "", &MergeError{Kind: MergeUnknown, Status: resp.StatusCode, Text: errorText(err), Err: err}
	}
}

// GetCheckSuitesForCommit lists the check suites of sha that ran on branch
func (c *Transport) GetCheckSuitesForCommit(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) ([]CheckSuite, error) {
	logger := log.FromContext(ctx)
	suites := []CheckSuite{}
	opts := &github.ListCheckSuiteOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		var result *github.ListCheckSuiteResults
		var resp *github.Response

		err := c.executeWithRetry(ctx, func() error {
			var err error
			result, resp, err = c.client.Checks.ListCheckSuitesForRef(ctx, repo.Owner(), repo.Name(), string(sha), opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list check suites for %s@%s: %w", repo, sha, err)
		}

		for _, suite := range result.CheckSuites {
			if suite.GetHeadBranch() != branch {
				continue
			}
			status, known := checkSuiteStatusFromConclusion(suite.GetConclusion())
			if !known {
				logger.Info("Unknown check suite conclusion, treating as pending",
					"conclusion", suite.GetConclusion(), "suite", suite.GetID())
			}
			suites = append(suites, CheckSuite{ID: suite.GetID(), Status: status})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return suites, nil
}

// CancelWorkflows cancels all given runs concurrently. Every request is
// attempted; the failures are combined into one error.
func (c *Transport) CancelWorkflows(ctx context.Context, repo RepositoryID, runIDs []RunID) error {
	errs := make([]error, len(runIDs))

	var g errgroup.Group
	for i, id := range runIDs {
		g.Go(func() error {
			errs[i] = c.cancelWorkflow(ctx, repo, id)
			return nil
		})
	}
	_ = g.Wait()

	return multierr.Combine(errs...)
}

func (c *Transport) cancelWorkflow(ctx context.Context, repo RepositoryID, id RunID) error {
	err := c.executeWithRetry(ctx, func() error {
		_, err := c.client.Actions.CancelWorkflowRunByID(ctx, repo.Owner(), repo.Name(), int64(id))
		var accepted *github.AcceptedError
		if errors.As(err, &accepted) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to cancel workflow run %d: %w", id, err)
	}
	return nil
}

// AddLabels adds labels to the pull request
func (c *Transport) AddLabels(ctx context.Context, repo RepositoryID, pr int, labels []string) error {
	if len(labels) == 0 {
		return nil
	}

	err := c.executeWithRetry(ctx, func() error {
		_, _, err := c.client.Issues.AddLabelsToIssue(ctx, repo.Owner(), repo.Name(), pr, labels)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to add labels %v to %s#%d: %w", labels, repo, pr, err)
	}
	return nil
}

// RemoveLabels removes labels from the pull request. Labels that are not set are skipped.
func (c *Transport) RemoveLabels(ctx context.Context, repo RepositoryID, pr int, labels []string) error {
	for _, label := range labels {
		err := c.executeWithRetry(ctx, func() error {
			_, err := c.client.Issues.RemoveLabelForIssue(ctx, repo.Owner(), repo.Name(), pr, label)
			return err
		})
		if err != nil && !hasStatus(err, http.StatusNotFound) {
			return fmt.Errorf("failed to remove label %q from %s#%d: %w", label, repo, pr, err)
		}
	}
	return nil
}

// GetFileContent returns the decoded content of path on branch
func (c *Transport) GetFileContent(ctx context.Context, repo RepositoryID, branch, path string) (string, error) {
	var file *github.RepositoryContent

	err := c.executeWithRetry(ctx, func() error {
		var err error
		file, _, _, err = c.client.Repositories.GetContents(ctx, repo.Owner(), repo.Name(), path,
			&github.RepositoryContentGetOptions{Ref: branch})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to get %s from %s@%s: %w", path, repo, branch, err)
	}
	if file == nil {
		return "", fmt.Errorf("%s in %s@%s is not a file", path, repo, branch)
	}

	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s from %s@%s: %w", path, repo, branch, err)
	}
	return content, nil
}

// executeWithRetry executes an operation with exponential backoff retry
func (c *Transport) executeWithRetry(ctx context.Context, operation func() error) error {
	return c.retry(ctx, c.isRetryableError, operation)
}

// retry runs operation until it succeeds, fails with an error retryable
// rejects, or runs out of attempts
func (c *Transport) retry(ctx context.Context, retryable func(error) bool, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if !retryable(lastErr) {
			return lastErr
		}

		if attempt == c.retryConfig.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay(lastErr, attempt)):
		}
	}

	return fmt.Errorf("operation failed after %d retries: %w", c.retryConfig.MaxRetries, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func (c *Transport) isRetryableError(err error) bool {
	if isRateLimitError(err) {
		return true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// isRateLimitError reports errors where the API refused the request without acting on it
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusTooManyRequests:
			return true
		case http.StatusForbidden:
			return strings.Contains(strings.ToLower(ghErr.Message), "rate limit")
		}
	}

	return false
}

// retryDelay honors rate-limit reset headers when present, capped at MaxBackoff
func (c *Transport) retryDelay(err error, attempt int) time.Duration {
	if resp := errorResponse(err); resp != nil {
		if limited, wait := c.checkRateLimit(resp); limited {
			return min(wait, c.retryConfig.MaxBackoff)
		}
	}
	return c.calculateBackoff(attempt)
}

// calculateBackoff calculates the backoff duration for a retry attempt
func (c *Transport) calculateBackoff(attempt int) time.Duration {
	multiplier := 1 << uint(attempt)
	base := float64(c.retryConfig.InitialBackoff) * float64(multiplier)

	// ±20% jitter
	jitter := (rand.Float64() * 0.4) - 0.2
	backoff := time.Duration(base * (1 + jitter))

	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	return backoff
}

// checkRateLimit checks response headers for rate limit information
func (c *Transport) checkRateLimit(resp *http.Response) (bool, time.Duration) {
	if resp == nil {
		return false, 0
	}

	remaining := resp.Header.Get("X-RateLimit-Remaining")
	if remaining != "" {
		if rem, err := strconv.Atoi(remaining); err == nil && rem == 0 {
			resetStr := resp.Header.Get("X-RateLimit-Reset")
			if resetStr != "" {
				if resetTime, err := strconv.ParseInt(resetStr, 10, 64); err == nil {
					waitTime := time.Until(time.Unix(resetTime, 0))
					if waitTime > 0 {
						return true, waitTime
					}
				}
			}
		}
	}

	// secondary rate limit: 403 without rate limit headers
	if resp.StatusCode == http.StatusForbidden {
		return true, 60 * time.Second
	}

	return false, 0
}

func errorResponse(err error) *http.Response {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.Response
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return abuseErr.Response
	}
	return nil
}

func hasStatus(err error, codes ...int) bool {
	resp := errorResponse(err)
	if resp == nil {
		return false
	}
	for _, code := range codes {
		if resp.StatusCode == code {
			return true
		}
	}
	return false
}

func errorText(err error) string {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ConvertPullRequest converts a go-github pull request into a snapshot
func ConvertPullRequest(pr *github.PullRequest) PullRequest {
	if pr == nil {
		return PullRequest{}
	}

	result := PullRequest{
		Number:    pr.GetNumber(),
		HeadLabel: unknownHeadLabel,
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
	}

	if pr.Head != nil {
		if label := pr.Head.GetLabel(); label != "" {
			result.HeadLabel = label
		}
		result.Head = Branch{Name: pr.Head.GetRef(), SHA: CommitSHA(pr.Head.GetSHA())}
	}

	if pr.Base != nil {
		result.Base = Branch{Name: pr.Base.GetRef(), SHA: CommitSHA(pr.Base.GetSHA())}
	}

	return result
}
