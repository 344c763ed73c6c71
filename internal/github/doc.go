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

// Package github provides the GitHub API surface used by the merge bot.
//
// Two transports implement the Client interface:
//   - a token transport, authenticated with a long-lived personal access token
//   - an app transport, authenticated with a short-lived RS256 assertion minted
//     from the GitHub App identifier and private key
//
// AutoClient wraps both and picks one per operation. Read-mostly calls that are
// cheap on the token's rate limit prefer the token transport; writes prefer the
// app transport so the audit trail shows the bot identity. If neither transport
// is configured, every call fails with ErrNoClient.
//
// Example usage:
//
//	client := github.NewAutoClient(github.Credentials{
//		Token:      os.Getenv("PAT"),
//		AppID:      appID,
//		PrivateKey: key,
//	})
//
//	pr, err := client.GetPullRequest(ctx, repo, 42)
//	if err != nil {
//		return err
//	}
//	sha, err := client.MergeBranches(ctx, repo, "automation/bors/try-merge", pr.Head.SHA, msg)
//
// Merge outcomes:
//
// MergeBranches classifies the response of the merge endpoint:
//   - 201: merge commit created, its SHA is returned
//   - 204: head already contained in base, MergeAlreadyMerged
//   - 404: base or head missing, MergeNotFound
//   - 409: merge conflict, MergeConflict
//   - anything else: MergeUnknown with the status and message
//   - no response at all: MergeNetworkError
//
// Retry Logic:
//
// Requests failing with 429, 502, 503, 504 or a rate-limit 403 are retried with
// exponential backoff and jitter. Primary rate-limit errors wait for the reset
// time, capped at the maximum backoff.
package github
