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
	"errors"
	"fmt"
)

// ErrNoClient is returned when neither the token nor the app transport is configured
var ErrNoClient = errors.New("no authorized GitHub client available")

// MergeErrorKind classifies a failed merge
type MergeErrorKind int

const (
	// MergeNotFound indicates the base branch or head commit does not exist
	MergeNotFound MergeErrorKind = iota + 1
	// MergeConflict indicates the head cannot be merged cleanly into the base
	MergeConflict
	// MergeAlreadyMerged indicates the base already contains the head
	MergeAlreadyMerged
	// MergeUnknown indicates an unexpected response status
	MergeUnknown
	// MergeNetworkError indicates the request did not produce a response
	MergeNetworkError
)

func (k MergeErrorKind) String() string {
	switch k {
	case MergeNotFound:
		return "not found"
	case MergeConflict:
		return "conflict"
	case MergeAlreadyMerged:
		return "already merged"
	case MergeUnknown:
		return "unknown"
	case MergeNetworkError:
		return "network error"
	default:
		return fmt.Sprintf("MergeErrorKind(%d)", int(k))
	}
}

// MergeError is returned by MergeBranches for every outcome other than a new merge commit
type MergeError struct {
	Kind   MergeErrorKind
	Status int
	Text   string
	Err    error
}

func (e *MergeError) Error() string {
	switch e.Kind {
	case MergeUnknown:
		return fmt.Sprintf("merge failed with status %d: %s", e.Status, e.Text)
	case MergeNetworkError:
		return fmt.Sprintf("merge failed: %v", e.Err)
	default:
		return "merge failed: " + e.Kind.String()
	}
}

func (e *MergeError) Unwrap() error { return e.Err }

// IsMergeError reports whether err is a MergeError of the given kind
func IsMergeError(err error, kind MergeErrorKind) bool {
	var mergeErr *MergeError
	return errors.As(err, &mergeErr) && mergeErr.Kind == kind
}

// BranchNotFoundError is returned by UpdateBranch when the branch does not exist
type BranchNotFoundError struct {
	Branch string
	Err    error
}

func (e *BranchNotFoundError) Error() string {
	return fmt.Sprintf("branch %q not found", e.Branch)
}

func (e *BranchNotFoundError) Unwrap() error { return e.Err }
