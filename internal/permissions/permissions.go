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

// Package permissions decides which users may run privileged bot commands.
package permissions

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/sagudev/bors-mg/internal/repoconfig"
)

// Kind is a privileged action
type Kind int

const (
	// Review allows approving pull requests
	Review Kind = iota + 1
	// Try allows starting and cancelling try builds
	Try
)

func (k Kind) String() string {
	switch k {
	case Review:
		return "review"
	case Try:
		return "try"
	default:
		return "unknown"
	}
}

// HasPermission reports whether username may perform kind under cfg.
// An unconfigured repository (nil cfg) grants nothing.
func HasPermission(cfg *repoconfig.Configuration, username string, kind Kind) bool {
	if cfg == nil {
		return false
	}

	switch kind {
	case Review:
		return inSet(cfg.Reviewers, username)
	case Try:
		return inSet(cfg.Reviewers, username) || inSet(cfg.TryUsers, username)
	default:
		return false
	}
}

func inSet(set mapset.Set[string], username string) bool {
	return set != nil && set.Contains(username)
}
