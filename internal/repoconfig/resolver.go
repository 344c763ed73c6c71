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

package repoconfig

import (
	"context"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/github"
)

// FilePath is the location of the configuration document in a repository
const FilePath = "bors.toml"

// DefaultOrgConfigRepo is the repository holding the organization-wide configuration
const DefaultOrgConfigRepo = ".github"

// configBranches are tried in order
var configBranches = []string{"master", "main"}

// FileFetcher reads a file from a branch of a repository
type FileFetcher interface {
	GetFileContent(ctx context.Context, repo github.RepositoryID, branch, path string) (string, error)
}

// Resolver loads and merges repository and organization configuration
type Resolver struct {
	orgConfigRepo string
}

// NewResolver creates a resolver that reads the organization configuration from
// <owner>/<orgConfigRepo>. An empty orgConfigRepo disables organization configuration.
func NewResolver(orgConfigRepo string) *Resolver {
	return &Resolver{orgConfigRepo: orgConfigRepo}
}

// Resolve returns the effective configuration of repo, or nil if neither the
// repository nor its organization is configured. Failing to fetch or parse a
// document counts as the document being absent.
func (r *Resolver) Resolve(ctx context.Context, fetcher FileFetcher, repo github.RepositoryID) *Configuration {
	local := r.load(ctx, fetcher, repo)

	var global *Configuration
	if orgRepo, ok := r.orgRepository(repo); ok {
		global = r.load(ctx, fetcher, orgRepo)
	}

	return Merge(global, local)
}

func (r *Resolver) orgRepository(repo github.RepositoryID) (github.RepositoryID, bool) {
	if r.orgConfigRepo == "" {
		return github.RepositoryID{}, false
	}
	orgRepo := github.NewRepositoryID(repo.Owner(), r.orgConfigRepo)
	if orgRepo == repo {
		return github.RepositoryID{}, false
	}
	return orgRepo, true
}

func (r *Resolver) load(ctx context.Context, fetcher FileFetcher, repo github.RepositoryID) *Configuration {
	logger := log.FromContext(ctx).WithValues("repository", repo.String())

	for _, branch := range configBranches {
		content, err := fetcher.GetFileContent(ctx, repo, branch, FilePath)
		if err != nil {
			logger.V(1).Info("Configuration not available", "branch", branch, "error", err.Error())
			continue
		}

		cfg, err := Parse([]byte(content))
		if err != nil {
			logger.Info("Ignoring invalid configuration", "branch", branch, "error", err.Error())
			continue
		}
		return cfg
	}
	return nil
}
