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
	"sync"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Credentials holds the secrets the transports are built from.
// Empty fields mean the corresponding transport is unavailable.
type Credentials struct {
	Token      string
	AppID      int64
	PrivateKey []byte
}

// HasToken reports whether the token transport can be built
func (c Credentials) HasToken() bool { return c.Token != "" }

// HasApp reports whether the app transport can be built
func (c Credentials) HasApp() bool { return c.AppID != 0 && len(c.PrivateKey) > 0 }

// preference names the transport tried first for an operation
type preference int

const (
	preferToken preference = iota
	preferApp
)

// operationPreference is the per-operation transport preference. Token-first
// operations are the cheap ones; app-first operations are writes and lookups
// that should run as the bot identity.
var operationPreference = map[string]preference{
	"Get":                     preferToken,
	"Post":                    preferToken,
	"Patch":                   preferToken,
	"PostComment":             preferToken,
	"GetFileContent":          preferToken,
	"GetPullRequest":          preferApp,
	"SetBranchToSHA":          preferApp,
	"CreateBranch":            preferApp,
	"UpdateBranch":            preferApp,
	"MergeBranches":           preferApp,
	"GetCheckSuitesForCommit": preferApp,
	"CancelWorkflows":         preferApp,
	"AddLabels":               preferApp,
	"RemoveLabels":            preferApp,
}

// AutoClient selects between the token and app transports per operation.
// The app transport is built on first use and reused afterwards.
type AutoClient struct {
	token Client

	newApp  func() (Client, error)
	appOnce sync.Once
	app     Client
	appErr  error
}

var _ Client = (*AutoClient)(nil)

// NewAutoClient creates a façade over whichever transports the credentials allow
func NewAutoClient(creds Credentials, opts ...Option) *AutoClient {
	var newApp func() (Client, error)
	if creds.HasApp() {
		newApp = func() (Client, error) {
			return NewAppClient(creds.AppID, creds.PrivateKey, opts...)
		}
	}

	a := newAutoClient(nil, newApp)
	if creds.HasToken() {
		token, err := NewClient(creds.Token, opts...)
		if err != nil {
			log.Log.Error(err, "Token transport unavailable")
		} else {
			a.token = token
		}
	}
	return a
}

func newAutoClient(token Client, newApp func() (Client, error)) *AutoClient {
	return &AutoClient{token: token, newApp: newApp}
}

// appClient returns the cached app transport, building it on first call
func (a *AutoClient) appClient(ctx context.Context) Client {
	if a.newApp == nil {
		return nil
	}
	a.appOnce.Do(func() {
		a.app, a.appErr = a.newApp()
		if a.appErr != nil {
			log.FromContext(ctx).Error(a.appErr, "App transport unavailable")
		}
	})
	if a.appErr != nil {
		return nil
	}
	return a.app
}

// pick returns the transport for the named operation
func (a *AutoClient) pick(ctx context.Context, operation string) (Client, error) {
	if operationPreference[operation] == preferToken {
		if a.token != nil {
			return a.token, nil
		}
		if app := a.appClient(ctx); app != nil {
			return app, nil
		}
		return nil, ErrNoClient
	}

	if app := a.appClient(ctx); app != nil {
		return app, nil
	}
	if a.token != nil {
		return a.token, nil
	}
	return nil, ErrNoClient
}

func (a *AutoClient) Get(ctx context.Context, path string, out any) error {
	c, err := a.pick(ctx, "Get")
	if err != nil {
		return err
	}
	return c.Get(ctx, path, out)
}

func (a *AutoClient) Post(ctx context.Context, path string, body, out any) error {
	c, err := a.pick(ctx, "Post")
	if err != nil {
		return err
	}
	return c.Post(ctx, path, body, out)
}

func (a *AutoClient) Patch(ctx context.Context, path string, body, out any) error {
	c, err := a.pick(ctx, "Patch")
	if err != nil {
		return err
	}
	return c.Patch(ctx, path, body, out)
}

func (a *AutoClient) PostComment(ctx context.Context, repo RepositoryID, pr int, text string) error {
	c, err := a.pick(ctx, "PostComment")
	if err != nil {
		return err
	}
	return c.PostComment(ctx, repo, pr, text)
}

func (a *AutoClient) GetFileContent(ctx context.Context, repo RepositoryID, branch, path string) (string, error) {
	c, err := a.pick(ctx, "GetFileContent")
	if err != nil {
		return "", err
	}
	return c.GetFileContent(ctx, repo, branch, path)
}

func (a *AutoClient) GetPullRequest(ctx context.Context, repo RepositoryID, number int) (PullRequest, error) {
	c, err := a.pick(ctx, "GetPullRequest")
	if err != nil {
		return PullRequest{}, err
	}
	return c.GetPullRequest(ctx, repo, number)
}

func (a *AutoClient) SetBranchToSHA(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error {
	c, err := a.pick(ctx, "SetBranchToSHA")
	if err != nil {
		return err
	}
	return c.SetBranchToSHA(ctx, repo, branch, sha)
}

func (a *AutoClient) CreateBranch(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error {
	c, err := a.pick(ctx, "CreateBranch")
	if err != nil {
		return err
	}
	return c.CreateBranch(ctx, repo, branch, sha)
}

func (a *AutoClient) UpdateBranch(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) error {
	c, err := a.pick(ctx, "UpdateBranch")
	if err != nil {
		return err
	}
	return c.UpdateBranch(ctx, repo, branch, sha)
}

func (a *AutoClient) MergeBranches(ctx context.Context, repo RepositoryID, base string, head CommitSHA, message string) (CommitSHA, error) {
	c, err := a.pick(ctx, "MergeBranches")
	if err != nil {
		return "", err
	}
	return c.MergeBranches(ctx, repo, base, head, message)
}

func (a *AutoClient) GetCheckSuitesForCommit(ctx context.Context, repo RepositoryID, branch string, sha CommitSHA) ([]CheckSuite, error) {
	c, err := a.pick(ctx, "GetCheckSuitesForCommit")
	if err != nil {
		return nil, err
	}
	return c.GetCheckSuitesForCommit(ctx, repo, branch, sha)
}

func (a *AutoClient) CancelWorkflows(ctx context.Context, repo RepositoryID, runIDs []RunID) error {
	c, err := a.pick(ctx, "CancelWorkflows")
	if err != nil {
		return err
	}
	return c.CancelWorkflows(ctx, repo, runIDs)
}

func (a *AutoClient) AddLabels(ctx context.Context, repo RepositoryID, pr int, labels []string) error {
	c, err := a.pick(ctx, "AddLabels")
	if err != nil {
		return err
	}
	return c.AddLabels(ctx, repo, pr, labels)
}

func (a *AutoClient) RemoveLabels(ctx context.Context, repo RepositoryID, pr int, labels []string) error {
	c, err := a.pick(ctx, "RemoveLabels")
	if err != nil {
		return err
	}
	return c.RemoveLabels(ctx, repo, pr, labels)
}
