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

// Package event defines the typed events the bot reacts to.
//
// Webhook payloads are parsed into one of the Event variants by the webhook
// package and handed to the dispatcher in package bors. Comment events carry
// a LazyPullRequest so that the pull request is only fetched when a command
// actually needs it.
package event

import (
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/store"
)

// Event is one of Comment, WorkflowStarted, WorkflowCompleted,
// CheckSuiteCompleted, InstallationsChanged or Refresh
type Event interface {
	isEvent()
}

// Comment is a comment on a pull request, including review bodies and review comments
type Comment struct {
	Repository  github.RepositoryID
	Author      github.User
	PullRequest *LazyPullRequest
	Text        string
}

// WorkflowStarted is emitted when a workflow run is requested or an external check run is created
type WorkflowStarted struct {
	Repository github.RepositoryID
	Name       string
	Branch     string
	CommitSHA  github.CommitSHA
	RunID      github.RunID
	URL        string
	Type       store.WorkflowType
}

// WorkflowCompleted is emitted when a workflow run finishes
type WorkflowCompleted struct {
	Repository github.RepositoryID
	Branch     string
	CommitSHA  github.CommitSHA
	RunID      github.RunID
	Status     store.WorkflowStatus
}

// CheckSuiteCompleted is emitted when all checks of a commit on a branch have concluded
type CheckSuiteCompleted struct {
	Repository github.RepositoryID
	Branch     string
	CommitSHA  github.CommitSHA
}

// InstallationsChanged is emitted when the app is installed on or removed from repositories
type InstallationsChanged struct{}

// Refresh is emitted periodically by the refresh scheduler
type Refresh struct{}

func (Comment) isEvent()              {}
func (WorkflowStarted) isEvent()      {}
func (WorkflowCompleted) isEvent()    {}
func (CheckSuiteCompleted) isEvent()  {}
func (InstallationsChanged) isEvent() {}
func (Refresh) isEvent()              {}
