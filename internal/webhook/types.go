// Copyright 2025 The bors-mg Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package webhook

// Request headers GitHub sets on every webhook delivery
const (
	HeaderSignature = "X-Hub-Signature-256"
	HeaderEvent     = "X-GitHub-Event"
	HeaderDelivery  = "X-GitHub-Delivery"
)

// Event names the parser understands. Anything else is acknowledged and ignored.
const (
	EventIssueComment             = "issue_comment"
	EventPullRequestReview        = "pull_request_review"
	EventPullRequestReviewComment = "pull_request_review_comment"
	EventInstallation             = "installation"
	EventInstallationRepositories = "installation_repositories"
	EventWorkflowRun              = "workflow_run"
	EventCheckRun                 = "check_run"
	EventCheckSuite               = "check_suite"
)

// Actions within those events that produce a bot event
const (
	actionCreated   = "created"
	actionSubmitted = "submitted"
	actionRequested = "requested"
	actionCompleted = "completed"
)

// firstPartyCIOwner is the app owner of check runs created by GitHub Actions.
// Those runs already arrive as workflow_run events.
const firstPartyCIOwner = "github"

// conclusionSuccess is the only workflow conclusion treated as a passing run
const conclusionSuccess = "success"
