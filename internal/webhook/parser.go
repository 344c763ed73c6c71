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

import (
	"context"
	"encoding/json"
	"fmt"

	gh "github.com/google/go-github/v66/github"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/event"
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/store"
)

// ParseEvent maps a webhook delivery to a bot event.
//
// A nil event with a nil error means the delivery was understood but does
// not warrant dispatch (unknown event type, uninteresting action, comment on
// a plain issue). Malformed JSON or a payload without a repository owner is
// an error.
func ParseEvent(ctx context.Context, eventType string, body []byte) (event.Event, error) {
	logger := log.FromContext(ctx).WithValues("event", eventType)

	switch eventType {
	case EventIssueComment:
		var payload gh.IssueCommentEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", eventType, err)
		}
		return parseIssueComment(ctx, &payload)

	case EventPullRequestReview:
		var payload gh.PullRequestReviewEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", eventType, err)
		}
		return parseReview(&payload)

	case EventPullRequestReviewComment:
		var payload gh.PullRequestReviewCommentEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", eventType, err)
		}
		return parseReviewComment(&payload)

	case EventInstallation, EventInstallationRepositories:
		return event.InstallationsChanged{}, nil

	case EventWorkflowRun:
		var payload gh.WorkflowRunEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", eventType, err)
		}
		return parseWorkflowRun(&payload)

	case EventCheckRun:
		var payload gh.CheckRunEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", eventType, err)
		}
		return parseCheckRun(&payload)

	case EventCheckSuite:
		var payload gh.CheckSuiteEvent
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("failed to parse %s payload: %w", eventType, err)
		}
		return parseCheckSuite(&payload)

	default:
		logger.V(1).Info("Ignoring unknown event type")
		return nil, nil
	}
}

func parseIssueComment(ctx context.Context, payload *gh.IssueCommentEvent) (event.Event, error) {
	repo, err := repositoryID(payload.GetRepo())
	if err != nil {
		return nil, err
	}
	if payload.GetAction() != actionCreated {
		return nil, nil
	}

	issue := payload.GetIssue()
	if issue == nil || !issue.IsPullRequest() {
		log.FromContext(ctx).V(1).Info("Ignoring comment on an issue", "repository", repo.String(), "issue", issue.GetNumber())
		return nil, nil
	}

	return event.Comment{
		Repository:  repo,
		Author:      convertUser(payload.GetComment().GetUser()),
		PullRequest: event.NewLazyPullRequest(repo, issue.GetNumber()),
		Text:        payload.GetComment().GetBody(),
	}, nil
}

// parseReview takes the comment author from the sender of the review
func parseReview(payload *gh.PullRequestReviewEvent) (event.Event, error) {
	if payload.GetAction() != actionSubmitted {
		return nil, nil
	}
	repo, err := repositoryID(payload.GetRepo())
	if err != nil {
		return nil, err
	}

	return event.Comment{
		Repository:  repo,
		Author:      convertUser(payload.GetSender()),
		PullRequest: event.NewResolvedPullRequest(repo, github.ConvertPullRequest(payload.GetPullRequest())),
		Text:        payload.GetReview().GetBody(),
	}, nil
}

func parseReviewComment(payload *gh.PullRequestReviewCommentEvent) (event.Event, error) {
	repo, err := repositoryID(payload.GetRepo())
	if err != nil {
		return nil, err
	}
	if payload.GetAction() != actionCreated {
		return nil, nil
	}

	return event.Comment{
		Repository:  repo,
		Author:      convertUser(payload.GetComment().GetUser()),
		PullRequest: event.NewResolvedPullRequest(repo, github.ConvertPullRequest(payload.GetPullRequest())),
		Text:        payload.GetComment().GetBody(),
	}, nil
}

func parseWorkflowRun(payload *gh.WorkflowRunEvent) (event.Event, error) {
	repo, err := repositoryID(payload.GetRepo())
	if err != nil {
		return nil, err
	}
	run := payload.GetWorkflowRun()

	switch payload.GetAction() {
	case actionRequested:
		return event.WorkflowStarted{
			Repository: repo,
			Name:       run.GetName(),
			Branch:     run.GetHeadBranch(),
			CommitSHA:  github.CommitSHA(run.GetHeadSHA()),
			RunID:      github.RunID(run.GetID()),
			URL:        run.GetHTMLURL(),
			Type:       store.WorkflowTypeHosted,
		}, nil
	case actionCompleted:
		status := store.WorkflowStatusFailure
		if run.GetConclusion() == conclusionSuccess {
			status = store.WorkflowStatusSuccess
		}
		return event.WorkflowCompleted{
			Repository: repo,
			Branch:     run.GetHeadBranch(),
			CommitSHA:  github.CommitSHA(run.GetHeadSHA()),
			RunID:      github.RunID(run.GetID()),
			Status:     status,
		}, nil
	default:
		return nil, nil
	}
}

func parseCheckRun(payload *gh.CheckRunEvent) (event.Event, error) {
	run := payload.GetCheckRun()
	if run.GetApp().GetOwner().GetLogin() == firstPartyCIOwner {
		return nil, nil
	}

	repo, err := repositoryID(payload.GetRepo())
	if err != nil {
		return nil, err
	}
	if payload.GetAction() != actionCreated {
		return nil, nil
	}

	suite := run.GetCheckSuite()
	return event.WorkflowStarted{
		Repository: repo,
		Name:       run.GetName(),
		Branch:     suite.GetHeadBranch(),
		CommitSHA:  github.CommitSHA(suite.GetHeadSHA()),
		RunID:      github.RunID(run.GetID()),
		URL:        run.GetHTMLURL(),
		Type:       store.WorkflowTypeExternal,
	}, nil
}

func parseCheckSuite(payload *gh.CheckSuiteEvent) (event.Event, error) {
	repo, err := repositoryID(payload.GetRepo())
	if err != nil {
		return nil, err
	}
	if payload.GetAction() != actionCompleted {
		return nil, nil
	}

	suite := payload.GetCheckSuite()
	return event.CheckSuiteCompleted{
		Repository: repo,
		Branch:     suite.GetHeadBranch(),
		CommitSHA:  github.CommitSHA(suite.GetHeadSHA()),
	}, nil
}

// repositoryID extracts owner and name. Some payload shapes omit the owner.
func repositoryID(repo *gh.Repository) (github.RepositoryID, error) {
	if repo == nil {
		return github.RepositoryID{}, fmt.Errorf("payload has no repository")
	}
	owner := repo.GetOwner().GetLogin()
	if owner == "" {
		return github.RepositoryID{}, fmt.Errorf("owner for repository %q is missing", repo.GetName())
	}
	return github.NewRepositoryID(owner, repo.GetName()), nil
}

func convertUser(u *gh.User) github.User {
	return github.User{ID: u.GetID(), Login: u.GetLogin()}
}
