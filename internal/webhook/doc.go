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


// Package webhook receives GitHub webhook deliveries for the merge bot.
//
// The server verifies the X-Hub-Signature-256 header, turns the payload into
// one of the event types in package event and hands it to a Dispatcher.
//
// Event Handling:
//
//   - issue_comment (created, on a pull request): Comment with a lazy PR reference
//   - pull_request_review (submitted): Comment authored by the sender
//   - pull_request_review_comment (created): Comment authored by the commenter
//   - installation, installation_repositories: InstallationsChanged
//   - workflow_run (requested, completed): WorkflowStarted, WorkflowCompleted
//   - check_run (created, not from GitHub Actions): external WorkflowStarted
//   - check_suite (completed): CheckSuiteCompleted
//
// Responses:
//
// Deliveries with a missing or invalid signature, and recognized events whose
// payload cannot be parsed, receive HTTP 400. Everything else receives HTTP
// 200, including event types the bot does not care about. Handler failures
// are logged by the dispatcher and never change the response.
//
// Example usage:
//
//	server := webhook.NewServer("", 8080, handler, secret)
//	if err := server.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package webhook
