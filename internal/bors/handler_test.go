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

package bors

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sagudev/bors-mg/internal/event"
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/github/githubtest"
	"github.com/sagudev/bors-mg/internal/repoconfig"
	"github.com/sagudev/bors-mg/internal/store"
)

const testConfig = `
reviewers = ["rev"]
try_users = ["alice"]

[labels]
try = ["+S-testing", "-S-waiting-on-review"]
try_succeed = ["+S-tests-passed", "-S-testing"]
try_failed = ["+S-tests-failed", "-S-testing"]
`

type countingHook struct {
	calls int
	err   error
}

func (c *countingHook) Refresh(_ context.Context, _ github.Client) error {
	c.calls++
	return c.err
}

var _ = Describe("Handler", func() {
	var (
		ctx     context.Context
		repo    github.RepositoryID
		client  *githubtest.Client
		st      *store.Memory
		handler *Handler
		pr      github.PullRequest
	)

	comment := func(author, text string) event.Comment {
		return event.Comment{
			Repository:  repo,
			Author:      github.User{ID: 1, Login: author},
			PullRequest: event.NewLazyPullRequest(repo, pr.Number),
			Text:        text,
		}
	}

	commentTexts := func() []string {
		var texts []string
		for _, c := range client.Comments() {
			texts = append(texts, c.Text)
		}
		return texts
	}

	BeforeEach(func() {
		ctx = context.Background()
		repo = github.NewRepositoryID("rust-lang", "example")
		client = githubtest.NewClient()
		client.MergeSHA = "ghi789"
		client.SetFile(repo, "master", repoconfig.FilePath, testConfig)

		pr = github.PullRequest{
			Number:    5,
			HeadLabel: "bob:fix-frobnicator",
			Head:      github.Branch{Name: "fix-frobnicator", SHA: "def456"},
			Base:      github.Branch{Name: "master", SHA: "abc123"},
			Title:     "Fix the frobnicator",
			Body:      "Closes #3",
		}
		client.AddPullRequest(repo, pr)

		st = store.NewMemory()
		handler = NewHandler(func(context.Context) github.Client { return client }, st, WithPrefix("@bors"))
	})

	Context("ping", func() {
		It("replies with pong", func() {
			Expect(handler.Handle(ctx, comment("anyone", "@bors ping"))).To(Succeed())
			Expect(commentTexts()).To(Equal([]string{"Pong 🏓!"}))
		})

		It("replies differently on servo repositories", func() {
			repo = github.NewRepositoryID("servo", "servo")
			Expect(handler.Handle(ctx, comment("anyone", "@bors ping"))).To(Succeed())
			Expect(commentTexts()).To(Equal([]string{":sleepy: I'm awake I'm awake"}))
		})
	})

	Context("command parsing", func() {
		It("ignores comments without commands", func() {
			Expect(handler.Handle(ctx, comment("alice", "looks good to me"))).To(Succeed())
			Expect(client.Comments()).To(BeEmpty())
		})

		It("answers parse errors and continues with the next command", func() {
			text := "@bors\n@bors frobnicate now\n@bors ping"
			Expect(handler.Handle(ctx, comment("alice", text))).To(Succeed())
			Expect(commentTexts()).To(Equal([]string{
				"Missing command.",
				`Unknown command "frobnicate".`,
				"Pong 🏓!",
			}))
		})

		It("stops at the first failing command", func() {
			client.MergeErr = &github.MergeError{Kind: github.MergeUnknown, Status: 500, Text: "boom"}

			err := handler.Handle(ctx, comment("alice", "@bors try\n@bors ping"))
			Expect(err).To(HaveOccurred())
			Expect(commentTexts()).To(Equal([]string{":x: Encountered an error while executing command"}))
		})

		It("logs handler errors without panicking", func() {
			client.PostCommentErr = errors.New("api down")
			Expect(func() { handler.HandleEvent(ctx, comment("alice", "@bors ping")) }).NotTo(Panic())
		})
	})

	Context("try", func() {
		It("merges the PR and pushes the result to the try branch", func() {
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())

			Expect(client.BranchUpdates()).To(Equal([]githubtest.BranchUpdate{
				{Repository: repo, Branch: TryMergeBranch, SHA: "abc123"},
				{Repository: repo, Branch: TryBranch, SHA: "ghi789"},
			}))

			merges := client.Merges()
			Expect(merges).To(HaveLen(1))
			Expect(merges[0].Base).To(Equal(TryMergeBranch))
			Expect(merges[0].Head).To(Equal(github.CommitSHA("def456")))
			Expect(merges[0].Message).To(Equal("Auto merge of #5 - bob:fix-frobnicator, r=<try>\nFix the frobnicator\n\nCloses #3"))

			texts := commentTexts()
			Expect(texts).To(HaveLen(1))
			Expect(texts[0]).To(ContainSubstring("Trying commit def456 with merge ghi789"))
		})

		It("fetches the pull request once", func() {
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())
			Expect(client.PullRequestFetches()).To(Equal(1))
		})

		It("records a pending build and applies the try labels", func() {
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())

			build, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(build).NotTo(BeNil())
			Expect(build.Branch).To(Equal(TryBranch))
			Expect(build.CommitSHA).To(Equal(github.CommitSHA("ghi789")))

			Expect(client.LabelsAdded(5)).To(Equal([]string{"S-testing"}))
			Expect(client.LabelsRemoved(5)).To(Equal([]string{"S-waiting-on-review"}))
		})

		It("reports the started build when the label API fails", func() {
			client.LabelsErr = errors.New("label API down")

			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())

			texts := commentTexts()
			Expect(texts).To(HaveLen(1))
			Expect(texts[0]).To(ContainSubstring("Trying commit def456 with merge ghi789"))

			build, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(build).NotTo(BeNil())
			Expect(client.LabelsAdded(5)).To(BeEmpty())
		})

		It("allows reviewers", func() {
			Expect(handler.Handle(ctx, comment("rev", "@bors try"))).To(Succeed())
			Expect(client.Merges()).To(HaveLen(1))
		})

		It("rejects users without try permission", func() {
			Expect(handler.Handle(ctx, comment("mallory", "@bors try"))).To(Succeed())

			texts := commentTexts()
			Expect(texts).To(HaveLen(1))
			Expect(texts[0]).To(ContainSubstring("Insufficient privileges"))
			Expect(texts[0]).To(HavePrefix("@mallory:"))
			Expect(client.BranchUpdates()).To(BeEmpty())
			Expect(client.Merges()).To(BeEmpty())
		})

		It("rejects everyone on unconfigured repositories", func() {
			repo = github.NewRepositoryID("rust-lang", "unconfigured")
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())

			Expect(commentTexts()[0]).To(ContainSubstring("Insufficient privileges"))
			Expect(client.Merges()).To(BeEmpty())
		})

		It("reports merge conflicts with rebase instructions", func() {
			client.MergeErr = &github.MergeError{Kind: github.MergeConflict, Status: 409}

			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())

			texts := commentTexts()
			Expect(texts).To(HaveLen(1))
			Expect(texts[0]).To(ContainSubstring("Merge conflict"))
			Expect(texts[0]).To(ContainSubstring("git checkout fix-frobnicator"))
			Expect(texts[0]).To(ContainSubstring("git push self fix-frobnicator --force-with-lease"))

			Expect(client.BranchUpdates()).To(Equal([]githubtest.BranchUpdate{
				{Repository: repo, Branch: TryMergeBranch, SHA: "abc123"},
			}))
			build, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(build).To(BeNil())
		})

		It("refuses to start a second build while one is pending", func() {
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())

			texts := commentTexts()
			Expect(texts).To(HaveLen(2))
			Expect(texts[1]).To(Equal(":exclamation: A try build is currently in progress. You can cancel it using @bors try cancel."))
			Expect(client.Merges()).To(HaveLen(1))
		})

		It("propagates unexpected merge outcomes", func() {
			client.MergeErr = &github.MergeError{Kind: github.MergeAlreadyMerged, Status: 204}

			err := handler.Handle(ctx, comment("alice", "@bors try"))
			Expect(github.IsMergeError(err, github.MergeAlreadyMerged)).To(BeTrue())
			Expect(client.BranchUpdates()).To(HaveLen(1))
		})

		It("propagates branch update failures", func() {
			client.SetBranchErr = errors.New("ref update failed")

			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(MatchError(ContainSubstring("ref update failed")))
			Expect(client.Merges()).To(BeEmpty())
		})
	})

	Context("try cancel", func() {
		startBuild := func() store.BuildModel {
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())
			build, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(build).NotTo(BeNil())
			return *build
		}

		addWorkflow := func(build store.BuildModel, runID github.RunID, typ store.WorkflowType, status store.WorkflowStatus) {
			_, err := st.CreateWorkflow(ctx, store.WorkflowModel{
				BuildID: build.ID,
				Name:    "CI",
				RunID:   runID,
				Type:    typ,
				Status:  status,
			})
			Expect(err).NotTo(HaveOccurred())
		}

		It("reports that no build is in progress", func() {
			Expect(handler.Handle(ctx, comment("alice", "@bors try cancel"))).To(Succeed())
			Expect(commentTexts()).To(Equal([]string{":exclamation: There is currently no try build in progress."}))
		})

		It("cancels pending hosted workflows and the build", func() {
			build := startBuild()
			addWorkflow(build, 42, store.WorkflowTypeHosted, store.WorkflowStatusPending)
			addWorkflow(build, 43, store.WorkflowTypeHosted, store.WorkflowStatusSuccess)
			addWorkflow(build, 77, store.WorkflowTypeExternal, store.WorkflowStatusPending)

			Expect(handler.Handle(ctx, comment("alice", "@bors try cancel"))).To(Succeed())

			Expect(client.Cancelled()).To(Equal([]github.RunID{42}))
			pending, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeNil())
			Expect(commentTexts()).To(ContainElement("Try build cancelled."))
		})

		It("cancels the build even when workflow cancellation fails", func() {
			build := startBuild()
			addWorkflow(build, 42, store.WorkflowTypeHosted, store.WorkflowStatusPending)
			client.CancelErr = errors.New("cannot cancel")

			Expect(handler.Handle(ctx, comment("alice", "@bors try cancel"))).To(Succeed())

			pending, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeNil())
			Expect(commentTexts()).To(ContainElement("Try build cancelled."))
		})

		It("allows a new try build after cancelling", func() {
			startBuild()
			Expect(handler.Handle(ctx, comment("alice", "@bors try cancel"))).To(Succeed())
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())
			Expect(client.Merges()).To(HaveLen(2))
		})

		It("rejects users without try permission", func() {
			startBuild()
			Expect(handler.Handle(ctx, comment("mallory", "@bors try cancel"))).To(Succeed())

			pending, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).NotTo(BeNil())
			Expect(commentTexts()).To(ContainElement(ContainSubstring("Insufficient privileges")))
		})
	})

	Context("workflows", func() {
		var build store.BuildModel

		started := func(runID github.RunID, typ store.WorkflowType) event.WorkflowStarted {
			return event.WorkflowStarted{
				Repository: repo,
				Name:       "CI",
				Branch:     TryBranch,
				CommitSHA:  "ghi789",
				RunID:      runID,
				URL:        "https://github.com/rust-lang/example/actions/runs/42",
				Type:       typ,
			}
		}

		completed := func(runID github.RunID, status store.WorkflowStatus) event.WorkflowCompleted {
			return event.WorkflowCompleted{
				Repository: repo,
				Branch:     TryBranch,
				CommitSHA:  "ghi789",
				RunID:      runID,
				Status:     status,
			}
		}

		BeforeEach(func() {
			Expect(handler.Handle(ctx, comment("alice", "@bors try"))).To(Succeed())
			pending, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			build = *pending
		})

		It("attaches started workflows to the pending build", func() {
			Expect(handler.Handle(ctx, started(42, store.WorkflowTypeHosted))).To(Succeed())
			Expect(handler.Handle(ctx, started(77, store.WorkflowTypeExternal))).To(Succeed())

			workflows, err := st.GetWorkflowsForBuild(ctx, build.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(workflows).To(HaveLen(2))
			Expect(workflows[0].RunID).To(Equal(github.RunID(42)))
			Expect(workflows[0].Status).To(Equal(store.WorkflowStatusPending))
			Expect(workflows[1].Type).To(Equal(store.WorkflowTypeExternal))
		})

		It("ignores workflows of unknown commits", func() {
			ev := started(42, store.WorkflowTypeHosted)
			ev.CommitSHA = "unrelated"
			Expect(handler.Handle(ctx, ev)).To(Succeed())

			workflows, err := st.GetWorkflowsForBuild(ctx, build.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(workflows).To(BeEmpty())
		})

		It("ignores completion of unknown workflows", func() {
			Expect(handler.Handle(ctx, completed(999, store.WorkflowStatusSuccess))).To(Succeed())
		})

		It("waits while check suites are pending", func() {
			client.CheckSuites = []github.CheckSuite{
				{ID: 1, Status: github.CheckSuiteStatusSuccess},
				{ID: 2, Status: github.CheckSuiteStatusPending},
			}
			Expect(handler.Handle(ctx, started(42, store.WorkflowTypeHosted))).To(Succeed())
			Expect(handler.Handle(ctx, completed(42, store.WorkflowStatusSuccess))).To(Succeed())

			pending, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).NotTo(BeNil())
			Expect(commentTexts()).To(HaveLen(1))
		})

		It("reports a successful build", func() {
			client.CheckSuites = []github.CheckSuite{{ID: 1, Status: github.CheckSuiteStatusSuccess}}
			Expect(handler.Handle(ctx, started(42, store.WorkflowTypeHosted))).To(Succeed())
			Expect(handler.Handle(ctx, completed(42, store.WorkflowStatusSuccess))).To(Succeed())

			pending, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeNil())

			texts := commentTexts()
			Expect(texts).To(HaveLen(2))
			Expect(texts[1]).To(HavePrefix(":sunny: Try build successful"))
			Expect(texts[1]).To(ContainSubstring("- [CI](https://github.com/rust-lang/example/actions/runs/42) :white_check_mark:"))
			Expect(texts[1]).To(ContainSubstring("Build commit: ghi789"))
			Expect(client.LabelsAdded(5)).To(ContainElement("S-tests-passed"))
		})

		It("reports a failed build on check suite completion", func() {
			client.CheckSuites = []github.CheckSuite{
				{ID: 1, Status: github.CheckSuiteStatusSuccess},
				{ID: 2, Status: github.CheckSuiteStatusFailure},
			}
			Expect(handler.Handle(ctx, started(42, store.WorkflowTypeHosted))).To(Succeed())
			Expect(handler.Handle(ctx, completed(42, store.WorkflowStatusFailure))).To(Succeed())

			texts := commentTexts()
			Expect(texts).To(HaveLen(2))
			Expect(texts[1]).To(HavePrefix(":broken_heart: Test failed"))
			Expect(texts[1]).To(ContainSubstring(":x:"))
			Expect(client.LabelsAdded(5)).To(ContainElement("S-tests-failed"))

			// A late check_suite event for the finished build changes nothing.
			Expect(handler.Handle(ctx, event.CheckSuiteCompleted{Repository: repo, Branch: TryBranch, CommitSHA: "ghi789"})).To(Succeed())
			Expect(commentTexts()).To(HaveLen(2))
		})

		It("reports the build result when the label API fails", func() {
			client.CheckSuites = []github.CheckSuite{{ID: 1, Status: github.CheckSuiteStatusFailure}}
			client.LabelsErr = errors.New("label API down")

			Expect(handler.Handle(ctx, started(42, store.WorkflowTypeHosted))).To(Succeed())
			Expect(handler.Handle(ctx, completed(42, store.WorkflowStatusFailure))).To(Succeed())

			texts := commentTexts()
			Expect(texts).To(HaveLen(2))
			Expect(texts[1]).To(HavePrefix(":broken_heart: Test failed"))

			pending, err := st.GetPendingBuild(ctx, repo, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(pending).To(BeNil())
		})

		It("ignores check suites on other branches", func() {
			client.CheckSuites = []github.CheckSuite{{ID: 1, Status: github.CheckSuiteStatusSuccess}}
			Expect(handler.Handle(ctx, event.CheckSuiteCompleted{Repository: repo, Branch: "master", CommitSHA: "ghi789"})).To(Succeed())
			Expect(commentTexts()).To(HaveLen(1))
		})
	})

	Context("other events", func() {
		It("treats installation changes as a no-op", func() {
			Expect(handler.Handle(ctx, event.InstallationsChanged{})).To(Succeed())
			Expect(client.Comments()).To(BeEmpty())
		})

		It("treats refresh without hooks as a no-op", func() {
			Expect(handler.Handle(ctx, event.Refresh{})).To(Succeed())
		})

		It("runs every refresh hook and aggregates failures", func() {
			first := &countingHook{err: errors.New("first failed")}
			second := &countingHook{}
			handler = NewHandler(func(context.Context) github.Client { return client }, st,
				WithRefreshHook(first), WithRefreshHook(second))

			Expect(handler.Handle(ctx, event.Refresh{})).To(MatchError(ContainSubstring("first failed")))
			Expect(first.calls).To(Equal(1))
			Expect(second.calls).To(Equal(1))
		})
	})
})
