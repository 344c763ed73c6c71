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
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/sagudev/bors-mg/internal/command"
	"github.com/sagudev/bors-mg/internal/event"
	"github.com/sagudev/bors-mg/internal/github"
)

const (
	commandFailedMessage = ":x: Encountered an error while executing command"

	// sleepyOwner gets a different reply to ping
	sleepyOwner   = "servo"
	sleepyMessage = ":sleepy: I'm awake I'm awake"
	pongMessage   = "Pong 🏓!"
)

// handleComment runs the commands of a comment in textual order and stops at
// the first command that fails. Parse errors are answered and skipped.
func (h *Handler) handleComment(ctx context.Context, client github.Client, comment event.Comment) error {
	logger := log.FromContext(ctx)

	results := h.parser.Parse(comment.Text)
	if len(results) == 0 {
		logger.V(1).Info("Comment contains no commands")
		return nil
	}
	logger.V(1).Info("Parsed commands", "count", len(results))

	repo := comment.Repository
	number := comment.PullRequest.Number()

	for _, result := range results {
		if result.Err != nil {
			message := parseErrorMessage(result.Err)
			logger.Info("Invalid command", "reason", message)
			if err := client.PostComment(ctx, repo, number, message); err != nil {
				return fmt.Errorf("could not reply to PR comment: %w", err)
			}
			continue
		}

		cmdCtx := log.IntoContext(ctx, logger.WithValues("command", result.Command.String()))
		if err := h.execute(cmdCtx, client, comment, result.Command); err != nil {
			if postErr := client.PostComment(ctx, repo, number, commandFailedMessage); postErr != nil {
				logger.Error(postErr, "Could not report command failure")
			}
			return fmt.Errorf("cannot execute command %q: %w", result.Command, err)
		}
	}
	return nil
}

func (h *Handler) execute(ctx context.Context, client github.Client, comment event.Comment, cmd command.Command) error {
	switch cmd {
	case command.Ping:
		return h.ping(ctx, client, comment)
	case command.Try:
		return h.tryBuild(ctx, client, comment)
	case command.TryCancel:
		return h.tryCancel(ctx, client, comment)
	default:
		return fmt.Errorf("unsupported command %s", cmd)
	}
}

func parseErrorMessage(err error) string {
	var unknown *command.UnknownCommandError
	switch {
	case errors.Is(err, command.ErrMissingCommand):
		return "Missing command."
	case errors.As(err, &unknown):
		return fmt.Sprintf(`Unknown command "%s".`, unknown.Command)
	default:
		return err.Error()
	}
}

func (h *Handler) ping(ctx context.Context, client github.Client, comment event.Comment) error {
	message := pongMessage
	if comment.Repository.Owner() == sleepyOwner {
		message = sleepyMessage
	}

	log.FromContext(ctx).Info("Replying to ping")
	return client.PostComment(ctx, comment.Repository, comment.PullRequest.Number(), message)
}
