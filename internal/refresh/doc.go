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

// Package refresh drives the periodic Refresh event and the work hung off it.
//
// The Scheduler emits an event.Refresh to the dispatcher on a fixed interval.
// The TimeoutSweeper is a refresh hook that gives up on try builds whose CI
// has not reported back in time.
//
// Timeout Handling:
//
// A pending build times out once
//
//	now > build.CreatedAt + timeout
//
// Its pending GitHub Actions runs are cancelled, the build is marked
// Timeouted and the pull request receives a comment. Cancellation failures
// are logged and do not keep the build pending.
//
// Example usage:
//
//	sweeper := refresh.NewTimeoutSweeper(st, time.Hour)
//	handler := bors.NewHandler(newClient, st, bors.WithRefreshHook(sweeper))
//	scheduler := refresh.NewScheduler(handler, time.Minute)
//	if err := scheduler.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
package refresh
