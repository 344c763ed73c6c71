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

package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sagudev/bors-mg/internal/github"
)

// Memory is a Store kept in process memory
type Memory struct {
	mu        sync.RWMutex
	builds    map[string]BuildModel
	workflows map[string]WorkflowModel
	now       func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock creates an in-memory store that timestamps builds with now
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		builds:    map[string]BuildModel{},
		workflows: map[string]WorkflowModel{},
		now:       now,
	}
}

func (m *Memory) AttachTryBuild(_ context.Context, repo github.RepositoryID, pr int, branch string, sha github.CommitSHA) (BuildModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	build := BuildModel{
		ID:         uuid.NewString(),
		Repository: repo,
		PRNumber:   pr,
		Branch:     branch,
		CommitSHA:  sha,
		Status:     BuildStatusPending,
		CreatedAt:  m.now(),
	}
	m.builds[build.ID] = build
	return build, nil
}

func (m *Memory) GetPendingBuild(_ context.Context, repo github.RepositoryID, pr int) (*BuildModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *BuildModel
	for _, b := range m.builds {
		if b.Repository != repo || b.PRNumber != pr || b.Status != BuildStatusPending {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			found := b
			latest = &found
		}
	}
	return latest, nil
}

func (m *Memory) FindBuild(_ context.Context, repo github.RepositoryID, branch string, sha github.CommitSHA) (*BuildModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *BuildModel
	for _, b := range m.builds {
		if b.Repository != repo || b.Branch != branch || b.CommitSHA != sha {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			found := b
			latest = &found
		}
	}
	return latest, nil
}

func (m *Memory) ListPendingBuilds(_ context.Context) ([]BuildModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	builds := []BuildModel{}
	for _, b := range m.builds {
		if b.Status == BuildStatusPending {
			builds = append(builds, b)
		}
	}
	sort.Slice(builds, func(i, j int) bool { return builds[i].CreatedAt.Before(builds[j].CreatedAt) })
	return builds, nil
}

func (m *Memory) UpdateBuildStatus(_ context.Context, buildID string, status BuildStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	build, ok := m.builds[buildID]
	if !ok {
		return fmt.Errorf("build %s: %w", buildID, ErrNotFound)
	}
	build.Status = status
	m.builds[buildID] = build
	return nil
}

func (m *Memory) CreateWorkflow(_ context.Context, workflow WorkflowModel) (WorkflowModel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.builds[workflow.BuildID]; !ok {
		return WorkflowModel{}, fmt.Errorf("build %s: %w", workflow.BuildID, ErrNotFound)
	}
	for _, existing := range m.workflows {
		if existing.BuildID == workflow.BuildID && existing.RunID == workflow.RunID {
			return existing, nil
		}
	}

	workflow.ID = uuid.NewString()
	if workflow.Status == "" {
		workflow.Status = WorkflowStatusPending
	}
	m.workflows[workflow.ID] = workflow
	return workflow, nil
}

func (m *Memory) UpdateWorkflowStatus(_ context.Context, repo github.RepositoryID, runID github.RunID, status WorkflowStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, wf := range m.workflows {
		if wf.RunID != runID || m.builds[wf.BuildID].Repository != repo {
			continue
		}
		wf.Status = status
		m.workflows[id] = wf
		return nil
	}
	return fmt.Errorf("workflow run %d in %s: %w", runID, repo, ErrNotFound)
}

func (m *Memory) GetWorkflowsForBuild(_ context.Context, buildID string) ([]WorkflowModel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	workflows := []WorkflowModel{}
	for _, wf := range m.workflows {
		if wf.BuildID == buildID {
			workflows = append(workflows, wf)
		}
	}
	sort.Slice(workflows, func(i, j int) bool { return workflows[i].RunID < workflows[j].RunID })
	return workflows, nil
}
