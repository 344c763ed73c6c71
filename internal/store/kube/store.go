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

// Package kube persists try builds and their workflows as TryBuild and
// WorkflowRun custom resources.
//
// Lookups go through label selectors (repository, pull request, commit, run
// id) and are then narrowed on the exact spec fields, since label values are
// sanitized and may collide.
package kube

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	borsv1alpha1 "github.com/sagudev/bors-mg/api/v1alpha1"
	"github.com/sagudev/bors-mg/internal/github"
	"github.com/sagudev/bors-mg/internal/store"
)

const (
	LabelRepository = "bors.dev/repository"
	LabelPR         = "bors.dev/pr"
	LabelCommit     = "bors.dev/commit"
	LabelBuild      = "bors.dev/build"
	LabelRunID      = "bors.dev/run-id"
)

// Store implements store.Store on top of a controller-runtime client
type Store struct {
	client    client.Client
	namespace string
	now       func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates a store that keeps its records in namespace
func New(c client.Client, namespace string) *Store {
	return NewWithClock(c, namespace, time.Now)
}

// NewWithClock creates a store that timestamps builds with now
func NewWithClock(c client.Client, namespace string, now func() time.Time) *Store {
	return &Store{client: c, namespace: namespace, now: now}
}

func (s *Store) AttachTryBuild(ctx context.Context, repo github.RepositoryID, pr int, branch string, sha github.CommitSHA) (store.BuildModel, error) {
	obj := &borsv1alpha1.TryBuild{
		ObjectMeta: metav1.ObjectMeta{
			Name:      "trybuild-" + uuid.NewString(),
			Namespace: s.namespace,
			Labels: map[string]string{
				LabelRepository: sanitizeLabel(repo.String()),
				LabelPR:         strconv.Itoa(pr),
				LabelCommit:     sanitizeLabel(sha.String()),
			},
		},
		Spec: borsv1alpha1.TryBuildSpec{
			Repository: repo.String(),
			PRNumber:   pr,
			Branch:     branch,
			CommitSHA:  sha.String(),
			StartedAt:  metav1.NewTime(s.now()),
		},
	}

	if err := s.client.Create(ctx, obj); err != nil {
		return store.BuildModel{}, fmt.Errorf("failed to create TryBuild: %w", err)
	}

	obj.Status.Phase = borsv1alpha1.TryBuildPending
	if err := s.client.Status().Update(ctx, obj); err != nil {
		return store.BuildModel{}, fmt.Errorf("failed to set TryBuild %s pending: %w", obj.Name, err)
	}

	return toBuildModel(obj)
}

func (s *Store) GetPendingBuild(ctx context.Context, repo github.RepositoryID, pr int) (*store.BuildModel, error) {
	builds, err := s.listBuilds(ctx, client.MatchingLabels{
		LabelRepository: sanitizeLabel(repo.String()),
		LabelPR:         strconv.Itoa(pr),
	})
	if err != nil {
		return nil, err
	}

	var latest *store.BuildModel
	for i := range builds {
		b := builds[i]
		if b.Repository != repo || b.PRNumber != pr || b.Status != store.BuildStatusPending {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = &b
		}
	}
	return latest, nil
}

func (s *Store) FindBuild(ctx context.Context, repo github.RepositoryID, branch string, sha github.CommitSHA) (*store.BuildModel, error) {
	builds, err := s.listBuilds(ctx, client.MatchingLabels{
		LabelRepository: sanitizeLabel(repo.String()),
		LabelCommit:     sanitizeLabel(sha.String()),
	})
	if err != nil {
		return nil, err
	}

	var latest *store.BuildModel
	for i := range builds {
		b := builds[i]
		if b.Repository != repo || b.Branch != branch || b.CommitSHA != sha {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) {
			latest = &b
		}
	}
	return latest, nil
}

func (s *Store) ListPendingBuilds(ctx context.Context) ([]store.BuildModel, error) {
	builds, err := s.listBuilds(ctx)
	if err != nil {
		return nil, err
	}

	pending := []store.BuildModel{}
	for _, b := range builds {
		if b.Status == store.BuildStatusPending {
			pending = append(pending, b)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	return pending, nil
}

func (s *Store) UpdateBuildStatus(ctx context.Context, buildID string, status store.BuildStatus) error {
	var obj borsv1alpha1.TryBuild
	if err := s.client.Get(ctx, client.ObjectKey{Namespace: s.namespace, Name: buildID}, &obj); err != nil {
		if apierrors.IsNotFound(err) {
			return fmt.Errorf("build %s: %w", buildID, store.ErrNotFound)
		}
		return fmt.Errorf("failed to get TryBuild %s: %w", buildID, err)
	}

	obj.Status.Phase = borsv1alpha1.TryBuildPhase(status)
	if err := s.client.Status().Update(ctx, &obj); err != nil {
		return fmt.Errorf("failed to update TryBuild %s: %w", buildID, err)
	}
	return nil
}

// CreateWorkflow names the WorkflowRun after its build and run id, so creating
// the same run twice returns the existing record.
func (s *Store) CreateWorkflow(ctx context.Context, workflow store.WorkflowModel) (store.WorkflowModel, error) {
	var build borsv1alpha1.TryBuild
	if err := s.client.Get(ctx, client.ObjectKey{Namespace: s.namespace, Name: workflow.BuildID}, &build); err != nil {
		if apierrors.IsNotFound(err) {
			return store.WorkflowModel{}, fmt.Errorf("build %s: %w", workflow.BuildID, store.ErrNotFound)
		}
		return store.WorkflowModel{}, fmt.Errorf("failed to get TryBuild %s: %w", workflow.BuildID, err)
	}

	if workflow.Status == "" {
		workflow.Status = store.WorkflowStatusPending
	}

	obj := &borsv1alpha1.WorkflowRun{
		ObjectMeta: metav1.ObjectMeta{
			Name:      workflowName(workflow.BuildID, workflow.RunID),
			Namespace: s.namespace,
			Labels: map[string]string{
				LabelBuild:      workflow.BuildID,
				LabelRepository: sanitizeLabel(build.Spec.Repository),
				LabelRunID:      strconv.FormatInt(int64(workflow.RunID), 10),
			},
		},
		Spec: borsv1alpha1.WorkflowRunSpec{
			BuildName:  workflow.BuildID,
			Repository: build.Spec.Repository,
			Name:       workflow.Name,
			URL:        workflow.URL,
			RunID:      int64(workflow.RunID),
			Type:       borsv1alpha1.WorkflowRunType(workflow.Type),
		},
	}

	if err := s.client.Create(ctx, obj); err != nil {
		if apierrors.IsAlreadyExists(err) {
			var existing borsv1alpha1.WorkflowRun
			if err := s.client.Get(ctx, client.ObjectKeyFromObject(obj), &existing); err != nil {
				return store.WorkflowModel{}, fmt.Errorf("failed to get WorkflowRun %s: %w", obj.Name, err)
			}
			return toWorkflowModel(&existing), nil
		}
		return store.WorkflowModel{}, fmt.Errorf("failed to create WorkflowRun: %w", err)
	}

	obj.Status.Phase = borsv1alpha1.WorkflowRunPhase(workflow.Status)
	if err := s.client.Status().Update(ctx, obj); err != nil {
		return store.WorkflowModel{}, fmt.Errorf("failed to set WorkflowRun %s status: %w", obj.Name, err)
	}
	return toWorkflowModel(obj), nil
}

func (s *Store) UpdateWorkflowStatus(ctx context.Context, repo github.RepositoryID, runID github.RunID, status store.WorkflowStatus) error {
	var list borsv1alpha1.WorkflowRunList
	if err := s.client.List(ctx, &list,
		client.InNamespace(s.namespace),
		client.MatchingLabels{
			LabelRepository: sanitizeLabel(repo.String()),
			LabelRunID:      strconv.FormatInt(int64(runID), 10),
		},
	); err != nil {
		return fmt.Errorf("failed to list WorkflowRuns: %w", err)
	}

	for i := range list.Items {
		obj := &list.Items[i]
		if obj.Spec.Repository != repo.String() {
			continue
		}
		obj.Status.Phase = borsv1alpha1.WorkflowRunPhase(status)
		if err := s.client.Status().Update(ctx, obj); err != nil {
			return fmt.Errorf("failed to update WorkflowRun %s: %w", obj.Name, err)
		}
		return nil
	}
	return fmt.Errorf("workflow run %d in %s: %w", runID, repo, store.ErrNotFound)
}

func (s *Store) GetWorkflowsForBuild(ctx context.Context, buildID string) ([]store.WorkflowModel, error) {
	var list borsv1alpha1.WorkflowRunList
	if err := s.client.List(ctx, &list,
		client.InNamespace(s.namespace),
		client.MatchingLabels{LabelBuild: buildID},
	); err != nil {
		return nil, fmt.Errorf("failed to list WorkflowRuns: %w", err)
	}

	workflows := []store.WorkflowModel{}
	for i := range list.Items {
		workflows = append(workflows, toWorkflowModel(&list.Items[i]))
	}
	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].RunID < workflows[j].RunID
	})
	return workflows, nil
}

func (s *Store) listBuilds(ctx context.Context, opts ...client.ListOption) ([]store.BuildModel, error) {
	var list borsv1alpha1.TryBuildList
	opts = append(opts, client.InNamespace(s.namespace))
	if err := s.client.List(ctx, &list, opts...); err != nil {
		return nil, fmt.Errorf("failed to list TryBuilds: %w", err)
	}

	builds := make([]store.BuildModel, 0, len(list.Items))
	for i := range list.Items {
		b, err := toBuildModel(&list.Items[i])
		if err != nil {
			return nil, err
		}
		builds = append(builds, b)
	}
	return builds, nil
}

func toBuildModel(obj *borsv1alpha1.TryBuild) (store.BuildModel, error) {
	repo, err := github.ParseRepositoryID(obj.Spec.Repository)
	if err != nil {
		return store.BuildModel{}, fmt.Errorf("TryBuild %s: %w", obj.Name, err)
	}

	status := store.BuildStatus(obj.Status.Phase)
	if status == "" {
		status = store.BuildStatusPending
	}

	return store.BuildModel{
		ID:         obj.Name,
		Repository: repo,
		PRNumber:   obj.Spec.PRNumber,
		Branch:     obj.Spec.Branch,
		CommitSHA:  github.CommitSHA(obj.Spec.CommitSHA),
		Status:     status,
		CreatedAt:  obj.Spec.StartedAt.Time,
	}, nil
}

func toWorkflowModel(obj *borsv1alpha1.WorkflowRun) store.WorkflowModel {
	status := store.WorkflowStatus(obj.Status.Phase)
	if status == "" {
		status = store.WorkflowStatusPending
	}

	return store.WorkflowModel{
		ID:      obj.Name,
		BuildID: obj.Spec.BuildName,
		Name:    obj.Spec.Name,
		URL:     obj.Spec.URL,
		RunID:   github.RunID(obj.Spec.RunID),
		Type:    store.WorkflowType(obj.Spec.Type),
		Status:  status,
	}
}

// workflowName derives a stable object name from the build and run id
func workflowName(buildID string, runID github.RunID) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d", buildID, runID)))
	return "workflowrun-" + hex.EncodeToString(sum[:])[:20]
}

// sanitizeLabel converts a value to a valid Kubernetes label value.
// Labels must be 63 characters or less and match [a-z0-9]([-a-z0-9]*[a-z0-9])?
func sanitizeLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "_", "-")
	if len(s) > 63 {
		s = s[:63]
	}
	return strings.Trim(s, "-.")
}
