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

package v1alpha1

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
)

var _ = Describe("Scheme registration", func() {
	It("registers both kinds and their lists", func() {
		scheme := runtime.NewScheme()
		Expect(AddToScheme(scheme)).To(Succeed())

		for _, kind := range []string{"TryBuild", "TryBuildList", "WorkflowRun", "WorkflowRunList"} {
			Expect(scheme.Recognizes(GroupVersion.WithKind(kind))).To(BeTrue(), kind)
		}
	})
})

var _ = Describe("TryBuild", func() {
	var (
		ctx       context.Context
		k8sClient client.Client
		build     *TryBuild
	)

	BeforeEach(func() {
		ctx = context.Background()
		scheme := runtime.NewScheme()
		Expect(AddToScheme(scheme)).To(Succeed())
		k8sClient = fake.NewClientBuilder().
			WithScheme(scheme).
			WithStatusSubresource(&TryBuild{}, &WorkflowRun{}).
			Build()

		build = &TryBuild{
			ObjectMeta: metav1.ObjectMeta{
				Name:      "trybuild-sample",
				Namespace: "default",
			},
			Spec: TryBuildSpec{
				Repository: "rust-lang/example",
				PRNumber:   5,
				Branch:     "automation/bors/try",
				CommitSHA:  "ghi789",
				StartedAt:  metav1.NewTime(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)),
			},
		}
	})

	It("round-trips through the client", func() {
		Expect(k8sClient.Create(ctx, build)).To(Succeed())

		fetched := &TryBuild{}
		Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(build), fetched)).To(Succeed())
		Expect(fetched.Spec.Repository).To(Equal("rust-lang/example"))
		Expect(fetched.Spec.PRNumber).To(Equal(5))
		Expect(fetched.Spec.StartedAt.Time.Equal(build.Spec.StartedAt.Time)).To(BeTrue())
	})

	It("updates the phase through the status subresource", func() {
		Expect(k8sClient.Create(ctx, build)).To(Succeed())

		build.Status.Phase = TryBuildCancelled
		Expect(k8sClient.Status().Update(ctx, build)).To(Succeed())

		fetched := &TryBuild{}
		Expect(k8sClient.Get(ctx, client.ObjectKeyFromObject(build), fetched)).To(Succeed())
		Expect(fetched.Status.Phase).To(Equal(TryBuildCancelled))
	})

	It("deep copies without sharing state", func() {
		build.Labels = map[string]string{"bors.dev/pr": "5"}

		copied := build.DeepCopy()
		copied.Labels["bors.dev/pr"] = "6"
		copied.Spec.StartedAt = metav1.NewTime(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))

		Expect(build.Labels["bors.dev/pr"]).To(Equal("5"))
		Expect(build.Spec.StartedAt.Year()).To(Equal(2025))
	})

	It("deep copies lists", func() {
		list := &TryBuildList{Items: []TryBuild{*build}}
		copied := list.DeepCopyObject().(*TryBuildList)
		copied.Items[0].Spec.PRNumber = 42

		Expect(list.Items[0].Spec.PRNumber).To(Equal(5))
	})
})

var _ = Describe("WorkflowRun", func() {
	It("deep copies", func() {
		run := &WorkflowRun{
			ObjectMeta: metav1.ObjectMeta{Name: "wf-sample", Namespace: "default"},
			Spec: WorkflowRunSpec{
				BuildName:  "trybuild-sample",
				Repository: "rust-lang/example",
				Name:       "CI",
				RunID:      42,
				Type:       WorkflowRunHosted,
			},
			Status: WorkflowRunStatus{Phase: WorkflowRunPending},
		}

		copied := run.DeepCopyObject().(*WorkflowRun)
		copied.Status.Phase = WorkflowRunSuccess
		copied.Spec.RunID = 43

		Expect(run.Status.Phase).To(Equal(WorkflowRunPending))
		Expect(run.Spec.RunID).To(Equal(int64(42)))

		list := &WorkflowRunList{Items: []WorkflowRun{*run}}
		Expect(list.DeepCopy().Items).To(HaveLen(1))
	})
})
