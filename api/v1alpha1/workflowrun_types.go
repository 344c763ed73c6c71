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
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// WorkflowRunType tells GitHub Actions runs apart from external CI check runs
// +kubebuilder:validation:Enum=Hosted;External
type WorkflowRunType string

const (
	WorkflowRunHosted   WorkflowRunType = "Hosted"
	WorkflowRunExternal WorkflowRunType = "External"
)

// WorkflowRunPhase is the state of a CI run
// +kubebuilder:validation:Enum=Pending;Success;Failure
type WorkflowRunPhase string

const (
	WorkflowRunPending WorkflowRunPhase = "Pending"
	WorkflowRunSuccess WorkflowRunPhase = "Success"
	WorkflowRunFailure WorkflowRunPhase = "Failure"
)

// WorkflowRunSpec identifies a CI run attached to a TryBuild
type WorkflowRunSpec struct {
	// BuildName is the name of the TryBuild in the same namespace
	BuildName string `json:"buildName"`

	// Repository is the GitHub repository in "owner/repo" format
	Repository string `json:"repository"`

	// Name is the workflow or check run name
	Name string `json:"name"`

	// URL links to the run on GitHub or the external CI
	// +optional
	URL string `json:"url,omitempty"`

	// RunID is the GitHub workflow run or check run id
	RunID int64 `json:"runID"`

	// Type is Hosted for GitHub Actions and External for other CI apps
	Type WorkflowRunType `json:"type"`
}

// WorkflowRunStatus defines the observed state of WorkflowRun.
type WorkflowRunStatus struct {
	// Phase is the current state of the run
	// +optional
	Phase WorkflowRunPhase `json:"phase,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Build",type="string",JSONPath=".spec.buildName"
// +kubebuilder:printcolumn:name="Workflow",type="string",JSONPath=".spec.name"
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase",description="Current Phase"
// +kubebuilder:resource:shortName=wfr

// WorkflowRun is the Schema for the workflowruns API
type WorkflowRun struct {
	metav1.TypeMeta `json:",inline"`

	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// +optional
	Status WorkflowRunStatus `json:"status,omitempty,omitzero"`

	// +required
	Spec WorkflowRunSpec `json:"spec"`
}

// +kubebuilder:object:root=true

// WorkflowRunList contains a list of WorkflowRun
type WorkflowRunList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []WorkflowRun `json:"items"`
}

func init() {
	SchemeBuilder.Register(&WorkflowRun{}, &WorkflowRunList{})
}
