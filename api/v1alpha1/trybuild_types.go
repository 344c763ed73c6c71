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

// TryBuildPhase is the lifecycle state of a try build
// +kubebuilder:validation:Enum=Pending;Success;Failure;Cancelled;Timeouted
type TryBuildPhase string

const (
	TryBuildPending   TryBuildPhase = "Pending"
	TryBuildSuccess   TryBuildPhase = "Success"
	TryBuildFailure   TryBuildPhase = "Failure"
	TryBuildCancelled TryBuildPhase = "Cancelled"
	TryBuildTimeouted TryBuildPhase = "Timeouted"
)

// TryBuildSpec identifies the merge commit under test
type TryBuildSpec struct {
	// Repository is the GitHub repository in "owner/repo" format
	// +kubebuilder:validation:Pattern="^[a-zA-Z0-9._-]+/[a-zA-Z0-9._-]+$"
	Repository string `json:"repository"`

	// PRNumber is the pull request number
	// +kubebuilder:validation:Minimum=1
	PRNumber int `json:"prNumber"`

	// Branch is the branch CI runs on
	Branch string `json:"branch"`

	// CommitSHA is the merge commit pushed to Branch
	CommitSHA string `json:"commitSHA"`

	// StartedAt is when the merge commit was pushed
	StartedAt metav1.Time `json:"startedAt"`
}

// TryBuildStatus defines the observed state of TryBuild.
type TryBuildStatus struct {
	// Phase is the current state of the build
	// +optional
	Phase TryBuildPhase `json:"phase,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Repository",type="string",JSONPath=".spec.repository"
// +kubebuilder:printcolumn:name="PR",type="integer",JSONPath=".spec.prNumber",description="Pull Request Number"
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase",description="Current Phase"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp",description="Creation Time"
// +kubebuilder:resource:shortName=tb

// TryBuild is the Schema for the trybuilds API
type TryBuild struct {
	metav1.TypeMeta `json:",inline"`

	// metadata is a standard object metadata
	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// status defines the observed state of TryBuild
	// +optional
	Status TryBuildStatus `json:"status,omitempty,omitzero"`

	// spec defines the desired state of TryBuild
	// +required
	Spec TryBuildSpec `json:"spec"`
}

// +kubebuilder:object:root=true

// TryBuildList contains a list of TryBuild
type TryBuildList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []TryBuild `json:"items"`
}

func init() {
	SchemeBuilder.Register(&TryBuild{}, &TryBuildList{})
}
