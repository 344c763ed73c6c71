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

package repoconfig

import (
	"maps"
	"slices"
)

// MergePolicy describes how one field of the organization configuration is
// combined with the same field of the repository configuration
type MergePolicy string

const (
	// OverwriteByKey keeps global entries and replaces those the local side also defines
	OverwriteByKey MergePolicy = "overwrite-by-key"
	// Union keeps entries from both sides
	Union MergePolicy = "union"
	// OverrideIfPresent takes the local value unless it is empty
	OverrideIfPresent MergePolicy = "override-if-present"
	// AlwaysOverride takes the local value unconditionally
	AlwaysOverride MergePolicy = "always-override"
)

// FieldPolicy binds a configuration field to its merge policy
type FieldPolicy struct {
	Field  string
	Policy MergePolicy
	apply  func(merged, global, local *Configuration)
}

// mergePolicies is applied in order by Merge
var mergePolicies = []FieldPolicy{
	{
		Field:  "labels",
		Policy: OverwriteByKey,
		apply: func(merged, global, local *Configuration) {
			merged.Labels = maps.Clone(global.Labels)
			if merged.Labels == nil {
				merged.Labels = map[LabelTrigger][]LabelModification{}
			}
			for trigger, modifications := range local.Labels {
				merged.Labels[trigger] = slices.Clone(modifications)
			}
		},
	},
	{
		Field:  "reviewers",
		Policy: Union,
		apply: func(merged, global, local *Configuration) {
			merged.Reviewers = global.Reviewers.Union(local.Reviewers)
		},
	},
	{
		Field:  "try_users",
		Policy: Union,
		apply: func(merged, global, local *Configuration) {
			merged.TryUsers = global.TryUsers.Union(local.TryUsers)
		},
	},
	{
		Field:  "try_choosers",
		Policy: OverrideIfPresent,
		apply: func(merged, global, local *Configuration) {
			if local.TryChoosers.Cardinality() > 0 {
				merged.TryChoosers = local.TryChoosers.Clone()
			} else {
				merged.TryChoosers = global.TryChoosers.Clone()
			}
		},
	},
	{
		Field:  "fork_try",
		Policy: AlwaysOverride,
		apply: func(merged, _, local *Configuration) {
			merged.ForkTry = local.ForkTry
		},
	},
}

// MergePolicies returns the per-field merge policy table
func MergePolicies() []FieldPolicy {
	return slices.Clone(mergePolicies)
}

// Merge overlays the repository configuration on the organization configuration.
// When only one side is present it is returned as is; when neither is, the result is nil.
func Merge(global, local *Configuration) *Configuration {
	switch {
	case global == nil:
		return local
	case local == nil:
		return global
	}

	global, local = global.normalized(), local.normalized()
	merged := &Configuration{}
	for _, p := range mergePolicies {
		p.apply(merged, global, local)
	}
	return merged
}

// normalized fills nil sets so the policies do not have to
func (c *Configuration) normalized() *Configuration {
	out := *c
	empty := New()
	if out.Labels == nil {
		out.Labels = empty.Labels
	}
	if out.Reviewers == nil {
		out.Reviewers = empty.Reviewers
	}
	if out.TryUsers == nil {
		out.TryUsers = empty.TryUsers
	}
	if out.TryChoosers == nil {
		out.TryChoosers = empty.TryChoosers
	}
	return &out
}
