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

// Package repoconfig loads the bors.toml configuration of a repository and
// overlays it on the organization-wide configuration.
//
// A configuration document looks like:
//
//	reviewers = ["alice"]
//	try_users = ["bob"]
//	try_choosers = ["linux", "windows"]
//	fork_try = false
//
//	[labels]
//	try = ["+S-awaiting-try", "-S-waiting-on-author"]
//	try_succeed = ["+S-tests-passed"]
//	try_failed = ["+S-tests-failed"]
//
// Organization and repository configurations are combined field by field,
// following the mergePolicies table in merge.go.
package repoconfig

import (
	"errors"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pelletier/go-toml/v2"
)

// LabelTrigger names the point of a try build at which labels change
type LabelTrigger string

const (
	TryBuildStarted   LabelTrigger = "try"
	TryBuildSucceeded LabelTrigger = "try_succeed"
	TryBuildFailed    LabelTrigger = "try_failed"
)

var knownTriggers = map[LabelTrigger]bool{
	TryBuildStarted:   true,
	TryBuildSucceeded: true,
	TryBuildFailed:    true,
}

// LabelOp is the direction of a label modification
type LabelOp int

const (
	// LabelAdd adds the label
	LabelAdd LabelOp = iota + 1
	// LabelRemove removes the label
	LabelRemove
)

// LabelModification adds or removes one label
type LabelModification struct {
	Op    LabelOp
	Label string
}

func (m LabelModification) String() string {
	if m.Op == LabelRemove {
		return "-" + m.Label
	}
	return "+" + m.Label
}

// ParseLabelModification parses "+label" or "-label"
func ParseLabelModification(value string) (LabelModification, error) {
	if len(value) < 2 {
		return LabelModification{}, &ValidationError{
			Field:  "labels",
			Value:  value,
			Reason: "label modification must have at least two characters and start with `+` or `-`",
		}
	}

	switch value[0] {
	case '+':
		return LabelModification{Op: LabelAdd, Label: value[1:]}, nil
	case '-':
		return LabelModification{Op: LabelRemove, Label: value[1:]}, nil
	default:
		return LabelModification{}, &ValidationError{
			Field:  "labels",
			Value:  value,
			Reason: "label modification must start with `+` or `-`",
		}
	}
}

// ValidationError reports a configuration document that parsed but is not valid
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %q: %s", e.Field, e.Value, e.Reason)
}

// Configuration is the typed bors.toml document
type Configuration struct {
	Labels      map[LabelTrigger][]LabelModification
	Reviewers   mapset.Set[string]
	TryUsers    mapset.Set[string]
	TryChoosers mapset.Set[string]
	ForkTry     bool
}

// New returns an empty configuration
func New() *Configuration {
	return &Configuration{
		Labels:      map[LabelTrigger][]LabelModification{},
		Reviewers:   mapset.NewSet[string](),
		TryUsers:    mapset.NewSet[string](),
		TryChoosers: mapset.NewSet[string](),
	}
}

// LabelsFor returns the labels to add and to remove for a trigger
func (c *Configuration) LabelsFor(trigger LabelTrigger) (add, remove []string) {
	if c == nil {
		return nil, nil
	}
	for _, m := range c.Labels[trigger] {
		if m.Op == LabelAdd {
			add = append(add, m.Label)
		} else {
			remove = append(remove, m.Label)
		}
	}
	return add, remove
}

// document mirrors the on-disk format
type document struct {
	Labels      map[string][]string `toml:"labels"`
	Reviewers   []string            `toml:"reviewers"`
	TryUsers    []string            `toml:"try_users"`
	TryChoosers []string            `toml:"try_choosers"`
	ForkTry     bool                `toml:"fork_try"`
}

// Parse decodes and validates a bors.toml document
func Parse(data []byte) (*Configuration, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return nil, fmt.Errorf("malformed configuration at %d:%d: %w", row, col, err)
		}
		return nil, fmt.Errorf("malformed configuration: %w", err)
	}

	cfg := New()
	cfg.Reviewers.Append(doc.Reviewers...)
	cfg.TryUsers.Append(doc.TryUsers...)
	cfg.TryChoosers.Append(doc.TryChoosers...)
	cfg.ForkTry = doc.ForkTry

	triggers := make([]string, 0, len(doc.Labels))
	for trigger := range doc.Labels {
		triggers = append(triggers, trigger)
	}
	sort.Strings(triggers)

	for _, trigger := range triggers {
		if !knownTriggers[LabelTrigger(trigger)] {
			return nil, &ValidationError{
				Field:  "labels",
				Value:  trigger,
				Reason: "unknown trigger, expected one of try, try_succeed, try_failed",
			}
		}

		modifications := []LabelModification{}
		for _, value := range doc.Labels[trigger] {
			m, err := ParseLabelModification(value)
			if err != nil {
				return nil, err
			}
			modifications = append(modifications, m)
		}
		cfg.Labels[LabelTrigger(trigger)] = modifications
	}

	return cfg, nil
}
