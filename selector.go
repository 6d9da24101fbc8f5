// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package fileconv

import (
	"fmt"
	"sort"
	"strings"
)

// Selector orders the strategies bound to a pair, keeping only those whose
// engine is available. It never runs anything.
type Selector struct {
	bindings map[Pair][]Binding
	caps     CapabilityState
}

// NewSelector indexes bindings by pair. Within a pair, bindings keep their
// relative order when ranks tie.
func NewSelector(bindings []Binding, caps CapabilityState) *Selector {
	s := &Selector{
		bindings: make(map[Pair][]Binding),
		caps:     caps,
	}
	for _, b := range bindings {
		s.bindings[b.Pair] = append(s.bindings[b.Pair], b)
	}
	for p := range s.bindings {
		bs := s.bindings[p]
		sort.SliceStable(bs, func(i, j int) bool { return bs[i].Rank < bs[j].Rank })
	}
	return s
}

// Select returns the usable strategies for p, best first. An empty result
// means no engine can perform the conversion on this host.
func (s *Selector) Select(p Pair) []Strategy {
	var out []Strategy
	for _, b := range s.bindings[p] {
		if s.caps.Available(b.Strategy.Requires()) {
			out = append(out, b.Strategy)
		}
	}
	return out
}

// Bound returns every strategy bound to p regardless of availability, best first.
func (s *Selector) Bound(p Pair) []Binding {
	bs := s.bindings[p]
	out := make([]Binding, len(bs))
	copy(out, bs)
	return out
}

// validateBindings checks that every registry pair has at least one binding,
// unless the pair is flagged best-effort, and that no binding names a pair
// the registry does not declare.
func validateBindings(r *Registry, bindings []Binding) error {
	bound := make(map[Pair]bool, len(bindings))
	var problems []string
	for _, b := range bindings {
		if b.Strategy == nil {
			problems = append(problems, fmt.Sprintf("%s: nil strategy", b.Pair))
			continue
		}
		if !r.IsSupported(b.Pair.Source, b.Pair.Target) {
			problems = append(problems, fmt.Sprintf("%s: %s bound to an undeclared pair", b.Pair, b.Strategy.Name()))
			continue
		}
		bound[b.Pair] = true
	}
	for _, p := range r.Pairs() {
		if !bound[p] && !r.IsBestEffort(p) {
			problems = append(problems, fmt.Sprintf("%s: no strategy bound", p))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid strategy bindings:\n  %s", strings.Join(problems, "\n  "))
	}
	return nil
}
