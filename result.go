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
	"time"
)

// Status is the overall outcome of a job.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// JobState is a step in the life of a conversion job.
type JobState string

const (
	StatePending           JobState = "pending"
	StateValidating        JobState = "validating"
	StateRejected          JobState = "rejected"
	StateStrategySelection JobState = "strategy_selection"
	StateExecuting         JobState = "executing"
	StateSucceeded         JobState = "succeeded"
	StateFailed            JobState = "failed"
)

var transitions = map[JobState][]JobState{
	StatePending:           {StateValidating, StateFailed},
	StateValidating:        {StateRejected, StateStrategySelection},
	StateStrategySelection: {StateExecuting, StateFailed},
	StateExecuting:         {StateSucceeded, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s JobState) Terminal() bool {
	return s == StateRejected || s == StateSucceeded || s == StateFailed
}

// CanTransition reports whether a job may move from s to next.
func (s JobState) CanTransition(next JobState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ConversionJob is one request: convert InputPath to Target, writing OutputPath.
type ConversionJob struct {
	ID         string
	InputPath  string
	Target     Format
	OutputPath string
	Overwrite  bool
}

// Attempt records one strategy invocation.
type Attempt struct {
	Strategy string        `json:"strategy"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	TimedOut bool          `json:"timed_out,omitempty"`
}

// ConversionResult is the outcome of one job. It is not modified once returned.
type ConversionResult struct {
	JobID      string        `json:"job_id"`
	InputPath  string        `json:"input"`
	OutputPath string        `json:"output,omitempty"`
	Source     Format        `json:"source,omitempty"`
	Target     Format        `json:"target"`
	Status     Status        `json:"status"`
	State      JobState      `json:"state"`
	Kind       ErrorKind     `json:"error_kind,omitempty"`
	Message    string        `json:"message,omitempty"`
	Strategy   string        `json:"strategy,omitempty"`
	Attempts   []Attempt     `json:"attempts,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	Err        error         `json:"-"`
}

// Succeeded reports whether the job produced its output.
func (r ConversionResult) Succeeded() bool {
	return r.Status == StatusSucceeded
}

// BatchSummary aggregates the results of a batch, in input order.
type BatchSummary struct {
	Total     int                `json:"total"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []ConversionResult `json:"results"`
	Elapsed   time.Duration      `json:"elapsed"`
}

// jobTracker walks a job through its states and rejects illegal moves.
type jobTracker struct {
	state JobState
}

func newJobTracker() *jobTracker {
	return &jobTracker{state: StatePending}
}

func (t *jobTracker) advance(next JobState) {
	if !t.state.CanTransition(next) {
		panic(fmt.Sprintf("fileconv: illegal job transition %s -> %s", t.state, next))
	}
	t.state = next
}
