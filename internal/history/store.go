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

// Package history keeps a local record of finished conversions.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// Entry is one finished conversion.
type Entry struct {
	JobID      string        `json:"job_id"`
	InputPath  string        `json:"input_path"`
	OutputPath string        `json:"output_path"`
	Source     string        `json:"source"`
	Target     string        `json:"target"`
	Status     string        `json:"status"`
	Kind       string        `json:"kind,omitempty"`
	Message    string        `json:"message,omitempty"`
	Strategy   string        `json:"strategy,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
	FinishedAt time.Time     `json:"finished_at"`
}

// keyPrefix namespaces entries; keys sort by finish time.
const keyPrefix = "result/"

// Store is a pebble-backed history. It is safe for concurrent use.
type Store struct {
	db *pebble.DB
}

// Open opens or creates the store in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func entryKey(e Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", keyPrefix, e.FinishedAt.UnixNano(), e.JobID))
}

// Record stores e. A zero FinishedAt is set to now.
func (s *Store) Record(e Entry) error {
	if e.JobID == "" {
		return errors.New("history entry has no job id")
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = time.Now()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	return s.db.Set(entryKey(e), data, pebble.Sync)
}

// Recent returns up to limit entries, newest first. A limit of zero or less
// returns everything.
func (s *Store) Recent(limit int) ([]Entry, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix[:len(keyPrefix)-1] + "0"),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Entry
	for iter.Last(); iter.Valid(); iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, iter.Error()
}

// Prune removes entries that finished before cutoff.
func (s *Store) Prune(cutoff time.Time) error {
	start := []byte(keyPrefix)
	end := []byte(fmt.Sprintf("%s%020d", keyPrefix, cutoff.UnixNano()))
	return s.db.DeleteRange(start, end, pebble.Sync)
}
