package history

import (
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordRecent(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := s.Record(Entry{
			JobID:      fmt.Sprintf("job-%d", i),
			InputPath:  fmt.Sprintf("in-%d.docx", i),
			Target:     "pdf",
			Status:     "succeeded",
			Strategy:   "office-engine",
			Elapsed:    time.Duration(i) * time.Second,
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record() error: %v", err)
		}
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"limited", 2, []string{"job-4", "job-3"}},
		{"all", 0, []string{"job-4", "job-3", "job-2", "job-1", "job-0"}},
		{"limit above count", 10, []string{"job-4", "job-3", "job-2", "job-1", "job-0"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Recent(tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Recent(%d) returned %d entries, want %d", tt.limit, len(got), len(tt.want))
			}
			for i, e := range got {
				if e.JobID != tt.want[i] {
					t.Errorf("entry %d = %s, want %s", i, e.JobID, tt.want[i])
				}
			}
		})
	}

	got, _ := s.Recent(1)
	if e := got[0]; e.InputPath != "in-4.docx" || e.Elapsed != 4*time.Second || !e.FinishedAt.Equal(base.Add(4*time.Minute)) {
		t.Errorf("entry fields not preserved: %+v", e)
	}
}

func TestRecordValidation(t *testing.T) {
	s := openTestStore(t)
	if err := s.Record(Entry{}); err == nil {
		t.Error("Record() without job id succeeded")
	}

	before := time.Now()
	if err := s.Record(Entry{JobID: "now"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.Recent(1)
	if err != nil || len(got) != 1 {
		t.Fatalf("Recent() = %v, %v", got, err)
	}
	if got[0].FinishedAt.Before(before) {
		t.Errorf("FinishedAt = %s, want set to the record time", got[0].FinishedAt)
	}
}

func TestPrune(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if err := s.Record(Entry{JobID: fmt.Sprintf("j%d", i), FinishedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Prune(base.Add(2 * time.Hour)); err != nil {
		t.Fatalf("Prune() error: %v", err)
	}
	got, err := s.Recent(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].JobID != "j3" || got[1].JobID != "j2" {
		t.Errorf("after prune: %+v", got)
	}
}
