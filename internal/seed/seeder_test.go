package seed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"dining-concierge/internal/model"
)

type fakeRecordWriter struct {
	puts    []model.Record
	failIDs map[string]bool
}

func (w *fakeRecordWriter) Put(ctx context.Context, rec model.Record) error {
	if w.failIDs[rec.BusinessID] {
		return errors.New("write failed")
	}
	w.puts = append(w.puts, rec)
	return nil
}

type fakeIndexWriter struct {
	indexed []model.Candidate
}

func (w *fakeIndexWriter) IndexCandidate(ctx context.Context, cand model.Candidate) error {
	w.indexed = append(w.indexed, cand)
	return nil
}

func TestRunSeedsStoreAndIndex(t *testing.T) {
	store := &fakeRecordWriter{}
	index := &fakeIndexWriter{}
	s := New(store, index, zerolog.Nop())

	recs := []model.Record{
		{BusinessID: "b1", Name: "One", Cuisine: "italian"},
		{BusinessID: "b2", Name: "Two", Cuisine: "thai"},
	}
	seeded, err := s.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seeded != 2 {
		t.Errorf("seeded = %d, want 2", seeded)
	}
	if len(index.indexed) != 2 || index.indexed[0].Cuisine != "italian" {
		t.Errorf("indexed = %+v", index.indexed)
	}
	for _, rec := range store.puts {
		if rec.InsertedAt == "" {
			t.Errorf("record %s missing inserted timestamp", rec.BusinessID)
		}
	}
}

func TestRunSkipsBadRows(t *testing.T) {
	store := &fakeRecordWriter{failIDs: map[string]bool{"b2": true}}
	index := &fakeIndexWriter{}
	s := New(store, index, zerolog.Nop())

	recs := []model.Record{
		{BusinessID: "b1", Name: "One"},
		{BusinessID: "b2", Name: "Two"},
		{Name: "no id"},
	}
	seeded, err := s.Run(context.Background(), recs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seeded != 1 {
		t.Errorf("seeded = %d, want 1", seeded)
	}
	if len(index.indexed) != 1 || index.indexed[0].BusinessID != "b1" {
		t.Errorf("indexed = %+v", index.indexed)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restaurants.json")
	data := `[{"BusinessID":"b1","Name":"One","Address":"1 Main St","Rating":4.5,"Cuisine":"italian"}]`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	recs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(recs) != 1 || recs[0].BusinessID != "b1" || recs[0].Rating != 4.5 {
		t.Errorf("records = %+v", recs)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
