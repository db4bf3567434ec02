// Mangashelf - Manga Publishing and Reading Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mangashelf

package journal

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func openTest(t *testing.T, path string) *Journal {
	t.Helper()
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalLookup(t *testing.T) {
	j := openTest(t, "")
	sha := Hash([]byte("page zero"))
	rec := Record{ChapterID: "c1", Index: 0, SHA256: sha, ObjectKey: "manga/m/chapters/c1/000-aa.webp", Width: 800, Height: 1200, Bytes: 1234,
		CompletedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}

	if _, ok, err := j.Lookup("c1", 0, sha); err != nil || ok {
		t.Fatalf("Lookup(empty) = %v, %v", ok, err)
	}
	if err := j.Record(rec); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, ok, err := j.Lookup("c1", 0, sha)
	if err != nil || !ok {
		t.Fatalf("Lookup() = %v, %v", ok, err)
	}
	if diff := cmp.Diff(rec, *got); diff != "" {
		t.Errorf("Lookup() mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name    string
		chapter string
		index   int
		sha     string
	}{
		{"changed file", "c1", 0, Hash([]byte("page zero, edited"))},
		{"other index", "c1", 1, sha},
		{"other chapter", "c2", 0, sha},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok, err := j.Lookup(tt.chapter, tt.index, tt.sha); err != nil || ok {
				t.Errorf("Lookup() = %v, %v, want miss", ok, err)
			}
		})
	}
}

func TestJournalRecordReplacesStaleHash(t *testing.T) {
	j := openTest(t, "")
	oldSHA, newSHA := Hash([]byte("v1")), Hash([]byte("v2"))

	if err := j.Record(Record{ChapterID: "c1", Index: 3, SHA256: oldSHA, ObjectKey: "k1"}); err != nil {
		t.Fatal(err)
	}
	if err := j.Record(Record{ChapterID: "c1", Index: 3, SHA256: newSHA, ObjectKey: "k2"}); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := j.Lookup("c1", 3, oldSHA); ok {
		t.Error("stale hash still present")
	}
	recs, err := j.Completed("c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ObjectKey != "k2" {
		t.Errorf("Completed() = %+v", recs)
	}
}

func TestJournalCompletedAndForget(t *testing.T) {
	j := openTest(t, "")
	for _, idx := range []int{10, 2, 0} {
		if err := j.Record(Record{ChapterID: "c1", Index: idx, SHA256: Hash([]byte{byte(idx)})}); err != nil {
			t.Fatal(err)
		}
	}
	if err := j.Record(Record{ChapterID: "c10", Index: 0, SHA256: Hash([]byte("x"))}); err != nil {
		t.Fatal(err)
	}

	recs, err := j.Completed("c1")
	if err != nil {
		t.Fatal(err)
	}
	var order []int
	for _, r := range recs {
		order = append(order, r.Index)
	}
	if diff := cmp.Diff([]int{0, 2, 10}, order); diff != "" {
		t.Errorf("Completed() order mismatch (-want +got):\n%s", diff)
	}

	n, err := j.Forget("c1")
	if err != nil || n != 3 {
		t.Fatalf("Forget() = %d, %v, want 3", n, err)
	}
	if recs, _ := j.Completed("c10"); len(recs) != 1 {
		t.Errorf("Forget(c1) touched c10: %+v", recs)
	}
}

func TestJournalPersistsAcrossOpen(t *testing.T) {
	dir := t.TempDir()
	sha := Hash([]byte("persist"))

	j, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(Record{ChapterID: "c1", Index: 0, SHA256: sha, ObjectKey: "k"}); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, _, err := j.Lookup("c1", 0, sha); !errors.Is(err, ErrClosed) {
		t.Errorf("Lookup(closed) error = %v, want ErrClosed", err)
	}

	reopened := openTest(t, dir)
	rec, ok, err := reopened.Lookup("c1", 0, sha)
	if err != nil || !ok || rec.ObjectKey != "k" {
		t.Errorf("Lookup(reopened) = %+v, %v, %v", rec, ok, err)
	}
}
