package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clinbrief/clinbrief/dbopen"

	_ "modernc.org/sqlite"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s, err := NewStore(db)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func insertReport(t *testing.T, s *Store, id string, created time.Time) *Report {
	t.Helper()
	r := &Report{
		ID:           id,
		SourceType:   "text",
		OriginalText: "BP 120/80",
		Status:       StatusPending,
		Version:      1,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	if err := s.Insert(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestStoreInsertGet(t *testing.T) {
	s := testStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	insertReport(t, s, "rep_1", now)

	got, err := s.Get(context.Background(), "rep_1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("report not found")
	}
	if got.OriginalText != "BP 120/80" || got.Status != StatusPending {
		t.Errorf("got %+v", got)
	}
	if got.SummaryText != nil {
		t.Error("summary should be nil for pending report")
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, now)
	}
}

func TestStoreGetMissing(t *testing.T) {
	s := testStore(t)
	got, err := s.Get(context.Background(), "rep_nope")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestStoreListOrderAndPaging(t *testing.T) {
	s := testStore(t)
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		insertReport(t, s, "rep_"+string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
	}

	page1, total, err := s.List(context.Background(), "", 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if total != 5 {
		t.Errorf("total = %d, want 5", total)
	}
	if len(page1) != 2 || page1[0].ID != "rep_e" || page1[1].ID != "rep_d" {
		t.Errorf("page1 = %v", ids(page1))
	}

	page3, _, err := s.List(context.Background(), "", 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page3) != 1 || page3[0].ID != "rep_a" {
		t.Errorf("page3 = %v", ids(page3))
	}
}

func TestStoreListOwnerFilter(t *testing.T) {
	s := testStore(t)
	now := time.Now().UTC()
	r := insertReport(t, s, "rep_mine", now)
	_ = r
	other := &Report{
		ID: "rep_theirs", OwnerID: "usr_2", SourceType: "text",
		OriginalText: "x", Status: StatusPending, Version: 1,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := s.Insert(context.Background(), other); err != nil {
		t.Fatal(err)
	}

	got, total, err := s.List(context.Background(), "usr_2", 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(got) != 1 || got[0].ID != "rep_theirs" {
		t.Errorf("got %v, total %d", ids(got), total)
	}
}

func TestStoreUpdateSummary(t *testing.T) {
	s := testStore(t)
	insertReport(t, s, "rep_1", time.Now().UTC())

	summary := "Normal vitals."
	if err := s.UpdateSummary(context.Background(), "rep_1", 1, StatusCompleted, &summary); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(context.Background(), "rep_1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != StatusCompleted || got.SummaryText == nil || *got.SummaryText != summary {
		t.Errorf("got %+v", got)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
}

func TestStoreUpdateSummaryConflict(t *testing.T) {
	s := testStore(t)
	insertReport(t, s, "rep_1", time.Now().UTC())

	// Stale version loses.
	err := s.UpdateSummary(context.Background(), "rep_1", 99, StatusCompleted, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestStoreUpdateSummaryMissing(t *testing.T) {
	s := testStore(t)
	err := s.UpdateSummary(context.Background(), "rep_nope", 1, StatusCompleted, nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func ids(rs []*Report) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
