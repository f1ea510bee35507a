package store

import (
	"context"
	"errors"
	"testing"

	"github.com/igzam/itemgest/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func verdict(batch, subject string, status bool, n int) *model.Verdict {
	items := make([]model.Question, n)
	for i := range items {
		items[i] = model.Question{Order: i + 1, Text: "<p>q</p>"}
	}
	return &model.Verdict{
		Status:  status,
		Batch:   batch,
		Subject: subject,
		Data:    []model.Group{{Items: items}},
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	v := verdict("ENG-1", "ENG", false, 2)
	v.Diagnostics = []model.Diagnostic{{Kind: model.KindTotalCount, Message: "short"}}
	if err := s.Save(ctx, v); err != nil {
		t.Fatalf("save: %v", err)
	}
	rec, err := s.Get(ctx, "ENG-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status || rec.Total != 2 || rec.Subject != "ENG" || len(rec.Diagnostics) != 1 {
		t.Errorf("unexpected record %+v", rec)
	}

	if err := s.Save(ctx, verdict("ENG-1", "ENG", true, 3)); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	rec, _ = s.Get(ctx, "ENG-1")
	if !rec.Status || rec.Total != 3 || len(rec.Groups[0].Items) != 3 {
		t.Errorf("expected upserted record, got %+v", rec)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDashboardAndBySubject(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, v := range []*model.Verdict{
		verdict("ENG-1", "ENG", true, 5),
		verdict("ENG-2", "ENG", true, 4),
		verdict("BIO-1", "BIO", true, 3),
		verdict("BIO-2", "BIO", false, 9),
	} {
		if err := s.Save(ctx, v); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	sum, err := s.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(sum.Subjects) != 2 || sum.Subjects[0] != "BIO" || sum.Subjects[1] != "ENG" {
		t.Errorf("expected [BIO ENG], got %v", sum.Subjects)
	}
	if sum.TotalQuestions != 12 {
		t.Errorf("expected 12 accepted questions, got %d", sum.TotalQuestions)
	}

	recs, err := s.BySubject(ctx, "BIO")
	if err != nil {
		t.Fatalf("by subject: %v", err)
	}
	if len(recs) != 1 || recs[0].Batch != "BIO-1" {
		t.Errorf("expected only accepted BIO-1, got %+v", recs)
	}
}

func TestRebind(t *testing.T) {
	s := &Store{driver: DriverPostgres}
	if got := s.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("expected $n placeholders, got %q", got)
	}
	s.driver = DriverSQLite
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Errorf("expected sqlite query unchanged, got %q", got)
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", ""); err == nil {
		t.Error("expected unsupported driver error")
	}
}
