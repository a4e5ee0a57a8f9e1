package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sod/knn/internal/database"
	"github.com/go-sod/knn/internal/geom"
	"github.com/go-sod/knn/internal/sample/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewFromEnv(ctx, &database.Config{
		FileName:    filepath.Join(t.TempDir(), "samples.db"),
		OpenTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("unable to open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close(ctx)
	})
	return New(db)
}

func TestDB_AppendFind(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	batch := []model.Sample{
		model.NewSample("iris", geom.Point{3, 3}, "B", base.Add(2*time.Second)),
		model.NewSample("iris", geom.Point{1, 1}, "A", base),
		model.NewSample("iris", geom.Point{2, 2}, "A", base.Add(time.Second)),
		model.NewSample("wine", geom.Point{9}, "red", base),
	}
	if err := db.AppendMany(ctx, batch); err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}

	keys, err := db.Keys()
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if len(keys) != 2 || keys[0] != "iris" || keys[1] != "wine" {
		t.Errorf("model keys got: %v, expected: [iris wine]", keys)
	}

	iris, err := db.FindByModel("iris", nil)
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if len(iris) != 3 {
		t.Fatalf("samples of iris got: %d, expected: 3", len(iris))
	}
	for i, expected := range []float64{1, 2, 3} {
		if iris[i].Vec[0] != expected {
			t.Errorf("samples must be ordered by creation time, position %d got: %v", i, iris[i].Vec)
		}
	}

	onlyA, err := db.FindByModel("iris", func(s model.Sample) bool { return s.Label == "A" })
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if len(onlyA) != 2 {
		t.Errorf("filtered samples got: %d, expected: 2", len(onlyA))
	}

	all, err := db.FindAll(ctx, nil)
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all samples got: %d, expected: 4", len(all))
	}

	n, err := db.CountByModel("iris")
	if err != nil || n != 3 {
		t.Errorf("count got: %d, %v, expected: 3", n, err)
	}
	missing, err := db.FindByModel("missing", nil)
	if err != nil || len(missing) != 0 {
		t.Errorf("unknown model got: %v, %v, expected no samples", missing, err)
	}
}

func TestDB_DeleteReplace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()
	first := model.NewSample("m", geom.Point{1}, "A", now)
	second := model.NewSample("m", geom.Point{2}, "B", now.Add(time.Millisecond))
	if err := db.Store(ctx, first); err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if err := db.Store(ctx, second); err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}

	stored, err := db.FindByModel("m", nil)
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if err := db.DeleteMany(ctx, stored[:1]); err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if n, _ := db.CountByModel("m"); n != 1 {
		t.Errorf("count after delete got: %d, expected: 1", n)
	}

	replacement := []model.Sample{
		model.NewSample("m", geom.Point{7}, "C", now),
		model.NewSample("m", geom.Point{8}, "D", now.Add(time.Second)),
	}
	if err := db.ReplaceModel(ctx, "m", replacement); err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	stored, err = db.FindByModel("m", nil)
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if len(stored) != 2 || stored[0].Label != "C" || stored[1].Label != "D" {
		t.Errorf("replaced samples got: %v, expected labels [C D]", stored)
	}
	if err := db.ReplaceModel(ctx, "m", []model.Sample{model.NewSample("other", geom.Point{1}, "X", now)}); err == nil {
		t.Errorf("samples of another model must be rejected")
	}

	if err := db.DeleteByModel(ctx, "m"); err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	keys, err := db.Keys()
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("keys after model delete got: %v, expected none", keys)
	}
}

func TestDB_OrderMatchesSamples(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now()
	batch := []model.Sample{
		model.NewSample("m", geom.Point{1}, "now", now),
		model.NewSample("m", geom.Point{2}, "now", now),
		model.NewSample("m", geom.Point{3}, "1960", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)),
		model.NewSample("m", geom.Point{4}, "1970", time.Unix(0, 0)),
		model.NewSample("m", geom.Point{5}, "earlier", now.Add(-time.Hour)),
	}
	if err := db.ReplaceModel(ctx, "m", batch); err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	stored, err := db.FindByModel("m", nil)
	if err != nil {
		t.Fatalf("the error should not be returned: %v", err)
	}
	expected := model.SortedByCreation(batch)
	if len(stored) != len(expected) {
		t.Fatalf("samples got: %d, expected: %d", len(stored), len(expected))
	}
	for i := range expected {
		if stored[i].ID != expected[i].ID {
			t.Errorf("position %d got: %v (%s), expected: %v (%s)", i, stored[i].ID, stored[i].Label, expected[i].ID, expected[i].Label)
		}
	}
}
