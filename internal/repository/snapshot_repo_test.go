package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
	"github.com/gosignals-ai/bet-analyzer/internal/utils/testdb"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func rawSnap(gameID, hash string, at time.Time) *model.RawSnapshot {
	return &model.RawSnapshot{
		SportKey:    "basketball_nba",
		GameID:      gameID,
		FetchedAt:   at,
		Payload:     datatypes.JSON(`{"id":"` + gameID + `"}`),
		PayloadHash: hash,
	}
}

func TestSnapshotRepository_InsertDedupByHash(t *testing.T) {
	db := testdb.New(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, rawSnap("g1", "h1", base))
	if err != nil || !inserted {
		t.Fatalf("first insert = (%v, %v), want (true, nil)", inserted, err)
	}
	inserted, err = repo.Insert(ctx, rawSnap("g1", "h1", base.Add(time.Minute)))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Error("duplicate hash reported as inserted")
	}

	var n int64
	db.Model(&model.RawSnapshot{}).Count(&n)
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}

	found, err := repo.ExistingHashes(ctx, []string{"h1", "h2"})
	if err != nil {
		t.Fatal(err)
	}
	if !found["h1"] || found["h2"] {
		t.Errorf("existing hashes = %v", found)
	}
}

func TestSnapshotRepository_ListOrderingAndCaps(t *testing.T) {
	db := testdb.New(t)
	repo := NewSnapshotRepository(db)
	ctx := context.Background()

	// g1 三条，g2 一条
	for i, s := range []*model.RawSnapshot{
		rawSnap("g1", "a", base),
		rawSnap("g1", "b", base.Add(1*time.Minute)),
		rawSnap("g2", "c", base.Add(2*time.Minute)),
		rawSnap("g1", "d", base.Add(3*time.Minute)),
	} {
		if _, err := repo.Insert(ctx, s); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	tests := []struct {
		name   string
		filter SnapshotFilter
		want   []string
	}{
		{"all ascending", SnapshotFilter{}, []string{"a", "b", "c", "d"}},
		{"since", SnapshotFilter{Since: ptrTime(base.Add(90 * time.Second))}, []string{"c", "d"}},
		{"per game cap", SnapshotFilter{PerGameLimit: 1}, []string{"c", "d"}},
		{"per game cap two", SnapshotFilter{PerGameLimit: 2}, []string{"b", "c", "d"}},
		{"limit newest", SnapshotFilter{Limit: 2}, []string{"c", "d"}},
		{"cap then limit", SnapshotFilter{PerGameLimit: 2, Limit: 2}, []string{"c", "d"}},
		{"sport filter", SnapshotFilter{SportKey: "icehockey_nhl"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			var hashes []string
			for _, s := range got {
				hashes = append(hashes, s.PayloadHash)
			}
			if len(hashes) != len(tt.want) {
				t.Fatalf("hashes = %v, want %v", hashes, tt.want)
			}
			for i := range hashes {
				if hashes[i] != tt.want[i] {
					t.Fatalf("hashes = %v, want %v", hashes, tt.want)
				}
			}
		})
	}

	all, _ := repo.List(ctx, SnapshotFilter{})
	ids := []uint64{all[0].ID, all[3].ID}
	byID, err := repo.List(ctx, SnapshotFilter{IDs: ids, Since: ptrTime(base.Add(time.Hour))})
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 2 {
		t.Errorf("ids selector returned %d rows, want 2 (since ignored)", len(byID))
	}
}

func TestSnapshotRepository_ValidateContract(t *testing.T) {
	ctx := context.Background()

	t.Run("ok", func(t *testing.T) {
		db := testdb.New(t)
		if err := NewSnapshotRepository(db).ValidateContract(ctx); err != nil {
			t.Errorf("ValidateContract = %v", err)
		}
	})

	t.Run("table missing", func(t *testing.T) {
		db := testdb.New(t)
		if err := db.Migrator().DropTable("odds_raw"); err != nil {
			t.Fatal(err)
		}
		err := NewSnapshotRepository(db).ValidateContract(ctx)
		if !errors.Is(err, ErrRawTableMissing) {
			t.Errorf("err = %v, want ErrRawTableMissing", err)
		}
	})

	t.Run("columns missing", func(t *testing.T) {
		db := testdb.New(t)
		if err := db.Migrator().DropTable("odds_raw"); err != nil {
			t.Fatal(err)
		}
		if err := db.Exec(`CREATE TABLE odds_raw (id integer primary key, sport_key text, game_id text, fetched_at datetime)`).Error; err != nil {
			t.Fatal(err)
		}
		err := NewSnapshotRepository(db).ValidateContract(ctx)
		var mc *MissingColumnsError
		if !errors.As(err, &mc) {
			t.Fatalf("err = %v, want MissingColumnsError", err)
		}
		if len(mc.Columns) != 2 || mc.Columns[0] != "payload" || mc.Columns[1] != "payload_hash" {
			t.Errorf("missing = %v, want [payload payload_hash]", mc.Columns)
		}
	})
}

func ptrTime(t time.Time) *time.Time { return &t }
