package service

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gosignals-ai/bet-analyzer/internal/config"
	"github.com/gosignals-ai/bet-analyzer/internal/interfaces"
	"github.com/gosignals-ai/bet-analyzer/internal/metrics"
	"github.com/gosignals-ai/bet-analyzer/internal/utils/testdb"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db        *gorm.DB
	ingest    *IngestService
	normalize *NormalizeService
	query     *QueryService
	metrics   *metrics.PipelineMetrics
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T, source interfaces.OddsSource) *fixture {
	t.Helper()
	db := testdb.New(t)
	logger := quietLogger()
	m := metrics.New()
	return &fixture{
		db:        db,
		ingest:    NewIngestService(db, source, m, logger),
		normalize: NewNormalizeService(db, config.NormalizeConfig{BatchSize: 100}, m, logger),
		query:     NewQueryService(db, logger),
		metrics:   m,
	}
}

// h2hPayload 一场比赛、一个书商、一个 h2h 盘口
func h2hPayload(gameID, book, lastUpdate string, homePrice, awayPrice int) string {
	return fmt.Sprintf(`{"id":%q,"sport_key":"basketball_nba","commence_time":"2025-01-02T00:00:00Z",
		"home_team":"Lakers","away_team":"Celtics",
		"bookmakers":[{"key":%q,"last_update":%q,"markets":[{"key":"h2h","outcomes":[
			{"name":"Lakers","price":%d},{"name":"Celtics","price":%d}]}]}]}`,
		gameID, book, lastUpdate, homePrice, awayPrice)
}

func (f *fixture) mustIngest(t *testing.T, gameID, payload string, at time.Time) {
	t.Helper()
	if _, err := f.ingest.Ingest(context.Background(), "basketball_nba", gameID, []byte(payload), at); err != nil {
		t.Fatalf("Ingest(%s): %v", gameID, err)
	}
}

func (f *fixture) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	if err := f.db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

type fakeSource struct {
	batch *interfaces.OddsBatch
	err   error
	calls int
}

func (f *fakeSource) GetName() string { return "fake" }

func (f *fakeSource) FetchOdds(ctx context.Context, req interfaces.OddsRequest) (*interfaces.OddsBatch, error) {
	f.calls++
	return f.batch, f.err
}
