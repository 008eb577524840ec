package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/gosignals-ai/bet-analyzer/internal/config"
	"github.com/gosignals-ai/bet-analyzer/internal/interfaces"
	"github.com/gosignals-ai/bet-analyzer/internal/metrics"
	"github.com/gosignals-ai/bet-analyzer/internal/service"
	"github.com/gosignals-ai/bet-analyzer/internal/utils/testdb"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	return newTestRouterWithSource(t, nil)
}

func newTestRouterWithSource(t *testing.T, source interfaces.OddsSource) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testdb.New(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	m := metrics.New()

	ingestSvc := service.NewIngestService(db, source, m, logger)
	ingest := NewIngestHandler(
		ingestSvc,
		service.NewNormalizeService(db, config.NormalizeConfig{}, m, logger),
		logger,
	)
	sync := NewSyncHandler(service.NewOddsSyncService(ingestSvc, []string{"basketball_nba"}, logger), logger)
	core := NewCoreHandler(service.NewQueryService(db, logger), logger)
	r := gin.New()
	RegisterRoutes(r, ingest, sync, core, m.Registry())
	return r, db
}

func do(t *testing.T, r http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

const g1Payload = `{"id":"g1","home_team":"Lakers","away_team":"Celtics","commence_time":"2025-01-02T00:00:00Z",
	"bookmakers":[{"key":"fd","last_update":"2025-01-01T11:00:00Z","markets":[{"key":"h2h","outcomes":[
	  {"name":"Lakers","price":-110},{"name":"Celtics","price":"+120"}]}]}]}`

const snapshotBody = `{"sport_key":"basketball_nba","game_id":"g1","fetched_at":"2025-01-01T12:00:00Z","payload":` + g1Payload + `}`

func TestIngestAndNormalizeFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodPost, "/ingest/snapshots", snapshotBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("first ingest status = %d body=%s", w.Code, w.Body)
	}
	w = do(t, r, http.MethodPost, "/ingest/snapshots", snapshotBody)
	if w.Code != http.StatusOK || decode(t, w)["inserted"] != false {
		t.Fatalf("duplicate ingest = %d %s", w.Code, w.Body)
	}

	// 默认 dry run
	w = do(t, r, http.MethodPost, "/ingest/normalize", "")
	if w.Code != http.StatusOK {
		t.Fatalf("normalize status = %d body=%s", w.Code, w.Body)
	}
	dry := decode(t, w)
	if dry["dry_run"] != true || dry["odds_inserts"] != float64(2) {
		t.Errorf("dry run = %v", dry)
	}
	w = do(t, r, http.MethodGet, "/core/metrics", "")
	if decode(t, w)["odds"] != float64(0) {
		t.Errorf("dry run wrote odds: %s", w.Body)
	}

	w = do(t, r, http.MethodPost, "/ingest/normalize?dry_run=0", "")
	if live := decode(t, w); live["dry_run"] != false || live["odds_inserts"] != float64(2) {
		t.Errorf("live = %v", live)
	}

	w = do(t, r, http.MethodGet, "/core/best-prices?market=h2h", "")
	if w.Code != http.StatusOK || decode(t, w)["count"] != float64(2) {
		t.Errorf("best prices = %d %s", w.Code, w.Body)
	}

	w = do(t, r, http.MethodGet, "/core/latest-lines?sport=basketball_nba", "")
	body := decode(t, w)
	items, _ := body["items"].([]interface{})
	if len(items) != 1 {
		t.Fatalf("latest lines = %s", w.Body)
	}
	row := items[0].(map[string]interface{})
	if row["home_best_price"] != float64(-110) || row["away_best_price"] != float64(120) {
		t.Errorf("moneyline row = %v", row)
	}

	w = do(t, r, http.MethodGet, "/core/integrity", "")
	if decode(t, w)["ok"] != true {
		t.Errorf("integrity = %s", w.Body)
	}
}

func TestErrorResponses(t *testing.T) {
	r, db := newTestRouter(t)

	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		wantCode int
		wantErr  string
	}{
		{"bad body", http.MethodPost, "/ingest/snapshots", `{"game_id":"g1"}`, http.StatusBadRequest, "invalid_request"},
		{"payload not object", http.MethodPost, "/ingest/snapshots", `{"sport_key":"nba","payload":[1]}`, http.StatusBadRequest, "invalid_snapshot"},
		{"bad dry_run", http.MethodPost, "/ingest/normalize?dry_run=maybe", "", http.StatusBadRequest, "invalid_request"},
		{"bad since", http.MethodPost, "/ingest/resolve?since=yesterday", "", http.StatusBadRequest, "invalid_request"},
		{"bad ids", http.MethodPost, "/ingest/resolve?ids=1,x", "", http.StatusBadRequest, "invalid_request"},
		{"no source", http.MethodPost, "/ingest/odds/basketball_nba", "", http.StatusBadGateway, "odds_source_failed"},
		{"no source batch", http.MethodPost, "/ingest/odds?sports=basketball_nba,icehockey_nhl", "", http.StatusBadGateway, "odds_source_failed"},
		{"sync bad dry_run", http.MethodPost, "/ingest/odds?dry_run=x", "", http.StatusBadRequest, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, tt.method, tt.target, tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body)
			}
			body := decode(t, w)
			if body["error"] != tt.wantErr {
				t.Errorf("error = %v, want %s", body["error"], tt.wantErr)
			}
			if _, ok := body["detail"]; ok {
				t.Error("detail must not be exposed outside debug mode")
			}
		})
	}

	if err := db.Migrator().DropTable("odds_raw"); err != nil {
		t.Fatal(err)
	}
	w := do(t, r, http.MethodPost, "/ingest/normalize", "")
	if w.Code != http.StatusNotFound || decode(t, w)["error"] != "odds_raw_not_found" {
		t.Errorf("missing raw table = %d %s", w.Code, w.Body)
	}
}

func TestHealthAndPrometheus(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(t, r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ok" {
		t.Errorf("health = %d %s", w.Code, w.Body)
	}

	do(t, r, http.MethodPost, "/ingest/normalize", "")
	w = do(t, r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "gosignals_pipeline_runs_total") {
		t.Errorf("metrics output missing pipeline counter")
	}
}

// nbaOnlySource 只返回 basketball_nba，其余运动模拟内网连接失败
type nbaOnlySource struct{}

func (nbaOnlySource) GetName() string { return "nba-only" }

func (nbaOnlySource) FetchOdds(ctx context.Context, req interfaces.OddsRequest) (*interfaces.OddsBatch, error) {
	if req.Sport != "basketball_nba" {
		return nil, errors.New("dial tcp 10.1.2.3:443: internal-host-detail")
	}
	return &interfaces.OddsBatch{
		Events: []interfaces.SourceEvent{{ID: "g1", SportKey: req.Sport, Payload: json.RawMessage(g1Payload)}},
	}, nil
}

func TestSyncOdds_FailureDetailOnlyInDebug(t *testing.T) {
	r, _ := newTestRouterWithSource(t, nbaOnlySource{})
	defer gin.SetMode(gin.TestMode)

	tests := []struct {
		mode       string
		wantDetail bool
	}{
		{gin.ReleaseMode, false},
		{gin.DebugMode, true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			gin.SetMode(tt.mode)
			w := do(t, r, http.MethodPost, "/ingest/odds?sports=basketball_nba,icehockey_nhl&dry_run=1", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d (%s)", w.Code, w.Body)
			}
			if leaked := strings.Contains(w.Body.String(), "internal-host-detail"); leaked != tt.wantDetail {
				t.Errorf("raw error in body = %v, want %v: %s", leaked, tt.wantDetail, w.Body)
			}

			body := decode(t, w)
			sports, _ := body["sports"].([]interface{})
			if len(sports) != 2 || body["failed"] != float64(1) {
				t.Fatalf("sports = %s", w.Body)
			}
			failed := sports[1].(map[string]interface{})
			if failed["code"] != "odds_source_failed" || failed["error"] != "拉取赔率失败" {
				t.Errorf("failed sport = %v", failed)
			}
		})
	}
}
