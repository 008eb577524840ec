package normalize

import (
	"testing"
	"time"

	"github.com/gosignals-ai/bet-analyzer/internal/model"
	"gorm.io/datatypes"
)

var (
	fetched  = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	observed = time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
)

func snapshot(id uint64, gameID string, at time.Time, payload string) *model.RawSnapshot {
	return &model.RawSnapshot{
		ID:        id,
		SportKey:  "soccer_epl",
		GameID:    gameID,
		FetchedAt: at,
		Payload:   datatypes.JSON(payload),
	}
}

func TestBatch_MalformedRowSkipped(t *testing.T) {
	payload := `{"id":"g1","home_team":"Home FC","away_team":"Away FC","commence_time":"2025-01-01T15:00:00Z",
		"bookmakers":[{"key":"draftkings","last_update":"2025-01-01T10:00:00Z",
			"markets":[{"key":"h2h","outcomes":[
				{"name":"Home FC","price":-110},
				{"name":"Away FC","price":"abc"},
				{"name":"Draw","price":250}]}]}]}`

	b := NewBatch(observed)
	b.Add(snapshot(1, "g1", fetched, payload))

	quotes := b.Quotes()
	if len(quotes) != 2 {
		t.Fatalf("quotes = %d, want 2", len(quotes))
	}
	if b.Skipped.MalformedRows != 1 {
		t.Errorf("malformed rows = %d, want 1", b.Skipped.MalformedRows)
	}
	if quotes[0].Side != model.SideHome || quotes[0].Price != -110 {
		t.Errorf("first quote = %+v", quotes[0])
	}
	if quotes[1].Side != model.SideDraw || quotes[1].Price != 250 {
		t.Errorf("second quote = %+v", quotes[1])
	}
	for _, q := range quotes {
		if !q.ObservedAt.Equal(observed) {
			t.Errorf("observed_at = %v, want %v", q.ObservedAt, observed)
		}
		if q.Point.Valid {
			t.Errorf("moneyline quote carries a point: %+v", q)
		}
	}

	games := b.Games()
	if len(games) != 1 {
		t.Fatalf("games = %d, want 1", len(games))
	}
	g := games[0]
	if g.GameUID != "g1" || g.HomeTeam != "Home FC" || g.AwayTeam != "Away FC" {
		t.Errorf("game = %+v", g)
	}
	if g.CommenceTime == nil || !g.CommenceTime.Equal(time.Date(2025, 1, 1, 15, 0, 0, 0, time.UTC)) {
		t.Errorf("commence_time = %v", g.CommenceTime)
	}
}

func TestBatch_TimestampFallback(t *testing.T) {
	payload := `{"id":"g1","home_team":"A","away_team":"B","bookmakers":[
		{"key":"book_a","markets":[{"key":"h2h","outcomes":[{"name":"A","price":100}]}]},
		{"key":"book_b","last_update":"2025-01-01T09:00:00Z","markets":[{"key":"h2h","outcomes":[{"name":"A","price":100}]}]},
		{"key":"book_c","last_update":"2025-01-01T09:00:00Z","markets":[{"key":"h2h","last_update":"2025-01-01T10:00:00Z","outcomes":[{"name":"A","price":100}]}]},
		{"key":"book_d","markets":[{"key":"h2h","outcomes":[{"name":"A","price":100,"last_update":"2025-01-01T11:00:00+02:00"}]}]}
	]}`

	b := NewBatch(observed)
	b.Add(snapshot(1, "g1", fetched, payload))

	want := map[string]time.Time{
		"book_a": fetched,
		"book_b": time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		"book_c": time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		"book_d": time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	quotes := b.Quotes()
	if len(quotes) != len(want) {
		t.Fatalf("quotes = %d, want %d", len(quotes), len(want))
	}
	for _, q := range quotes {
		if !q.LastUpdate.Equal(want[q.BookKey]) {
			t.Errorf("%s last_update = %v, want %v", q.BookKey, q.LastUpdate, want[q.BookKey])
		}
		if q.LastUpdate.Location() != time.UTC {
			t.Errorf("%s last_update not in UTC", q.BookKey)
		}
	}
}

func TestBatch_UnparseableTimestampMalformsUnit(t *testing.T) {
	payload := `{"id":"g1","home_team":"A","away_team":"B","bookmakers":[
		{"key":"bad_book","last_update":"yesterday","markets":[{"key":"h2h","outcomes":[{"name":"A","price":100}]}]},
		{"key":"good_book","markets":[
			{"key":"h2h","last_update":"nope","outcomes":[{"name":"A","price":100}]},
			{"key":"spreads","outcomes":[{"name":"A","price":-110,"point":-1.5,"last_update":"bad"},{"name":"B","price":-110,"point":1.5}]}
		]}
	]}`

	b := NewBatch(observed)
	b.Add(snapshot(1, "g1", fetched, payload))

	if b.Skipped.MalformedBookmakers != 1 {
		t.Errorf("malformed bookmakers = %d, want 1", b.Skipped.MalformedBookmakers)
	}
	if b.Skipped.MalformedMarkets != 1 {
		t.Errorf("malformed markets = %d, want 1", b.Skipped.MalformedMarkets)
	}
	if b.Skipped.MalformedRows != 1 {
		t.Errorf("malformed rows = %d, want 1", b.Skipped.MalformedRows)
	}
	quotes := b.Quotes()
	if len(quotes) != 1 || quotes[0].Side != model.SideAway {
		t.Fatalf("quotes = %+v, want the single away spread", quotes)
	}
	if !quotes[0].Point.Valid || quotes[0].Point.Decimal.String() != "1.5" {
		t.Errorf("point = %+v, want 1.5", quotes[0].Point)
	}
}

func TestBatch_PointRules(t *testing.T) {
	payload := `{"id":"g1","home_team":"A","away_team":"B","bookmakers":[{"key":"fanduel","markets":[
		{"key":"spreads","outcomes":[{"name":"A","price":-110},{"name":"B","price":-110,"point":3.5}]},
		{"key":"totals","outcomes":[{"name":"Over","price":-105,"point":220.5},{"name":"Under","price":-115,"point":null}]},
		{"key":"h2h","outcomes":[{"name":"A","price":-150,"point":7}]}
	]}]}`

	b := NewBatch(observed)
	b.Add(snapshot(1, "g1", fetched, payload))

	if b.Skipped.MalformedRows != 2 {
		t.Errorf("malformed rows = %d, want 2", b.Skipped.MalformedRows)
	}
	got := map[string]model.OddsQuote{}
	for _, q := range b.Quotes() {
		got[q.MarketKey+"/"+string(q.Side)] = q
	}
	if len(got) != 3 {
		t.Fatalf("quotes = %v", got)
	}
	if q := got["h2h/home"]; q.Point.Valid {
		t.Errorf("moneyline point should be dropped, got %+v", q.Point)
	}
	if q := got["totals/over"]; !q.Point.Valid || q.Point.Decimal.String() != "220.5" {
		t.Errorf("totals point = %+v", q.Point)
	}
	if q := got["spreads/away"]; !q.Point.Valid || q.Point.Decimal.String() != "3.5" {
		t.Errorf("spread point = %+v", q.Point)
	}
}

func TestBatch_SidesAndUnknownMarkets(t *testing.T) {
	payload := `{"id":"g1","home_team":"Home FC","away_team":"Away FC","bookmakers":[{"key":"fanduel","markets":[
		{"key":"h2h","outcomes":[{"name":"Home FC","price":-110},{"name":"Someone Else","price":500}]},
		{"key":"alternate_spreads","outcomes":[{"name":"Home FC","price":-110,"point":-2.5}]},
		{"key":"player_points","outcomes":[{"name":"Over","price":-110,"point":20.5}]}
	]}]}`

	b := NewBatch(observed)
	b.Add(snapshot(1, "g1", fetched, payload))

	if b.Skipped.UnclassifiableSides != 1 {
		t.Errorf("unclassifiable = %d, want 1", b.Skipped.UnclassifiableSides)
	}
	if b.Skipped.UnknownMarkets != 2 {
		t.Errorf("unknown markets = %d, want 2", b.Skipped.UnknownMarkets)
	}
	if len(b.Quotes()) != 1 {
		t.Errorf("quotes = %d, want 1", len(b.Quotes()))
	}
	// 未知盘口不产生报价，但盘口维度仍然记录
	if len(b.Markets()) != 3 {
		t.Errorf("markets = %d, want 3", len(b.Markets()))
	}
}

func TestBatch_DuplicateQuoteFirstWins(t *testing.T) {
	payload := `{"id":"g1","home_team":"A","away_team":"B","bookmakers":[{"key":"fanduel","last_update":"2025-01-01T10:00:00Z","markets":[
		{"key":"h2h","outcomes":[{"name":"A","price":-110},{"name":"A","price":-120}]}
	]}]}`

	b := NewBatch(observed)
	b.Add(snapshot(1, "g1", fetched, payload))
	b.Add(snapshot(2, "g1", fetched.Add(time.Minute), payload))

	quotes := b.Quotes()
	if len(quotes) != 1 {
		t.Fatalf("quotes = %d, want 1", len(quotes))
	}
	if quotes[0].Price != -110 {
		t.Errorf("price = %d, want first-seen -110", quotes[0].Price)
	}
	if b.Skipped.DuplicateQuotes != 3 {
		t.Errorf("duplicates = %d, want 3", b.Skipped.DuplicateQuotes)
	}
	if b.Snapshots() != 2 {
		t.Errorf("snapshots = %d, want 2", b.Snapshots())
	}
}

func TestBatch_GameFromNewestSnapshot(t *testing.T) {
	older := `{"id":"g1","home_team":"Old Home","away_team":"Old Away","status":"scheduled","bookmakers":[]}`
	newer := `{"id":"g1","home_team":"New Home","away_team":"New Away","bookmakers":[]}`

	b := NewBatch(observed)
	b.Add(snapshot(5, "g1", fetched.Add(time.Hour), newer))
	b.Add(snapshot(9, "g1", fetched, older))

	games := b.Games()
	if len(games) != 1 {
		t.Fatalf("games = %d", len(games))
	}
	g := games[0]
	if g.HomeTeam != "New Home" {
		t.Errorf("home = %q, want New Home", g.HomeTeam)
	}
	if g.Status != nil {
		t.Errorf("status = %q, want nil (absent in newest snapshot)", *g.Status)
	}
	if !g.SourceFetchedAt.Equal(fetched.Add(time.Hour)) {
		t.Errorf("source_fetched_at = %v", g.SourceFetchedAt)
	}
}

func TestBatch_MarketLastUpdateIsMax(t *testing.T) {
	payload := `{"id":"g1","home_team":"A","away_team":"B","bookmakers":[{"key":"fanduel","last_update":"2025-01-01T08:00:00Z","markets":[
		{"key":"h2h","outcomes":[
			{"name":"A","price":-110,"last_update":"2025-01-01T09:00:00Z"},
			{"name":"B","price":100,"last_update":"2025-01-01T11:00:00Z"}]}
	]}]}`

	b := NewBatch(observed)
	b.Add(snapshot(1, "g1", fetched, payload))

	markets := b.Markets()
	if len(markets) != 1 {
		t.Fatalf("markets = %d", len(markets))
	}
	if want := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC); !markets[0].LastUpdate.Equal(want) {
		t.Errorf("market last_update = %v, want %v", markets[0].LastUpdate, want)
	}
}

func TestBatch_MarketLastUpdateIncludesDroppedOutcomes(t *testing.T) {
	payload := `{"id":"g1","home_team":"Lakers","away_team":"Celtics","bookmakers":[{"key":"fanduel","last_update":"2025-01-01T10:00:00Z","markets":[
		{"key":"h2h","outcomes":[
			{"name":"Lakers","price":-110},
			{"name":"Someone Else","price":300,"last_update":"2025-01-01T11:00:00Z"}]},
		{"key":"player_points","outcomes":[{"name":"Over","price":-110,"point":20.5,"last_update":"2025-01-01T12:30:00Z"}]},
		{"key":"totals","outcomes":[{"name":"Over","price":"abc","point":210.5,"last_update":"2025-01-01T13:00:00Z"}]}
	]}]}`

	b := NewBatch(observed)
	b.Add(snapshot(1, "g1", fetched, payload))

	want := map[string]time.Time{
		"h2h":           time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC),
		"player_points": time.Date(2025, 1, 1, 12, 30, 0, 0, time.UTC),
		"totals":        time.Date(2025, 1, 1, 13, 0, 0, 0, time.UTC),
	}
	markets := b.Markets()
	if len(markets) != len(want) {
		t.Fatalf("markets = %d, want %d", len(markets), len(want))
	}
	for _, m := range markets {
		if !m.LastUpdate.Equal(want[m.MarketKey]) {
			t.Errorf("%s last_update = %v, want %v", m.MarketKey, m.LastUpdate, want[m.MarketKey])
		}
	}
	if len(b.Quotes()) != 1 {
		t.Errorf("quotes = %d, want 1", len(b.Quotes()))
	}
}

func TestBatch_SnapshotLevelSkips(t *testing.T) {
	b := NewBatch(observed)
	b.Add(snapshot(1, "", fetched, `{"home_team":"A"}`))
	b.Add(snapshot(2, "g1", fetched, `[]`))
	b.Add(snapshot(3, "g2", fetched, `{"id":"g2","home_team":"A","away_team":"B"}`))
	b.Add(snapshot(4, "", fetched, `{"id":"g3","bookmakers":[{"key":"x","markets":"oops"}, 7]}`))

	if b.Skipped.MalformedSnapshots != 2 {
		t.Errorf("malformed snapshots = %d, want 2", b.Skipped.MalformedSnapshots)
	}
	if b.Skipped.MissingBookmakers != 1 {
		t.Errorf("missing bookmakers = %d, want 1", b.Skipped.MissingBookmakers)
	}
	if b.Skipped.MalformedBookmakers != 2 {
		t.Errorf("malformed bookmakers = %d, want 2", b.Skipped.MalformedBookmakers)
	}
	if b.Snapshots() != 2 {
		t.Errorf("snapshots = %d, want 2", b.Snapshots())
	}
	games := b.Games()
	if len(games) != 2 || games[0].GameUID != "g2" || games[1].GameUID != "g3" {
		t.Errorf("games = %+v", games)
	}
	if got := b.Skipped.Total(); got != 5 {
		t.Errorf("total skipped = %d, want 5", got)
	}
}
