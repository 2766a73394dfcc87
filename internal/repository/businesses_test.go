package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/octobees/visa-directory/api/internal/dto"
	"github.com/octobees/visa-directory/api/internal/entity"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error { return r.scan(dest...) }

type stubBusinessRows struct {
	called bool
}

func (s *stubBusinessRows) Close()                                       {}
func (s *stubBusinessRows) Err() error                                   { return nil }
func (s *stubBusinessRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (s *stubBusinessRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (s *stubBusinessRows) Next() bool {
	if s.called {
		return false
	}
	s.called = true
	return true
}

func (s *stubBusinessRows) Scan(dest ...any) error {
	if !s.called {
		return errors.New("scan called before next")
	}
	id := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	*dest[0].(*uuid.UUID) = id
	*dest[1].(*sql.NullString) = sql.NullString{String: "place-123", Valid: true}
	*dest[2].(*string) = "Global Visa Experts"
	*dest[3].(*string) = "Visa Consultant"
	*dest[4].(*sql.NullString) = sql.NullString{String: "visa consultant", Valid: true}
	*dest[5].(*sql.NullString) = sql.NullString{String: "A trusted consultancy", Valid: true}
	*dest[6].(*sql.NullString) = sql.NullString{String: "+91 11 2334 5566", Valid: true}
	*dest[7].(*sql.NullString) = sql.NullString{String: "https://example.com", Valid: true}
	*dest[8].(*sql.NullString) = sql.NullString{String: "Connaught Place, New Delhi", Valid: true}
	*dest[9].(*sql.NullString) = sql.NullString{String: "Connaught Place", Valid: true}
	*dest[10].(*sql.NullString) = sql.NullString{String: "Delhi", Valid: true}
	*dest[11].(*sql.NullString) = sql.NullString{String: "Delhi", Valid: true}
	*dest[12].(*sql.NullString) = sql.NullString{String: "110001", Valid: true}
	*dest[13].(*float64) = 4.5
	*dest[14].(*int) = 120
	*dest[15].(*bool) = true
	*dest[16].(*bool) = true
	*dest[17].(*string) = "premium"
	*dest[18].(*sql.NullInt64) = sql.NullInt64{Int64: 2, Valid: true}
	*dest[19].(*[]byte) = []byte(`{"Monday":"10:00 AM - 7:00 PM"}`)
	*dest[20].(*[]byte) = []byte(`["Visa Consultation"]`)
	*dest[21].(*sql.NullString) = sql.NullString{String: "http://blobs/logo.jpg", Valid: true}
	*dest[22].(*sql.NullString) = sql.NullString{String: "http://blobs/cover.jpg", Valid: true}
	*dest[23].(*[]byte) = []byte(`["http://blobs/g1.jpg"]`)
	*dest[24].(*sql.NullTime) = sql.NullTime{Time: created, Valid: true}
	*dest[25].(*time.Time) = created
	*dest[26].(*time.Time) = created
	return nil
}

func (s *stubBusinessRows) Values() ([]any, error) { return nil, nil }
func (s *stubBusinessRows) RawValues() [][]byte    { return nil }
func (s *stubBusinessRows) Conn() *pgx.Conn        { return nil }

type stubPool struct {
	execSQL     []string
	queryRowFn  func(sql string, args []any) pgx.Row
	queryFn     func(sql string, args []any) (pgx.Rows, error)
	beginErr    error
	tx          *stubTx
}

func (p *stubPool) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL = append(p.execSQL, sql)
	return pgconn.CommandTag{}, nil
}

func (p *stubPool) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	if p.queryFn == nil {
		return &stubBusinessRows{}, nil
	}
	return p.queryFn(sql, args)
}

func (p *stubPool) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return p.queryRowFn(sql, args)
}

func (p *stubPool) Begin(_ context.Context) (pgx.Tx, error) {
	if p.beginErr != nil {
		return nil, p.beginErr
	}
	if p.tx == nil {
		p.tx = &stubTx{}
	}
	return p.tx, nil
}

// stubTx embeds pgx.Tx so only the methods the repository touches need
// implementations; calling anything else panics loudly.
type stubTx struct {
	pgx.Tx
	execSQL     []string
	execErrOn   string
	queryRowFn  func(sql string, args []any) pgx.Row
	committed   bool
	rolledBack  bool
}

func (t *stubTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	t.execSQL = append(t.execSQL, sql)
	if t.execErrOn != "" && strings.Contains(sql, t.execErrOn) {
		return pgconn.CommandTag{}, errors.New("exec failed")
	}
	return pgconn.CommandTag{}, nil
}

func (t *stubTx) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return t.queryRowFn(sql, args)
}

func (t *stubTx) Commit(_ context.Context) error {
	t.committed = true
	return nil
}

func (t *stubTx) Rollback(_ context.Context) error {
	t.rolledBack = true
	return nil
}

func sampleBusiness() *entity.Business {
	placeID := "place-123"
	return &entity.Business{
		PlaceID:     &placeID,
		Name:        "Global Visa Experts",
		Category:    "Visa Consultant",
		City:        "Connaught Place",
		Rating:      4.5,
		ReviewCount: 120,
		Plan:        "premium",
		Reviews: []entity.Review{
			{ID: "place-123_review_0", AuthorName: "Asha", Rating: 5},
			{ID: "place-123_review_1", AuthorName: "Ravi", Rating: 4},
		},
		Images: []entity.Image{
			{PhotoReference: "r0", URL: "http://blobs/0.jpg", Position: 0},
		},
	}
}

func TestUpsert_ReplacesReviewsAndImagesInOneTx(t *testing.T) {
	returnedID := uuid.MustParse("aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa")
	tx := &stubTx{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*uuid.UUID) = returnedID
				return nil
			}}
		},
	}
	pool := &stubPool{tx: tx}
	repo := &PGXBusinessesRepository{pool: pool}

	id, err := repo.Upsert(context.Background(), sampleBusiness())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != returnedID {
		t.Fatalf("expected returned id %s, got %s", returnedID, id)
	}
	if !tx.committed {
		t.Fatalf("expected transaction commit")
	}

	var deletes, reviewInserts, imageInserts int
	for _, sql := range tx.execSQL {
		switch {
		case strings.Contains(sql, "DELETE FROM reviews"), strings.Contains(sql, "DELETE FROM images"):
			deletes++
		case strings.Contains(sql, "INSERT INTO reviews"):
			reviewInserts++
		case strings.Contains(sql, "INSERT INTO images"):
			imageInserts++
		}
	}
	if deletes != 2 {
		t.Fatalf("expected delete of reviews and images, got %d deletes", deletes)
	}
	if reviewInserts != 2 || imageInserts != 1 {
		t.Fatalf("expected 2 review and 1 image inserts, got %d/%d", reviewInserts, imageInserts)
	}

	// statistics recompute runs on the pool after commit
	foundStats := false
	for _, sql := range pool.execSQL {
		if strings.Contains(sql, "INSERT INTO statistics") {
			foundStats = true
		}
	}
	if !foundStats {
		t.Fatalf("expected statistics recompute after upsert")
	}
}

func TestUpsert_RollsBackOnReviewFailure(t *testing.T) {
	tx := &stubTx{
		execErrOn: "INSERT INTO reviews",
		queryRowFn: func(sql string, args []any) pgx.Row {
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*uuid.UUID) = uuid.New()
				return nil
			}}
		},
	}
	pool := &stubPool{tx: tx}
	repo := &PGXBusinessesRepository{pool: pool}

	if _, err := repo.Upsert(context.Background(), sampleBusiness()); err == nil {
		t.Fatalf("expected error")
	}
	if tx.committed {
		t.Fatalf("transaction must not commit on failure")
	}
	if !tx.rolledBack {
		t.Fatalf("expected rollback")
	}
	for _, sql := range pool.execSQL {
		if strings.Contains(sql, "INSERT INTO statistics") {
			t.Fatalf("statistics must not recompute on failed upsert")
		}
	}
}

func TestFindByPlaceID_NotFound(t *testing.T) {
	pool := &stubPool{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	repo := &PGXBusinessesRepository{pool: pool}

	_, err := repo.FindByPlaceID(context.Background(), "missing")
	if !errors.Is(err, ErrBusinessNotFound) {
		t.Fatalf("expected ErrBusinessNotFound, got %v", err)
	}
}

func TestList_ScansAndCounts(t *testing.T) {
	pool := &stubPool{
		queryRowFn: func(sql string, args []any) pgx.Row {
			if !strings.Contains(sql, "COUNT(*)") {
				t.Fatalf("expected count query, got %s", sql)
			}
			return stubRow{scan: func(dest ...any) error {
				*dest[0].(*int) = 42
				return nil
			}}
		},
		queryFn: func(sql string, args []any) (pgx.Rows, error) {
			if !strings.Contains(sql, "ORDER BY rating DESC, review_count DESC") {
				t.Fatalf("unexpected order clause: %s", sql)
			}
			return &stubBusinessRows{}, nil
		},
	}
	repo := &PGXBusinessesRepository{pool: pool}

	businesses, total, err := repo.List(context.Background(), dto.BusinessFilter{
		Query: "visa", City: "delhi", Page: 2, Limit: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 42 {
		t.Fatalf("expected total 42, got %d", total)
	}
	if len(businesses) != 1 {
		t.Fatalf("expected 1 business, got %d", len(businesses))
	}

	b := businesses[0]
	if b.PlaceID == nil || *b.PlaceID != "place-123" {
		t.Fatalf("unexpected place id: %v", b.PlaceID)
	}
	if b.OpeningHours["Monday"] != "10:00 AM - 7:00 PM" {
		t.Fatalf("unexpected opening hours: %v", b.OpeningHours)
	}
	if len(b.Services) != 1 || b.Services[0] != "Visa Consultation" {
		t.Fatalf("unexpected services: %v", b.Services)
	}
	if len(b.Gallery) != 1 {
		t.Fatalf("unexpected gallery: %v", b.Gallery)
	}
	if b.PriceLevel == nil || *b.PriceLevel != 2 {
		t.Fatalf("unexpected price level: %v", b.PriceLevel)
	}
}

func TestGetStatistics_EmptyTable(t *testing.T) {
	pool := &stubPool{
		queryRowFn: func(sql string, args []any) pgx.Row {
			return stubRow{scan: func(dest ...any) error { return pgx.ErrNoRows }}
		},
	}
	repo := &PGXBusinessesRepository{pool: pool}

	stats, err := repo.GetStatistics(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalBusinesses != 0 || stats.AverageRating != 0 {
		t.Fatalf("expected zero snapshot, got %+v", stats)
	}
}
