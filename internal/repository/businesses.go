package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/visa-directory/api/internal/dto"
	"github.com/octobees/visa-directory/api/internal/entity"
)

// ErrBusinessNotFound indicates there is no business for the given lookup key.
var ErrBusinessNotFound = errors.New("business not found")

// BusinessRef pairs a stored business id with its external place id.
type BusinessRef struct {
	ID      uuid.UUID
	PlaceID string
}

// DuplicateGroup is a set of two or more records that share an external place
// id or a case-insensitive (name, city) pair. Diagnostic only; the store does
// not reject such writes.
type DuplicateGroup struct {
	Key        string            `json:"key"`
	Businesses []entity.Business `json:"businesses"`
}

// BusinessesRepository describes persistence operations for scraped businesses.
type BusinessesRepository interface {
	FindByPlaceID(ctx context.Context, placeID string) (*entity.Business, error)
	Upsert(ctx context.Context, business *entity.Business) (uuid.UUID, error)
	List(ctx context.Context, filter dto.BusinessFilter) ([]entity.Business, int, error)
	FindDuplicates(ctx context.Context) ([]DuplicateGroup, error)
	ListPlaceIDs(ctx context.Context) ([]BusinessRef, error)
	ReplaceReviews(ctx context.Context, businessID uuid.UUID, reviews []entity.Review) error
	RecomputeStatistics(ctx context.Context) error
	GetStatistics(ctx context.Context) (*entity.Statistics, error)
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGXBusinessesRepository implements BusinessesRepository using pgx.
type PGXBusinessesRepository struct {
	pool pgxPool
}

// NewPGXBusinessesRepository wires a pgx backed repository.
func NewPGXBusinessesRepository(pool *pgxpool.Pool) *PGXBusinessesRepository {
	return &PGXBusinessesRepository{pool: pool}
}

var _ pgxPool = (*pgxpool.Pool)(nil)

const businessColumns = `
        id,
        place_id,
        name,
        category,
        scraped_category,
        description,
        phone,
        website,
        address,
        city,
        scraped_city,
        state,
        pincode,
        rating,
        review_count,
        verified,
        featured,
        plan,
        price_level,
        opening_hours,
        services,
        logo,
        cover,
        gallery,
        scraped_at,
        created_at,
        updated_at
`

// FindByPlaceID returns the stored record for an external place id, used by
// the orchestrator as a cheap existence check before detail/photo fetches.
func (r *PGXBusinessesRepository) FindByPlaceID(ctx context.Context, placeID string) (*entity.Business, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE place_id = $1`, placeID)
	business, err := scanBusiness(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBusinessNotFound
		}
		return nil, fmt.Errorf("query business by place id: %w", err)
	}
	return business, nil
}

const upsertBusinessSQL = `
        INSERT INTO businesses (
            id, place_id, name, category, scraped_category, description,
            phone, website, address, city, scraped_city, state, pincode,
            rating, review_count, verified, featured, plan, price_level,
            opening_hours, services, logo, cover, gallery, scraped_at,
            created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
            $14, $15, $16, $17, $18, $19,
            $20::jsonb, $21::jsonb, $22, $23, $24::jsonb, $25,
            NOW(), NOW()
        )
        ON CONFLICT (place_id) DO UPDATE SET
            name = EXCLUDED.name,
            category = EXCLUDED.category,
            scraped_category = EXCLUDED.scraped_category,
            description = EXCLUDED.description,
            phone = EXCLUDED.phone,
            website = EXCLUDED.website,
            address = EXCLUDED.address,
            city = EXCLUDED.city,
            scraped_city = EXCLUDED.scraped_city,
            state = EXCLUDED.state,
            pincode = EXCLUDED.pincode,
            rating = EXCLUDED.rating,
            review_count = EXCLUDED.review_count,
            verified = EXCLUDED.verified,
            featured = EXCLUDED.featured,
            plan = EXCLUDED.plan,
            price_level = EXCLUDED.price_level,
            opening_hours = EXCLUDED.opening_hours,
            services = EXCLUDED.services,
            logo = EXCLUDED.logo,
            cover = EXCLUDED.cover,
            gallery = EXCLUDED.gallery,
            scraped_at = EXCLUDED.scraped_at,
            updated_at = NOW()
        RETURNING id;
    `

// Upsert inserts or replaces a business keyed by place_id (a fresh id is
// generated when the external id is absent) and swaps its reviews and images
// wholesale. The row, its reviews and its images commit in one transaction so
// a failure never leaves orphans; statistics are recomputed afterwards.
func (r *PGXBusinessesRepository) Upsert(ctx context.Context, business *entity.Business) (uuid.UUID, error) {
	if business == nil {
		return uuid.Nil, fmt.Errorf("business payload is nil")
	}
	if business.ID == uuid.Nil {
		business.ID = uuid.New()
	}

	hoursJSON, err := json.Marshal(orEmptyMap(business.OpeningHours))
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal opening hours: %w", err)
	}
	servicesJSON, err := json.Marshal(orEmptySlice(business.Services))
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal services: %w", err)
	}
	galleryJSON, err := json.Marshal(orEmptySlice(business.Gallery))
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal gallery: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("start upsert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var id uuid.UUID
	err = tx.QueryRow(ctx, upsertBusinessSQL,
		business.ID,
		business.PlaceID,
		business.Name,
		business.Category,
		business.ScrapedCategory,
		business.Description,
		business.Phone,
		business.Website,
		business.Address,
		business.City,
		business.ScrapedCity,
		business.State,
		business.Pincode,
		business.Rating,
		business.ReviewCount,
		business.Verified,
		business.Featured,
		business.Plan,
		business.PriceLevel,
		string(hoursJSON),
		string(servicesJSON),
		business.Logo,
		business.Cover,
		string(galleryJSON),
		business.ScrapedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert business: %w", err)
	}

	if err := replaceReviewsTx(ctx, tx, id, business.Reviews); err != nil {
		return uuid.Nil, err
	}
	if err := replaceImagesTx(ctx, tx, id, business.Images); err != nil {
		return uuid.Nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit upsert tx: %w", err)
	}
	business.ID = id

	if err := r.RecomputeStatistics(ctx); err != nil {
		return id, err
	}
	return id, nil
}

// ReplaceReviews swaps the stored reviews for one business in a transaction.
func (r *PGXBusinessesRepository) ReplaceReviews(ctx context.Context, businessID uuid.UUID, reviews []entity.Review) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("start reviews tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := replaceReviewsTx(ctx, tx, businessID, reviews); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit reviews tx: %w", err)
	}
	return nil
}

func replaceReviewsTx(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, reviews []entity.Review) error {
	if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE business_id = $1`, businessID); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}
	for _, review := range reviews {
		_, err := tx.Exec(ctx, `
            INSERT INTO reviews (id, business_id, author_name, author_url, language, rating, relative_time, posted_at, text)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			review.ID,
			businessID,
			review.AuthorName,
			review.AuthorURL,
			review.Language,
			review.Rating,
			review.RelativeTime,
			review.PostedAt,
			review.Text,
		)
		if err != nil {
			return fmt.Errorf("insert review %s: %w", review.ID, err)
		}
	}
	return nil
}

func replaceImagesTx(ctx context.Context, tx pgx.Tx, businessID uuid.UUID, images []entity.Image) error {
	if _, err := tx.Exec(ctx, `DELETE FROM images WHERE business_id = $1`, businessID); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}
	for _, image := range images {
		if image.ID == uuid.Nil {
			image.ID = uuid.New()
		}
		_, err := tx.Exec(ctx, `
            INSERT INTO images (id, business_id, photo_reference, height, width, attribution, url, position)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			image.ID,
			businessID,
			image.PhotoReference,
			image.Height,
			image.Width,
			image.Attribution,
			image.URL,
			image.Position,
		)
		if err != nil {
			return fmt.Errorf("insert image %s: %w", image.PhotoReference, err)
		}
	}
	return nil
}

// List retrieves businesses matching the filter, ordered by rating then
// review count, with offset pagination. The second return value is the total
// match count before paging.
func (r *PGXBusinessesRepository) List(ctx context.Context, filter dto.BusinessFilter) ([]entity.Business, int, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)

	if filter.Query != "" {
		pattern := fmt.Sprintf("%%%s%%", filter.Query)
		clauses = append(clauses, fmt.Sprintf(
			"(name ILIKE $%d OR description ILIKE $%d OR category ILIKE $%d OR scraped_category ILIKE $%d)",
			idx, idx, idx, idx))
		args = append(args, pattern)
		idx++
	}
	if filter.City != "" {
		pattern := fmt.Sprintf("%%%s%%", filter.City)
		clauses = append(clauses, fmt.Sprintf("(city ILIKE $%d OR scraped_city ILIKE $%d)", idx, idx))
		args = append(args, pattern)
		idx++
	}
	if filter.Category != "" {
		pattern := fmt.Sprintf("%%%s%%", filter.Category)
		clauses = append(clauses, fmt.Sprintf("(category ILIKE $%d OR scraped_category ILIKE $%d)", idx, idx))
		args = append(args, pattern)
		idx++
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM businesses"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count businesses: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf(
		"SELECT %s FROM businesses%s ORDER BY rating DESC, review_count DESC, name ASC LIMIT $%d OFFSET $%d",
		businessColumns, where, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list businesses: %w", err)
	}
	defer rows.Close()

	businesses, err := scanBusinesses(rows)
	if err != nil {
		return nil, 0, err
	}
	return businesses, total, nil
}

const duplicatesSQL = `
        SELECT ` + businessColumns + `
        FROM businesses
        WHERE (place_id IS NOT NULL AND place_id IN (
                SELECT place_id FROM businesses WHERE place_id IS NOT NULL
                GROUP BY place_id HAVING COUNT(*) > 1))
           OR (LOWER(name), LOWER(COALESCE(city, ''))) IN (
                SELECT LOWER(name), LOWER(COALESCE(city, '')) FROM businesses
                GROUP BY LOWER(name), LOWER(COALESCE(city, '')) HAVING COUNT(*) > 1)
        ORDER BY LOWER(name), created_at;
    `

// FindDuplicates surfaces groups of records sharing an external place id or a
// case-insensitive (name, city) pair for manual review.
func (r *PGXBusinessesRepository) FindDuplicates(ctx context.Context) ([]DuplicateGroup, error) {
	rows, err := r.pool.Query(ctx, duplicatesSQL)
	if err != nil {
		return nil, fmt.Errorf("query duplicates: %w", err)
	}
	defer rows.Close()

	businesses, err := scanBusinesses(rows)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string][]entity.Business)
	var order []string
	for _, b := range businesses {
		key := fmt.Sprintf("name:%s|%s", strings.ToLower(b.Name), strings.ToLower(b.City))
		if b.PlaceID != nil {
			key = "place:" + *b.PlaceID
		}
		if _, seen := grouped[key]; !seen {
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], b)
	}

	var groups []DuplicateGroup
	for _, key := range order {
		if len(grouped[key]) < 2 {
			continue
		}
		groups = append(groups, DuplicateGroup{Key: key, Businesses: grouped[key]})
	}
	return groups, nil
}

// ListPlaceIDs returns every stored business that has an external place id.
func (r *PGXBusinessesRepository) ListPlaceIDs(ctx context.Context) ([]BusinessRef, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, place_id FROM businesses WHERE place_id IS NOT NULL ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list place ids: %w", err)
	}
	defer rows.Close()

	var refs []BusinessRef
	for rows.Next() {
		var ref BusinessRef
		if err := rows.Scan(&ref.ID, &ref.PlaceID); err != nil {
			return nil, fmt.Errorf("scan place id: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate place ids: %w", err)
	}
	return refs, nil
}

const recomputeStatisticsSQL = `
        INSERT INTO statistics (id, total_businesses, total_images, total_reviews, google_places_count, average_rating, cities_covered, updated_at)
        SELECT
            1,
            (SELECT COUNT(*) FROM businesses),
            (SELECT COUNT(*) FROM images),
            (SELECT COUNT(*) FROM reviews),
            (SELECT COUNT(*) FROM businesses WHERE place_id IS NOT NULL),
            (SELECT COALESCE(AVG(rating), 0) FROM businesses WHERE rating > 0),
            (SELECT COUNT(DISTINCT LOWER(city)) FROM businesses WHERE city IS NOT NULL AND city <> ''),
            NOW()
        ON CONFLICT (id) DO UPDATE SET
            total_businesses = EXCLUDED.total_businesses,
            total_images = EXCLUDED.total_images,
            total_reviews = EXCLUDED.total_reviews,
            google_places_count = EXCLUDED.google_places_count,
            average_rating = EXCLUDED.average_rating,
            cities_covered = EXCLUDED.cities_covered,
            updated_at = NOW();
    `

// RecomputeStatistics rebuilds the aggregate snapshot from the full tables
// rather than maintaining it incrementally.
func (r *PGXBusinessesRepository) RecomputeStatistics(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, recomputeStatisticsSQL); err != nil {
		return fmt.Errorf("recompute statistics: %w", err)
	}
	return nil
}

// GetStatistics returns the current aggregate snapshot; a catalogue that has
// never been written yields the zero snapshot.
func (r *PGXBusinessesRepository) GetStatistics(ctx context.Context) (*entity.Statistics, error) {
	row := r.pool.QueryRow(ctx, `
        SELECT total_businesses, total_images, total_reviews, google_places_count, average_rating, cities_covered, updated_at
        FROM statistics WHERE id = 1`)

	var stats entity.Statistics
	err := row.Scan(
		&stats.TotalBusinesses,
		&stats.TotalImages,
		&stats.TotalReviews,
		&stats.GooglePlacesCount,
		&stats.AverageRating,
		&stats.CitiesCovered,
		&stats.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &entity.Statistics{}, nil
		}
		return nil, fmt.Errorf("fetch statistics: %w", err)
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBusiness(row rowScanner) (*entity.Business, error) {
	var (
		b            entity.Business
		placeID      sql.NullString
		scrapedCat   sql.NullString
		description  sql.NullString
		phone        sql.NullString
		website      sql.NullString
		address      sql.NullString
		city         sql.NullString
		scrapedCity  sql.NullString
		state        sql.NullString
		pincode      sql.NullString
		priceLevel   sql.NullInt64
		hoursJSON    []byte
		servicesJSON []byte
		logo         sql.NullString
		cover        sql.NullString
		galleryJSON  []byte
		scrapedAt    sql.NullTime
	)

	err := row.Scan(
		&b.ID,
		&placeID,
		&b.Name,
		&b.Category,
		&scrapedCat,
		&description,
		&phone,
		&website,
		&address,
		&city,
		&scrapedCity,
		&state,
		&pincode,
		&b.Rating,
		&b.ReviewCount,
		&b.Verified,
		&b.Featured,
		&b.Plan,
		&priceLevel,
		&hoursJSON,
		&servicesJSON,
		&logo,
		&cover,
		&galleryJSON,
		&scrapedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.PlaceID = nullStringToPtr(placeID)
	b.ScrapedCategory = nullStringValue(scrapedCat)
	b.Description = nullStringValue(description)
	b.Phone = nullStringToPtr(phone)
	b.Website = nullStringToPtr(website)
	b.Address = nullStringToPtr(address)
	b.City = nullStringValue(city)
	b.ScrapedCity = nullStringValue(scrapedCity)
	b.State = nullStringToPtr(state)
	b.Pincode = nullStringToPtr(pincode)
	b.Logo = nullStringToPtr(logo)
	b.Cover = nullStringToPtr(cover)
	if priceLevel.Valid {
		level := int(priceLevel.Int64)
		b.PriceLevel = &level
	}
	if scrapedAt.Valid {
		ts := scrapedAt.Time
		b.ScrapedAt = &ts
	}
	if len(hoursJSON) > 0 {
		if err := json.Unmarshal(hoursJSON, &b.OpeningHours); err != nil {
			return nil, fmt.Errorf("unmarshal opening hours: %w", err)
		}
	}
	if len(servicesJSON) > 0 {
		if err := json.Unmarshal(servicesJSON, &b.Services); err != nil {
			return nil, fmt.Errorf("unmarshal services: %w", err)
		}
	}
	if len(galleryJSON) > 0 {
		if err := json.Unmarshal(galleryJSON, &b.Gallery); err != nil {
			return nil, fmt.Errorf("unmarshal gallery: %w", err)
		}
	}

	return &b, nil
}

func scanBusinesses(rows pgx.Rows) ([]entity.Business, error) {
	var businesses []entity.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		businesses = append(businesses, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate businesses: %w", err)
	}
	return businesses, nil
}

func nullStringToPtr(value sql.NullString) *string {
	if value.Valid {
		val := value.String
		return &val
	}
	return nil
}

func nullStringValue(value sql.NullString) string {
	if value.Valid {
		return value.String
	}
	return ""
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
