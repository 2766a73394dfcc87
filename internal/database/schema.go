package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema holds the DDL applied at startup. Statements are idempotent so the
// service can boot against an empty or an already-migrated database.
const Schema = `
CREATE TABLE IF NOT EXISTS businesses (
    id UUID PRIMARY KEY,
    place_id TEXT UNIQUE,
    name TEXT NOT NULL,
    category TEXT NOT NULL,
    scraped_category TEXT,
    description TEXT,
    phone TEXT,
    website TEXT,
    address TEXT,
    city TEXT,
    scraped_city TEXT,
    state TEXT,
    pincode TEXT,
    rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    review_count INT NOT NULL DEFAULT 0,
    verified BOOLEAN NOT NULL DEFAULT FALSE,
    featured BOOLEAN NOT NULL DEFAULT FALSE,
    plan TEXT NOT NULL DEFAULT 'free',
    price_level INT,
    opening_hours JSONB NOT NULL DEFAULT '{}'::jsonb,
    services JSONB NOT NULL DEFAULT '[]'::jsonb,
    logo TEXT,
    cover TEXT,
    gallery JSONB NOT NULL DEFAULT '[]'::jsonb,
    scraped_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_businesses_city ON businesses (LOWER(city));
CREATE INDEX IF NOT EXISTS idx_businesses_category ON businesses (LOWER(category));

CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    business_id UUID NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
    author_name TEXT NOT NULL,
    author_url TEXT,
    language TEXT,
    rating INT NOT NULL DEFAULT 0,
    relative_time TEXT,
    posted_at BIGINT NOT NULL DEFAULT 0,
    text TEXT
);

CREATE INDEX IF NOT EXISTS idx_reviews_business ON reviews (business_id);

CREATE TABLE IF NOT EXISTS images (
    id UUID PRIMARY KEY,
    business_id UUID NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
    photo_reference TEXT NOT NULL,
    height INT NOT NULL DEFAULT 0,
    width INT NOT NULL DEFAULT 0,
    attribution TEXT,
    url TEXT NOT NULL,
    position INT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_images_business ON images (business_id);

CREATE TABLE IF NOT EXISTS statistics (
    id INT PRIMARY KEY CHECK (id = 1),
    total_businesses INT NOT NULL DEFAULT 0,
    total_images INT NOT NULL DEFAULT 0,
    total_reviews INT NOT NULL DEFAULT 0,
    google_places_count INT NOT NULL DEFAULT 0,
    average_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
    cities_covered INT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// EnsureSchema applies the bootstrap DDL.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
