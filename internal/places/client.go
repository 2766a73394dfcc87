package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/octobees/visa-directory/api/internal/blob"
	"github.com/octobees/visa-directory/api/internal/entity"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api/place"
	photoMaxWidth  = 800

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

var detailFields = []string{
	"place_id", "name", "formatted_address", "formatted_phone_number",
	"international_phone_number", "website", "rating", "user_ratings_total",
	"business_status", "price_level", "types", "reviews", "photos",
	"geometry", "opening_hours",
}

// UpstreamError indicates the Places API reported a non-OK, non-empty-results
// status. It is recorded against the offending pair or candidate and is never
// fatal to a job.
type UpstreamError struct {
	Endpoint string
	Status   string
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("places %s: %s (%s)", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("places %s: %s", e.Endpoint, e.Status)
}

// Client wraps the Google Places text-search, details and photo endpoints.
// Every outbound call waits on a shared token-bucket limiter so a job never
// exceeds the configured pacing, and each call is bounded by the HTTP client
// timeout.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	blobStore  blob.Store
	logger     *zap.Logger
}

// ClientOption configures optional client behavior.
type ClientOption func(*Client)

// WithBaseURL overrides the upstream base URL (used by tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient builds a Places client. The limiter paces all upstream calls.
func NewClient(apiKey string, limiter *rate.Limiter, blobStore blob.Store, timeout time.Duration, logger *zap.Logger, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		limiter:    limiter,
		blobStore:  blobStore,
		logger:     logger.Named("places"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs a text search and returns candidate stubs. ZERO_RESULTS is a
// valid empty outcome, any other non-OK status is an UpstreamError.
func (c *Client) Search(ctx context.Context, query, location string, radius int) ([]Candidate, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)
	if location != "" {
		params.Set("location", location)
	}
	if radius > 0 {
		params.Set("radius", strconv.Itoa(radius))
	}

	var resp searchResponse
	if err := c.getJSON(ctx, "/textsearch/json", params, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK:
		return resp.Results, nil
	case statusZeroResults:
		return nil, nil
	default:
		return nil, &UpstreamError{Endpoint: "textsearch", Status: resp.Status, Message: resp.ErrorMessage}
	}
}

// Details fetches the full place record for one place id.
func (c *Client) Details(ctx context.Context, placeID string) (*Detail, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", strings.Join(detailFields, ","))
	params.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.getJSON(ctx, "/details/json", params, &resp); err != nil {
		return nil, err
	}

	if resp.Status != statusOK || resp.Result == nil {
		return nil, &UpstreamError{Endpoint: "details", Status: resp.Status, Message: resp.ErrorMessage}
	}
	return resp.Result, nil
}

// FetchPhoto downloads the photo bytes for a reference, following the
// upstream redirect. Transient failures are retried a few times.
func (c *Client) FetchPhoto(ctx context.Context, reference string, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		maxWidth = photoMaxWidth
	}
	params := url.Values{}
	params.Set("photoreference", reference)
	params.Set("maxwidth", strconv.Itoa(maxWidth))
	params.Set("key", c.apiKey)

	var data []byte
	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/photo?"+params.Encode(), nil)
			if err != nil {
				return err
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("photo fetch status %d", resp.StatusCode)
			}
			data, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.Context(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch photo: %w", err)
	}
	return data, nil
}

// SavePhotos downloads up to max photos and stores them in the blob store.
// Slots fetch concurrently; an individual photo failure leaves its slot empty
// and never fails the business. Results come back ordered by slot.
func (c *Client) SavePhotos(ctx context.Context, placeID string, photos []PhotoRef, max int) ([]entity.Image, error) {
	if max <= 0 || len(photos) == 0 {
		return nil, nil
	}
	if len(photos) > max {
		photos = photos[:max]
	}

	var (
		mu     sync.Mutex
		images []entity.Image
	)
	g, gctx := errgroup.WithContext(ctx)
	for i, photo := range photos {
		g.Go(func() error {
			data, err := c.FetchPhoto(gctx, photo.Reference, photoMaxWidth)
			if err != nil {
				c.logger.Warn("photo fetch failed",
					zap.String("place_id", placeID),
					zap.Int("slot", i),
					zap.Error(err))
				return nil
			}
			name := fmt.Sprintf("%s_%d.jpg", placeID, i)
			storedURL, err := c.blobStore.Save(gctx, data, "businesses", name)
			if err != nil {
				c.logger.Warn("photo store failed",
					zap.String("place_id", placeID),
					zap.Int("slot", i),
					zap.Error(err))
				return nil
			}

			img := entity.Image{
				ID:             uuid.New(),
				PhotoReference: photo.Reference,
				Height:         photo.Height,
				Width:          photo.Width,
				URL:            storedURL,
				Position:       i,
			}
			if len(photo.HTMLAttributions) > 0 {
				attribution := photo.HTMLAttributions[0]
				img.Attribution = &attribution
			}

			mu.Lock()
			images = append(images, img)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(images, func(a, b int) bool { return images[a].Position < images[b].Position })
	return images, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create places request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Endpoint: path, Status: fmt.Sprintf("HTTP_%d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode places response: %w", err)
	}
	return nil
}
