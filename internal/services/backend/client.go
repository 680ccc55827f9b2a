// Package backend is the HTTP client for the bin backend that owns schools,
// bins and the snapshots captured by bin cameras.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/version"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 64 << 10
)

// RequestIDHeader carries the correlation ID of every backend request.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID attaches a correlation ID that the client sends instead of a
// freshly generated one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Client talks to the bin backend. All calls go through one circuit breaker
// so a dead backend fails fast instead of stalling every poll.
type Client struct {
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	validate *validator.Validate
	baseURL  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithBreakerSettings replaces the circuit breaker configuration.
func WithBreakerSettings(st gobreaker.Settings) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](st)
	}
}

// DefaultBreakerSettings trips after five consecutive failures and probes
// again after thirty seconds. A request cancelled by its caller is not a
// backend failure.
func DefaultBreakerSettings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "bin-backend",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		breaker:  gobreaker.NewCircuitBreaker[*http.Response](DefaultBreakerSettings()),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BreakerState returns the current circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// RegisterSchool creates a school account.
func (c *Client) RegisterSchool(ctx context.Context, creds models.SchoolCredentials) (*models.School, error) {
	if err := c.validate.Struct(creds); err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", err)
	}

	var school models.School
	if err := c.do(ctx, http.MethodPost, "/register-school", creds, &school); err != nil {
		return nil, err
	}
	return &school, nil
}

// FindSchool looks a school up by username. The backend has no login
// endpoint, so the session is established from the public school list.
func (c *Client) FindSchool(ctx context.Context, username string) (*models.School, error) {
	var schools []models.School
	if err := c.do(ctx, http.MethodGet, "/schools", nil, &schools); err != nil {
		return nil, err
	}
	for i := range schools {
		if schools[i].Username == username {
			return &schools[i], nil
		}
	}
	return nil, &APIError{
		Method:     http.MethodGet,
		Path:       "/schools",
		StatusCode: http.StatusNotFound,
		Detail:     fmt.Sprintf("no school named %q", username),
	}
}

// AddBin registers a new bin.
func (c *Client) AddBin(ctx context.Context, create models.BinCreate) (*models.Bin, error) {
	if err := c.validate.Struct(create); err != nil {
		return nil, fmt.Errorf("invalid bin: %w", err)
	}

	var bin models.Bin
	if err := c.do(ctx, http.MethodPost, "/bins", create, &bin); err != nil {
		return nil, err
	}
	if err := c.check(&bin); err != nil {
		return nil, err
	}
	return &bin, nil
}

// ListBins returns the bins of a school.
func (c *Client) ListBins(ctx context.Context, schoolID int64) ([]models.Bin, error) {
	var bins []models.Bin
	if err := c.do(ctx, http.MethodGet, "/schools/"+itoa(schoolID)+"/bins", nil, &bins); err != nil {
		return nil, err
	}
	for i := range bins {
		if err := c.check(&bins[i]); err != nil {
			return nil, err
		}
		bins[i].SchoolID = schoolID
	}
	return bins, nil
}

// GetBinHistory returns a bin's current and historical food scores.
func (c *Client) GetBinHistory(ctx context.Context, binID int64) (*models.BinHistory, error) {
	var history models.BinHistory
	if err := c.do(ctx, http.MethodGet, "/bins/"+itoa(binID)+"/history", nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}

// UpdateBin changes a bin's name or address.
func (c *Client) UpdateBin(ctx context.Context, binID int64, patch models.BinPatch) (*models.Bin, error) {
	if patch.IsEmpty() {
		return nil, errors.New("bin update has no fields")
	}

	var bin models.Bin
	if err := c.do(ctx, http.MethodPatch, "/bins/"+itoa(binID), patch, &bin); err != nil {
		return nil, err
	}
	if err := c.check(&bin); err != nil {
		return nil, err
	}
	return &bin, nil
}

// ListSnapshots returns a bin's snapshots. A limit of zero or less asks for
// every snapshot.
func (c *Client) ListSnapshots(ctx context.Context, binID int64, limit int) ([]models.Snapshot, error) {
	path := "/bins/" + itoa(binID) + "/snapshots"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	var snapshots []models.Snapshot
	if err := c.do(ctx, http.MethodGet, path, nil, &snapshots); err != nil {
		return nil, err
	}

	valid := snapshots[:0]
	for i := range snapshots {
		if err := c.check(&snapshots[i]); err != nil {
			logger.Warn("dropping invalid snapshot", "bin_id", binID, "snapshot_id", snapshots[i].ID, "error", err)
			continue
		}
		// Image payloads are fetched on demand and never mirrored.
		snapshots[i].ImageData = ""
		valid = append(valid, snapshots[i])
	}
	return valid, nil
}

// GetSnapshot returns one snapshot including its image data.
func (c *Client) GetSnapshot(ctx context.Context, binID, snapshotID int64) (*models.Snapshot, error) {
	var snapshot models.Snapshot
	path := "/bins/" + itoa(binID) + "/snapshots/" + itoa(snapshotID)
	if err := c.do(ctx, http.MethodGet, path, nil, &snapshot); err != nil {
		return nil, err
	}
	if err := c.check(&snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// AnalysisRequest is the body of an AI analysis request.
type AnalysisRequest struct {
	SisterSchoolData any               `json:"sister_school_data"`
	TimeRange        models.TimeWindow `json:"time_range"`
}

// AIAnalysis asks the backend to describe a bin's waste over a window.
func (c *Client) AIAnalysis(ctx context.Context, binID int64, window models.TimeWindow) (string, error) {
	var resp struct {
		Analysis string `json:"analysis"`
	}
	body := AnalysisRequest{TimeRange: window.Normalize()}
	if err := c.do(ctx, http.MethodPost, "/bins/"+itoa(binID)+"/ai-analysis", body, &resp); err != nil {
		return "", err
	}
	return resp.Analysis, nil
}

// LatestImageURL returns the URL of a bin's most recent camera image.
func (c *Client) LatestImageURL(binID int64) string {
	return c.baseURL + "/bins/" + itoa(binID) + "/latest-image"
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/schools", nil, nil)
}

func (c *Client) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return nil
}

// do sends one request through the breaker and decodes a JSON response into
// out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", version.UserAgent())
	reqID := requestID(ctx)
	req.Header.Set(RequestIDHeader, reqID)

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, doErr := c.http.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		// 5xx and 429 count against the breaker; other 4xx are caller errors.
		if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
			return r, fmt.Errorf("upstream returned %d", r.StatusCode)
		}
		return r, nil
	})
	if resp != nil {
		defer func() { _ = resp.Body.Close() }()
	}

	logger.Debug("backend request",
		"method", method, "path", path, "request_id", reqID, "duration", time.Since(start))

	if err != nil && resp == nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, path, err)
	}

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Detail:     parseDetail(data),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err)
	}
	return nil
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
