// Package catalog wraps outbound calls to the external catalog's search
// and audio-features endpoints and classifies responses into success,
// throttled, or generic failure.
package catalog

import (
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

	"golang.org/x/oauth2/clientcredentials"

	apperrors "track-enricher/internal/common/errors"
	"track-enricher/internal/common/logging"
	"track-enricher/internal/match"
)

// ErrThrottled signals that the catalog reported a request-rate violation.
// It is a control signal, not a fatal failure: callers stop issuing
// further calls for the remainder of the batch and return partial data.
var ErrThrottled = errors.New("catalog throttled")

// throttleStatus is the well-known error code the catalog uses for rate
// limiting, carried both as the HTTP status and inside the error body.
const throttleStatus = http.StatusTooManyRequests

// Throttler receives throttling detections; implemented by the
// rate-limit coordinator.
type Throttler interface {
	RecordThrottled(ctx context.Context)
}

// Config holds settings for the catalog upstream.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Client is an HTTP client for the catalog API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	throttler  Throttler
}

// New constructs a catalog client whose requests carry a lazily refreshed
// client-credentials bearer token.
func New(cfg Config, throttler Throttler) *Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	httpClient := cc.Client(context.Background())
	httpClient.Timeout = cfg.Timeout

	return NewWithHTTPClient(httpClient, cfg.BaseURL, throttler)
}

// NewWithHTTPClient constructs a catalog client over a caller-supplied
// HTTP client. Used by tests and by deployments that terminate auth
// elsewhere.
func NewWithHTTPClient(httpClient *http.Client, baseURL string, throttler Throttler) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		throttler:  throttler,
	}
}

// Search queries the catalog for tracks matching name and artist and
// returns up to limit candidates.
func (c *Client) Search(ctx context.Context, name, artist string, limit int) ([]match.Candidate, error) {
	searchURL, err := url.Parse(c.baseURL + "/v1/search")
	if err != nil {
		return nil, apperrors.InternalError("catalog: invalid search url", err)
	}

	query := searchURL.Query()
	query.Set("q", fmt.Sprintf("track:%s artist:%s", name, artist))
	query.Set("type", "track")
	query.Set("limit", strconv.Itoa(limit))
	searchURL.RawQuery = query.Encode()

	var body searchResponse
	if err := c.getJSON(ctx, searchURL.String(), &body); err != nil {
		return nil, err
	}

	candidates := make([]match.Candidate, 0, len(body.Tracks.Items))
	for _, item := range body.Tracks.Items {
		candidates = append(candidates, match.Candidate{
			ID:     item.ID,
			Name:   item.Name,
			Artist: joinArtistNames(item.Artists),
		})
	}
	return candidates, nil
}

// GetAudioFeatures fetches the audio-features record for a catalog id.
func (c *Client) GetAudioFeatures(ctx context.Context, id string) (*AudioFeatures, error) {
	var features AudioFeatures
	if err := c.getJSON(ctx, fmt.Sprintf("%s/v1/audio-features/%s", c.baseURL, url.PathEscape(id)), &features); err != nil {
		return nil, err
	}
	return &features, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return apperrors.InternalError("catalog: failed to create request", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.UpstreamError("catalog: request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.classifyFailure(ctx, resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return apperrors.UpstreamError("catalog: decode error", err)
	}
	return nil
}

// classifyFailure separates the throttling control signal from generic
// upstream failures. The throttle code is read from the error body; the
// HTTP status is kept as a fallback for proxies that strip bodies. Each
// detection reports to the throttler exactly once.
func (c *Client) classifyFailure(ctx context.Context, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var upstream apiError
	_ = json.Unmarshal(body, &upstream)

	if upstream.Error.Status == throttleStatus || resp.StatusCode == throttleStatus {
		if c.throttler != nil {
			c.throttler.RecordThrottled(ctx)
		}
		return ErrThrottled
	}

	logging.Debug("catalog upstream failure",
		logging.Field{Key: "status", Value: resp.StatusCode},
		logging.Field{Key: "message", Value: upstream.Error.Message})
	return apperrors.UpstreamError(
		fmt.Sprintf("catalog: status %d", resp.StatusCode), nil)
}

func joinArtistNames(artists []artistItem) string {
	if len(artists) == 0 {
		return ""
	}
	parts := make([]string, 0, len(artists))
	for _, artist := range artists {
		parts = append(parts, artist.Name)
	}
	return strings.Join(parts, " ")
}
