// Package backend talks to the remote relief API: the hazard proxy, the three
// form endpoints and the pre-signed upload flow.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/sahayata-dashboard/internal/config"
	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

// Endpoint names, also used as metric labels.
const (
	EndpointDisasterData = "fetchDisasterData"
	EndpointDonation     = "submitDonation"
	EndpointUploadURL    = "getUploadUrl"
	EndpointVolunteer    = "volunteer"
	EndpointHelpRequest  = "submitHelpRequest"
	EndpointUpload       = "upload"
)

// RemoteError is a non-2xx answer from the backend. Message carries the
// backend's own explanation when it sent one.
type RemoteError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// ErrMalformedReply is returned when a 2xx body cannot be decoded.
var ErrMalformedReply = errors.New("malformed backend reply")

// UploadTarget is the pre-signed destination for a file.
type UploadTarget struct {
	UploadURL string `json:"uploadUrl"`
	FileURL   string `json:"fileUrl"`
}

// Client is the HTTP client for the relief backend.
type Client struct {
	baseURL        string
	helpRequestURL string
	httpClient     *http.Client
	limiter        *Limiter
	maxBody        int64
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewClient creates a backend client from the service configuration.
func NewClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:        cfg.BackendBaseURL,
		helpRequestURL: cfg.HelpRequestURL,
		httpClient:     &http.Client{Timeout: cfg.BackendTimeout},
		limiter:        NewLimiter(cfg.BackendRateLimit, cfg.BackendBurst),
		maxBody:        cfg.MaxResponseBytes,
		metrics:        metrics,
		logger:         logger,
	}
}

// Fetch returns the raw proxy body for one hazard source. It satisfies
// hazard.Feed.
func (c *Client) Fetch(ctx context.Context, src domain.Source) ([]byte, error) {
	return c.FetchDisasterData(ctx, src.Key())
}

// FetchDisasterData GETs the shared proxy endpoint. A non-empty hint is sent
// as the source query parameter; the proxy may ignore it.
func (c *Client) FetchDisasterData(ctx context.Context, hint string) ([]byte, error) {
	u := c.baseURL + "/fetchDisasterData"
	if hint != "" {
		u += "?" + url.Values{"source": {hint}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	body, status, err := c.do(req, EndpointDisasterData)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, &RemoteError{Endpoint: EndpointDisasterData, StatusCode: status}
	}
	return body, nil
}

// RegisterVolunteer posts a volunteer registration and returns the volunteer ID.
func (c *Client) RegisterVolunteer(ctx context.Context, payload domain.VolunteerPayload) (string, error) {
	var reply struct {
		VolunteerID json.RawMessage `json:"volunteerId"`
		Error       string          `json:"error"`
	}
	status, err := c.postJSON(ctx, c.baseURL+"/volunteer", EndpointVolunteer, payload, &reply)
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", &RemoteError{Endpoint: EndpointVolunteer, StatusCode: status, Message: reply.Error}
	}
	return rawID(reply.VolunteerID), nil
}

// SubmitDonation posts a donation form as-is and returns the donation ID.
func (c *Client) SubmitDonation(ctx context.Context, form domain.DonationForm) (string, error) {
	var reply struct {
		DonationID json.RawMessage `json:"donationId"`
		Error      string          `json:"error"`
	}
	status, err := c.postJSON(ctx, c.baseURL+"/submitDonation", EndpointDonation, form, &reply)
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", &RemoteError{Endpoint: EndpointDonation, StatusCode: status, Message: reply.Error}
	}
	return rawID(reply.DonationID), nil
}

// SubmitHelpRequest posts to the absolute help request URL and returns the request ID.
func (c *Client) SubmitHelpRequest(ctx context.Context, payload domain.HelpRequestPayload) (string, error) {
	var reply struct {
		RequestID json.RawMessage `json:"requestId"`
		Details   string          `json:"details"`
	}
	status, err := c.postJSON(ctx, c.helpRequestURL, EndpointHelpRequest, payload, &reply)
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", &RemoteError{Endpoint: EndpointHelpRequest, StatusCode: status, Message: reply.Details}
	}
	return rawID(reply.RequestID), nil
}

// GetUploadURL asks for a pre-signed upload destination.
func (c *Client) GetUploadURL(ctx context.Context, fileName, fileType string) (UploadTarget, error) {
	var target UploadTarget
	req := struct {
		FileName string `json:"fileName"`
		FileType string `json:"fileType"`
	}{fileName, fileType}

	status, err := c.postJSON(ctx, c.baseURL+"/getUploadUrl", EndpointUploadURL, req, &target)
	if err != nil {
		return UploadTarget{}, err
	}
	if !ok(status) {
		return UploadTarget{}, &RemoteError{Endpoint: EndpointUploadURL, StatusCode: status}
	}
	if target.UploadURL == "" || target.FileURL == "" {
		return UploadTarget{}, fmt.Errorf("%s: %w: missing uploadUrl or fileUrl", EndpointUploadURL, ErrMalformedReply)
	}
	return target, nil
}

// PutFile streams content to a pre-signed URL with the given content type.
func (c *Client) PutFile(ctx context.Context, uploadURL, contentType string, content io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, content)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	_, status, err := c.do(req, EndpointUpload)
	if err != nil {
		return err
	}
	if !ok(status) {
		return &RemoteError{Endpoint: EndpointUpload, StatusCode: status}
	}
	return nil
}

// postJSON sends v as JSON and decodes any JSON reply into out, including on
// error statuses so the caller can read the backend's message.
func (c *Client) postJSON(ctx context.Context, u, endpoint string, v, out any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s payload: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req, endpoint)
	if err != nil {
		return 0, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return status, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		if ok(status) {
			return status, fmt.Errorf("%s: %w: %v", endpoint, ErrMalformedReply, err)
		}
		c.logger.Debug("non-JSON error body from backend", "endpoint", endpoint, "status", status)
	}
	return status, nil
}

// do applies the per-host limiter, sends the request and reads the decoded,
// size-capped body.
func (c *Client) do(req *http.Request, endpoint string) ([]byte, int, error) {
	if err := c.limiter.Wait(req.Context(), req.URL.String()); err != nil {
		return nil, 0, fmt.Errorf("%s: rate limit: %w", endpoint, err)
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.BackendDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.BackendRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, 0, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp, c.maxBody)
	if err != nil {
		c.metrics.BackendRequests.WithLabelValues(endpoint, "error").Inc()
		return nil, resp.StatusCode, fmt.Errorf("%s read body: %w", endpoint, err)
	}

	outcome := "success"
	if !ok(resp.StatusCode) {
		outcome = "error"
		c.logger.Warn("backend returned error status",
			"endpoint", endpoint,
			"status", resp.StatusCode,
		)
	}
	c.metrics.BackendRequests.WithLabelValues(endpoint, outcome).Inc()
	return body, resp.StatusCode, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

// rawID renders an identifier the backend may send as a string or a number.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}
