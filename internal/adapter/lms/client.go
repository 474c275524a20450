// Package lms talks to the learning management system that owns enrollments.
package lms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	domainErrors "github.com/polkiloo/coursemart/internal/domain/errors"
	"github.com/polkiloo/coursemart/internal/domain/model"
)

// TooManyRequestsError represents rate limiting signal from the LMS.
type TooManyRequestsError struct {
	RetryAfter time.Duration
}

func (e TooManyRequestsError) Error() string {
	return fmt.Sprintf("too many requests, retry after %s", e.RetryAfter)
}

// HTTPClient implements enrollment lookup, activation and synchronization via the LMS HTTP API.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *slog.Logger
}

type enrollmentPayload struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"user_id"`
	CourseRunID string `json:"course_run_id"`
	Mode        string `json:"mode"`
	IsActive    bool   `json:"is_active"`
}

type listResponse struct {
	Results []enrollmentPayload `json:"results"`
}

// NewHTTPClient creates LMS client with default timeout.
func NewHTTPClient(baseURL string, logger *slog.Logger) (*HTTPClient, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse lms url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("lms url must be absolute")
	}
	return &HTTPClient{
		baseURL: parsed,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

// ActiveForOrder lists active enrollments of the order owner on the order course runs.
func (c *HTTPClient) ActiveForOrder(ctx context.Context, order *model.Order) ([]model.Enrollment, error) {
	if len(order.CourseRunIDs) == 0 {
		return nil, nil
	}
	query := url.Values{}
	query.Set("user_id", order.OwnerID)
	query.Set("is_active", "true")
	for _, run := range order.CourseRunIDs {
		query.Add("course_run_id", run)
	}

	var resp listResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint(query, "api", "enrollments"), nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Enrollment, 0, len(resp.Results))
	for _, p := range resp.Results {
		out = append(out, p.toModel())
	}
	return out, nil
}

// Get fetches a single enrollment.
func (c *HTTPClient) Get(ctx context.Context, id string) (*model.Enrollment, error) {
	var p enrollmentPayload
	if err := c.do(ctx, http.MethodGet, c.endpoint(nil, "api", "enrollments", id), nil, &p); err != nil {
		return nil, err
	}
	e := p.toModel()
	return &e, nil
}

// Enroll activates the user on the course run in verified mode.
func (c *HTTPClient) Enroll(ctx context.Context, userID, courseRunID string) (*model.Enrollment, error) {
	req := enrollmentPayload{
		UserID:      userID,
		CourseRunID: courseRunID,
		Mode:        string(model.EnrollmentModeVerified),
		IsActive:    true,
	}
	var p enrollmentPayload
	if err := c.do(ctx, http.MethodPost, c.endpoint(nil, "api", "enrollments"), req, &p); err != nil {
		return nil, err
	}
	e := p.toModel()
	return &e, nil
}

// Deactivate unenrolls the learner.
func (c *HTTPClient) Deactivate(ctx context.Context, enrollment model.Enrollment) error {
	body := map[string]bool{"is_active": false}
	return c.do(ctx, http.MethodPatch, c.endpoint(nil, "api", "enrollments", enrollment.ID), body, nil)
}

// SyncMode asks the LMS to recompute the enrollment mode from the current purchase state.
func (c *HTTPClient) SyncMode(ctx context.Context, enrollment model.Enrollment) error {
	return c.do(ctx, http.MethodPost, c.endpoint(nil, "api", "enrollments", enrollment.ID, "sync"), fromModel(enrollment), nil)
}

func (c *HTTPClient) endpoint(query url.Values, parts ...string) string {
	u := *c.baseURL
	u.Path = path.Join("/", u.Path, path.Join(parts...))
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode lms request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lms %s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode lms response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("lms %s: %w", req.URL.Path, domainErrors.ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return TooManyRequestsError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("lms request failed",
			slog.String("method", method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)),
		)
		return fmt.Errorf("lms error: %s", resp.Status)
	}
}

func (p enrollmentPayload) toModel() model.Enrollment {
	return model.Enrollment{
		ID:          p.ID,
		UserID:      p.UserID,
		CourseRunID: p.CourseRunID,
		Mode:        model.EnrollmentMode(p.Mode),
		IsActive:    p.IsActive,
	}
}

func fromModel(e model.Enrollment) enrollmentPayload {
	return enrollmentPayload{
		ID:          e.ID,
		UserID:      e.UserID,
		CourseRunID: e.CourseRunID,
		Mode:        string(e.Mode),
		IsActive:    e.IsActive,
	}
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 5 * time.Second
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := http.ParseTime(header); err == nil {
		return time.Until(t)
	}
	return 5 * time.Second
}
