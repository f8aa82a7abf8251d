package courseclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"classroom/internal/attendance"
)

// Client calls the upstream course-catalog service for class schedules that
// are not in the local table.
type Client struct {
	baseURL string
	skip    bool
	http    *http.Client
}

// New creates a client. With skip set, lookups return nothing and the caller
// falls back to local data only — dev environments run without a catalog.
func New(baseURL string, skip bool) *Client {
	return &Client{
		baseURL: baseURL,
		skip:    skip,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// classPayload is the catalog's wire shape for a scheduled class.
type classPayload struct {
	ID              string    `json:"id"`
	CourseID        string    `json:"course_id"`
	Title           string    `json:"title"`
	TeacherID       string    `json:"teacher_id"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// FetchClass returns the schedule for a class, or nil when the catalog does
// not know it.
func (c *Client) FetchClass(ctx context.Context, id string) (*attendance.ScheduledClass, error) {
	if c.skip {
		return nil, nil
	}
	u := fmt.Sprintf("%s/v1/classes/%s", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("catalog returned %d", resp.StatusCode)
	}

	var payload classPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("catalog decode: %w", err)
	}
	return &attendance.ScheduledClass{
		ID:              payload.ID,
		CourseID:        payload.CourseID,
		Title:           payload.Title,
		TeacherID:       payload.TeacherID,
		ScheduledAt:     payload.ScheduledAt,
		DurationMinutes: payload.DurationMinutes,
	}, nil
}

// Health checks catalog connectivity.
func (c *Client) Health(ctx context.Context) error {
	if c.skip {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("catalog unhealthy: %d", resp.StatusCode)
	}
	return nil
}
