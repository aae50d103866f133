package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mailtriage/internal/model"
	"mailtriage/pkg/trace"
)

// StaticCalendar always offers the same booking link.
type StaticCalendar struct {
	Link string
}

func (c StaticCalendar) FindSlot(ctx context.Context, sc model.SlotConstraints) (string, bool, error) {
	if c.Link == "" {
		return "", false, nil
	}
	return c.Link, true, nil
}

// HTTPCalendar 查询外部日历服务 GET /slots
type HTTPCalendar struct {
	baseURL    string
	httpClient *http.Client
}

type slotResponse struct {
	Link      string `json:"link"`
	Available bool   `json:"available"`
}

func NewHTTPCalendar(baseURL string, timeout time.Duration) *HTTPCalendar {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPCalendar{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPCalendar) FindSlot(ctx context.Context, sc model.SlotConstraints) (string, bool, error) {
	q := url.Values{}
	q.Set("attendee", sc.Attendee)
	q.Set("email_id", sc.EmailID)
	if sc.Duration > 0 {
		q.Set("duration_minutes", strconv.Itoa(int(sc.Duration/time.Minute)))
	}
	if !sc.NotBefore.IsZero() {
		q.Set("not_before", sc.NotBefore.UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/slots?"+q.Encode(), nil)
	if err != nil {
		return "", false, err
	}
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusNotFound:
		return "", false, nil
	case resp.StatusCode != http.StatusOK:
		return "", false, fmt.Errorf("calendar service error: %d", resp.StatusCode)
	}

	var slot slotResponse
	if err := json.NewDecoder(resp.Body).Decode(&slot); err != nil {
		return "", false, fmt.Errorf("decode calendar response: %w", err)
	}
	if !slot.Available || slot.Link == "" {
		return "", false, nil
	}
	return slot.Link, true, nil
}
