// Package calendar mirrors committed bookings to an external calendar
// provider. Sync is strictly best-effort and post-commit: a failed or slow
// provider never affects the booking that triggered it.
package calendar

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Actions mirrored to the provider.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is one mirroring instruction for a booking. ExternalID identifies the
// provider-side event and is required for update and delete.
type Event struct {
	BookingID  uuid.UUID `json:"booking_id"`
	Action     string    `json:"action"`
	ExternalID string    `json:"external_id,omitempty"`
	DoctorID   int64     `json:"doctor_id"`
	PatientID  int64     `json:"patient_id"`
	Summary    string    `json:"summary"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// Validate rejects malformed events before they reach the provider.
func (e Event) Validate() error {
	if e.BookingID == uuid.Nil {
		return fmt.Errorf("booking_id is required")
	}
	switch e.Action {
	case ActionCreate:
	case ActionUpdate, ActionDelete:
		if e.ExternalID == "" {
			return fmt.Errorf("external_id is required for %s", e.Action)
		}
	default:
		return fmt.Errorf("unknown action %q", e.Action)
	}
	return nil
}

// Syncer pushes one event to the provider and returns the provider-side event
// id (empty for deletes).
type Syncer interface {
	Sync(ctx context.Context, ev Event) (string, error)
}

// SignPayload computes the hex-encoded HMAC-SHA256 of the payload under the
// shared provider secret.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// HTTPSyncer posts signed JSON events to a calendar bridge endpoint. The
// bridge owns the provider credentials; this process never sees them.
type HTTPSyncer struct {
	endpoint   string
	secret     string
	httpClient *http.Client
}

// HTTPSyncerOption configures an HTTPSyncer.
type HTTPSyncerOption func(*HTTPSyncer)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) HTTPSyncerOption {
	return func(s *HTTPSyncer) { s.httpClient = c }
}

// NewHTTPSyncer validates the endpoint URL and builds a syncer with a 10s
// request timeout.
func NewHTTPSyncer(endpoint, secret string, opts ...HTTPSyncerOption) (*HTTPSyncer, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("calendar endpoint is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar endpoint: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("calendar endpoint scheme must be http or https, got %q", u.Scheme)
	}

	s := &HTTPSyncer{
		endpoint:   endpoint,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type syncResponse struct {
	EventID string `json:"event_id"`
}

func (s *HTTPSyncer) Sync(ctx context.Context, ev Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal calendar event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build calendar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.secret != "" {
		req.Header.Set("X-Calendar-Signature", SignPayload(payload, s.secret))
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calendar request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("calendar bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if ev.Action == ActionDelete {
		return "", nil
	}
	var out syncResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode calendar response: %w", err)
	}
	return out.EventID, nil
}

// NoopSyncer acknowledges every event without calling any provider. Used in
// development mode when no bridge endpoint is configured.
type NoopSyncer struct{}

func (NoopSyncer) Sync(_ context.Context, ev Event) (string, error) {
	if err := ev.Validate(); err != nil {
		return "", err
	}
	if ev.Action == ActionDelete {
		return "", nil
	}
	return "noop-" + ev.BookingID.String(), nil
}
