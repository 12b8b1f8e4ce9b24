package scheduling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func newHandlerFixture(t *testing.T) (*serviceFixture, *echo.Echo) {
	t.Helper()
	f := newServiceFixture(t)
	e := echo.New()
	NewHandler(f.svc).RegisterRoutes(e.Group("/api/v1"))
	return f, e
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateBooking_Created(t *testing.T) {
	f, e := newHandlerFixture(t)
	doc := f.addAvailableDoctor(t, 5)

	body := fmt.Sprintf(`{
		"patient_id": 42,
		"doctor_id": %d,
		"start_time": %q,
		"end_time": %q
	}`, doc.ID, monday.Add(10*time.Hour).Format(time.RFC3339), monday.Add(11*time.Hour).Format(time.RFC3339))

	rec := doJSON(e, http.MethodPost, "/api/v1/bookings", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var outcome BookingOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if outcome.Booking == nil {
		t.Fatal("expected booking in response")
	}
	if outcome.Booking.DoctorID != doc.ID {
		t.Errorf("doctor = %d, want %d", outcome.Booking.DoctorID, doc.ID)
	}
}

func TestCreateBooking_WaitlistedReturns202(t *testing.T) {
	_, e := newHandlerFixture(t)
	// No doctors exist, so the request lands on the waitlist.

	body := fmt.Sprintf(`{
		"patient_id": 42,
		"specialty_id": 1,
		"start_time": %q,
		"end_time": %q
	}`, monday.Add(10*time.Hour).Format(time.RFC3339), monday.Add(11*time.Hour).Format(time.RFC3339))

	rec := doJSON(e, http.MethodPost, "/api/v1/bookings", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var outcome BookingOutcome
	if err := json.Unmarshal(rec.Body.Bytes(), &outcome); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if outcome.Waitlisted == nil {
		t.Fatal("expected waitlist entry in response")
	}
	if outcome.Booking != nil {
		t.Error("waitlisted response must not carry a booking")
	}
}

func TestCreateBooking_ConflictReturns409(t *testing.T) {
	f, e := newHandlerFixture(t)
	doc := f.addAvailableDoctor(t, 5)

	body := fmt.Sprintf(`{
		"patient_id": 42,
		"doctor_id": %d,
		"start_time": %q,
		"end_time": %q
	}`, doc.ID, monday.Add(10*time.Hour).Format(time.RFC3339), monday.Add(11*time.Hour).Format(time.RFC3339))

	if rec := doJSON(e, http.MethodPost, "/api/v1/bookings", body); rec.Code != http.StatusCreated {
		t.Fatalf("first booking failed: %d", rec.Code)
	}
	rec := doJSON(e, http.MethodPost, "/api/v1/bookings", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestCreateBooking_ValidationReturns400(t *testing.T) {
	_, e := newHandlerFixture(t)

	rec := doJSON(e, http.MethodPost, "/api/v1/bookings", `{"patient_id": 0}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetBooking_NotFound(t *testing.T) {
	_, e := newHandlerFixture(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/bookings/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/bookings/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for malformed id", rec.Code)
	}
}

func TestCancelBooking_NoContent(t *testing.T) {
	f, e := newHandlerFixture(t)
	doc := f.addAvailableDoctor(t, 5)

	outcome, err := f.svc.BookAppointment(context.Background(), BookingRequest{
		PatientID: 42,
		DoctorID:  doc.ID,
		StartTime: monday.Add(10 * time.Hour),
		EndTime:   monday.Add(11 * time.Hour),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	rec := doJSON(e, http.MethodDelete, "/api/v1/bookings/"+outcome.Booking.ID.String(), `{"reason":"moved"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
}

func TestListSlots(t *testing.T) {
	f, e := newHandlerFixture(t)
	doc := addDoctor(t, f.doctors, 1, 5)
	addRecurringRule(t, f.rules, doc.ID, 1, 540, 660, true)

	rec := doJSON(e, http.MethodGet, "/api/v1/specialties/1/slots?date=2026-03-02&duration=30", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Slots []Slot `json:"slots"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 4 || len(resp.Slots) != 4 {
		t.Errorf("expected 4 slots, got count=%d len=%d", resp.Count, len(resp.Slots))
	}
}

func TestListSlots_BadDate(t *testing.T) {
	_, e := newHandlerFixture(t)

	rec := doJSON(e, http.MethodGet, "/api/v1/specialties/1/slots?date=02-03-2026", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAssignDoctor(t *testing.T) {
	f, e := newHandlerFixture(t)
	doc := f.addAvailableDoctor(t, 5)

	url := fmt.Sprintf("/api/v1/specialties/1/assignment?start=%s&end=%s",
		monday.Add(10*time.Hour).Format(time.RFC3339),
		monday.Add(11*time.Hour).Format(time.RFC3339))
	rec := doJSON(e, http.MethodGet, url, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(resp["doctor"]) == "null" {
		t.Fatalf("expected doctor %d, got null", doc.ID)
	}
}

func TestAssignDoctor_NobodyQualifies(t *testing.T) {
	_, e := newHandlerFixture(t)

	url := fmt.Sprintf("/api/v1/specialties/1/assignment?start=%s&end=%s",
		monday.Add(10*time.Hour).Format(time.RFC3339),
		monday.Add(11*time.Hour).Format(time.RFC3339))
	rec := doJSON(e, http.MethodGet, url, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("no candidate is not an error: status = %d", rec.Code)
	}
	var resp map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(resp["doctor"]) != "null" {
		t.Errorf("expected null doctor, got %s", resp["doctor"])
	}
}

func TestDoctorAvailability(t *testing.T) {
	f, e := newHandlerFixture(t)
	doc := addDoctor(t, f.doctors, 1, 5)
	addRecurringRule(t, f.rules, doc.ID, 1, 540, 1020, true)

	rec := doJSON(e, http.MethodGet, fmt.Sprintf("/api/v1/doctors/%d/availability?date=2026-03-02", doc.ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Available bool                 `json:"available"`
		Windows   []AvailabilityWindow `json:"windows"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Available || len(resp.Windows) != 1 {
		t.Errorf("expected available with one window, got %+v", resp)
	}

	// Unknown doctor maps to 404.
	rec = doJSON(e, http.MethodGet, "/api/v1/doctors/999/availability?date=2026-03-02", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWaitlistEndpoints(t *testing.T) {
	f, e := newHandlerFixture(t)
	f.addAvailableDoctor(t, 5)

	rec := doJSON(e, http.MethodPost, "/api/v1/waitlist", `{"patient_id": 42, "specialty_id": 1, "priority": 4}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var entry WaitlistEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Position == nil || *entry.Position != 1 {
		t.Errorf("position = %v, want 1", entry.Position)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/waitlist/"+entry.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// The sweep places it with the available doctor.
	rec = doJSON(e, http.MethodPost, "/api/v1/waitlist/sweep", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sweep status = %d: %s", rec.Code, rec.Body.String())
	}
	var sweep struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &sweep); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if sweep.Count != 1 {
		t.Errorf("sweep count = %d, want 1", sweep.Count)
	}
}

func TestCancelWaitlistEntry(t *testing.T) {
	f, e := newHandlerFixture(t)

	entry, err := f.svc.AddToWaitlist(context.Background(), WaitlistRequest{PatientID: 42, SpecialtyID: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	rec := doJSON(e, http.MethodDelete, "/api/v1/waitlist/"+entry.ID.String(), "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	// Cancelling again: the entry is no longer waiting.
	rec = doJSON(e, http.MethodDelete, "/api/v1/waitlist/"+entry.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
