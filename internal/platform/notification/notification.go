// Package notification sends patient-facing email/SMS messages for booking
// lifecycle events. Delivery is fire-and-forget from the scheduling core's
// point of view: a failed send never affects the booking that triggered it.
package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Channel is the delivery channel for a message.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Built-in template ids used by the scheduling core.
const (
	TemplateScheduled        = "appointment-scheduled"
	TemplateReminder         = "appointment-reminder"
	TemplateCancelled        = "appointment-cancelled"
	TemplateWaitlistAdded    = "waitlist-added"
	TemplateWaitlistAssigned = "waitlist-assigned"
)

// Message is a single outbound notification.
type Message struct {
	ID         string            `json:"id"`
	Channel    Channel           `json:"channel"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
}

// EmailSender delivers email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// SMSSender delivers SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template is a reusable message with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// TemplateEngine stores templates and renders them with data maps.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewTemplateEngine returns an engine with the booking lifecycle templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	for _, t := range []Template{
		{
			ID:      TemplateScheduled,
			Subject: "Your appointment is confirmed",
			Body:    "Dear {{patient_name}}, your {{visit_type}} appointment with {{doctor_name}} is confirmed for {{date}} at {{time}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateReminder,
			Subject: "Appointment reminder",
			Body:    "Dear {{patient_name}}, this is a reminder of your appointment on {{date}} at {{time}} with {{doctor_name}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateCancelled,
			Subject: "Your appointment was cancelled",
			Body:    "Dear {{patient_name}}, your appointment on {{date}} at {{time}} has been cancelled. Reason: {{reason}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateWaitlistAdded,
			Subject: "You are on the waitlist",
			Body:    "Dear {{patient_name}}, no doctor was available for your request. You are number {{position}} on the {{specialty}} waitlist and we will notify you as soon as a slot opens.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateWaitlistAssigned,
			Subject: "A slot opened up for you",
			Body:    "Dear {{patient_name}}, good news: an appointment with {{doctor_name}} on {{date}} at {{time}} has been booked for you from the waitlist.",
			Channel: ChannelEmail,
		},
	} {
		tpl := t
		e.templates[tpl.ID] = &tpl
	}
	return e
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render substitutes {{key}} placeholders with the data map. Placeholders
// without a matching key are left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (*Template, string, string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return nil, "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body := t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return t, subject, body, nil
}

// Manager sends messages through the configured channels and keeps a bounded
// in-memory record for the admin surface.
type Manager struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine
	log       zerolog.Logger

	mu       sync.RWMutex
	messages map[string]*Message
}

func NewManager(email EmailSender, sms SMSSender, tpl *TemplateEngine, log zerolog.Logger) *Manager {
	return &Manager{
		email:     email,
		sms:       sms,
		templates: tpl,
		log:       log,
		messages:  make(map[string]*Message),
	}
}

// Send delivers the message on its channel, records the outcome and returns
// the delivery error, if any. Callers in the booking path ignore the error.
func (m *Manager) Send(ctx context.Context, msg *Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	msg.CreatedAt = time.Now().UTC()

	var sendErr error
	switch msg.Channel {
	case ChannelEmail:
		sendErr = m.email.SendEmail(ctx, msg.Recipient, msg.Subject, msg.Body)
	case ChannelSMS:
		sendErr = m.sms.SendSMS(ctx, msg.Recipient, msg.Body)
	default:
		sendErr = fmt.Errorf("unsupported channel: %s", msg.Channel)
	}

	if sendErr != nil {
		msg.Status = "failed"
		msg.Error = sendErr.Error()
		m.log.Warn().Err(sendErr).Str("recipient", msg.Recipient).
			Str("template", msg.TemplateID).Msg("notification delivery failed")
	} else {
		msg.Status = "sent"
		sentAt := time.Now().UTC()
		msg.SentAt = &sentAt
	}

	m.mu.Lock()
	m.messages[msg.ID] = msg
	m.mu.Unlock()

	return sendErr
}

// SendTemplate renders a template and sends the result to the recipient.
func (m *Manager) SendTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*Message, error) {
	t, subject, body, err := m.templates.Render(templateID, data)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		Channel:    t.Channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
	}
	if err := m.Send(ctx, msg); err != nil {
		return msg, err
	}
	return msg, nil
}

// Get returns a recorded message by id.
func (m *Manager) Get(id string) (*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, fmt.Errorf("notification %q not found", id)
	}
	return msg, nil
}

// Retry re-sends a failed message.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	msg, ok := m.messages[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("notification %q not found", id)
	}
	if msg.Status != "failed" {
		return fmt.Errorf("notification %q is not failed (current: %s)", id, msg.Status)
	}

	var sendErr error
	switch msg.Channel {
	case ChannelEmail:
		sendErr = m.email.SendEmail(ctx, msg.Recipient, msg.Subject, msg.Body)
	case ChannelSMS:
		sendErr = m.sms.SendSMS(ctx, msg.Recipient, msg.Body)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if sendErr != nil {
		msg.Error = sendErr.Error()
		return sendErr
	}
	msg.Status = "sent"
	msg.Error = ""
	sentAt := time.Now().UTC()
	msg.SentAt = &sentAt
	return nil
}

// Stats returns message counts by status.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]int)
	for _, msg := range m.messages {
		stats[msg.Status]++
	}
	return stats
}

// LogEmailSender writes emails to the log instead of delivering them.
// Development-mode sender.
type LogEmailSender struct{ Log zerolog.Logger }

func (s LogEmailSender) SendEmail(_ context.Context, to, subject, _ string) error {
	s.Log.Info().Str("to", to).Str("subject", subject).Msg("email (dev mode, not delivered)")
	return nil
}

// LogSMSSender writes SMS messages to the log instead of delivering them.
type LogSMSSender struct{ Log zerolog.Logger }

func (s LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Log.Info().Str("to", to).Str("body", body).Msg("sms (dev mode, not delivered)")
	return nil
}

// MockEmailSender records calls for tests.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// EmailCall records one SendEmail invocation.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// MockSMSSender records calls for tests.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
}

// SMSCall records one SendSMS invocation.
type SMSCall struct {
	To   string
	Body string
}

func (m *MockSMSSender) SendSMS(_ context.Context, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SMSCall{To: to, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of the recorded calls.
func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Handler exposes the notification admin surface.
type Handler struct {
	manager *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{manager: mgr}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/notifications/send-template", h.HandleSendTemplate)
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

type sendTemplateRequest struct {
	TemplateID string            `json:"template_id"`
	Recipient  string            `json:"recipient"`
	Data       map[string]string `json:"data"`
}

func (h *Handler) HandleSendTemplate(c echo.Context) error {
	var req sendTemplateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	msg, err := h.manager.SendTemplate(c.Request().Context(), req.TemplateID, req.Recipient, req.Data)
	if err != nil && msg == nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	// A failed delivery still yields the recorded message so the caller can
	// retry it later.
	return c.JSON(http.StatusCreated, msg)
}

func (h *Handler) HandleGet(c echo.Context) error {
	msg, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, msg)
}

func (h *Handler) HandleRetry(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Retry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msg, _ := h.manager.Get(id)
	return c.JSON(http.StatusOK, msg)
}

func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}
