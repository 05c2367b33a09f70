// Package notification delivers outbound text messages to patients.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification records one delivery attempt.
type Notification struct {
	ID         string     `json:"id"`
	Recipient  string     `json:"recipient"`
	TemplateID string     `json:"template_id,omitempty"`
	Body       string     `json:"-"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	SentAt     *time.Time `json:"sent_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Template is a message body with {{key}} placeholders.
type Template struct {
	ID   string
	Body string
}

const TemplateClaimCode = "claim-code"

type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]Template)}
	e.Register(Template{
		ID:   TemplateClaimCode,
		Body: "{{clinic}}: your verification code is {{code}}. It expires in {{minutes}} minutes. Do not share this code.",
	})
	return e
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = t
}

// Render substitutes data into the template body.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", templateID)
	}

	body := t.Body
	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	return body, nil
}

// Dispatcher renders templates and hands them to an SMSSender.
type Dispatcher struct {
	sms       SMSSender
	templates *TemplateEngine
	now       func() time.Time
}

func NewDispatcher(sms SMSSender, templates *TemplateEngine) *Dispatcher {
	if templates == nil {
		templates = NewTemplateEngine()
	}
	return &Dispatcher{sms: sms, templates: templates, now: time.Now}
}

// Send delivers a templated SMS. The returned Notification is non-nil
// whenever rendering succeeded, including failed deliveries.
func (d *Dispatcher) Send(ctx context.Context, templateID string, data map[string]string, recipient string) (*Notification, error) {
	if recipient == "" {
		return nil, errors.New("notification: empty recipient")
	}
	body, err := d.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notification{
		ID:         uuid.New().String(),
		Recipient:  recipient,
		TemplateID: templateID,
		Body:       body,
		CreatedAt:  d.now().UTC(),
	}

	if err := d.sms.SendSMS(ctx, recipient, body); err != nil {
		n.Status = StatusFailed
		n.Error = err.Error()
		return n, fmt.Errorf("send sms: %w", err)
	}

	n.Status = StatusSent
	sentAt := d.now().UTC()
	n.SentAt = &sentAt
	return n, nil
}

type SMSCall struct {
	To   string
	Body string
}

// MockSMSSender records calls and optionally fails them.
type MockSMSSender struct {
	mu         sync.Mutex
	calls      []SMSCall
	ShouldFail bool
	FailError  string
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

func (m *MockSMSSender) Calls() []SMSCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSCall, len(m.calls))
	copy(out, m.calls)
	return out
}
