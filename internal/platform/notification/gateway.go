package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// GatewayConfig configures the HTTP SMS gateway.
type GatewayConfig struct {
	URL      string
	Token    string
	SenderID string
	Timeout  time.Duration
}

type gatewayRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
}

type gatewayResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// HTTPSMSSender posts messages to a JSON SMS gateway behind a circuit breaker.
type HTTPSMSSender struct {
	cfg        GatewayConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
	logger     zerolog.Logger
}

func NewHTTPSMSSender(cfg GatewayConfig, logger zerolog.Logger) (*HTTPSMSSender, error) {
	if cfg.URL == "" {
		return nil, errors.New("sms gateway url is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	s := &HTTPSMSSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	s.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "sms-gateway",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("sms gateway breaker state changed")
		},
	})
	return s, nil
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) error {
	id, err := s.breaker.Execute(func() (string, error) {
		return s.post(ctx, to, body)
	})
	if err != nil {
		return err
	}
	s.logger.Debug().Str("message_id", id).Msg("sms accepted by gateway")
	return nil
}

func (s *HTTPSMSSender) post(ctx context.Context, to, body string) (string, error) {
	payload, err := json.Marshal(gatewayRequest{From: s.cfg.SenderID, To: to, Text: body})
	if err != nil {
		return "", fmt.Errorf("marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms gateway request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("read sms gateway response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("sms gateway returned status %d: %s", resp.StatusCode, string(raw))
	}

	var out gatewayResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("decode sms gateway response: %w", err)
		}
	}
	return out.MessageID, nil
}

// LogSMSSender writes messages to the log instead of sending them. Used in
// development when no gateway is configured.
type LogSMSSender struct {
	logger zerolog.Logger
}

func NewLogSMSSender(logger zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().Str("to", to).Str("body", body).Msg("sms (not sent, development sender)")
	return nil
}
