// Package httpclient is the production ModelCaller: it renders the
// neutral payload through the protocol translator, posts it to the
// vendor endpoint, and classifies failures into the typed shape the
// fallback executor triggers on.
package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/arbiterlabs/arbiter/internal/core/domain"
	"github.com/arbiterlabs/arbiter/internal/core/ports"
	"github.com/arbiterlabs/arbiter/internal/translator"
)

// HTTPClient defines the interface for an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Caller implements ports.ModelCaller over plain HTTP.
type Caller struct {
	client      HTTPClient
	translators *translator.Registry
	timeout     time.Duration
	baseURLs    map[string]string
}

func NewCaller(client HTTPClient, translators *translator.Registry, timeout time.Duration, baseURLs map[string]string) *Caller {
	if client == nil {
		client = &http.Client{}
	}
	return &Caller{
		client:      client,
		translators: translators,
		timeout:     timeout,
		baseURLs:    baseURLs,
	}
}

func (c *Caller) Call(ctx context.Context, attempt ports.CallAttempt) (*domain.CallResult, error) {
	proto := translator.Protocol(attempt.Protocol)
	t := c.translators.For(proto)

	body, err := t.TranslateRequest(attempt.Target.Model, attempt.Payload)
	if err != nil {
		return nil, &domain.CallFailure{
			ErrorType: domain.ErrorTypeValidation,
			Message:   err.Error(),
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	url := c.endpoint(attempt, proto)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.CallFailure{ErrorType: domain.ErrorTypeValidation, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, attempt, proto)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.CallFailure{ErrorType: domain.ErrorTypeNetwork, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyStatus(resp.StatusCode, raw)
	}

	normalized, err := t.TranslateResponse(raw)
	if err != nil {
		return nil, &domain.CallFailure{
			StatusCode: resp.StatusCode,
			ErrorType:  domain.ErrorTypeUnknown,
			Message:    err.Error(),
		}
	}

	return &domain.CallResult{Body: normalized, Protocol: attempt.Protocol}, nil
}

func (c *Caller) endpoint(attempt ports.CallAttempt, proto translator.Protocol) string {
	base := attempt.Key.Key.BaseURL
	if base == "" {
		base = c.baseURLs[attempt.Target.Vendor]
	}
	if proto == translator.ProtocolAnthropic {
		return base + "/messages"
	}
	return base + "/chat/completions"
}

func (c *Caller) authorize(req *http.Request, attempt ports.CallAttempt, proto translator.Protocol) {
	secret := string(attempt.Key.Secret)
	if proto == translator.ProtocolAnthropic {
		req.Header.Set("x-api-key", secret)
		req.Header.Set("anthropic-version", "2023-06-01")
		return
	}
	req.Header.Set("Authorization", "Bearer "+secret)
}

func classifyTransportError(err error) *domain.CallFailure {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.CallFailure{ErrorType: domain.ErrorTypeTimeout, TimedOut: true, Message: err.Error()}
	}
	return &domain.CallFailure{ErrorType: domain.ErrorTypeNetwork, Message: err.Error()}
}

func classifyStatus(status int, body []byte) *domain.CallFailure {
	et := domain.ErrorTypeUnknown
	switch {
	case status == http.StatusTooManyRequests:
		et = domain.ErrorTypeRateLimit
	case status == 529 || status == http.StatusServiceUnavailable:
		et = domain.ErrorTypeOverloaded
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		et = domain.ErrorTypeAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		et = domain.ErrorTypeValidation
	case status == http.StatusGatewayTimeout:
		et = domain.ErrorTypeTimeout
	}
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return &domain.CallFailure{StatusCode: status, ErrorType: et, Message: msg}
}
