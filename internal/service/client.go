// Package service is the HTTP client for the Interview Service, which starts
// sessions, transcribes answers, asks follow-up questions, synthesizes speech
// and produces the final report.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"interviewroom/internal/config"
	"interviewroom/internal/errors"
	"interviewroom/internal/observability"
	"interviewroom/internal/tlsutil"
	"interviewroom/internal/types"
	"interviewroom/internal/utils"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
)

// Operation names used for breakers, pacing, metrics and logs
const (
	OpStartSession = "start_session"
	OpSubmitAnswer = "submit_answer"
	OpSynthesize   = "synthesize"
	OpFinalize     = "finalize"
)

// maxResponseSize caps how much of a response body is read
const maxResponseSize = 32 << 20

// rawResponse is a fully read HTTP response
type rawResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
	RequestID   string
}

// Client talks to the Interview Service
type Client struct {
	baseURL    string
	apiKey     string
	userAgent  string
	paths      config.ServicePaths
	timeouts   config.ServiceTimeouts
	httpClient *http.Client
	breakers   map[string]*Breaker
	pacer      *Pacer
	tls        *tlsutil.ClientTLS
	om         *observability.ObservabilityManager
	logger     *errors.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is still wrapped for tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTLS verifies the service and presents client certificates from ct.
// It has no effect when combined with WithHTTPClient.
func WithTLS(ct *tlsutil.ClientTLS) Option {
	return func(c *Client) { c.tls = ct }
}

// WithObservability instruments calls with om
func WithObservability(om *observability.ObservabilityManager) Option {
	return func(c *Client) { c.om = om }
}

// NewClient creates a client from the service configuration
func NewClient(cfg *config.ServiceConfig, logger *errors.Logger, opts ...Option) (*Client, error) {
	if cfg == nil || cfg.BaseURL == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "service base URL is required", nil)
	}

	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		userAgent: cfg.UserAgent,
		paths:     cfg.Paths,
		timeouts:  cfg.Timeouts,
		logger:    logger,
		breakers:  make(map[string]*Breaker),
	}
	for _, op := range []string{OpStartSession, OpSubmitAnswer, OpSynthesize, OpFinalize} {
		c.breakers[op] = NewBreaker(op, cfg.CircuitBreaker, logger)
	}
	if cfg.RateLimit.Enabled {
		c.pacer = NewPacer(cfg.RateLimit.RequestsPerMin, cfg.RateLimit.BurstCapacity)
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if c.tls != nil {
			transport.TLSClientConfig = c.tls.Config()
			c.tls.AddReloadCallback(func(success bool, _ error) {
				// New connections pick up the reloaded client certificate
				if success {
					transport.CloseIdleConnections()
				}
				c.om.RecordSessionEvent(context.Background(), observability.EventCertReload, success)
			})
		}
		c.httpClient = &http.Client{Transport: transport}
	}
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	instrumented := *c.httpClient
	instrumented.Transport = c.om.HTTPTransport(base)
	c.httpClient = &instrumented

	logger.Debug("Interview Service client initialized",
		"base_url", c.baseURL,
		"has_api_key", c.apiKey != "",
		"tls", c.tls != nil,
		"rate_limited", c.pacer != nil)

	return c, nil
}

// StartSession asks the service to begin the interview and returns the first question
func (c *Client) StartSession(ctx context.Context, sessionID string) (*types.StartSessionResponse, error) {
	raw, err := c.postJSON(ctx, OpStartSession, c.paths.Start, c.timeouts.Start, types.StartSessionRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	var resp types.StartSessionResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, rejected(OpStartSession, resp.Message)
	}
	if strings.TrimSpace(resp.Question) == "" {
		return nil, errors.NewServiceError(errors.ErrCodeInvalidResponse, "start session response has no question", nil)
	}
	return &resp, nil
}

// SubmitAnswer uploads one recorded answer as multipart form data
func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, rec *types.Recording) (*types.SubmitAnswerResponse, error) {
	if rec == nil || len(rec.Data) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, "recording is empty", nil)
	}

	body, contentType, err := encodeAnswer(sessionID, rec)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "failed to encode answer upload", err)
	}

	raw, err := c.do(ctx, OpSubmitAnswer, c.timeouts.Answer, int64(len(rec.Data)), func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.paths.Answer, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp types.SubmitAnswerResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, rejected(OpSubmitAnswer, resp.Message)
	}
	if resp.Continues() && strings.TrimSpace(resp.Question) == "" {
		return nil, errors.NewServiceError(errors.ErrCodeInvalidResponse, "active answer response has no next question", nil)
	}
	return &resp, nil
}

// Synthesize converts text to speech with the service's TTS endpoint
func (c *Client) Synthesize(ctx context.Context, text string) (*types.Audio, error) {
	raw, err := c.postJSON(ctx, OpSynthesize, c.paths.TTS, c.timeouts.TTS, types.SynthesizeRequest{Text: text})
	if err != nil {
		return nil, err
	}

	mediaType, _, _ := mime.ParseMediaType(raw.ContentType)
	if mediaType == "application/json" {
		// Failures may come back as a JSON body with a 2xx status
		var resp types.FinalizeResponse
		if err := json.Unmarshal(raw.Body, &resp); err == nil && !resp.Success {
			return nil, rejected(OpSynthesize, resp.Message)
		}
		return nil, errors.NewServiceError(errors.ErrCodeInvalidResponse, "text-to-speech returned JSON instead of audio", nil)
	}
	if len(raw.Body) == 0 {
		return nil, errors.NewServiceError(errors.ErrCodeInvalidResponse, "text-to-speech returned no audio", nil)
	}

	return &types.Audio{Data: raw.Body, ContentType: raw.ContentType}, nil
}

// Finalize asks the service to close the session and produce the report
func (c *Client) Finalize(ctx context.Context, sessionID string) (*types.FinalizeResponse, error) {
	raw, err := c.postJSON(ctx, OpFinalize, c.paths.Finalize, c.timeouts.Finalize, types.FinalizeRequest{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	var resp types.FinalizeResponse
	if err := decodeJSON(raw, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, rejected(OpFinalize, resp.Message)
	}
	return &resp, nil
}

// GetStats returns breaker and pacing statistics per operation
func (c *Client) GetStats() map[string]any {
	breakers := make(map[string]any, len(c.breakers))
	for op, b := range c.breakers {
		breakers[op] = b.GetStats()
	}
	return map[string]any{
		"circuit_breakers": breakers,
		"rate_limit":       c.pacer.GetStats(),
	}
}

// IsHealthy reports whether every operation's breaker is closed
func (c *Client) IsHealthy() bool {
	for _, b := range c.breakers {
		if !b.IsHealthy() {
			return false
		}
	}
	return true
}

func (c *Client) postJSON(ctx context.Context, op, path string, timeout time.Duration, payload any) (*rawResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "failed to encode request", err)
	}
	return c.do(ctx, op, timeout, 0, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

// do sends one request. Calls are never retried.
func (c *Client) do(ctx context.Context, op string, timeout time.Duration, uploadSize int64, build func(context.Context) (*http.Request, error)) (*rawResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	waited, err := c.pacer.Wait(ctx, op)
	if waited {
		c.om.RecordSessionEvent(ctx, observability.EventRateLimitWait, err == nil, attribute.String("operation", op))
		c.logger.Debug("Request delayed by client rate limit", "operation", op)
	}
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeRateLimited, "gave up waiting for rate limit", err).
			WithContext("operation", op)
	}

	requestID := uuid.NewString()
	var raw *rawResponse

	trackErr := c.om.TrackServiceCall(ctx, op, func(ctx context.Context) *observability.CallResult {
		raw, err = c.breakers[op].Execute(func() (*rawResponse, error) {
			return c.send(ctx, op, requestID, build)
		})
		result := &observability.CallResult{Error: err, UploadSize: uploadSize}
		if raw != nil {
			result.StatusCode = raw.StatusCode
		}
		return result
	})
	if trackErr != nil {
		return nil, c.classify(ctx, op, requestID, trackErr)
	}

	// 4xx responses are not breaker failures but still fail the call
	if raw.StatusCode < 200 || raw.StatusCode > 299 {
		return nil, statusError(op, raw)
	}

	c.logger.Debug("Interview Service call succeeded",
		"operation", op,
		"request_id", requestID,
		"status_code", raw.StatusCode,
		"response_size", utils.FormatFileSize(int64(len(raw.Body))))
	return raw, nil
}

// send performs the HTTP exchange. Transport failures and 5xx responses are
// returned as errors so they count against the breaker.
func (c *Client) send(ctx context.Context, op, requestID string, build func(context.Context) (*http.Request, error)) (*rawResponse, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeInvalidRequest, "failed to build request", err)
	}
	req.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	raw := &rawResponse{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		RequestID:   requestID,
	}
	if resp.StatusCode >= 500 {
		return raw, statusError(op, raw)
	}
	return raw, nil
}

// classify turns a failed call into an AppError and logs it
func (c *Client) classify(ctx context.Context, op, requestID string, err error) error {
	var appErr *errors.AppError
	switch {
	case stderrors.As(err, &appErr):
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		appErr = errors.NewServiceError(errors.ErrCodeCircuitOpen, "Interview Service temporarily unavailable", err)
	case stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(ctx.Err(), context.DeadlineExceeded):
		appErr = errors.NewNetworkError(errors.ErrCodeNetworkTimeout, "Interview Service did not respond in time", err)
	default:
		appErr = errors.NewNetworkError(errors.ErrCodeNetworkFailed, "request to Interview Service failed", err)
	}
	appErr.WithContext("operation", op).WithContext("request_id", requestID)
	c.logger.LogError(appErr, "Interview Service call failed")
	return appErr
}

// statusError builds the error for a non-2xx response, using the service message when it sent one
func statusError(op string, raw *rawResponse) *errors.AppError {
	message := fmt.Sprintf("Interview Service returned HTTP %d", raw.StatusCode)
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw.Body, &body) == nil {
		if body.Message != "" {
			message += ": " + body.Message
		} else if body.Error != "" {
			message += ": " + body.Error
		}
	}
	return errors.NewServiceError(errors.ErrCodeServiceHTTP, message, nil).
		WithContext("operation", op).
		WithContext("status_code", raw.StatusCode).
		WithContext("request_id", raw.RequestID)
}

func rejected(op, message string) *errors.AppError {
	if message == "" {
		message = "request was not successful"
	}
	return errors.NewServiceError(errors.ErrCodeServiceRejected, message, nil).
		WithContext("operation", op)
}

func decodeJSON(raw *rawResponse, v any) error {
	if err := json.Unmarshal(raw.Body, v); err != nil {
		return errors.NewServiceError(errors.ErrCodeInvalidResponse, "Interview Service returned malformed JSON", err).
			WithContext("request_id", raw.RequestID)
	}
	return nil
}

// encodeAnswer builds the multipart body: a sessionId field and an audio file part
func encodeAnswer(sessionID string, rec *types.Recording) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("sessionId", sessionID); err != nil {
		return nil, "", err
	}

	mimeType := rec.MIMEType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="audio"; filename="answer.%s"`, utils.ExtensionForMIMEType(mimeType)))
	header.Set("Content-Type", mimeType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(rec.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
