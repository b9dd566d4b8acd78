package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// Session event names accepted by RecordSessionEvent
const (
	EventSessionStarted   = "session_started"
	EventSessionCompleted = "session_completed"
	EventTurnSubmitted    = "turn_submitted"
	EventSpeechFallback   = "speech_fallback"
	EventMicrophoneError  = "microphone_error"
	EventCertReload       = "cert_reload"
	EventRateLimitWait    = "rate_limit_wait"
)

// CallResult holds the outcome of one Interview Service call
type CallResult struct {
	Error      error
	StatusCode int
	UploadSize int64 // bytes of audio sent, 0 when nothing was uploaded
}

// TrackServiceCall instruments an Interview Service call with a span and metrics
func (om *ObservabilityManager) TrackServiceCall(ctx context.Context, operation string, fn func(context.Context) *CallResult) error {
	ctx, span := om.Tracer("interviewroom.service").Start(ctx, "service."+operation,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient))
	defer span.End()

	start := time.Now()
	result := fn(ctx)
	duration := time.Since(start).Seconds()

	if result == nil {
		result = &CallResult{}
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.Bool("success", result.Error == nil),
	}
	if result.StatusCode != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", result.StatusCode))
	}
	span.SetAttributes(attrs...)

	if om.serviceMetricsEnabled() {
		m := om.GetMetrics()
		if m.ServiceCallCount != nil {
			m.ServiceCallCount.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
		if m.ServiceCallDuration != nil && om.trackServiceDuration() {
			m.ServiceCallDuration.Record(ctx, duration, metric.WithAttributes(attrs...))
		}
		if m.AudioUploadBytes != nil && result.UploadSize > 0 && om.trackAudioSize() {
			m.AudioUploadBytes.Record(ctx, result.UploadSize, metric.WithAttributes(attrs...))
		}
		if m.ServiceErrorCount != nil && result.Error != nil {
			m.ServiceErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
		}
	}

	if result.Error != nil {
		span.RecordError(result.Error)
		span.SetStatus(codes.Error, result.Error.Error())
	}

	return result.Error
}

// RecordSessionEvent records a session or infrastructure event
func (om *ObservabilityManager) RecordSessionEvent(ctx context.Context, event string, success bool, attributes ...attribute.KeyValue) {
	if om == nil || om.metrics == nil {
		return
	}

	attrs := append([]attribute.KeyValue{attribute.Bool("success", success)}, attributes...)
	opt := metric.WithAttributes(attrs...)
	m := om.metrics

	switch event {
	case EventCertReload:
		if om.infraEnabled(func(c infraFlags) bool { return c.TrackCertReload }) {
			m.CertReloadCount.Add(ctx, 1, opt)
		}
		return
	case EventRateLimitWait:
		if om.infraEnabled(func(c infraFlags) bool { return c.TrackRateLimits }) {
			m.RateLimitWaits.Add(ctx, 1, opt)
		}
		return
	}

	if !om.sessionMetricsEnabled() {
		return
	}
	switch event {
	case EventSessionStarted:
		m.SessionsStarted.Add(ctx, 1, opt)
	case EventSessionCompleted:
		m.SessionsCompleted.Add(ctx, 1, opt)
	case EventTurnSubmitted:
		m.TurnsSubmitted.Add(ctx, 1, opt)
	case EventSpeechFallback:
		m.SpeechFallbacks.Add(ctx, 1, opt)
	case EventMicrophoneError:
		m.MicrophoneErrors.Add(ctx, 1, opt)
	}
}

type infraFlags struct {
	TrackRateLimits bool
	TrackCertReload bool
}

func (om *ObservabilityManager) infraEnabled(pick func(infraFlags) bool) bool {
	if om.fullConfig == nil {
		return true
	}
	infra := om.fullConfig.Observability.CustomMetrics.Infrastructure
	return infra.Enabled && pick(infraFlags{TrackRateLimits: infra.TrackRateLimits, TrackCertReload: infra.TrackCertReload})
}

func (om *ObservabilityManager) sessionMetricsEnabled() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.Session.Enabled
}

func (om *ObservabilityManager) serviceMetricsEnabled() bool {
	if om == nil || om.metrics == nil {
		return false
	}
	return om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.ServiceCalls.Enabled
}

func (om *ObservabilityManager) trackServiceDuration() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.ServiceCalls.TrackDuration
}

func (om *ObservabilityManager) trackAudioSize() bool {
	return om.fullConfig == nil || om.fullConfig.Observability.CustomMetrics.ServiceCalls.TrackAudioSize
}
