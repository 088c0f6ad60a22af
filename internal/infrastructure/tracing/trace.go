package tracing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kiedeng/wecom-integration/internal/shared/id"
)

// Span records a single request from arrival to response.
type Span struct {
	RequestID id.RequestID
	Name      string
	Service   string
	StartTime time.Time
	Duration  time.Duration
	Status    int
	Err       error
	Tags      map[string]string
}

// Tracer collects completed spans and logs them off the request path.
type Tracer struct {
	service string
	logger  *zap.Logger
	spans   chan *Span
	done    chan struct{}
}

// New creates a tracer and starts its collector.
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		service: service,
		logger:  logger,
		spans:   make(chan *Span, 1000),
		done:    make(chan struct{}),
	}
	go t.collect()
	return t
}

// StartSpan creates a span for the named operation. The request ID is
// taken from the context when present, otherwise generated.
func (t *Tracer) StartSpan(ctx context.Context, name string) (*Span, context.Context) {
	requestID := RequestID(ctx)
	if requestID == "" {
		requestID = id.NewRequestID()
		ctx = WithRequestID(ctx, requestID)
	}

	return &Span{
		RequestID: requestID,
		Name:      name,
		Service:   t.service,
		StartTime: time.Now(),
		Tags:      make(map[string]string),
	}, ctx
}

// SetTag adds a tag to the span.
func (s *Span) SetTag(key, value string) {
	s.Tags[key] = value
}

// SetError records a failure on the span.
func (s *Span) SetError(err error) {
	s.Err = err
}

// Finish stamps the span duration.
func (s *Span) Finish() {
	s.Duration = time.Since(s.StartTime)
}

// Submit queues a finished span for logging; spans are dropped rather
// than blocking the request when the buffer is full.
func (t *Tracer) Submit(span *Span) {
	select {
	case t.spans <- span:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("request_id", span.RequestID.String()))
	}
}

// Close stops the collector after draining queued spans.
func (t *Tracer) Close() {
	close(t.spans)
	<-t.done
}

func (t *Tracer) collect() {
	defer close(t.done)
	for span := range t.spans {
		fields := []zap.Field{
			zap.String("request_id", span.RequestID.String()),
			zap.String("operation", span.Name),
			zap.String("service", span.Service),
			zap.Duration("duration", span.Duration),
			zap.Int("status", span.Status),
		}
		for k, v := range span.Tags {
			fields = append(fields, zap.String(k, v))
		}
		if span.Err != nil {
			fields = append(fields, zap.Error(span.Err))
			t.logger.Error("request completed with error", fields...)
		} else {
			t.logger.Debug("request completed", fields...)
		}
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// WithRequestID stores a request ID on the context.
func WithRequestID(ctx context.Context, requestID id.RequestID) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestID retrieves the request ID from the context, if any.
func RequestID(ctx context.Context) id.RequestID {
	if requestID, ok := ctx.Value(requestIDKey).(id.RequestID); ok {
		return requestID
	}
	return ""
}
