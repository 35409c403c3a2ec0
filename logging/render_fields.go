package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Render outcomes recorded in RenderMetrics.
const (
	OutcomeReady     = "ready"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeDiscarded = "discarded"
)

// RenderMetrics summarizes one pipeline run. It marshals as a nested object
// so every render log line carries the same keys.
type RenderMetrics struct {
	RequestID  string        `json:"request_id"`
	Generation uint64        `json:"generation"`
	Path       string        `json:"path"`
	Outcome    string        `json:"outcome"`
	Stage      string        `json:"stage,omitempty"`
	Width      int           `json:"width,omitempty"`
	Height     int           `json:"height,omitempty"`
	Started    time.Time     `json:"started"`
	Duration   time.Duration `json:"duration"`
}

// MarshalLogObject implements zapcore.ObjectMarshaler. Duration is in milliseconds.
func (m RenderMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("request_id", m.RequestID)
	enc.AddUint64("generation", m.Generation)
	enc.AddString("path", m.Path)
	enc.AddString("outcome", m.Outcome)
	if m.Stage != "" {
		enc.AddString("stage", m.Stage)
	}
	if m.Width > 0 && m.Height > 0 {
		enc.AddInt("width", m.Width)
		enc.AddInt("height", m.Height)
	}
	enc.AddInt64("duration_ms", m.Duration.Milliseconds())
	return nil
}

// RenderFields wraps m as a single "render" field.
//
// Example:
//
//	logger.Info("render complete", logging.RenderFields(metrics))
func RenderFields(m RenderMetrics) zap.Field {
	return zap.Object("render", m)
}

// StageFields describes a decoder stage failure.
func StageFields(stage string, code int32, message string) []zap.Field {
	return []zap.Field{
		zap.String("stage", stage),
		zap.Int32("decoder_code", code),
		zap.String("decoder_message", message),
	}
}

// RenderTimer measures one run from StartRender to Finish.
type RenderTimer struct {
	metrics RenderMetrics
}

// StartRender begins timing a run.
func StartRender(requestID string, generation uint64, path string) *RenderTimer {
	return &RenderTimer{metrics: RenderMetrics{
		RequestID:  requestID,
		Generation: generation,
		Path:       path,
		Started:    time.Now(),
	}}
}

// Finish stamps the outcome and elapsed time and returns the metrics.
func (t *RenderTimer) Finish(outcome, stage string, width, height int) RenderMetrics {
	m := t.metrics
	m.Outcome = outcome
	m.Stage = stage
	m.Width = width
	m.Height = height
	m.Duration = time.Since(m.Started)
	return m
}
