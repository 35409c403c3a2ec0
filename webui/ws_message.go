package webui

import (
	"time"

	"rawdevelop/orchestrator"
	"rawdevelop/params"
	"rawdevelop/pipeline"
)

// Message types sent over the state stream.
const (
	MessageTypeState = "state"
	MessageTypeError = "error"
)

// WSMessage is the envelope for every websocket message.
type WSMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// NewWSMessage stamps a message with the current time.
func NewWSMessage(msgType string, data any) WSMessage {
	return WSMessage{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewStateMessage wraps an orchestrator snapshot.
func NewStateMessage(s orchestrator.State) WSMessage {
	return NewWSMessage(MessageTypeState, NewStateData(s))
}

// NewErrorMessage creates an error message.
func NewErrorMessage(code, message string) WSMessage {
	return NewWSMessage(MessageTypeError, ErrorData{Code: code, Message: message})
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StateData is the JSON form of an orchestrator snapshot. Pixels are not
// included; clients fetch them from the image endpoints using
// ImageGeneration as a cache key.
type StateData struct {
	Phase           string              `json:"phase"`
	Generation      uint64              `json:"generation"`
	RequestID       string              `json:"request_id,omitempty"`
	Path            string              `json:"path,omitempty"`
	Params          params.ParameterSet `json:"params"`
	Progress        string              `json:"progress,omitempty"`
	Metadata        *pipeline.Metadata  `json:"metadata,omitempty"`
	Image           *pipeline.Bitmap    `json:"image,omitempty"`
	ImageGeneration uint64              `json:"image_generation,omitempty"`
	Error           string              `json:"error,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// NewStateData converts a snapshot.
func NewStateData(s orchestrator.State) StateData {
	d := StateData{
		Phase:           s.Phase.String(),
		Generation:      s.Generation,
		RequestID:       s.RequestID,
		Path:            s.Path,
		Params:          s.Params,
		Progress:        s.Progress,
		Metadata:        s.Metadata,
		Image:           s.Bitmap,
		ImageGeneration: s.BitmapGeneration,
		UpdatedAt:       s.UpdatedAt,
	}
	if s.Err != nil {
		d.Error = s.Err.Error()
	}
	return d
}
