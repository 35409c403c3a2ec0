package orchestrator

import (
	"time"

	"rawdevelop/params"
	"rawdevelop/pipeline"
)

// Phase is the orchestrator's position in the per-file state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseRendering
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseRendering:
		return "rendering"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Progress messages published while a run moves through its stages.
const (
	ProgressLoading    = "Loading RAW file..."
	ProgressMetadata   = "Extracting metadata..."
	ProgressProcessing = "Processing RAW image..."
	ProgressDone       = "Done"
)

var stageProgress = map[pipeline.Stage]string{
	pipeline.StageOpen:         "Opening file...",
	pipeline.StageConfigure:    "Applying parameters...",
	pipeline.StageUnpack:       "Unpacking sensor data...",
	pipeline.StageThumbnail:    "Unpacking thumbnail...",
	pipeline.StageRender:       "Demosaicing and developing...",
	pipeline.StageMaterialize:  "Building bitmap...",
	pipeline.StageCanonicalize: "Converting to RGB...",
}

// ProgressFor is the progress text shown while stage runs.
func ProgressFor(stage pipeline.Stage) string {
	if msg, ok := stageProgress[stage]; ok {
		return msg
	}
	return ProgressProcessing
}

// State is an immutable snapshot of the orchestrator. Bitmap and Metadata
// are shared between snapshots and must not be modified.
type State struct {
	Phase      Phase
	Generation uint64
	RequestID  string
	Path       string
	Params     params.ParameterSet
	Progress   string
	Metadata   *pipeline.Metadata

	// Bitmap is the most recent Ready result for Path. It survives a failed
	// re-render and is cleared when a different file is opened.
	Bitmap *pipeline.Bitmap

	// BitmapGeneration is the generation that produced Bitmap.
	BitmapGeneration uint64

	// Err is set only in PhaseFailed.
	Err error

	UpdatedAt time.Time
}

// HasFile reports whether a file has been opened.
func (s State) HasFile() bool { return s.Path != "" }
