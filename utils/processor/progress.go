package processor

import "context"

// ProgressType represents different types of progress updates
type ProgressType int

const (
	ProgressStep ProgressType = iota
	ProgressParallelStep
	ProgressStepDone
	ProgressComplete
	ProgressError
)

// String returns the event name used on the SSE stream
func (t ProgressType) String() string {
	switch t {
	case ProgressStep:
		return "step"
	case ProgressParallelStep:
		return "parallel_step"
	case ProgressStepDone:
		return "step_done"
	case ProgressComplete:
		return "complete"
	case ProgressError:
		return "error"
	}
	return "unknown"
}

// StepInfo contains detailed information about a processing step
type StepInfo struct {
	PersonaID   string `json:"persona_id"`
	PersonaName string `json:"persona_name"`
	Step        int    `json:"step"`
	Total       int    `json:"total"`
	Model       string `json:"model,omitempty"`
	Failed      bool   `json:"failed,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
}

// ProgressUpdate represents a progress update from the executor
type ProgressUpdate struct {
	Type    ProgressType
	Message string
	Error   error
	Step    *StepInfo // Optional step information
	RunID   string    // Set on ProgressComplete
}

// ProgressWriter is an interface for handling progress updates. During the
// independent phase WriteProgress is called from several goroutines.
type ProgressWriter interface {
	WriteProgress(update ProgressUpdate) error
}

// channelProgressWriter implements ProgressWriter by sending updates to a channel
type channelProgressWriter struct {
	ctx context.Context
	ch  chan<- ProgressUpdate
}

// NewChannelProgressWriter forwards updates to ch. A send blocks until the
// reader takes the update or ctx is done.
func NewChannelProgressWriter(ctx context.Context, ch chan<- ProgressUpdate) ProgressWriter {
	return &channelProgressWriter{ctx: ctx, ch: ch}
}

func (w *channelProgressWriter) WriteProgress(update ProgressUpdate) error {
	select {
	case w.ch <- update:
		return nil
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

// ProgressFunc adapts a function to the ProgressWriter interface
type ProgressFunc func(ProgressUpdate) error

func (f ProgressFunc) WriteProgress(update ProgressUpdate) error {
	return f(update)
}
