package processor

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner renders executor progress on a terminal. It implements ProgressWriter.
type Spinner struct {
	out      io.Writer
	chars    []string
	index    int
	message  string
	stop     chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	opMu     sync.Mutex // serializes WriteProgress
	running  bool
	disabled bool // Used for testing environments and non-terminal output
}

func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{
		out:   out,
		chars: []string{"|", "/", "-", "\\"},
	}
}

// Disable prevents the spinner from animating; step lines are still printed
func (s *Spinner) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = true
}

// WriteProgress turns executor updates into spinner state
func (s *Spinner) WriteProgress(update ProgressUpdate) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	switch update.Type {
	case ProgressStep, ProgressParallelStep:
		s.Start(update.Message)
	case ProgressStepDone:
		status := "Done!"
		if update.Step != nil && update.Step.Failed {
			status = "Failed"
		}
		s.Stop()
		s.println(fmt.Sprintf("%s... %s", update.Message, status))
	case ProgressComplete:
		s.Stop()
		s.println(update.Message)
	case ProgressError:
		s.Stop()
		s.println(fmt.Sprintf("Error: %v", update.Error))
	}
	return nil
}

func (s *Spinner) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r%s     \n", line)
}

func (s *Spinner) Start(message string) {
	s.mu.Lock()
	s.message = message
	if s.disabled || s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.out, "\r%s... %s", s.message, s.chars[s.index])
				s.index = (s.index + 1) % len(s.chars)
				s.mu.Unlock()
			}
		}
	}()
}

func (s *Spinner) Stop() {
	s.mu.Lock()
	if s.running {
		close(s.stop)
		s.running = false
	}
	s.mu.Unlock()
	s.wg.Wait()
}
