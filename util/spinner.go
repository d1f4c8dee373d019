package util

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"golang.org/x/term"
)

// Colors used across the CLI application.
const (
	DefaultColor = "\x1b[0m"
	SuccessColor = "\x1b[32m"
	ErrorColor   = "\x1b[31m"
)

// Green wraps s in the success color.
func Green(s string) string {
	return SuccessColor + s + DefaultColor
}

// Spinner shows progress on a terminal. It is silent on anything else.
type Spinner struct {
	mu       sync.Mutex
	delay    time.Duration
	writer   io.Writer
	message  string
	enabled  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewSpinner instantiates a new progress indicator on f.
func NewSpinner(msg string, d time.Duration, f *os.File) *Spinner {
	return &Spinner{
		delay:    d,
		writer:   f,
		message:  msg,
		enabled:  term.IsTerminal(int(f.Fd())),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start starts the progress indicator.
func (s *Spinner) Start() {
	if !s.enabled {
		close(s.doneChan)
		return
	}
	if runtime.GOOS != "windows" {
		// hides the cursor
		fmt.Fprint(s.writer, "\033[?25l")
	}

	go func() {
		defer close(s.doneChan)
		for {
			for _, r := range `⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏` {
				select {
				case <-s.stopChan:
					return
				case <-time.After(s.delay):
					s.mu.Lock()
					fmt.Fprintf(s.writer, "\r%s %s", s.message, Green(string(r)))
					s.mu.Unlock()
				}
			}
		}
	}()
}

// Stop stops the progress indicator and clears its line.
func (s *Spinner) Stop() {
	if !s.enabled {
		return
	}
	close(s.stopChan)
	<-s.doneChan

	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprint(s.writer, "\r\033[K")
	if runtime.GOOS != "windows" {
		// makes the cursor visible
		fmt.Fprint(s.writer, "\033[?25h")
	}
}
