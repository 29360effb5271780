// Package spinner draws a one-line progress indicator on a terminal.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-runewidth"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

const interval = 80 * time.Millisecond

// Spinner animates a message until stopped. The message can change while
// it runs.
type Spinner struct {
	w io.Writer

	mu      sync.Mutex
	message string
	width   int // widest line drawn so far, for clearing

	done     chan struct{}
	cleared  chan struct{}
	stopOnce sync.Once
}

// Start displays an animated spinner with the given message on w.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.run()
	return s
}

// SetMessage replaces the message shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Println prints a line above the spinner.
func (s *Spinner) Println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	fmt.Fprintln(s.w, line) //nolint:errcheck
}

// Stop stops the spinner and clears its line. It is safe to call twice.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	<-s.cleared
}

func (s *Spinner) run() {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.draw(frames[i%len(frames)])

		select {
		case <-s.done:
			s.mu.Lock()
			s.clearLocked()
			s.mu.Unlock()
			close(s.cleared)
			return
		case <-ticker.C:
		}
	}
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := frame + " " + s.message
	w := runewidth.StringWidth(line)
	pad := ""
	if w < s.width {
		pad = strings.Repeat(" ", s.width-w)
	}
	s.width = max(s.width, w)
	fmt.Fprintf(s.w, "\r%s%s", line, pad) //nolint:errcheck
}

func (s *Spinner) clearLocked() {
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width)) //nolint:errcheck
}
