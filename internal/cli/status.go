package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/roach88/components/internal/ir"
)

// StopReason is why a status display ended.
type StopReason string

const (
	StopDone   StopReason = "done"
	StopError  StopReason = "error"
	StopCancel StopReason = "cancel"
)

const (
	pointer      = "›"
	redrawPeriod = 100 * time.Millisecond
	clearLine    = "\r\x1b[K"
)

var (
	grey  = color.RGB(140, 141, 143)
	green = color.New(color.FgGreen)
	red   = color.New(color.FgRed)
)

// StatusEngine renders the progress of one invocation: a status line with
// elapsed seconds and animated dots, plus log and debug lines from the
// call tree. It implements telemetry.Sink.
//
// In interactive mode the status line is redrawn in place; otherwise each
// status change is printed once.
type StatusEngine struct {
	mu          sync.Mutex
	out         io.Writer
	debug       bool
	interactive bool
	now         func() time.Time

	entity  string
	message string
	started time.Time
	dots    int
	stopped bool

	quit chan struct{}
	done chan struct{}
}

// NewStatusEngine returns a status display writing to out.
func NewStatusEngine(out io.Writer, entity string, debug, interactive bool) *StatusEngine {
	return &StatusEngine{
		out:         out,
		entity:      entity,
		debug:       debug,
		interactive: interactive,
		now:         time.Now,
	}
}

// Start begins timing and, in interactive mode, the redraw loop.
func (s *StatusEngine) Start(message string) {
	s.mu.Lock()
	s.started = s.now()
	s.message = message
	if !s.interactive {
		s.printLocked(s.lineLocked(""))
		s.mu.Unlock()
		return
	}
	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	s.redrawLocked()
	s.mu.Unlock()

	go s.loop()
}

func (s *StatusEngine) loop() {
	defer close(s.done)
	ticker := time.NewTicker(redrawPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.dots = (s.dots + 1) % 4
			s.redrawLocked()
			s.mu.Unlock()
		}
	}
}

// Status replaces the status message.
func (s *StatusEngine) Status(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || message == s.message {
		return
	}
	s.message = message
	if s.interactive {
		s.redrawLocked()
		return
	}
	s.printLocked(s.lineLocked(""))
}

// Log prints a message above the status line.
func (s *StatusEngine) Log(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printLocked("  " + message)
}

// Debug prints a message when debug output is on.
func (s *StatusEngine) Debug(message string) {
	if !s.debug {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.printLocked("  " + grey.Sprint(message))
}

// Deliver routes a telemetry event to the display.
func (s *StatusEngine) Deliver(ev ir.Event) {
	switch ev.Kind {
	case ir.EventStatus:
		s.Status(ev.Data)
	case ir.EventLog:
		s.Log(prefixed(ev.Name, ev.Data))
	case ir.EventDebug:
		s.Debug(prefixed(ev.Name, ev.Data))
	}
}

// Stop ends the display and prints the final line. It is safe to call
// more than once; only the first call prints.
func (s *StatusEngine) Stop(reason StopReason, message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	quit, done := s.quit, s.done
	s.mu.Unlock()

	if quit != nil {
		close(quit)
		<-done
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch reason {
	case StopDone:
		s.message = green.Sprint(message)
	case StopCancel:
		s.message = red.Sprint("canceled")
	default:
		s.message = red.Sprint(message)
	}
	if s.interactive {
		fmt.Fprint(s.out, clearLine)
	}
	fmt.Fprintln(s.out, s.lineLocked(""))
}

// Elapsed returns the whole seconds since Start.
func (s *StatusEngine) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *StatusEngine) elapsedLocked() int {
	if s.started.IsZero() {
		return 0
	}
	return int(s.now().Sub(s.started).Seconds())
}

func (s *StatusEngine) lineLocked(dots string) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(grey.Sprintf("%ds", s.elapsedLocked()))
	b.WriteString(" " + grey.Sprint(pointer) + " ")
	b.WriteString(s.entity)
	b.WriteString(" " + grey.Sprint(pointer) + " ")
	b.WriteString(s.message)
	if dots != "" {
		b.WriteString(" " + grey.Sprint(dots))
	}
	return b.String()
}

func (s *StatusEngine) redrawLocked() {
	fmt.Fprint(s.out, clearLine+s.lineLocked(strings.Repeat(".", s.dots)))
}

// printLocked writes a full line; in interactive mode the status line is
// cleared first and redrawn on the next tick.
func (s *StatusEngine) printLocked(line string) {
	if s.interactive && !s.stopped {
		fmt.Fprint(s.out, clearLine)
	}
	fmt.Fprintln(s.out, line)
}

func prefixed(name, data string) string {
	if name == "" {
		return data
	}
	return name + " " + pointer + " " + data
}
