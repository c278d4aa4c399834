package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/components/internal/ir"
)

// steppedStatus returns a non-interactive engine whose clock the test
// moves with advance.
func steppedStatus(t *testing.T, debug bool) (*StatusEngine, *bytes.Buffer, func(time.Duration)) {
	t.Helper()
	withoutColor(t)

	buf := &bytes.Buffer{}
	s := NewStatusEngine(buf, "site", debug, false)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	return s, buf, func(d time.Duration) { now = now.Add(d) }
}

func TestStatusEngine_Lines(t *testing.T) {
	s, buf, advance := steppedStatus(t, false)

	s.Start("Connecting")
	advance(2 * time.Second)
	s.Status("Deploying")
	s.Status("Deploying")
	s.Debug("hidden without debug")
	s.Log("note")
	advance(1500 * time.Millisecond)
	assert.Equal(t, 3, s.Elapsed())
	s.Stop(StopDone, "Deployed")
	s.Stop(StopError, "only the first stop prints")

	want := strings.Join([]string{
		"  0s › site › Connecting",
		"  2s › site › Deploying",
		"  note",
		"  3s › site › Deployed",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestStatusEngine_DeliverEvents(t *testing.T) {
	s, buf, _ := steppedStatus(t, true)

	s.Start("Deploying")
	child := ir.Identity{Name: "site.db"}
	s.Deliver(ir.Event{Identity: child, Kind: ir.EventDebug, Data: "opening"})
	s.Deliver(ir.Event{Identity: child, Kind: ir.EventLog, Data: "2 tables"})
	s.Deliver(ir.Event{Identity: child, Kind: ir.EventStatus, Data: "Migrating"})
	s.Deliver(ir.Event{Kind: ir.EventEcho, Data: "ignored"})
	s.Stop(StopError, "boom")

	want := strings.Join([]string{
		"  0s › site › Deploying",
		"  site.db › opening",
		"  site.db › 2 tables",
		"  0s › site › Migrating",
		"  0s › site › boom",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestStatusEngine_Cancel(t *testing.T) {
	s, buf, _ := steppedStatus(t, false)

	s.Start("Deploying")
	s.Stop(StopCancel, "")
	assert.True(t, strings.HasSuffix(buf.String(), "› site › canceled\n"))

	s.Status("after stop")
	assert.NotContains(t, buf.String(), "after stop")
}

func TestStatusEngine_InteractiveRedraws(t *testing.T) {
	withoutColor(t)
	buf := &bytes.Buffer{}
	s := NewStatusEngine(buf, "site", false, true)

	s.Start("Deploying")
	s.Log("note")
	time.Sleep(3 * redrawPeriod)
	s.Stop(StopDone, "Deployed")

	out := buf.String()
	assert.Contains(t, out, clearLine+"  0s › site › Deploying")
	assert.Contains(t, out, clearLine+"  note\n")
	assert.Contains(t, out, "Deploying .", "dots animate while running")
	assert.True(t, strings.HasSuffix(out, clearLine+"  0s › site › Deployed\n"))
}
