// Package terminal is a display for headless use: frames are counted and periodically summarized in the
// log, and keys are read from the controlling terminal.
package terminal

import (
	"context"
	"image"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/term"

	"go.viam.com/rgbdcapture/logging"
)

// summaryEvery is how many frames of a stream pass between log summaries.
const summaryEvery = 30

const (
	// raw mode delivers these as bytes instead of signals.
	ctrlC = 0x03
	ctrlD = 0x04

	quitKey = 'q'
)

// Terminal reads single key presses from an input stream.
type Terminal struct {
	logger logging.Logger

	fd       int
	oldState *term.State

	keys chan rune

	mu    sync.Mutex
	shown map[string]uint64
}

// New reads keys from in. When in is a terminal it is switched to raw mode so keys arrive without Enter;
// Close restores it.
func New(in *os.File, logger logging.Logger) (*Terminal, error) {
	t := newTerminal(logger)
	t.fd = int(in.Fd())
	if term.IsTerminal(t.fd) {
		oldState, err := term.MakeRaw(t.fd)
		if err != nil {
			return nil, errors.Wrap(err, "failed to put terminal into raw mode")
		}
		t.oldState = oldState
	}
	goutils.PanicCapturingGo(func() { t.readKeys(in) })
	return t, nil
}

// NewFromReader reads keys from r.
func NewFromReader(r io.Reader, logger logging.Logger) *Terminal {
	t := newTerminal(logger)
	goutils.PanicCapturingGo(func() { t.readKeys(r) })
	return t
}

func newTerminal(logger logging.Logger) *Terminal {
	return &Terminal{
		logger: logger,
		fd:     -1,
		keys:   make(chan rune, 16),
		shown:  map[string]uint64{},
	}
}

// readKeys exits when r reaches EOF or fails. Reading stdin cannot be interrupted, so for a terminal it
// lives until the process exits. Ctrl-C and Ctrl-D quit like 'q'.
func (t *Terminal) readKeys(r io.Reader) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			key := rune(buf[0])
			if key == ctrlC || key == ctrlD {
				t.logger.Debugw("interrupt key", "byte", buf[0])
				key = quitKey
			}
			select {
			case t.keys <- key:
			default:
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				t.logger.Debugw("stopped reading keys", "error", err)
			}
			return
		}
	}
}

// Show counts img and logs a summary every few frames.
func (t *Terminal) Show(name string, img image.Image) {
	t.mu.Lock()
	t.shown[name]++
	n := t.shown[name]
	t.mu.Unlock()
	if n%summaryEvery == 1 {
		b := img.Bounds()
		t.logger.Debugw("frame", "stream", name, "count", n, "width", b.Dx(), "height", b.Dy())
	}
}

// PollKey waits at most timeout for a key.
func (t *Terminal) PollKey(ctx context.Context, timeout time.Duration) (rune, bool) {
	select {
	case r := <-t.keys:
		return r, true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-t.keys:
		return r, true
	case <-timer.C:
		return 0, false
	case <-ctx.Done():
		return 0, false
	}
}

// Shown is how many images of stream name were shown.
func (t *Terminal) Shown(name string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.shown[name]
}

// Close restores the terminal mode.
func (t *Terminal) Close() error {
	if t.oldState == nil {
		return nil
	}
	err := term.Restore(t.fd, t.oldState)
	t.oldState = nil
	return errors.Wrap(err, "failed to restore terminal")
}
