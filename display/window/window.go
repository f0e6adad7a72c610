// Package window shows frames in a desktop window and reads keys typed into it.
package window

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"

	"go.viam.com/rgbdcapture/logging"
)

const keyBuffer = 16

// Window is a display backed by a fyne window with one image per stream, laid out side by side.
type Window struct {
	app    fyne.App
	win    fyne.Window
	grid   *fyne.Container
	logger logging.Logger

	mu     sync.Mutex
	images map[string]*canvas.Image
	order  []string

	keys      chan rune
	closeOnce sync.Once
}

// New creates the window. It is shown by Run.
func New(title string, streams []string, logger logging.Logger) *Window {
	a := app.New()
	win := a.NewWindow(title)
	win.Resize(fyne.NewSize(1024, 424))

	w := &Window{
		app:    a,
		win:    win,
		grid:   container.NewGridWithColumns(len(streams)),
		logger: logger,
		images: map[string]*canvas.Image{},
		keys:   make(chan rune, keyBuffer),
	}
	for _, name := range streams {
		w.addStream(name)
	}
	win.SetContent(w.grid)

	win.Canvas().SetOnTypedRune(func(r rune) {
		select {
		case w.keys <- r:
		default:
			w.logger.Debugw("dropping key press, buffer full", "key", string(r))
		}
	})
	return w
}

func (w *Window) addStream(name string) *canvas.Image {
	placeholder := image.NewUniform(color.Black)
	img := canvas.NewImageFromImage(placeholder)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleFastest
	w.images[name] = img
	w.order = append(w.order, name)
	w.grid.Add(img)
	return img
}

// Run shows the window and blocks in the UI event loop until the window is closed or Close is called.
// It must be called from the main goroutine. onClose runs when the user closes the window.
func (w *Window) Run(onClose func()) {
	w.win.SetOnClosed(onClose)
	w.win.ShowAndRun()
}

// Show replaces the image of stream name.
func (w *Window) Show(name string, img image.Image) {
	w.mu.Lock()
	ci, ok := w.images[name]
	if !ok {
		ci = w.addStream(name)
		w.grid.Refresh()
	}
	ci.Image = img
	w.mu.Unlock()
	ci.Refresh()
}

// PollKey waits at most timeout for a key typed into the window.
func (w *Window) PollKey(ctx context.Context, timeout time.Duration) (rune, bool) {
	select {
	case r := <-w.keys:
		return r, true
	default:
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case r := <-w.keys:
		return r, true
	case <-timer.C:
		return 0, false
	case <-ctx.Done():
		return 0, false
	}
}

// Close quits the UI event loop.
func (w *Window) Close() error {
	w.closeOnce.Do(w.app.Quit)
	return nil
}
