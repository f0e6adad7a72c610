// Package display defines where processed frames are shown and where interactive key presses come from.
package display

import (
	"context"
	"image"
	"sync"
	"time"
)

// Stream names used when showing frames.
const (
	StreamDepth = "depth"
	StreamColor = "registered"
)

// A Display shows images and reports key presses. Show must not block on the viewer.
type Display interface {
	Show(name string, img image.Image)
	// PollKey waits at most timeout for one key press.
	PollKey(ctx context.Context, timeout time.Duration) (rune, bool)
	Close() error
}

// Null discards images and never reports a key. It remembers the last image of each stream.
type Null struct {
	mu    sync.Mutex
	shown map[string]int
	last  map[string]image.Image
}

// NewNull returns an empty Null display.
func NewNull() *Null {
	return &Null{shown: map[string]int{}, last: map[string]image.Image{}}
}

// Show records img.
func (n *Null) Show(name string, img image.Image) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.shown[name]++
	n.last[name] = img
}

// PollKey returns immediately without a key.
func (n *Null) PollKey(ctx context.Context, timeout time.Duration) (rune, bool) {
	return 0, false
}

// Close does nothing.
func (n *Null) Close() error {
	return nil
}

// Shown is how many images of stream name were shown.
func (n *Null) Shown(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.shown[name]
}

// Last is the most recent image of stream name.
func (n *Null) Last(name string) image.Image {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.last[name]
}
