package pipeline

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/rgbdcapture/components/rgbd"
	"go.viam.com/rgbdcapture/display"
	"go.viam.com/rgbdcapture/rimage"
)

// fakeAligner returns the same owned buffers on every call, like a real registration does.
type fakeAligner struct {
	undistorted *rimage.FloatDepthMap
	registered  *image.NRGBA
	calls       int
	failOn      map[int]bool
}

// newFakeAligner returns a 4x2 scene:
//
//	depth  1500  2500  +Inf     0
//	     1999.6  3000   100  2000
//
// with no color at (2, 1).
func newFakeAligner() *fakeAligner {
	undistorted := rimage.NewFloatDepthMap(4, 2)
	copy(undistorted.Data(), []float32{
		1500, 2500, float32(math.Inf(1)), 0,
		1999.6, 3000, 100, 2000,
	})
	registered := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			registered.SetNRGBA(x, y, color.NRGBA{uint8(10 * (x + 1)), uint8(y + 1), 7, 255})
		}
	}
	registered.SetNRGBA(2, 1, color.NRGBA{})
	return &fakeAligner{undistorted: undistorted, registered: registered, failOn: map[int]bool{}}
}

func (fa *fakeAligner) Apply(color, depth *rgbd.Frame) (*rimage.FloatDepthMap, *image.NRGBA, error) {
	fa.calls++
	if fa.failOn[fa.calls] {
		return nil, nil, errors.New("registration failed")
	}
	return fa.undistorted, fa.registered, nil
}

func testFrameSet() rgbd.FrameSet {
	return rgbd.FrameSet{
		rgbd.FrameColor: rgbd.NewFrame(8, 4, 4, rgbd.FormatBGRX),
		rgbd.FrameIr:    rgbd.NewFrame(4, 2, 4, rgbd.FormatFloat),
		rgbd.FrameDepth: rgbd.NewFrame(4, 2, 4, rgbd.FormatFloat),
	}
}

// scriptedListener hands out n frame sets and then blocks until ctx is done.
type scriptedListener struct {
	mu       sync.Mutex
	n        int
	waits    int
	releases int
	err      error
	onWait   func(call int)
}

func (sl *scriptedListener) WaitForNewFrame(ctx context.Context) (rgbd.FrameSet, error) {
	sl.mu.Lock()
	sl.waits++
	call := sl.waits
	onWait := sl.onWait
	sl.mu.Unlock()
	if onWait != nil {
		onWait(call)
	}
	if sl.err != nil {
		return nil, sl.err
	}
	if call > sl.n {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return testFrameSet(), nil
}

func (sl *scriptedListener) Release(set rgbd.FrameSet) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.releases++
}

func (sl *scriptedListener) counts() (int, int) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.waits, sl.releases
}

// keyDisplay reports one scripted key per poll.
type keyDisplay struct {
	*display.Null
	keys   []rune
	onShow func(name string)
}

func newKeyDisplay(keys string) *keyDisplay {
	return &keyDisplay{Null: display.NewNull(), keys: []rune(keys)}
}

func (kd *keyDisplay) Show(name string, img image.Image) {
	kd.Null.Show(name, img)
	if kd.onShow != nil {
		kd.onShow(name)
	}
}

func (kd *keyDisplay) PollKey(ctx context.Context, timeout time.Duration) (rune, bool) {
	if len(kd.keys) == 0 {
		return 0, false
	}
	k := kd.keys[0]
	kd.keys = kd.keys[1:]
	if k == ' ' {
		return 0, false
	}
	return k, true
}

// memSink keeps saved indexes and can fail chosen calls.
type memSink struct {
	indexes []uint64
	calls   int
	failOn  map[int]bool
}

func (ms *memSink) Save(depth *rimage.DepthMap, color *image.NRGBA, index uint64) error {
	ms.calls++
	if ms.failOn[ms.calls] {
		return errors.New("disk full")
	}
	ms.indexes = append(ms.indexes, index)
	return nil
}
