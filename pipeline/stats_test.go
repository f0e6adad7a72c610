package pipeline

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/rgbdcapture/logging"
)

func TestStatsReport(t *testing.T) {
	mock := clock.NewMock()
	s := NewStats(mock, 0, logging.NewTestLogger(t))
	test.That(t, s.Clock(), test.ShouldEqual, mock)

	for i := 1; i <= 10; i++ {
		s.Observe(time.Duration(i) * time.Millisecond)
	}
	s.Drop()
	s.Save()
	s.Save()
	mock.Add(2 * time.Second)

	sum := s.Report()
	test.That(t, sum.Frames, test.ShouldEqual, 10)
	test.That(t, sum.FPS, test.ShouldAlmostEqual, 5)
	test.That(t, sum.P50Millis, test.ShouldAlmostEqual, 5)
	test.That(t, sum.P95Millis, test.ShouldAlmostEqual, 9.5)
	test.That(t, sum.MaxMillis, test.ShouldAlmostEqual, 10)
	test.That(t, sum.Dropped, test.ShouldEqual, 1)
	test.That(t, sum.Saved, test.ShouldEqual, 2)

	test.That(t, s.Report(), test.ShouldResemble, Summary{})
}

func TestStatsPeriodicLog(t *testing.T) {
	mock := clock.NewMock()
	logger, logs := logging.NewObservedTestLogger(t)
	s := NewStats(mock, time.Second, logger)
	s.Start()
	defer s.Close()

	s.Observe(3 * time.Millisecond)
	mock.Add(time.Second)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, logs.FilterMessage("capture stats").Len(), test.ShouldBeGreaterThanOrEqualTo, 1)
	})
}

func TestStatsDisabled(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	s := NewStats(nil, 0, logger)
	s.Start()
	s.Close()
	test.That(t, logs.FilterMessage("capture stats").Len(), test.ShouldEqual, 0)
}
