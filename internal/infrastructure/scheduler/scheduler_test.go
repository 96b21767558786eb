package scheduler

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestScheduler(t *testing.T) {
	Convey("Given an interval scheduler", t, func() {
		fixed := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

		Convey("Next should be one interval after now", func() {
			s := NewInterval(300 * time.Second)
			s.now = func() time.Time { return fixed }

			So(s.Next().Equal(fixed.Add(300*time.Second)), ShouldBeTrue)
		})

		Convey("Sub-second intervals should be raised to one second", func() {
			s := NewInterval(10 * time.Millisecond)
			s.now = func() time.Time { return fixed }

			So(s.Next().Equal(fixed.Add(time.Second)), ShouldBeTrue)
		})

		Convey("Mid-second starts should round up, never down", func() {
			s := NewInterval(time.Second)
			s.now = func() time.Time { return fixed.Add(999 * time.Millisecond) }

			So(s.Next().Equal(fixed.Add(2*time.Second)), ShouldBeTrue)
		})

		Convey("Wait should last at least the interval even just before a second boundary", func() {
			s := NewInterval(time.Second)
			boundary := time.Now().Truncate(time.Second).Add(time.Second)
			time.Sleep(time.Until(boundary.Add(-5 * time.Millisecond)))

			start := time.Now()
			err := s.Wait(context.Background())

			So(err, ShouldBeNil)
			So(time.Since(start), ShouldBeGreaterThanOrEqualTo, time.Second)
			So(time.Since(start), ShouldBeLessThan, 2100*time.Millisecond)
		})

		Convey("Wait should stop early when the context is cancelled", func() {
			s := NewInterval(time.Hour)
			ctx, cancel := context.WithCancel(context.Background())
			go func() {
				time.Sleep(50 * time.Millisecond)
				cancel()
			}()

			start := time.Now()
			err := s.Wait(ctx)

			So(err, ShouldEqual, context.Canceled)
			So(time.Since(start), ShouldBeLessThan, time.Second)
		})
	})
}
