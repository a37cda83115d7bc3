package clock_test

import (
	"testing"
	"time"

	"github.com/calvinalkan/tk-desk/internal/clock"
)

var epoch = time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)

func Test_Fake_Sleep_Returns_When_Advanced_Past_Deadline(t *testing.T) {
	t.Parallel()

	c := clock.Fake(epoch)
	done := make(chan struct{})

	go func() {
		c.Sleep(100 * time.Millisecond)
		close(done)
	}()

	c.WaitForTimers(1)
	c.Advance(99 * time.Millisecond)

	select {
	case <-done:
		t.Fatal("sleep returned before deadline")
	default:
	}

	c.Advance(time.Millisecond)
	<-done

	if got := c.Now(); !got.Equal(epoch.Add(100 * time.Millisecond)) {
		t.Fatalf("now = %v, want %v", got, epoch.Add(100*time.Millisecond))
	}
}

func Test_Fake_AfterFunc_Fires_Once_When_Advanced(t *testing.T) {
	t.Parallel()

	c := clock.Fake(epoch)
	calls := 0

	c.AfterFunc(time.Second, func() { calls++ })

	c.Advance(2 * time.Second)
	c.Advance(2 * time.Second)

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	if c.PendingCount() != 0 {
		t.Fatalf("pending = %d, want 0", c.PendingCount())
	}
}

func Test_Fake_AfterFunc_Does_Not_Fire_When_Stopped(t *testing.T) {
	t.Parallel()

	c := clock.Fake(epoch)
	fired := false

	timer := c.AfterFunc(time.Second, func() { fired = true })

	if !timer.Stop() {
		t.Fatal("Stop() = false, want true for pending timer")
	}

	c.Advance(time.Minute)

	if fired {
		t.Fatal("stopped timer fired")
	}

	if timer.Stop() {
		t.Fatal("second Stop() = true, want false")
	}
}

func Test_Fake_AfterFunc_Runs_Immediately_When_Duration_Not_Positive(t *testing.T) {
	t.Parallel()

	c := clock.Fake(epoch)
	fired := false

	c.AfterFunc(0, func() { fired = true })

	if !fired {
		t.Fatal("zero-duration AfterFunc did not run synchronously")
	}
}

func Test_Fake_Set_Moves_Now_When_Called(t *testing.T) {
	t.Parallel()

	c := clock.Fake(epoch)
	later := epoch.Add(72 * time.Hour)

	c.Set(later)

	if got := c.Now(); !got.Equal(later) {
		t.Fatalf("now = %v, want %v", got, later)
	}
}
