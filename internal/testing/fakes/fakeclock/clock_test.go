package fakeclock

import (
	"testing"
	"time"
)

func TestClock_SleepAdvances(t *testing.T) {
	initial := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(initial)

	c.Sleep(150 * time.Millisecond)
	c.Sleep(150 * time.Millisecond)

	want := initial.Add(300 * time.Millisecond)
	if got := c.Now(); !got.Equal(want) {
		t.Errorf("Now() = %v, want %v", got, want)
	}
	if got := c.Slept(); len(got) != 2 {
		t.Errorf("Slept() recorded %d calls, want 2", len(got))
	}
}

func TestClock_After(t *testing.T) {
	initial := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := New(initial)

	ch := c.After(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("After() fired before the deadline")
	default:
	}

	c.Advance(6 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After() did not fire past the deadline")
	}
}

func TestClock_AfterZero(t *testing.T) {
	c := New(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) should fire immediately")
	}
}
