package fakeclock

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestClock_Now(t *testing.T) {
	c := New(epoch)

	if got := c.Now(); !got.Equal(epoch) {
		t.Errorf("Now() = %v, want %v", got, epoch)
	}
}

func TestClock_Advance(t *testing.T) {
	c := New(epoch)

	c.Advance(5 * time.Minute)

	expected := epoch.Add(5 * time.Minute)
	if got := c.Now(); !got.Equal(expected) {
		t.Errorf("Now() after Advance = %v, want %v", got, expected)
	}
}

func TestTicker_FiresOnAdvance(t *testing.T) {
	c := New(epoch)
	tk := c.NewTicker(time.Minute)
	defer tk.Stop()

	c.Advance(30 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("ticker fired before its interval")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case got := <-tk.C():
		if !got.Equal(epoch.Add(time.Minute)) {
			t.Errorf("tick time = %v, want %v", got, epoch.Add(time.Minute))
		}
	default:
		t.Fatal("ticker did not fire after its interval")
	}
}

func TestTicker_Tick(t *testing.T) {
	c := New(epoch)
	a := c.NewTicker(time.Hour)
	b := c.NewTicker(time.Hour)

	c.Tick()

	for i, tk := range []interface{ C() <-chan time.Time }{a, b} {
		select {
		case <-tk.C():
		default:
			t.Errorf("ticker %d did not fire on Tick", i)
		}
	}
}

func TestTicker_Stop(t *testing.T) {
	c := New(epoch)
	tk := c.NewTicker(time.Second)

	if got := c.Tickers(); got != 1 {
		t.Fatalf("Tickers() = %d, want 1", got)
	}

	tk.Stop()
	c.Tick()
	c.Advance(time.Minute)

	select {
	case <-tk.C():
		t.Error("stopped ticker fired")
	default:
	}
	if got := c.Tickers(); got != 0 {
		t.Errorf("Tickers() after Stop = %d, want 0", got)
	}
}
