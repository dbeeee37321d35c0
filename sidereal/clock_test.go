package sidereal

import (
	"math"
	"sync"
	"testing"
)

func TestTickPeriod(t *testing.T) {
	// 10 ms solar shortened by the sidereal ratio, in 1/16 us
	if TickPeriod != 159563 {
		t.Errorf("expected tick period 159563, got %d", TickPeriod)
	}
}

func TestTickAdvancesByOne(t *testing.T) {
	c := NewClock()
	c.UpdateLAST(1)
	start := c.Raw()
	for i := 0; i < 1000; i++ {
		c.Tick()
	}
	if got := c.Raw() - start; got != 1000 {
		t.Errorf("expected 1000 ticks, counter moved %d", got)
	}
	if c.Elapsed() != 1000 {
		t.Errorf("expected elapsed 1000, got %d", c.Elapsed())
	}
}

func TestTickConcurrentReaders(t *testing.T) {
	const tickers = 4
	const perTicker = 20000

	c := NewClock()
	stop := make(chan struct{})
	var readers sync.WaitGroup
	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			var last uint32
			for {
				select {
				case <-stop:
					return
				default:
				}
				now := c.Raw()
				if now < last {
					t.Errorf("counter went backwards: %d after %d", now, last)
					return
				}
				last = now
				if h := c.LAST(); h < 0 || h >= 24 {
					t.Errorf("LAST out of range: %v", h)
					return
				}
			}
		}()
	}

	var wg sync.WaitGroup
	for i := 0; i < tickers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < perTicker; n++ {
				c.Tick()
			}
		}()
	}
	wg.Wait()
	close(stop)
	readers.Wait()

	if got := c.Raw(); got != tickers*perTicker {
		t.Errorf("expected counter %d, got %d", tickers*perTicker, got)
	}
}

func TestCentisecondsWrapAtDay(t *testing.T) {
	c := NewClock()
	c.UpdateLAST(float64(CentisecondsPerDay-1) / 360000)
	if got := c.Centiseconds(); got != CentisecondsPerDay-1 {
		t.Fatalf("expected %d, got %d", CentisecondsPerDay-1, got)
	}
	c.Tick()
	if got := c.Centiseconds(); got != 0 {
		t.Errorf("expected wrap to 0, got %d", got)
	}
	if c.Elapsed() != 1 {
		t.Errorf("elapsed should continue across the wrap, got %d", c.Elapsed())
	}
}

func TestCounterModulusWrap(t *testing.T) {
	c := NewClock()
	c.counter.Store(counterModulus - 1)
	c.reference.Store(counterModulus - 2)
	c.Tick()
	if c.Raw() != 0 {
		t.Errorf("expected raw counter to wrap to 0, got %d", c.Raw())
	}
	if c.Elapsed() != 2 {
		t.Errorf("expected elapsed 2 across the modulus, got %d", c.Elapsed())
	}
}

func TestUpdateLAST(t *testing.T) {
	c := NewClock()
	c.UpdateLAST(13.5)
	if math.Abs(c.LAST()-13.5) > 1e-9 {
		t.Errorf("expected LAST 13.5, got %v", c.LAST())
	}
	if c.Reference() != 4860000 {
		t.Errorf("expected reference 4860000, got %d", c.Reference())
	}
	c.UpdateLAST(-1)
	if math.Abs(c.LAST()-23) > 1e-9 {
		t.Errorf("expected normalized LAST 23, got %v", c.LAST())
	}
}
