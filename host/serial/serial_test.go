package serial

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
)

type pipePort struct {
	net.Conn
}

func (pipePort) Flush() error { return nil }

func fastBackOff(maxElapsed time.Duration) backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval: time.Millisecond,
		Multiplier:      1,
		MaxInterval:     time.Millisecond,
		MaxElapsedTime:  maxElapsed,
		Clock:           backoff.SystemClock}
}

func TestOpenRetrySucceedsAfterFailures(t *testing.T) {
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	attempts := 0
	port, err := openRetry(func() (Port, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("no such device")
		}
		return pipePort{a}, nil
	}, fastBackOff(time.Second))
	if err != nil {
		t.Fatalf("openRetry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if port == nil {
		t.Fatal("nil port")
	}
}

func TestOpenRetryGivesUp(t *testing.T) {
	errMissing := errors.New("no such device")
	attempts := 0
	_, err := openRetry(func() (Port, error) {
		attempts++
		return nil, errMissing
	}, fastBackOff(20*time.Millisecond))
	if !errors.Is(err, errMissing) {
		t.Errorf("err = %v, want %v", err, errMissing)
	}
	if attempts < 2 {
		t.Errorf("attempts = %d, expected retries", attempts)
	}
}

func TestOpenNilConfig(t *testing.T) {
	if _, err := Open(nil); !errors.Is(err, ErrNilConfig) {
		t.Errorf("Open(nil) = %v", err)
	}
	if _, err := OpenRetry(nil); !errors.Is(err, ErrNilConfig) {
		t.Errorf("OpenRetry(nil) = %v", err)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	cfg := DefaultConfig("/dev/gomount-does-not-exist")
	if _, err := Open(cfg); err == nil {
		t.Error("expected error opening a missing device")
	}
}
