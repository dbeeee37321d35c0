// Package sim runs the mount firmware on the host against simulated
// hardware, in real time and behind the same framed link as a board.
//
// The core timer list is process wide, so only one Simulator may exist at
// a time.
package sim

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"time"

	"golang.org/x/time/rate"

	"gomount/config"
	"gomount/core"
	"gomount/encoder"
	"gomount/host/logging"
	"gomount/mount"
	"gomount/protocol"
)

// Options tunes a Simulator
type Options struct {
	// Step is the loop period of Run and the slice Advance polls at.
	// Defaults to 1ms.
	Step time.Duration

	// TelemetryRate is the number of unsolicited snapshots per second.
	// Zero sends none.
	TelemetryRate float64

	// OnTelemetry sees every snapshot the simulator publishes
	OnTelemetry func(protocol.Telemetry)

	// Now seeds the observatory clock. Defaults to time.Now.
	Now func() time.Time

	Logger logging.Logger
}

// Simulator is a mount on simulated GPIO, SPI and encoders
type Simulator struct {
	opts    Options
	logger  logging.Logger
	manager *mount.Manager
	gpio    *GPIO
	spi     *TMCBus
	limiter *rate.Limiter

	encoderIndex [2]int64

	input  *protocol.FifoBuffer
	output *portOutput
}

// New builds and starts a simulated mount. The link is idle until Run.
func New(cfg *config.MountConfig, opts Options) (*Simulator, error) {
	if opts.Step <= 0 {
		opts.Step = time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Noop()
	}

	m, err := mount.NewManagerWithConfig(cfg)
	if err != nil {
		return nil, err
	}

	s := &Simulator{
		opts:    opts,
		logger:  opts.Logger,
		manager: m,
		gpio:    NewGPIO(),
		spi:     NewTMCBus(),
		input:   protocol.NewFifoBuffer(1024),
		output:  &portOutput{},
	}
	if opts.TelemetryRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.TelemetryRate), 1)
	}

	core.SetDebugWriter(logging.DebugSink(s.logger))
	core.SetDebugEnabled(true)

	hw := mount.Hardware{GPIO: s.gpio, SPI: s.spi, Now: opts.Now}
	for i, ac := range []*config.AxisConfig{&cfg.Axis1, &cfg.Axis2} {
		if ac.EncoderCountsPerDegree > 0 {
			hw.Encoders[i] = &encoder.Simulated{Position: s.encoderPosition(i, ac.EncoderCountsPerRadian())}
		}
	}
	if err := m.Initialize(hw); err != nil {
		return nil, err
	}
	a1, a2 := m.Telescope().Axes()
	s.encoderIndex = [2]int64{a1.IndexSteps(), a2.IndexSteps()}
	if err := m.Start(); err != nil {
		m.Stop()
		return nil, err
	}

	t := m.AttachTransport(s.output)
	t.SetErrorCallback(func(cmdID uint16, err error) {
		s.logger.Warn(context.Background(), "command failed",
			logging.String("command", protocol.CommandName(cmdID)), logging.Err(err))
	})
	return s, nil
}

// encoderPosition reads an axis as an absolute encoder would: fixed to the
// motor from the power-on home, blind to syncs
func (s *Simulator) encoderPosition(index int, countsPerRadian float64) func() int32 {
	return func() int32 {
		a1, a2 := s.manager.Telescope().Axes()
		a := a1
		if index == 1 {
			a = a2
		}
		steps := a.MotorCoordinateSteps() + s.encoderIndex[index]
		return int32(math.Round(float64(steps) / a.StepsPerMeasure() * countsPerRadian))
	}
}

// Manager returns the simulated mount
func (s *Simulator) Manager() *mount.Manager {
	return s.manager
}

// GPIO returns the simulated pin bank
func (s *Simulator) GPIO() *GPIO {
	return s.gpio
}

// SPI returns the simulated TMC bus
func (s *Simulator) SPI() *TMCBus {
	return s.spi
}

// Close stops the mount and releases the core timers
func (s *Simulator) Close() {
	s.manager.Stop()
	core.SetDebugEnabled(false)
}

// Advance runs the mount forward by d. Every timer fires at its own wake
// time and the telescope is polled once per Step.
func (s *Simulator) Advance(d time.Duration) {
	for d > 0 {
		slice := s.opts.Step
		if d < slice {
			slice = d
		}
		d -= slice
		runTimers(core.GetTime() + core.TimerFromUS(uint32(slice/time.Microsecond)))
		s.manager.Poll()
	}
	s.publish()
}

// runTimers moves the core clock to target one wake time at a time
func runTimers(target uint32) {
	for {
		wake, ok := core.NextWake()
		if !ok || core.TimeBefore(target, wake) {
			break
		}
		if core.TimeBefore(core.GetTime(), wake) {
			core.SetTime(wake)
		}
		core.ProcessTimers()
	}
	core.SetTime(target)
}

func (s *Simulator) publish() {
	if s.limiter == nil || !s.limiter.Allow() {
		return
	}
	tel := s.manager.Telemetry()
	if t := s.manager.Transport(); t != nil {
		if err := t.SendTelemetry(&tel); err != nil {
			s.logger.Warn(context.Background(), "telemetry", logging.Err(err))
		}
	}
	if s.opts.OnTelemetry != nil {
		s.opts.OnTelemetry(tel)
	}
}

// receive feeds link bytes to the mount transport
func (s *Simulator) receive(data []byte) {
	t := s.manager.Transport()
	for len(data) > 0 {
		n := s.input.Write(data)
		data = data[n:]
		t.Receive(s.input)
		if n == 0 && s.input.Free() == 0 {
			// no frame fits; drop the garbage
			s.input.Reset()
		}
	}
}

// Run serves the link on port until ctx is done or the peer hangs up, then
// closes port. It returns nil in both cases.
func (s *Simulator) Run(ctx context.Context, port io.ReadWriteCloser) error {
	done := make(chan struct{})
	defer close(done)
	defer port.Close()

	rx := make(chan []byte, 16)
	rxErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := port.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case rx <- data:
				case <-done:
					return
				}
			}
			if err != nil {
				rxErr <- err
				return
			}
		}
	}()

	s.output.attach(port)
	defer s.output.attach(nil)
	s.manager.Transport().Reset()
	s.input.Reset()
	s.logger.Info(ctx, "link up")

	ticker := time.NewTicker(s.opts.Step)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "link closed")
			return nil

		case err := <-rxErr:
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				s.logger.Info(ctx, "peer hung up")
				return nil
			}
			return err

		case data := <-rx:
			s.receive(data)

		case now := <-ticker.C:
			s.Advance(now.Sub(last))
			last = now
		}

		if err := s.output.flush(); err != nil {
			return err
		}
	}
}

// portOutput collects frames between flushes. Without a port it discards.
type portOutput struct {
	buf  bytes.Buffer
	port io.Writer
}

func (o *portOutput) Output(data []byte) {
	if o.port != nil {
		o.buf.Write(data)
	}
}

func (o *portOutput) attach(w io.Writer) {
	o.port = w
	o.buf.Reset()
}

func (o *portOutput) flush() error {
	if o.port == nil || o.buf.Len() == 0 {
		return nil
	}
	_, err := o.port.Write(o.buf.Bytes())
	o.buf.Reset()
	return err
}
