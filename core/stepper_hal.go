package core

// StepperBackend defines the hardware abstraction for one axis' step and
// direction outputs. The axis drives the pulse itself: it raises the step
// line on one callback and lowers it on the next.
type StepperBackend interface {
	// Init configures the pins. Inversion is applied by the backend.
	Init(stepPin, dirPin GPIOPin, invertStep, invertDir bool) error

	// SetStep drives the step line (true = active)
	// Called from the periodic callback, must not block
	SetStep(active bool)

	// SetDirection sets the direction output
	// reverse: true = reverse, false = forward
	SetDirection(reverse bool)

	// Stop returns the outputs to idle
	Stop()

	// GetName returns backend implementation name
	GetName() string
}

// GPIOStepper drives step/dir through the registered GPIODriver
type GPIOStepper struct {
	stepPin    GPIOPin
	dirPin     GPIOPin
	invertStep bool
	invertDir  bool
}

// NewGPIOStepper returns an uninitialised GPIO backend
func NewGPIOStepper() *GPIOStepper {
	return &GPIOStepper{}
}

func (s *GPIOStepper) Init(stepPin, dirPin GPIOPin, invertStep, invertDir bool) error {
	s.stepPin, s.dirPin = stepPin, dirPin
	s.invertStep, s.invertDir = invertStep, invertDir

	gpio := MustGPIO()
	if err := gpio.ConfigureOutput(stepPin); err != nil {
		return err
	}
	if err := gpio.ConfigureOutput(dirPin); err != nil {
		return err
	}
	gpio.SetPin(stepPin, invertStep)
	gpio.SetPin(dirPin, invertDir)
	return nil
}

func (s *GPIOStepper) SetStep(active bool) {
	gpioDriver.SetPin(s.stepPin, active != s.invertStep)
}

func (s *GPIOStepper) SetDirection(reverse bool) {
	gpioDriver.SetPin(s.dirPin, reverse != s.invertDir)
}

func (s *GPIOStepper) Stop() {
	gpioDriver.SetPin(s.stepPin, s.invertStep)
}

func (s *GPIOStepper) GetName() string {
	return "gpio"
}
