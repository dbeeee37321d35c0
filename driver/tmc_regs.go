package driver

// Register map shared by the TMC2130 and TMC5160 in step/dir mode
// Based on the TMC2130 datasheet Rev. 1.15 and TMC5160 Rev. 1.17
const (
	regGCONF        = 0x00 // Global configuration flags
	regGSTAT        = 0x01 // Global status flags
	regIOIN         = 0x04 // Reads the state of all input pins
	regGLOBALSCALER = 0x0B // TMC5160 only: global current scaler
	regIHOLD_IRUN   = 0x10 // Driver current control
	regTPOWERDOWN   = 0x11 // Delay after standstill
	regTSTEP        = 0x12 // Measured time between two steps (read only)
	regTPWMTHRS     = 0x13 // Upper velocity for StealthChop
	regCHOPCONF     = 0x6C // Chopper configuration
	regCOOLCONF     = 0x6D // CoolStep configuration
	regDRV_STATUS   = 0x6F // Driver status flags
	regPWMCONF      = 0x70 // StealthChop PWM configuration
)

const writeFlag = 0x80

// GCONF bits
const (
	gconfEnPWMMode = 1 << 2 // StealthChop voltage PWM mode
)

// SPI status byte returned with every datagram
const (
	spiStatusResetFlag   = 1 << 0
	spiStatusDriverError = 1 << 1
	spiStatusStandstill  = 1 << 3
)

// CHOPCONF fields
const (
	chopconfMRESShift = 24
	chopconfMRESMask  = 0x0F << chopconfMRESShift
	chopconfIntpol    = 1 << 28
	chopconfVsense    = 1 << 17

	// TOFF=3 HSTRT=4 HEND=1 TBL=2 from the datasheet quick start
	chopconfDefault = 0x000100C3
)

// IHOLD_IRUN fields
const (
	iholdShift      = 0
	irunShift       = 8
	iholdDelayShift = 16
)

// DRV_STATUS bits
const (
	drvStatusS2VSA = 1 << 12 // TMC5160 short to supply A
	drvStatusS2VSB = 1 << 13 // TMC5160 short to supply B
	drvStatusOT    = 1 << 25
	drvStatusOTPW  = 1 << 26
	drvStatusS2GA  = 1 << 27
	drvStatusS2GB  = 1 << 28
	drvStatusOLA   = 1 << 29
	drvStatusOLB   = 1 << 30
	drvStatusSTST  = 1 << 31
)
