package core

import "math"

// Itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func Itoa(n int64) string {
	if n < 0 {
		return "-" + utoa64(uint64(-n))
	}
	return utoa64(uint64(n))
}

// Utoa converts an unsigned integer to a string
func Utoa(n uint32) string {
	return utoa64(uint64(n))
}

func utoa64(n uint64) string {
	if n == 0 {
		return "0"
	}

	var buf [20]byte
	pos := len(buf)
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[pos:])
}

// Ftoa formats f with a fixed number of decimals, rounding half away from zero
func Ftoa(f float64, decimals int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}

	sign := ""
	if f < 0 {
		sign = "-"
		f = -f
	}

	scale := uint64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	scaled := uint64(f*float64(scale) + 0.5)
	whole := utoa64(scaled / scale)
	if decimals <= 0 {
		return sign + whole
	}

	frac := utoa64(scaled % scale)
	for len(frac) < decimals {
		frac = "0" + frac
	}
	return sign + whole + "." + frac
}
