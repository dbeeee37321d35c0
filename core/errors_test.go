package core

import (
	"errors"
	"testing"
)

func TestCommandErrorErr(t *testing.T) {
	if CeNone.Err() != nil {
		t.Error("CeNone should not be an error")
	}
	err := CeSlewErrBelowHorizon.Err()
	var ce CommandError
	if !errors.As(err, &ce) || ce != CeSlewErrBelowHorizon {
		t.Errorf("errors.As = %v", ce)
	}
	if err.Error() != "slew rejected: below horizon" {
		t.Errorf("message = %q", err.Error())
	}
	if got := CommandError(200).String(); got != "error 200" {
		t.Errorf("unknown code = %q", got)
	}
}
