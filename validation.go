package lneto

import "errors"

// ValidateFlags configures optional, stricter checks performed by [Validator].
type ValidateFlags uint8

const (
	// ValidateEvilBit enables checking of the evil bit defined in RFC3514.
	ValidateEvilBit ValidateFlags = 1 << iota
)

// Validator accumulates validation errors for frame decoders across the
// ethernet/arp/ipv4 packages. Frame.ValidateSize-style methods take a
// *Validator so callers can batch several checks and inspect the
// accumulated result once instead of short-circuiting on the first error.
type Validator struct {
	flags ValidateFlags
	err   error
}

// NewValidator returns a Validator configured with flags.
func NewValidator(flags ValidateFlags) Validator {
	return Validator{flags: flags}
}

// Flags returns the validation flags configured on v.
func (v *Validator) Flags() ValidateFlags { return v.flags }

// SetFlags sets the validation flags on v.
func (v *Validator) SetFlags(flags ValidateFlags) { v.flags = flags }

// AddError accumulates a non-nil validation error. Multiple calls join
// their errors so [Validator.Err] can report everything found.
func (v *Validator) AddError(err error) {
	if err == nil {
		return
	}
	if v.err == nil {
		v.err = err
		return
	}
	v.err = errors.Join(v.err, err)
}

// HasError reports whether any error has been accumulated since the last reset.
func (v *Validator) HasError() bool { return v.err != nil }

// Err returns the accumulated error, or nil if none was added.
func (v *Validator) Err() error { return v.err }

// ErrPop returns the accumulated error and clears it, equivalent to
// calling [Validator.Err] followed by [Validator.ResetErr].
func (v *Validator) ErrPop() error {
	err := v.err
	v.err = nil
	return err
}

// ResetErr clears the accumulated error so v can be reused.
func (v *Validator) ResetErr() { v.err = nil }
