package tmr

import (
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// User-profile sub-operations for opSetUserProfile (0x9D), discovered in
// tmr_serial_reader.h and exercised by samples/SavedConfig.c — the
// distilled spec mentions this only in passing (§6 "Persisted state").
const (
	profileOpSave    = 0x01
	profileOpRestore = 0x02
	profileOpVerify  = 0x03
	profileOpClear   = 0x04

	profileConfigAll = 0x01
)

// SavedProfile is the host-side cache this driver persists alongside the
// module's own saved configuration: values RestoreProfile can't simply
// re-query (the parameter presence bitsets, which were learned by
// probing) and the ones Connect doesn't reset to a fixed default
// (command timeout, default tag-op antenna/protocol). Tagged like
// bc/urtypes.Output's cbor fields.
type SavedProfile struct {
	CommandTimeoutMS int64    `cbor:"0,keyasint"`
	TagOpAntenna     uint8    `cbor:"1,keyasint"`
	TagOpProtocol    Protocol `cbor:"2,keyasint"`
	Present          []uint64 `cbor:"3,keyasint"`
	Confirmed        []uint64 `cbor:"4,keyasint"`
}

// SaveProfile commits the module's current configuration to its
// non-volatile user profile.
func (r *Reader) SaveProfile(timeout time.Duration) error {
	_, err := r.command(opSetUserProfile, []byte{profileOpSave, profileConfigAll}, timeout)
	return err
}

// VerifyProfile asks the module to validate its saved user profile
// without applying it.
func (r *Reader) VerifyProfile(timeout time.Duration) error {
	_, err := r.command(opSetUserProfile, []byte{profileOpVerify, profileConfigAll}, timeout)
	return err
}

// ClearProfile erases the module's saved user profile, reverting it to
// firmware defaults on the next boot.
func (r *Reader) ClearProfile(timeout time.Duration) error {
	_, err := r.command(opSetUserProfile, []byte{profileOpClear, profileConfigAll}, timeout)
	return err
}

// RestoreProfile applies the module's saved user profile. Restoring
// resets the module (possibly at a different baud rate than the current
// session), so RestoreProfile re-runs the boot sequence afterward and
// then cbor-encodes the host-side cache RestoreProfile can't recover by
// re-querying (see SavedProfile) to w, for the caller to persist
// alongside the module's own saved state.
func (r *Reader) RestoreProfile(w io.Writer, timeout time.Duration) error {
	if _, err := r.command(opSetUserProfile, []byte{profileOpRestore, profileConfigAll}, timeout); err != nil {
		return err
	}
	r.connected = false
	r.powerMode = powerModeInvalid
	if err := r.Connect(); err != nil {
		return err
	}
	saved := SavedProfile{
		CommandTimeoutMS: r.commandTimeout.Milliseconds(),
		TagOpAntenna:     r.tagOpParams.Antenna,
		TagOpProtocol:    r.tagOpParams.Protocol,
		Present:          append([]uint64(nil), r.present[:]...),
		Confirmed:        append([]uint64(nil), r.confirmed[:]...),
	}
	enc, err := cbor.Marshal(saved)
	if err != nil {
		return err
	}
	_, err = w.Write(enc)
	return err
}

// LoadSavedProfile decodes a SavedProfile previously written by
// RestoreProfile and applies its host-side fields to r. It does not
// touch the module; call after Connect.
func (r *Reader) LoadSavedProfile(data []byte) error {
	var saved SavedProfile
	if err := cbor.Unmarshal(data, &saved); err != nil {
		return err
	}
	r.commandTimeout = time.Duration(saved.CommandTimeoutMS) * time.Millisecond
	r.tagOpParams.Antenna = saved.TagOpAntenna
	r.tagOpParams.Protocol = saved.TagOpProtocol
	copy(r.present[:], saved.Present)
	copy(r.confirmed[:], saved.Confirmed)
	return nil
}
