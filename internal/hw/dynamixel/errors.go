package dynamixel

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrComm matches every communication failure: the bus could not be
	// written, no (or a malformed) status packet came back.
	ErrComm = errors.New("communication failure")
	// ErrDevice matches a status packet whose error byte is non-zero.
	ErrDevice = errors.New("device fault")
)

// CommError describes a communication failure with one servo.
type CommError struct {
	ID  uint8
	Op  string
	Err error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("id %d %s: %s: %v", e.ID, e.Op, ErrComm, e.Err)
}

func (e *CommError) Unwrap() []error { return []error{ErrComm, e.Err} }

func commErr(id uint8, op string, err error) error {
	return &CommError{ID: id, Op: op, Err: err}
}

// DeviceError carries the error byte reported by a servo.
type DeviceError struct {
	ID       uint8
	Code     uint8
	Protocol Protocol
}

var protocol1Faults = []struct {
	bit  uint8
	name string
}{
	{0x01, "input voltage"},
	{0x02, "angle limit"},
	{0x04, "overheating"},
	{0x08, "range"},
	{0x10, "checksum"},
	{0x20, "overload"},
	{0x40, "instruction"},
}

var protocol2Faults = map[uint8]string{
	0x01: "result fail",
	0x02: "instruction error",
	0x03: "crc error",
	0x04: "data range error",
	0x05: "data length error",
	0x06: "data limit error",
	0x07: "access error",
}

// Faults returns the human readable fault names encoded in Code.
func (e *DeviceError) Faults() []string {
	var out []string
	if e.Protocol == Protocol2 {
		if e.Code&0x80 != 0 {
			out = append(out, "hardware alert")
		}
		if name, ok := protocol2Faults[e.Code&0x7F]; ok {
			out = append(out, name)
		}
		return out
	}
	for _, f := range protocol1Faults {
		if e.Code&f.bit != 0 {
			out = append(out, f.name)
		}
	}
	return out
}

func (e *DeviceError) Error() string {
	faults := e.Faults()
	if len(faults) == 0 {
		return fmt.Sprintf("id %d: %s: code 0x%02X", e.ID, ErrDevice, e.Code)
	}
	return fmt.Sprintf("id %d: %s: %s (0x%02X)", e.ID, ErrDevice, strings.Join(faults, ", "), e.Code)
}

func (e *DeviceError) Is(target error) bool { return target == ErrDevice }

// Kind classifies an error returned by the bus as "comm", "device" or "other".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrDevice):
		return "device"
	case errors.Is(err, ErrComm):
		return "comm"
	default:
		return "other"
	}
}
