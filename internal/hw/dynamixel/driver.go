package dynamixel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/cjeanneret/PanTrack/internal/debug"
	"github.com/cjeanneret/PanTrack/internal/hw/gpio"
)

// DefaultTimeout bounds the wait for a status packet.
const DefaultTimeout = 20 * time.Millisecond

// Port is the subset of serial.Port the driver needs.
type Port interface {
	io.ReadWriteCloser
	SetMode(mode *serial.Mode) error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

var errTimeout = errors.New("read timeout")

// Driver exchanges instruction/status packets with the servos on one port.
type Driver struct {
	port     Port
	protocol Protocol
	mode     *serial.Mode
	timeout  time.Duration
	dir      *gpio.DirectionPin
}

// NewDriver wraps an already opened port.
func NewDriver(port Port, p Protocol) *Driver {
	return &Driver{
		port:     port,
		protocol: p,
		timeout:  DefaultTimeout,
	}
}

// OpenSerial opens the adapter at path with the given line options.
func OpenSerial(path string, opts PortOptions, p Protocol) (*Driver, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unsupported %s", p)
	}
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	d := NewDriver(port, p)
	d.mode = mode
	if err := port.SetReadTimeout(time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	debug.Info("Opened %s at %d baud (%s)", path, mode.BaudRate, p)
	return d, nil
}

// SetTimeout changes how long a transfer waits for its status packet.
func (d *Driver) SetTimeout(t time.Duration) {
	if t > 0 {
		d.timeout = t
	}
}

// SetDirectionPin makes the driver switch a half-duplex buffer around
// each transfer. A nil pin disables switching.
func (d *Driver) SetDirectionPin(pin *gpio.DirectionPin) {
	d.dir = pin
}

// Protocol returns the packet format in use.
func (d *Driver) Protocol() Protocol {
	return d.protocol
}

// SetBaud changes the line rate of the open port.
func (d *Driver) SetBaud(rate int) error {
	if rate <= 0 {
		return fmt.Errorf("invalid baud rate %d", rate)
	}
	mode := &serial.Mode{BaudRate: rate, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}
	if d.mode != nil {
		m := *d.mode
		m.BaudRate = rate
		mode = &m
	}
	if err := d.port.SetMode(mode); err != nil {
		return fmt.Errorf("set baud %d: %w", rate, err)
	}
	d.mode = mode
	debug.Info("Baud rate set to %d", rate)
	return nil
}

// Close releases the port.
func (d *Driver) Close() error {
	return d.port.Close()
}

// Transfer sends one instruction packet and waits for the status packet
// of the same servo. Every failure is a CommError; a non-zero error byte
// is returned as a DeviceError alongside the status.
func (d *Driver) Transfer(id, inst uint8, params []byte) (Status, error) {
	op := instName(inst)
	tx := BuildPacket(d.protocol, id, inst, params)

	if err := d.port.ResetInputBuffer(); err != nil {
		return Status{}, commErr(id, op, err)
	}
	if err := d.dir.Transmit(); err != nil {
		return Status{}, commErr(id, op, err)
	}
	debug.Packet("tx", tx)
	_, err := d.port.Write(tx)
	if rerr := d.dir.Receive(); err == nil {
		err = rerr
	}
	if err != nil {
		return Status{}, commErr(id, op, fmt.Errorf("write failed: %w", err))
	}

	if id == BroadcastID {
		return Status{ID: id}, nil
	}

	pkt, err := d.readStatus(tx)
	if err != nil {
		return Status{}, commErr(id, op, err)
	}
	debug.Packet("rx", pkt)

	st, err := ParseStatus(d.protocol, pkt)
	if err != nil {
		return Status{}, commErr(id, op, err)
	}
	if st.ID != id {
		return Status{}, commErr(id, op, fmt.Errorf("status from id %d", st.ID))
	}
	if st.Error != 0 {
		return st, &DeviceError{ID: id, Code: st.Error, Protocol: d.protocol}
	}
	return st, nil
}

// readStatus accumulates bytes until a complete packet other than the
// echo of tx is buffered, or the timeout expires.
func (d *Driver) readStatus(tx []byte) ([]byte, error) {
	deadline := time.Now().Add(d.timeout)
	var buf []byte
	tmp := make([]byte, 256)

	for time.Now().Before(deadline) {
		n, err := d.port.Read(tmp)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		buf = append(buf, tmp[:n]...)

		for {
			start, end, ok := findPacket(d.protocol, buf)
			if !ok {
				break
			}
			pkt := buf[start:end]
			if bytes.Equal(pkt, tx) {
				// adapters without direction control echo what they send
				buf = buf[end:]
				continue
			}
			return pkt, nil
		}
	}
	return nil, fmt.Errorf("%w, buffered: % X", errTimeout, buf)
}

// Ping checks that a servo answers and returns its model number.
func (d *Driver) Ping(id uint8) (uint16, error) {
	st, err := d.Transfer(id, InstPing, nil)
	if err != nil {
		return 0, err
	}
	// Protocol 1.0 status packets carry no model number.
	if len(st.Params) >= 2 {
		return binary.LittleEndian.Uint16(st.Params), nil
	}
	return 0, nil
}

// Read reads length bytes of the control table at addr.
func (d *Driver) Read(id uint8, addr uint16, length uint16) ([]byte, error) {
	st, err := d.Transfer(id, InstRead, readParams(d.protocol, addr, length))
	if err != nil {
		return nil, err
	}
	if len(st.Params) != int(length) {
		return nil, commErr(id, "read", fmt.Errorf("invalid length: %d", len(st.Params)))
	}
	return st.Params, nil
}

// Write writes data to the control table at addr.
func (d *Driver) Write(id uint8, addr uint16, data []byte) error {
	_, err := d.Transfer(id, InstWrite, writeParams(d.protocol, addr, data))
	return err
}

// ReadUint reads a little-endian register of width 1, 2 or 4 bytes.
func (d *Driver) ReadUint(id uint8, addr uint16, width int) (uint32, error) {
	data, err := d.Read(id, addr, uint16(width))
	if err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint32(data[0]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(data)), nil
	case 4:
		return binary.LittleEndian.Uint32(data), nil
	}
	return 0, fmt.Errorf("unsupported register width %d", width)
}

// WriteUint writes a little-endian register of width 1, 2 or 4 bytes.
func (d *Driver) WriteUint(id uint8, addr uint16, width int, val uint32) error {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, val)
	switch width {
	case 1, 2, 4:
		return d.Write(id, addr, buf[:width])
	}
	return fmt.Errorf("unsupported register width %d", width)
}

func instName(inst uint8) string {
	switch inst {
	case InstPing:
		return "ping"
	case InstRead:
		return "read"
	case InstWrite:
		return "write"
	}
	return fmt.Sprintf("inst 0x%02X", inst)
}
