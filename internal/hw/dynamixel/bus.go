package dynamixel

import (
	"fmt"
	"time"

	"github.com/cjeanneret/PanTrack/internal/debug"
)

// ControlTable holds the register addresses used by the mount.
type ControlTable struct {
	TorqueEnable    uint16 `yaml:"torque_enable"`
	GoalPosition    uint16 `yaml:"goal_position"`
	PresentPosition uint16 `yaml:"present_position"`
	OperatingMode   uint16 `yaml:"operating_mode"` // 0 = not available
	PositionWidth   int    `yaml:"position_width"` // 2 or 4 bytes
}

var (
	// TableProtocol1 covers AX-12/AX-18/MX (Protocol 1.0 firmware).
	TableProtocol1 = ControlTable{
		TorqueEnable:    24,
		GoalPosition:    30,
		PresentPosition: 36,
		PositionWidth:   2,
	}
	// TableXSeries covers XL430/XM430/XC430 and MX (Protocol 2.0 firmware).
	TableXSeries = ControlTable{
		TorqueEnable:    64,
		GoalPosition:    116,
		PresentPosition: 132,
		OperatingMode:   11,
		PositionWidth:   4,
	}
)

// Operating modes (Protocol 2.0).
const (
	OpModeVelocity         = 1
	OpModePosition         = 3
	OpModeExtendedPosition = 4
)

// DefaultTable returns the control table matching a protocol version.
func DefaultTable(p Protocol) ControlTable {
	if p == Protocol2 {
		return TableXSeries
	}
	return TableProtocol1
}

// Bus exposes the position/torque operations of the servos on one driver.
type Bus struct {
	drv   *Driver
	table ControlTable
}

// NewBus binds a driver to a control table.
func NewBus(drv *Driver, table ControlTable) *Bus {
	if table.PositionWidth == 0 {
		table.PositionWidth = DefaultTable(drv.Protocol()).PositionWidth
	}
	return &Bus{drv: drv, table: table}
}

// Driver returns the underlying packet driver.
func (b *Bus) Driver() *Driver {
	return b.drv
}

// SetBaud changes the line rate.
func (b *Bus) SetBaud(rate int) error {
	return b.drv.SetBaud(rate)
}

// Ping checks a servo and returns its model number (0 on Protocol 1.0).
func (b *Bus) Ping(id uint8) (uint16, error) {
	return b.drv.Ping(id)
}

// ReadPosition returns the present raw position of a servo.
func (b *Bus) ReadPosition(id uint8) (int, error) {
	v, err := b.drv.ReadUint(id, b.table.PresentPosition, b.table.PositionWidth)
	if err != nil {
		return 0, err
	}
	if b.table.PositionWidth == 4 {
		// extended position mode reports signed multi-turn values
		return int(int32(v)), nil
	}
	return int(v), nil
}

// WritePosition writes the goal position register.
func (b *Bus) WritePosition(id uint8, raw int) error {
	return b.drv.WriteUint(id, b.table.GoalPosition, b.table.PositionWidth, uint32(int32(raw)))
}

// SetTorque enables or disables holding torque.
func (b *Bus) SetTorque(id uint8, enabled bool) error {
	var v byte
	if enabled {
		v = 1
	}
	return b.drv.Write(id, b.table.TorqueEnable, []byte{v})
}

// SetOperatingMode switches a Protocol 2.0 servo to mode: torque off,
// write the mode (EEPROM), torque back on.
func (b *Bus) SetOperatingMode(id uint8, mode uint8) error {
	if b.table.OperatingMode == 0 {
		return fmt.Errorf("id %d: operating mode not supported by control table", id)
	}
	if err := b.SetTorque(id, false); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	debug.Verbose("Setting operating mode %d on id %d", mode, id)
	if err := b.drv.Write(id, b.table.OperatingMode, []byte{mode}); err != nil {
		return fmt.Errorf("set operating mode: %w", err)
	}
	// EEPROM write delay
	time.Sleep(200 * time.Millisecond)
	if err := b.SetTorque(id, true); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	return nil
}

// Close releases the port.
func (b *Bus) Close() error {
	return b.drv.Close()
}
