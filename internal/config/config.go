package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/PanTrack/internal/hw/dynamixel"
	"github.com/cjeanneret/PanTrack/internal/logic/geometry"
	"github.com/cjeanneret/PanTrack/internal/logic/motion"
)

// MaxConfigFileBytes bounds the size of a configuration file.
const MaxConfigFileBytes = 64 * 1024

// BusConfig describes the servo bus and its serial adapter.
type BusConfig struct {
	dynamixel.PortOptions `yaml:",inline"` // baud_rate, data_bits, stop_bits, parity

	Port                 string `yaml:"port"`     // e.g. /dev/ttyUSB0
	Protocol             int    `yaml:"protocol"` // 1 (AX/MX legacy) or 2 (X series)
	TimeoutMs            int    `yaml:"timeout_ms"`
	DirectionPin         int    `yaml:"direction_pin"` // BCM pin of the half-duplex buffer. 0 = not used.
	Mock                 bool   `yaml:"mock"`          // in-memory bus, no hardware
	ExtendedPositionMode bool   `yaml:"extended_position_mode"`

	// Registers overrides the control table of the protocol's servo family.
	Registers *dynamixel.ControlTable `yaml:"registers,omitempty"`
}

// AxisConfig describes one axis. Pointers distinguish "unset" from 0.
type AxisConfig struct {
	ID              int      `yaml:"id"`
	RawMax          int      `yaml:"raw_max"`
	InvertOffsetDeg *float64 `yaml:"invert_offset_deg"`
	LowerBound      *int     `yaml:"lower_bound"`
	UpperBound      *int     `yaml:"upper_bound"`
	StepSize        int      `yaml:"step_size"` // raw units per tick
}

// LoopConfig sets the control loop cadence.
type LoopConfig struct {
	TickMs    int `yaml:"tick_ms"`    // fast phase period
	SlowEvery int `yaml:"slow_every"` // selection on every Nth tick
}

// SceneConfig describes the pose stream.
type SceneConfig struct {
	URL              string `yaml:"url"`  // websocket endpoint, empty = no live scene
	Name             string `yaml:"name"` // scene to subscribe to
	ReferenceObject  string `yaml:"reference_object"`
	CandidateType    string `yaml:"candidate_type"`
	ReplayFile       string `yaml:"replay_file"` // JSON-lines capture used instead of the live scene
	ReplayIntervalMs int    `yaml:"replay_interval_ms"`
	ReplayLoop       bool   `yaml:"replay_loop"`
	EulerSequence    string `yaml:"euler_sequence"` // XYZ (intrinsic) or xyz (extrinsic)
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// WebConfig configures the status server.
type WebConfig struct {
	Port int `yaml:"port"` // 0 = disabled
}

// Config aggregates all application configuration.
type Config struct {
	Bus      BusConfig      `yaml:"bus"`
	Pan      AxisConfig     `yaml:"pan"`
	Tilt     AxisConfig     `yaml:"tilt"`
	Loop     LoopConfig     `yaml:"loop"`
	Scene    SceneConfig    `yaml:"scene"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Web      WebConfig      `yaml:"web"`
}

// ValidateConfigPath accepts only .yaml files located directly in a
// configs/ directory, without any ".." element.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	for _, elem := range strings.Split(filepath.ToSlash(path), "/") {
		if elem == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	if err := ValidateConfigPath(path); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Bus.Protocol == 0 {
		c.Bus.Protocol = int(dynamixel.Protocol1)
	}
	if c.Bus.TimeoutMs <= 0 {
		c.Bus.TimeoutMs = 20
	}
	if c.Bus.BaudRate <= 0 {
		c.Bus.BaudRate = dynamixel.DefaultBaudRate
	}

	c.Pan.applyDefaults(1, 20, 1020)
	c.Tilt.applyDefaults(2, 390, 660)

	if c.Loop.TickMs <= 0 {
		c.Loop.TickMs = 5
	}
	if c.Loop.SlowEvery <= 0 {
		c.Loop.SlowEvery = 15
	}

	if c.Scene.ReferenceObject == "" {
		c.Scene.ReferenceObject = "video_ball"
	}
	if c.Scene.CandidateType == "" {
		c.Scene.CandidateType = "camera"
	}
	if c.Scene.ReplayIntervalMs <= 0 {
		c.Scene.ReplayIntervalMs = 50
	}
	if c.Scene.EulerSequence == "" {
		c.Scene.EulerSequence = string(geometry.IntrinsicXYZ)
	}
}

func (a *AxisConfig) applyDefaults(id, lower, upper int) {
	if a.ID == 0 {
		a.ID = id
	}
	if a.RawMax == 0 {
		a.RawMax = 1023 // AX-12 position range
	}
	if a.InvertOffsetDeg == nil {
		offset := geometry.FullRevolution / 2
		a.InvertOffsetDeg = &offset
	}
	if a.LowerBound == nil {
		a.LowerBound = &lower
	}
	if a.UpperBound == nil {
		a.UpperBound = &upper
	}
	if a.StepSize == 0 {
		a.StepSize = 3
	}
}

// Validate rejects values the hardware cannot honour.
func (c *Config) Validate() error {
	if !dynamixel.Protocol(c.Bus.Protocol).Valid() {
		return fmt.Errorf("bus.protocol must be 1 or 2, got %d", c.Bus.Protocol)
	}
	if !c.Bus.Mock && c.Bus.Port == "" {
		return fmt.Errorf("bus.port is required unless bus.mock is set")
	}
	if c.Bus.DirectionPin < 0 {
		return fmt.Errorf("bus.direction_pin must be >= 0, got %d", c.Bus.DirectionPin)
	}
	if _, err := c.Bus.PortOptions.Normalize(); err != nil {
		return fmt.Errorf("bus: %w", err)
	}
	if c.Bus.ExtendedPositionMode && c.ControlTable().OperatingMode == 0 {
		return fmt.Errorf("bus.extended_position_mode needs an operating_mode register (protocol 2)")
	}
	if w := c.ControlTable().PositionWidth; w != 2 && w != 4 {
		return fmt.Errorf("bus.registers.position_width must be 2 or 4, got %d", w)
	}

	for _, a := range []struct {
		name string
		cfg  AxisConfig
	}{{"pan", c.Pan}, {"tilt", c.Tilt}} {
		if a.cfg.ID < 0 || a.cfg.ID >= int(dynamixel.BroadcastID) {
			return fmt.Errorf("%s.id must be between 0 and %d, got %d", a.name, dynamixel.BroadcastID-1, a.cfg.ID)
		}
		if err := a.cfg.Motion(a.name).Validate(); err != nil {
			return err
		}
	}
	if c.Pan.ID == c.Tilt.ID {
		return fmt.Errorf("pan.id and tilt.id must differ, both are %d", c.Pan.ID)
	}

	if c.Loop.TickMs <= 0 {
		return fmt.Errorf("loop.tick_ms must be > 0, got %d", c.Loop.TickMs)
	}
	if c.Loop.SlowEvery <= 0 {
		return fmt.Errorf("loop.slow_every must be > 0, got %d", c.Loop.SlowEvery)
	}
	if _, err := geometry.ParseEulerSequence(c.Scene.EulerSequence); err != nil {
		return fmt.Errorf("scene.euler_sequence: %w", err)
	}
	if c.Scene.URL != "" && c.Scene.ReplayFile != "" {
		return fmt.Errorf("scene.url and scene.replay_file are mutually exclusive")
	}
	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port must be between 0 and 65535, got %d", c.Web.Port)
	}
	return nil
}

// Motion converts the axis section into the controller's description.
// Defaults must have been applied.
func (a AxisConfig) Motion(name string) motion.AxisConfig {
	cfg := motion.AxisConfig{
		Name:        name,
		ID:          uint8(a.ID),
		Calibration: geometry.Calibration{RawMax: a.RawMax},
		StepSize:    a.StepSize,
	}
	if a.InvertOffsetDeg != nil {
		cfg.Calibration.InvertOffsetDeg = *a.InvertOffsetDeg
	}
	if a.LowerBound != nil {
		cfg.Bounds.Lower = *a.LowerBound
	}
	if a.UpperBound != nil {
		cfg.Bounds.Upper = *a.UpperBound
	}
	return cfg
}

// PanAxis returns the pan axis description.
func (c *Config) PanAxis() motion.AxisConfig { return c.Pan.Motion("pan") }

// TiltAxis returns the tilt axis description.
func (c *Config) TiltAxis() motion.AxisConfig { return c.Tilt.Motion("tilt") }

// BusProtocol returns the configured protocol version.
func (c *Config) BusProtocol() dynamixel.Protocol { return dynamixel.Protocol(c.Bus.Protocol) }

// ControlTable returns the register map: the protocol default, with any
// register set in bus.registers taking precedence.
func (c *Config) ControlTable() dynamixel.ControlTable {
	table := dynamixel.DefaultTable(c.BusProtocol())
	if r := c.Bus.Registers; r != nil {
		if r.TorqueEnable != 0 {
			table.TorqueEnable = r.TorqueEnable
		}
		if r.GoalPosition != 0 {
			table.GoalPosition = r.GoalPosition
		}
		if r.PresentPosition != 0 {
			table.PresentPosition = r.PresentPosition
		}
		if r.OperatingMode != 0 {
			table.OperatingMode = r.OperatingMode
		}
		if r.PositionWidth != 0 {
			table.PositionWidth = r.PositionWidth
		}
	}
	return table
}

// BusTimeout returns the status packet timeout.
func (c *Config) BusTimeout() time.Duration {
	return time.Duration(c.Bus.TimeoutMs) * time.Millisecond
}

// TickInterval returns the fast phase period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Loop.TickMs) * time.Millisecond
}

// ReplayInterval returns the delay between two replayed messages.
func (c *Config) ReplayInterval() time.Duration {
	return time.Duration(c.Scene.ReplayIntervalMs) * time.Millisecond
}

// EulerSequence returns the parsed Euler convention.
func (c *Config) EulerSequence() geometry.EulerSequence {
	seq, err := geometry.ParseEulerSequence(c.Scene.EulerSequence)
	if err != nil {
		return geometry.IntrinsicXYZ
	}
	return seq
}
