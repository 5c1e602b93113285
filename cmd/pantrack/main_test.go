package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cjeanneret/PanTrack/internal/config"
	"github.com/cjeanneret/PanTrack/internal/logic/motion"
	"github.com/cjeanneret/PanTrack/internal/logic/tracking"
)

// writeConfig writes a config into a temp configs/ directory.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "configs")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "bench.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const benchYAML = `
bus:
  port: /dev/ttyUSB0
defaults:
  mock_gpio: true
loop:
  tick_ms: 1
  slow_every: 3
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_Valid(t *testing.T) {
	cases := []cliOverrides{
		{Debug: -1},
		{Debug: 0},
		{Debug: 4, Baud: 57600},
		{Debug: -1, Baud: maxBaudRate, Port: "/dev/ttyACM0", Mock: true, WebPort: 8080},
	}
	for _, ov := range cases {
		if err := validateCLIOverrides(ov); err != nil {
			t.Errorf("validateCLIOverrides(%+v): %v", ov, err)
		}
	}
}

func TestValidateCLIOverrides_OutOfRange(t *testing.T) {
	cases := map[string]cliOverrides{
		"debug_too_large": {Debug: 5},
		"debug_negative":  {Debug: -2},
		"baud_negative":   {Debug: -1, Baud: -9600},
		"baud_too_large":  {Debug: -1, Baud: maxBaudRate + 1},
	}
	for name, ov := range cases {
		if err := validateCLIOverrides(ov); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

// ---------- applyOverrides ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Bus:      config.BusConfig{Port: "/dev/ttyUSB0", Protocol: 1},
		Defaults: config.DefaultsConfig{DebugLevel: 1},
	}
}

func TestApplyOverrides_Set(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, cliOverrides{Port: "/dev/ttyACM1", Baud: 57600, Debug: 3, Mock: true, WebPort: 9090})

	if cfg.Bus.Port != "/dev/ttyACM1" {
		t.Errorf("port = %q", cfg.Bus.Port)
	}
	if cfg.Bus.BaudRate != 57600 {
		t.Errorf("baud = %d", cfg.Bus.BaudRate)
	}
	if cfg.Defaults.DebugLevel != 3 {
		t.Errorf("debug = %d", cfg.Defaults.DebugLevel)
	}
	if !cfg.Bus.Mock {
		t.Error("mock not applied")
	}
	if cfg.Web.Port != 9090 {
		t.Errorf("web port = %d", cfg.Web.Port)
	}
}

func TestApplyOverrides_UnsetLeavesUnchanged(t *testing.T) {
	cfg := newTestConfig()
	want := *cfg
	applyOverrides(cfg, cliOverrides{Debug: -1})
	if cfg.Bus != want.Bus || cfg.Defaults != want.Defaults || cfg.Web != want.Web {
		t.Errorf("config changed: %+v", cfg)
	}
}

func TestApplyOverrides_DebugZeroSilences(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, cliOverrides{Debug: 0})
	if cfg.Defaults.DebugLevel != 0 {
		t.Errorf("debug = %d, want 0", cfg.Defaults.DebugLevel)
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_Ports(t *testing.T) {
	valid := map[string]int{"8080": 8080, "1": 1, "65535": 65535}
	for in, want := range valid {
		w := &webPortFlag{defaultPort: 8080}
		if err := w.Set(in); err != nil || w.port() != want {
			t.Errorf("Set(%q) = %v, port %d; want %d", in, err, w.port(), want)
		}
	}
	for _, in := range []string{"0", "65536", "-1", "abc", "8080.5"} {
		w := &webPortFlag{defaultPort: 8080}
		if err := w.Set(in); err == nil {
			t.Errorf("Set(%q) should fail, got nil", in)
		}
	}
}

func TestWebPortFlag_StringAndType(t *testing.T) {
	w := &webPortFlag{}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
	if w.Type() != "port" {
		t.Errorf("Type() = %q", w.Type())
	}
}

func TestRootCmd_WebFlag(t *testing.T) {
	for args, want := range map[string]int{"--web": 8080, "--web=8980": 8980} {
		root := newRootCmd()
		if err := root.PersistentFlags().Parse([]string{args}); err != nil {
			t.Fatalf("parse %s: %v", args, err)
		}
		if got := root.PersistentFlags().Lookup("web").Value.String(); got != strconv.Itoa(want) {
			t.Errorf("%s: web = %s, want %d", args, got, want)
		}
	}
}

// ---------- parseTarget ----------

func TestParseTarget(t *testing.T) {
	got, err := parseTarget("30", "-12.5")
	if err != nil {
		t.Fatal(err)
	}
	if got != (tracking.Target{PanDeg: 30, TiltDeg: -12.5}) {
		t.Errorf("target = %+v", got)
	}

	for _, args := range [][2]string{{"x", "0"}, {"0", ""}, {"NaN", "0"}, {"0", "+Inf"}, {"1e400", "0"}} {
		if _, err := parseTarget(args[0], args[1]); err == nil {
			t.Errorf("parseTarget(%q, %q) should fail", args[0], args[1])
		}
	}
}

// ---------- commands on the mock bus ----------

func TestStatusCmd(t *testing.T) {
	path := writeConfig(t, benchYAML)
	out, err := execute(t, "status", "--mock", "--config", path)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, want := range []string{"pan", "tilt", "511", "-0.18"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCmd_PortRequiredWithoutMock(t *testing.T) {
	path := writeConfig(t, "bus:\n  mock: false\ndefaults:\n  mock_gpio: true\n")
	if _, err := execute(t, "status", "--config", path); err == nil {
		t.Error("expected an error without a serial port")
	}
}

func TestTorqueCmd(t *testing.T) {
	path := writeConfig(t, benchYAML)
	out, err := execute(t, "torque", "off", "--mock", "--config", path)
	if err != nil {
		t.Fatalf("torque: %v", err)
	}
	if out != "torque off\n" {
		t.Errorf("output = %q", out)
	}
	if _, err := execute(t, "torque", "maybe", "--mock", "--config", path); err == nil {
		t.Error("expected an error for an invalid argument")
	}
}

func TestTrackCmd(t *testing.T) {
	path := writeConfig(t, benchYAML)
	if _, err := execute(t, "track", "30", "10", "--mock", "--config", path); err != nil {
		t.Fatalf("track: %v", err)
	}
	if _, err := execute(t, "center", "--mock", "--config", path); err != nil {
		t.Fatalf("center: %v", err)
	}
	if _, err := execute(t, "track", "30", "--mock", "--config", path); err == nil {
		t.Error("expected an error with one angle")
	}
}

func TestStepUntilSettled(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, benchYAML))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Bus.Mock = true
	hw, err := openHardware(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer hw.Close()

	// -90° tilt is below the window: the axis settles on the lower bound
	if err := stepUntilSettled(context.Background(), cfg, hw, tracking.Target{PanDeg: 45, TiltDeg: -90}, 5*time.Second); err != nil {
		t.Fatal(err)
	}
	snap := hw.ctrl.Snapshot()
	if snap.Tilt.Goal != 390 {
		t.Errorf("tilt goal = %d, want 390", snap.Tilt.Goal)
	}
	if d := snap.Pan.Goal - snap.Pan.Current; d > 3 || d < -3 {
		t.Errorf("pan current %d not within one step of %d", snap.Pan.Current, snap.Pan.Goal)
	}
}

func TestStepUntilSettled_Timeout(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, benchYAML))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Bus.Mock = true
	cfg.Loop.TickMs = 50
	hw, err := openHardware(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer hw.Close()

	err = stepUntilSettled(context.Background(), cfg, hw, tracking.Target{PanDeg: 170}, 120*time.Millisecond)
	if err == nil || !strings.Contains(err.Error(), "did not settle") {
		t.Errorf("err = %v, want a settle timeout", err)
	}
}

func TestRunTracking_Replay(t *testing.T) {
	replay := filepath.Join(t.TempDir(), "scene.jsonl")
	lines := strings.Join([]string{
		`{"object_id":"video_ball","action":"create","data":{"position":{"x":0,"y":0,"z":0},"radius":5}}`,
		`{"object_id":"cam-1","action":"create","displayName":"alice","data":{"object_type":"camera","position":{"x":1,"y":1.6,"z":1},"rotation":{"x":0,"y":0.2588190451,"z":0,"w":0.9659258263}}}`,
	}, "\n")
	if err := os.WriteFile(replay, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(writeConfig(t, benchYAML+"scene:\n  replay_file: "+replay+"\n  replay_interval_ms: 1\n"))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Bus.Mock = true

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := runTracking(ctx, cfg); err != nil {
		t.Errorf("runTracking() = %v, want nil on cancellation", err)
	}
}

func TestPrintAxes(t *testing.T) {
	var buf bytes.Buffer
	snap := motion.Snapshot{
		Pan:  motion.AxisState{Name: "pan", ID: 1, Current: 600, Goal: 640, AngleDeg: 31.2},
		Tilt: motion.AxisState{Name: "tilt", ID: 2, Current: 390, Goal: 390, AngleDeg: -42.75},
	}
	if err := printAxes(&buf, snap); err != nil {
		t.Fatalf("printAxes: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"AXIS", "ANGLE (DEG)", "GOAL", "pan", "600", "640", "31.20", "tilt", "-42.75"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if !strings.Contains(out, "pan") || strings.Index(out, "pan") > strings.Index(out, "tilt") {
		t.Errorf("pan row should come before tilt, got:\n%s", out)
	}
	if len(lines) < 4 {
		t.Errorf("expected a header and two rows, got %d lines", len(lines))
	}
}
