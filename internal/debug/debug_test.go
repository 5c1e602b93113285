package debug

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func withOutput(t *testing.T, lvl int) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	SetOutput(buf)
	Init(lvl)
	t.Cleanup(func() {
		Init(LevelOff)
		SetFaultHook(nil)
	})
	return buf
}

func TestInit_OffProducesNoOutput(t *testing.T) {
	buf := withOutput(t, LevelOff)

	Info("hello %d", 1)
	Live("live")
	Verbose("verbose")
	Trace("trace")
	Error(errors.New("boom"))

	if buf.Len() != 0 {
		t.Errorf("level 0 should not write anything, got %q", buf.String())
	}
}

func TestInfo_LevelGating(t *testing.T) {
	buf := withOutput(t, LevelInfo)

	Info("important %s", "thing")
	Live("should not appear")
	Verbose("should not appear either")

	out := buf.String()
	if !strings.Contains(out, "important thing") {
		t.Errorf("expected info message in output, got %q", out)
	}
	if strings.Contains(out, "should not appear") {
		t.Errorf("higher level messages leaked at level 1: %q", out)
	}
}

func TestTrace_EnabledAtLevelFour(t *testing.T) {
	buf := withOutput(t, LevelTrace)

	Packet("tx", []byte{0xFF, 0xFF, 0x01})
	GPIO("WritePin", 18, true)

	out := buf.String()
	if !strings.Contains(out, "FF FF 01") {
		t.Errorf("expected packet hex dump, got %q", out)
	}
	if !strings.Contains(out, "pin=18") {
		t.Errorf("expected gpio pin field, got %q", out)
	}
}

func TestIsEnabled(t *testing.T) {
	withOutput(t, LevelLive)

	if !IsEnabled(LevelInfo) || !IsEnabled(LevelLive) {
		t.Error("levels 1 and 2 should be enabled at level 2")
	}
	if IsEnabled(LevelVerbose) {
		t.Error("level 3 should not be enabled at level 2")
	}
	if Level() != LevelLive {
		t.Errorf("Level() = %d, want %d", Level(), LevelLive)
	}
}

func TestFault_HookRunsWhenOutputOff(t *testing.T) {
	withOutput(t, LevelOff)

	var gotComponent string
	var gotErr error
	SetFaultHook(func(component string, err error) {
		gotComponent = component
		gotErr = err
	})

	want := errors.New("no status packet")
	Fault("pan", want)

	if gotComponent != "pan" {
		t.Errorf("hook component = %q, want pan", gotComponent)
	}
	if !errors.Is(gotErr, want) {
		t.Errorf("hook error = %v, want %v", gotErr, want)
	}
}

func TestFault_Logged(t *testing.T) {
	buf := withOutput(t, LevelInfo)

	Fault("tilt", errors.New("overload"))

	out := buf.String()
	if !strings.Contains(out, "component=tilt") || !strings.Contains(out, "overload") {
		t.Errorf("expected fault line with component and error, got %q", out)
	}
}
