package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Debug levels
const (
	LevelOff     = 0 // No output
	LevelInfo    = 1 // Important info (startup, seeded positions, bus faults)
	LevelLive    = 2 // Live info (target changes, selection results)
	LevelVerbose = 3 // Verbose (per-tick axis state, config details)
	LevelTrace   = 4 // Trace (bus packets, GPIO, very low level)
)

var (
	mu        sync.Mutex
	level     int
	logger    *logrus.Logger
	output    io.Writer = os.Stdout
	faultHook func(component string, err error)
)

// Init initializes the debug system with a level (0-4).
// 0 = no output
// 1 = important info (startup, seeded positions, bus faults)
// 2 = live info (target updates, accepted candidates)
// 3 = verbose (axis state, config, selection details)
// 4 = trace (bus packets, GPIO, very low level)
func Init(debugLevel int) {
	mu.Lock()
	defer mu.Unlock()

	level = debugLevel
	logger = nil
	if level > LevelOff {
		logger = logrus.New()
		logger.SetOutput(output)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000000",
		})
		logger.SetLevel(logrusLevel(level))
	}
}

func logrusLevel(l int) logrus.Level {
	switch {
	case l >= LevelTrace:
		return logrus.TraceLevel
	case l >= LevelVerbose:
		return logrus.DebugLevel
	default:
		return logrus.InfoLevel
	}
}

// SetOutput redirects debug output (e.g. to also feed the web status stream).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	output = w
	if logger != nil {
		logger.SetOutput(w)
	}
}

// SetFaultHook registers a callback invoked by Fault, whatever the level.
func SetFaultHook(fn func(component string, err error)) {
	mu.Lock()
	defer mu.Unlock()
	faultHook = fn
}

// Level returns the current debug level.
func Level() int {
	return level
}

// IsEnabled returns true if debug level is >= the requested level.
func IsEnabled(minLevel int) bool {
	return level >= minLevel
}

func entry(component string) *logrus.Entry {
	return logger.WithField("component", component)
}

// --- Level 1 functions (Info): important info ---

// Info prints a level 1 message (important info).
func Info(format string, args ...interface{}) {
	if level >= LevelInfo && logger != nil {
		entry("pantrack").Infof(format, args...)
	}
}

// Value prints a named value in formatted form (level 1).
func Value(name string, value interface{}) {
	if level >= LevelInfo && logger != nil {
		logger.WithField(name, value).Info("value")
	}
}

// --- Level 2 functions (Live): real-time info ---

// Live prints a level 2 message (live info).
func Live(format string, args ...interface{}) {
	if level >= LevelLive && logger != nil {
		entry("loop").Infof(format, args...)
	}
}

// Target prints a tracked target update (level 2).
func Target(source string, panDeg, tiltDeg float64) {
	if level >= LevelLive && logger != nil {
		logger.WithFields(logrus.Fields{
			"component": "loop",
			"source":    source,
			"pan_deg":   fmt.Sprintf("%.2f", panDeg),
			"tilt_deg":  fmt.Sprintf("%.2f", tiltDeg),
		}).Info("target updated")
	}
}

// --- Level 3 functions (Verbose): everything ---

// Verbose prints a level 3 message (verbose).
func Verbose(format string, args ...interface{}) {
	if level >= LevelVerbose && logger != nil {
		entry("pantrack").Debugf(format, args...)
	}
}

// PrintStruct prints a struct in formatted form (level 3).
func PrintStruct(name string, v interface{}) {
	if level >= LevelVerbose && logger != nil {
		entry("pantrack").Debugf("%s: %+v", name, v)
	}
}

// Section prints a section separator (level 3).
func Section(name string) {
	if level >= LevelVerbose && logger != nil {
		logger.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
		logger.Debugf("  %s", name)
		logger.Debug("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	}
}

// Step prints a numbered startup step (level 3).
func Step(num int, description string) {
	if level >= LevelVerbose && logger != nil {
		entry("pantrack").Debugf("Step %d: %s", num, description)
	}
}

// --- Level 4 functions (Trace): very low level ---

// Trace prints a level 4 message.
func Trace(format string, args ...interface{}) {
	if level >= LevelTrace && logger != nil {
		entry("pantrack").Tracef(format, args...)
	}
}

// GPIO prints a GPIO operation (level 4).
func GPIO(operation string, pin int, value interface{}) {
	if level >= LevelTrace && logger != nil {
		logger.WithFields(logrus.Fields{
			"component": "gpio",
			"pin":       pin,
			"value":     value,
		}).Trace(operation)
	}
}

// Packet prints a raw bus packet in hex (level 4).
func Packet(direction string, pkt []byte) {
	if level >= LevelTrace && logger != nil {
		logger.WithFields(logrus.Fields{
			"component": "bus",
			"dir":       direction,
		}).Tracef("% X", pkt)
	}
}

// --- General functions ---

// Error prints a debug error (level 1+).
func Error(err error) {
	if level >= LevelInfo && logger != nil {
		entry("pantrack").Error(err)
	}
}

// Fault reports a non-fatal hardware fault for a component (an axis name,
// the bus, the scene link). The fault hook runs even when output is off.
func Fault(component string, err error) {
	mu.Lock()
	hook := faultHook
	mu.Unlock()

	if hook != nil {
		hook(component, err)
	}
	if level >= LevelInfo && logger != nil {
		entry(component).WithError(err).Error("fault")
	}
}
