package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/PanTrack/internal/config"
	"github.com/cjeanneret/PanTrack/internal/debug"
)

// maxBaudRate is the fastest line rate of the X series (4.5 Mbps).
const maxBaudRate = 4500000

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

// options holds the persistent flags shared by every subcommand.
type options struct {
	cfgPath string
	debug   int
	port    string
	baud    int
	mock    bool
	web     webPortFlag
}

func newRootCmd() *cobra.Command {
	opts := &options{web: webPortFlag{defaultPort: 8080}}

	root := &cobra.Command{
		Use:           "pantrack",
		Short:         "pan/tilt servo mount that follows a target from a pose stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.cfgPath, "config", filepath.Join("configs", "default.yaml"), "path to config file")
	f.IntVar(&opts.debug, "debug", -1, "debug level 0-4, overrides defaults.debug_level")
	f.StringVar(&opts.port, "port", "", "serial device, overrides bus.port")
	f.IntVar(&opts.baud, "baud", 0, "baud rate, overrides bus.baud_rate")
	f.BoolVar(&opts.mock, "mock", false, "use the in-memory servo bus")
	webFlag := f.VarPF(&opts.web, "web", "", "start web server on port; --web for default 8080, --web=8980 for custom port")
	webFlag.NoOptDefVal = strconv.Itoa(opts.web.defaultPort)

	root.AddCommand(
		newRunCmd(opts),
		newTrackCmd(opts),
		newCenterCmd(opts),
		newStatusCmd(opts),
		newTorqueCmd(opts),
	)
	return root
}

// cliOverrides holds the command line values that replace config values.
// Zero values (and a negative Debug) mean "use the config".
type cliOverrides struct {
	Port    string
	Baud    int
	Debug   int
	Mock    bool
	WebPort int
}

func (o *options) overrides() cliOverrides {
	return cliOverrides{
		Port:    o.port,
		Baud:    o.baud,
		Debug:   o.debug,
		Mock:    o.mock,
		WebPort: o.web.port(),
	}
}

// loadConfig reads the config file, applies the command line overrides and
// initializes the debug output.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	ov := o.overrides()
	if err := validateCLIOverrides(ov); err != nil {
		return nil, fmt.Errorf("invalid CLI override: %w", err)
	}
	applyOverrides(cfg, ov)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", o.cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.PrintStruct("Bus config", cfg.Bus)
	debug.PrintStruct("Pan axis", cfg.PanAxis())
	debug.PrintStruct("Tilt axis", cfg.TiltAxis())
	return cfg, nil
}

// validateCLIOverrides checks the override values that were set.
func validateCLIOverrides(ov cliOverrides) error {
	if ov.Debug > 4 || ov.Debug < -1 {
		return fmt.Errorf("debug must be between 0 and 4, got %d", ov.Debug)
	}
	if ov.Baud < 0 || ov.Baud > maxBaudRate {
		return fmt.Errorf("baud must be between 1 and %d, got %d", maxBaudRate, ov.Baud)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only set values are applied.
func applyOverrides(cfg *config.Config, ov cliOverrides) {
	if ov.Port != "" {
		cfg.Bus.Port = ov.Port
	}
	if ov.Baud > 0 {
		cfg.Bus.BaudRate = ov.Baud
	}
	if ov.Debug >= 0 {
		cfg.Defaults.DebugLevel = ov.Debug
	}
	if ov.Mock {
		cfg.Bus.Mock = true
	}
	if ov.WebPort > 0 {
		cfg.Web.Port = ov.WebPort
	}
}

// webPortFlag implements pflag.Value for --web: 0 = disabled, --web → 8080, --web=8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) Type() string { return "port" }

func (w *webPortFlag) port() int { return w.val }
