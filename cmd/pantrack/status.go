package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/cjeanneret/PanTrack/internal/logic/motion"
)

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "read the present position of both axes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			hw, err := openHardware(cfg)
			if err != nil {
				return err
			}
			defer hw.Close()

			return printAxes(cmd.OutOrStdout(), hw.ctrl.Snapshot())
		},
	}
}

// printAxes renders a controller snapshot as a table.
func printAxes(w io.Writer, snap motion.Snapshot) error {
	table := tablewriter.NewWriter(w)
	table.Header("axis", "id", "raw", "angle (deg)", "goal")
	for _, a := range []motion.AxisState{snap.Pan, snap.Tilt} {
		err := table.Append(
			a.Name,
			strconv.Itoa(int(a.ID)),
			strconv.Itoa(a.Current),
			fmt.Sprintf("%.2f", a.AngleDeg),
			strconv.Itoa(a.Goal),
		)
		if err != nil {
			return fmt.Errorf("%s row: %w", a.Name, err)
		}
	}
	return table.Render()
}

func newTorqueCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:       "torque on|off",
		Short:     "enable or disable holding torque on both axes",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled := args[0] == "on"
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			hw, err := openHardware(cfg)
			if err != nil {
				return err
			}
			hw.keepTorque = true
			defer hw.Close()

			if err := hw.ctrl.SetTorque(enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "torque %s\n", args[0])
			return nil
		},
	}
}
