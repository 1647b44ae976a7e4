package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/h3ct1cl3o/weighgrind/pkg/hal"
)

func NewCalibrationCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "calibration",
		Short:   "Show the scale calibration",
		GroupID: gAdvanced,
		Long: `Show the calibration factor in use and the one stored on the device.

Calibration itself is done on the grinder: double-click the encoder on the
main screen, put a known weight on the scale, turn the knob until the
reading matches, then click to save.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := apiClient.GetCalibration()
			if err != nil {
				return err
			}

			cmd.Printf("  Factor in use: %s\n", bold("%.2f", info.Factor))
			cmd.Printf("  Tare offset: %s\n", bold("%.1f", info.Offset))
			if info.StoredValid {
				cmd.Printf("  Stored factor: %s\n", bold("%.2f", info.Stored))
			} else {
				cmd.Printf("  Stored factor: %s (using default %.2f)\n", bool2Text(false), info.Stored)
			}
			cmd.Printf("  Legacy integer factor: %s\n", bold("%d", info.Legacy))
			return nil
		},
	}
}

func NewLoopStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "loop-stats",
		Short:   "Show control loop timing",
		GroupID: gAdvanced,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetLoopStats()
			if err != nil {
				return err
			}

			cmd.Printf("  Passes: %s\n", bold("%d", st.Passes))
			cmd.Printf("  Stalls: %s\n", bold("%d", st.Stalls))
			cmd.Printf("  Recent passes: %s (avg %s, max %s)\n", bold("%d", st.Recorded), st.AvgTook, st.MaxTook)
			cmd.Printf("  Dropped events: %s\n", bold("%d", st.DroppedEvents))
			if !st.LastPassAt.IsZero() {
				cmd.Printf("  Last pass: %s\n", st.LastPassAt.Format("15:04:05.000"))
			}
			return nil
		},
	}
}

func NewPortsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "ports",
		Short:       "List serial ports a board could be attached to",
		GroupID:     gAdvanced,
		Annotations: map[string]string{skipVersionCheck: "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ports, err := hal.Ports()
			if err != nil {
				return fmt.Errorf("failed to list serial ports: %w", err)
			}
			if len(ports) == 0 {
				cmd.Println("no serial ports found")
			}
			for _, p := range ports {
				cmd.Println(p)
			}
			return nil
		},
	}
}
