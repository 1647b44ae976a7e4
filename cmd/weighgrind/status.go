package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/h3ct1cl3o/weighgrind/pkg/config"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
)

func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current status of the grinder",
		Long:    `Get grinder status, scale readings, and configuration.`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := apiClient.GetStatus()
			if err != nil {
				return fmt.Errorf("failed to get status: %w", err)
			}
			raw, err := apiClient.GetConfig()
			if err != nil {
				return fmt.Errorf("failed to get config: %w", err)
			}
			conf := config.NewFileFromConfig(raw, "")

			printStatus(cmd, st, conf)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, st *grinder.Status, conf *config.File) {
	cmd.Println(bold("Grinder status:"))
	cmd.Printf("  Screen: %s\n", bold("%s", st.Screen))
	cmd.Printf("  Dosing: %s\n", dosingText(st.Dosing))
	if st.Fault != "" {
		cmd.Printf("  Fault: %s\n", color.New(color.Bold, color.FgRed).Sprint(st.Fault))
	}
	cmd.Printf("  Motor: %s", bool2Text(st.ActuatorEngaged))
	if st.ActuatorEngaged && !st.ActuatorOn {
		cmd.Print(" (pulse off phase)")
	}
	cmd.Println()
	cmd.Printf("  Portafilter in place: %s\n", bool2Text(st.HandlePresent))
	cmd.Printf("  Manual button pressed: %s\n", bool2Text(st.ManualPressed))

	cmd.Println()

	cmd.Println(bold("Scale:"))
	cmd.Printf("  Weight: %s\n", bold("%.1fg", st.Weight))
	cmd.Printf("  Target: %s\n", bold("%.1fg", st.Target))
	switch st.Screen {
	case grinder.ScreenAdjusting:
		cmd.Printf("  New target: %s\n", bold("%.1fg", st.Candidate))
	case grinder.ScreenCalibrating:
		cmd.Printf("  Trial factor: %s\n", bold("%.2f", st.TrialFactor))
		cmd.Printf("  Raw (tared): %s\n", bold("%.1f", st.Raw))
	}
	cmd.Printf("  Calibration factor: %s\n", bold("%.2f", st.CalibrationFactor))

	cmd.Println()

	cmd.Println(bold("Configuration:"))
	cmd.Printf("  Backend: %s\n", bold("%s", conf.Backend()))
	if conf.Backend() == "serial" {
		cmd.Printf("  Serial port: %s\n", bold("%s @ %d", conf.SerialPort(), conf.BaudRate()))
	}
	cmd.Printf("  Dose tolerance: %s\n", bold("%.1fg", conf.DoseTolerance()))
	cmd.Printf("  Overload margin: %s\n", bold("%.1fg", conf.OverloadMargin()))
	cmd.Printf("  Pulse: %s\n", bold("%s on / %s off", conf.PulseOn(), conf.PulseOff()))
	cmd.Printf("  Allow non-root users to access the daemon: %s\n", bool2Text(conf.AllowNonRootAccess()))
}

func dosingText(s grinder.DosingState) string {
	switch s {
	case grinder.DosingFilling, grinder.DosingSettling:
		return color.New(color.Bold, color.FgGreen).Sprint(s)
	case grinder.DosingOverloaded, grinder.DosingSensorFault:
		return color.New(color.Bold, color.FgRed).Sprint(s)
	case grinder.DosingDone:
		return color.New(color.Bold, color.FgCyan).Sprint(s)
	default:
		return bold("%s", s)
	}
}
