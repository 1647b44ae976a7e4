package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewSimCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sim",
		Short:   "Drive the simulated board",
		GroupID: gSimulation,
		Long: `Drive the simulated board, which is used when the config sets
backend: sim. The daemon answers 409 when it runs a real board.`,
	}

	cmd.AddCommand(
		newOnOffCommand(
			"handle",
			"Insert or remove the portafilter",
			`Insert or remove the portafilter. Removing it empties the cup.`,
			func(b bool) (string, error) { return apiClient.SetSimHandle(b) },
		),
		newOnOffCommand(
			"manual",
			"Press or release the manual grind button",
			`Press or release the manual grind button. The motor runs while it is pressed and the grinder is idle.`,
			func(b bool) (string, error) { return apiClient.SetSimManual(b) },
		),
		newOnOffCommand(
			"fault",
			"Make the load cell saturate",
			`Make the load cell saturate, which the controller reports as a sensor fault.`,
			func(b bool) (string, error) { return apiClient.SetSimFault(b) },
		),
		&cobra.Command{
			Use:   "mass [grams]",
			Short: "Set the mass in the cup",
			RunE: func(_ *cobra.Command, args []string) error {
				grams, err := parseGramsArg(args, "mass")
				if err != nil {
					return err
				}
				ret, err := apiClient.SetSimMass(grams)
				if err != nil {
					return fmt.Errorf("failed to set mass: %w", err)
				}
				logDaemonResponse(ret)
				logrus.Infof("simulated mass set to %.1fg", grams)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rotate [detents]",
			Short: "Turn the encoder knob",
			Long:  `Turn the encoder knob by the given number of detents. Negative values turn it the other way.`,
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				n, err := parseIntArg(args, "detents")
				if err != nil {
					return err
				}
				ret, err := apiClient.SimRotate(n)
				if err != nil {
					return fmt.Errorf("failed to rotate encoder: %w", err)
				}
				logDaemonResponse(ret)
				return nil
			},
		},
		&cobra.Command{
			Use:   "click",
			Short: "Click the encoder button",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apiClient.SimClick()
				if err != nil {
					return fmt.Errorf("failed to click encoder: %w", err)
				}
				logDaemonResponse(ret)
				return nil
			},
		},
		&cobra.Command{
			Use:   "double-click",
			Short: "Double-click the encoder button",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := apiClient.SimDoubleClick()
				if err != nil {
					return fmt.Errorf("failed to double-click encoder: %w", err)
				}
				logDaemonResponse(ret)
				return nil
			},
		},
	)

	return cmd
}
