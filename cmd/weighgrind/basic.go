package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/h3ct1cl3o/weighgrind/pkg/display"
	"github.com/h3ct1cl3o/weighgrind/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version",
		Annotations: map[string]string{skipVersionCheck: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewDoseCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "dose [grams]",
		Short:   "Get or set the target dose",
		GroupID: gBasic,
		Long: `Get or set the target dose in grams.

Without an argument, print the current target. With an argument, set and
persist a new target. It is rounded to one decimal and must be between 0
and the configured maximum dose.

The dose can only be changed while the grinder shows the main screen and
is not dosing.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				dose, err := apiClient.GetDose()
				if err != nil {
					return err
				}
				cmd.Printf("%.1fg\n", dose)
				return nil
			}

			dose, err := parseGramsArg(args, "dose")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetDose(dose)
			if err != nil {
				return fmt.Errorf("failed to set dose: %w", err)
			}

			logDaemonResponse(ret)

			return nil
		},
	}
}

func NewTareCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "tare",
		Short:   "Zero the scale",
		GroupID: gBasic,
		Long: `Zero the scale with whatever is on it now.

Only allowed while the grinder shows the main screen and is not dosing.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := apiClient.Tare()
			if err != nil {
				return fmt.Errorf("failed to tare: %w", err)
			}

			logrus.Infof("scale zeroed")

			return nil
		},
	}
}

func NewDisplayCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "display",
		Short:   "Print what the grinder display shows",
		GroupID: gBasic,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			frame, err := apiClient.GetDisplay()
			if err != nil {
				return err
			}
			return display.Render(cmd.OutOrStdout(), *frame)
		},
	}
}
