package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/h3ct1cl3o/weighgrind/pkg/client"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/weighgrind.sock"
	configPath     = "/etc/weighgrind.yaml"
)

var (
	gBasic        = "Basic:"
	gAdvanced     = "Advanced:"
	gSimulation   = "Simulation:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gAdvanced,
		gSimulation,
		gInstallation,
	}
)

var apiClient = client.NewClient(unixSocketPath)

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	switch {
	case errors.Is(err, client.ErrDaemonNotRunning):
		fmt.Fprintln(os.Stderr, "\nError: weighgrind daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it?")
	case errors.Is(err, client.ErrPermissionDenied):
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or reinstall the daemon with the '--allow-non-root-access' flag to grant permissions to your user")
	case errors.Is(err, client.ErrConflict):
		fmt.Fprintln(os.Stderr, "\nError: the grinder is busy")
		fmt.Fprintln(os.Stderr, "Wait until the grinder is back on the main screen and not dosing, then try again.")
	}
}

func main() {
	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weighgrind",
		Short: "weighgrind controls a coffee grinder by weight",
		Long: `weighgrind controls a coffee grinder by weight.

The daemon reads a load cell under the portafilter, runs the grinder motor
until the target dose is reached, and serves a local API that this command
talks to.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			if cmd.Annotations[skipVersionCheck] != "" {
				return nil
			}

			if clientVersion, daemonVersion, err := getVersion(); err == nil {
				if daemonVersion != clientVersion {
					logrus.WithFields(logrus.Fields{
						"clientVersion": clientVersion,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. weighgrind may not work as expected. Reinstall so both client and daemon are the same version.")
				}
			} else if errors.Is(err, client.ErrNotFound) {
				logrus.Error("weighgrind daemon is too old to report its version. Reinstall so both client and daemon are the same version.")
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "weighgrind daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewStatusCommand(),
		NewDoseCommand(),
		NewTareCommand(),
		NewDisplayCommand(),
		NewWatchCommand(),
		NewCalibrationCommand(),
		NewLoopStatsCommand(),
		NewPortsCommand(),
		NewSimCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
