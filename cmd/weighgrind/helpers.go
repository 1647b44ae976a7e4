package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/h3ct1cl3o/weighgrind/pkg/version"
)

// skipVersionCheck is a command annotation that skips asking the daemon
// for its version before running.
const skipVersionCheck = "weighgrind/skip-version-check"

func parseIntArg(args []string, valueName string) (int, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

func parseGramsArg(args []string, valueName string) (float32, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.ParseFloat(args[0], 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return float32(value), nil
}

// newOnOffCommand builds a command with "on" and "off" subcommands.
func newOnOffCommand(
	use, short, long string,
	set func(bool) (string, error),
) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
	}

	for _, v := range []struct {
		name string
		on   bool
	}{{"on", true}, {"off", false}} {
		cmd.AddCommand(&cobra.Command{
			Use:   v.name,
			Short: fmt.Sprintf("Turn %s %s", use, v.name),
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				ret, err := set(v.on)
				if err != nil {
					return fmt.Errorf("failed to turn %s %s: %w", use, v.name, err)
				}
				logDaemonResponse(ret)
				logrus.Infof("successfully turned %s %s", use, v.name)
				return nil
			},
		})
	}

	return cmd
}

func logDaemonResponse(ret string) {
	if ret != "" && ret != "ok" {
		logrus.Infof("daemon responded: %s", ret)
	}
}

func getVersion() (clientVersion, daemonVersion string, err error) {
	daemonVersion, err = apiClient.GetVersion()
	return version.Version, daemonVersion, err
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
