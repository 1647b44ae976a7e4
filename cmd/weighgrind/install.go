package main

import (
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/h3ct1cl3o/weighgrind/pkg/config"
	daemonutils "github.com/h3ct1cl3o/weighgrind/pkg/utils/daemon"
)

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false
	backend := ""
	serialPort := ""
	terminalDisplay := false

	cmd := &cobra.Command{
		Use:         "install",
		Short:       "Install weighgrind (system-wide)",
		GroupID:     gInstallation,
		Annotations: map[string]string{skipVersionCheck: "true"},
		Long: `Install weighgrind daemon as a systemd service (system-wide).

This makes weighgrind run in the background and automatically start on boot. You must run this command as root.

By default, only root user is allowed to access the weighgrind daemon. If you want to allow non-root users to access the daemon, use the --allow-non-root-access flag, so you don't have to use sudo every time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			switch backend {
			case "":
			case "sim", "serial":
				conf.SetBackend(backend)
			default:
				return fmt.Errorf("unknown backend %q, use sim or serial", backend)
			}
			if serialPort != "" {
				conf.SetSerialPort(serialPort)
			}

			if cmd.Flags().Changed("terminal-display") {
				conf.SetTerminalDisplay(terminalDisplay)
			}

			conf.SetAllowNonRootAccess(allowNonRootAccess)
			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the weighgrind daemon.")
			} else {
				logrus.Info("only root user is allowed to access the weighgrind daemon.")
			}

			// The daemon reads the config on start, so save it first.
			err = conf.Save()
			if err != nil {
				return pkgerrors.Wrapf(err, "failed to save config")
			}

			err = daemonutils.Install(configPath, unixSocketPath)
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v. Are you root?", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("systemd will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run ``weighgrind install'' again.\n", exePath)

			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access weighgrind daemon.")
	f.StringVar(&backend, "backend", "", "Board backend to save in the config (sim or serial).")
	f.StringVar(&serialPort, "serial-port", "", "Serial port of the board to save in the config.")
	f.BoolVar(&terminalDisplay, "terminal-display", false, "Mirror the grinder display to the daemon's stdout (shows up in the journal).")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "uninstall",
		Short:       "Uninstall weighgrind (system-wide)",
		GroupID:     gInstallation,
		Annotations: map[string]string{skipVersionCheck: "true"},
		Long: `Uninstall weighgrind daemon from systemd (system-wide).

Stopping the daemon turns the grinder motor off. You must run this command as root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			fmt.Println("successfully uninstalled")

			cmd.Printf("Your config is kept in %s, in case you want to use `weighgrind' again. If you want a complete uninstall, you can remove both config file and weighgrind itself manually.\n", configPath)

			return nil
		},
	}

	return cmd
}
