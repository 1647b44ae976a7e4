package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	unitPath  = "/etc/systemd/system/weighgrind.service"
	systemctl = "/bin/systemctl"
)

const unitTemplate = `[Unit]
Description=weighgrind grind-by-weight controller
After=network.target

[Service]
Type=simple
ExecStart=/path/to/weighgrind daemon --config {{config}} --daemon-socket {{socket}}
Restart=on-failure
RestartSec=2s

[Install]
WantedBy=multi-user.target
`

// UnitFile renders the systemd unit for the binary at exePath.
func UnitFile(exePath, configPath, socketPath string) string {
	return strings.NewReplacer(
		"/path/to/weighgrind", exePath,
		"{{config}}", configPath,
		"{{socket}}", socketPath,
	).Replace(unitTemplate)
}

func Install(configPath, socketPath string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	unit := UnitFile(exePath, configPath, socketPath)

	logrus.Infof("writing systemd unit to %s", filepath.Dir(unitPath))

	err = os.MkdirAll(filepath.Dir(unitPath), 0755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(unitPath), err)
	}

	// warn if the file already exists
	_, err = os.Stat(unitPath)
	if err == nil {
		logrus.Warnf("%s already exists, overwriting", unitPath)
	}

	err = os.WriteFile(unitPath, []byte(unit), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	logrus.Infof("starting weighgrind")

	for _, args := range [][]string{
		{"daemon-reload"},
		{"enable", "--now", filepath.Base(unitPath)},
	} {
		out, err := exec.Command(systemctl, args...).CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl %s failed: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
	}

	return nil
}
