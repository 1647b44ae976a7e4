package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

func Uninstall() error {
	logrus.Infof("stopping weighgrind")

	out, err := exec.Command(systemctl, "disable", "--now", filepath.Base(unitPath)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to stop %s: %w: %s. Are you root?", filepath.Base(unitPath), err, strings.TrimSpace(string(out)))
	}

	logrus.Infof("removing systemd unit")

	// if the file doesn't exist, we don't need to remove it
	_, err = os.Stat(unitPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", unitPath, err)
	}

	err = os.Remove(unitPath)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w. Are you root?", unitPath, err)
	}

	if err := exec.Command(systemctl, "daemon-reload").Run(); err != nil {
		logrus.Warnf("systemctl daemon-reload failed: %v", err)
	}

	return nil
}
