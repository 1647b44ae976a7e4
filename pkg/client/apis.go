package client

import (
	"encoding/json"
	"strconv"

	pkgerrors "github.com/pkg/errors"

	"github.com/h3ct1cl3o/weighgrind/pkg/config"
	"github.com/h3ct1cl3o/weighgrind/pkg/display"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
)

func getJSON[T any](c *Client, path, what string) (*T, error) {
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s", what)
	}

	var v T
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return &v, nil
}

func (c *Client) GetStatus() (*grinder.Status, error) {
	return getJSON[grinder.Status](c, "/status", "status")
}

func (c *Client) GetDisplay() (*display.Frame, error) {
	return getJSON[display.Frame](c, "/display", "display")
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	return getJSON[config.RawFileConfig](c, "/config", "config")
}

func (c *Client) GetCalibration() (*grinder.CalibrationInfo, error) {
	return getJSON[grinder.CalibrationInfo](c, "/calibration", "calibration")
}

func (c *Client) GetLoopStats() (*grinder.LoopStats, error) {
	return getJSON[grinder.LoopStats](c, "/loop-stats", "loop stats")
}

func (c *Client) GetDose() (float32, error) {
	ret, err := c.Get("/dose")
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get dose")
	}
	dose, err := strconv.ParseFloat(ret, 32)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to parse dose")
	}
	return float32(dose), nil
}

func (c *Client) SetDose(grams float32) (string, error) {
	ret, err := c.Put("/dose", strconv.FormatFloat(float64(grams), 'f', -1, 32))
	return unquote(ret), err
}

func (c *Client) Tare() (string, error) {
	ret, err := c.Post("/tare", "")
	return unquote(ret), err
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get version")
	}
	return unquote(ret), nil
}

func (c *Client) SetSimHandle(present bool) (string, error) {
	return c.Put("/sim/handle", strconv.FormatBool(present))
}

func (c *Client) SetSimManual(pressed bool) (string, error) {
	return c.Put("/sim/manual", strconv.FormatBool(pressed))
}

func (c *Client) SetSimFault(fault bool) (string, error) {
	return c.Put("/sim/fault", strconv.FormatBool(fault))
}

func (c *Client) SetSimMass(grams float32) (string, error) {
	return c.Put("/sim/mass", strconv.FormatFloat(float64(grams), 'f', -1, 32))
}

func (c *Client) SimRotate(n int) (string, error) {
	return c.Post("/sim/encoder/rotate", strconv.Itoa(n))
}

func (c *Client) SimClick() (string, error) {
	return c.Post("/sim/encoder/click", "")
}

func (c *Client) SimDoubleClick() (string, error) {
	return c.Post("/sim/encoder/double-click", "")
}
