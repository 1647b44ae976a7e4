package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/h3ct1cl3o/weighgrind/pkg/controller"
	"github.com/h3ct1cl3o/weighgrind/pkg/grinder"
	"github.com/h3ct1cl3o/weighgrind/pkg/version"
)

func abortWithError(c *gin.Context, code int, err error) {
	c.IndentedJSON(code, err.Error())
	_ = c.AbortWithError(code, err)
}

// controllerErrorCode maps a controller error to a status code.
func controllerErrorCode(err error) int {
	switch {
	case errors.Is(err, controller.ErrInvalidDose):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (d *Daemon) getStatus(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.ctrl.Status())
}

func (d *Daemon) getDisplay(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.canvas.Snapshot())
}

func (d *Daemon) getConfig(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.conf.Raw())
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}

func (d *Daemon) getDose(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, d.ctrl.Target())
}

func (d *Daemon) setDose(c *gin.Context) {
	var dose float32
	if err := c.BindJSON(&dose); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if err := d.ctrl.SetTarget(dose); err != nil {
		abortWithError(c, controllerErrorCode(err), err)
		return
	}

	logrus.Infof("set dose to %.1fg", d.ctrl.Target())
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set dose to %.1fg", d.ctrl.Target()))
}

func (d *Daemon) tare(c *gin.Context) {
	if err := d.ctrl.Tare(c.Request.Context()); err != nil {
		abortWithError(c, controllerErrorCode(err), err)
		return
	}
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) getCalibration(c *gin.Context) {
	stored, ok, err := d.store.CalibrationFactor()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}
	legacy, err := d.store.LegacyCalibrationFactor()
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusOK, grinder.CalibrationInfo{
		Factor:      d.scale.Factor(),
		Offset:      d.scale.Offset(),
		Stored:      stored,
		StoredValid: ok,
		Legacy:      legacy,
	})
}

func (d *Daemon) getLoopStats(c *gin.Context) {
	st := d.recorder.Stats()
	st.DroppedEvents = d.hub.Dropped()
	c.IndentedJSON(http.StatusOK, st)
}

// streamEvents sends controller events as server-sent events until the
// client goes away or the server shuts down.
func (d *Daemon) streamEvents(c *gin.Context) {
	ch := d.hub.Subscribe()
	defer d.hub.Unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	// send headers now so the client is not left waiting for the first event
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()
	logrus.WithField("subscribers", d.hub.Subscribers()).Debug("event subscriber connected")

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-d.shutdown:
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		}
	})
}

func (d *Daemon) requireSim(c *gin.Context) {
	if d.sim == nil {
		abortWithError(c, http.StatusConflict, ErrNotSimulated)
		return
	}
	c.Next()
}

func bindBool(c *gin.Context) (bool, bool) {
	var b bool
	if err := c.BindJSON(&b); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return false, false
	}
	return b, true
}

func (d *Daemon) setSimHandle(c *gin.Context) {
	present, ok := bindBool(c)
	if !ok {
		return
	}
	d.sim.SetHandle(present)
	logrus.Infof("simulated handle present: %t", present)
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) setSimManual(c *gin.Context) {
	pressed, ok := bindBool(c)
	if !ok {
		return
	}
	d.sim.SetManual(pressed)
	logrus.Infof("simulated manual button pressed: %t", pressed)
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) setSimFault(c *gin.Context) {
	fault, ok := bindBool(c)
	if !ok {
		return
	}
	d.sim.SetFault(fault)
	logrus.Infof("simulated sensor fault: %t", fault)
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) setSimMass(c *gin.Context) {
	var grams float32
	if err := c.BindJSON(&grams); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if grams < 0 {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("mass must not be negative, got %v", grams))
		return
	}
	d.sim.SetMass(grams)
	logrus.Infof("simulated mass set to %.1fg", grams)
	c.IndentedJSON(http.StatusCreated, "ok")
}

// maxSimRotate bounds one simulated rotation, each detent queues four pin
// states.
const maxSimRotate = 1000

func (d *Daemon) simRotate(c *gin.Context) {
	var n int
	if err := c.BindJSON(&n); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if n > maxSimRotate || n < -maxSimRotate {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("rotation must be within ±%d detents, got %d", maxSimRotate, n))
		return
	}
	d.sim.Rotate(n)
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) simClick(c *gin.Context) {
	d.sim.Click()
	c.IndentedJSON(http.StatusCreated, "ok")
}

func (d *Daemon) simDoubleClick(c *gin.Context) {
	d.sim.DoubleClick()
	c.IndentedJSON(http.StatusCreated, "ok")
}
