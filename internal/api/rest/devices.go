package rest

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/optiqlab/scopecore/internal/api/ws"
	"github.com/optiqlab/scopecore/internal/trigger"
	"github.com/optiqlab/scopecore/internal/types"
)

// GET /api/v1/devices
func (s *Server) listDevices(c *gin.Context) {
	devices := s.lm.DeviceManager().List()

	response := make([]gin.H, 0, len(devices))
	for _, dev := range devices {
		entry := gin.H{
			"name":    dev.Name,
			"kind":    dev.Kind(),
			"profile": dev.Profile.Profile.ID,
		}
		if dd, err := s.lm.DeviceManager().GetData(dev.Name); err == nil {
			entry["phase"] = dd.Phase()
			entry["subscribers"] = dd.SubscriberCount()
		}
		response = append(response, entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": response,
		"count":   len(response),
	})
}

// GET /api/v1/devices/:name
func (s *Server) getDevice(c *gin.Context) {
	name := c.Param("name")

	dev, err := s.lm.DeviceManager().Get(name)
	if err != nil {
		s.respondError(c, err)
		return
	}

	resp := gin.H{
		"name":       dev.Name,
		"kind":       dev.Kind(),
		"profile":    dev.Profile.Profile,
		"properties": dev.Properties(),
	}

	if dd, err := s.lm.DeviceManager().GetData(name); err == nil {
		combos := dd.SupportedCombinations()
		supported := make([]gin.H, 0, len(combos))
		for _, combo := range combos {
			supported = append(supported, gin.H{"mode": combo.Mode, "type": combo.Type})
		}
		resp["phase"] = dd.Phase()
		resp["sequence"] = dd.Sequence()
		resp["subscribers"] = dd.SubscriberCount()
		resp["buffer_capacity"] = dd.BufferCapacity()
		resp["supported_combinations"] = supported
		if dd.Phase() == trigger.PhaseFault {
			resp["fault_reason"] = dd.FaultReason()
		}
	}

	c.JSON(http.StatusOK, resp)
}

// POST /api/v1/devices/:name/arm
func (s *Server) armDevice(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
		Type string `json:"type" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("bad_request", "invalid request body", err.Error()))
		return
	}

	mode, err := trigger.ParseMode(req.Mode)
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", types.ErrInvalidConfiguration, err))
		return
	}
	ttype, err := trigger.ParseType(req.Type)
	if err != nil {
		s.respondError(c, fmt.Errorf("%w: %v", types.ErrInvalidConfiguration, err))
		return
	}

	dd, err := s.lm.DeviceManager().GetData(c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := dd.Arm(mode, ttype); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device": dd.Name,
		"phase":  dd.Phase(),
	})
}

// POST /api/v1/devices/:name/trigger
func (s *Server) triggerDevice(c *gin.Context) {
	s.dataDeviceOp(c, func(dd dataDevice) error { return dd.Trigger() })
}

// POST /api/v1/devices/:name/stop
func (s *Server) stopDevice(c *gin.Context) {
	s.dataDeviceOp(c, func(dd dataDevice) error { return dd.Stop() })
}

// POST /api/v1/devices/:name/abort
func (s *Server) abortDevice(c *gin.Context) {
	s.dataDeviceOp(c, func(dd dataDevice) error { return dd.Abort() })
}

// POST /api/v1/devices/:name/reset
func (s *Server) resetDevice(c *gin.Context) {
	s.dataDeviceOp(c, func(dd dataDevice) error { return dd.Reset() })
}

type dataDevice interface {
	Trigger() error
	Stop() error
	Abort() error
	Reset() error
}

func (s *Server) dataDeviceOp(c *gin.Context, op func(dataDevice) error) {
	dd, err := s.lm.DeviceManager().GetData(c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	if err := op(dd); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device": dd.Name,
		"phase":  dd.Phase(),
	})
}

// GET /api/v1/devices/:name/properties
func (s *Server) listProperties(c *gin.Context) {
	dev, err := s.lm.DeviceManager().Get(c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device":     dev.Name,
		"properties": dev.Properties(),
	})
}

// GET /api/v1/devices/:name/properties/:prop
func (s *Server) getProperty(c *gin.Context) {
	dev, err := s.lm.DeviceManager().Get(c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	value, err := dev.GetProperty(c.Param("prop"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device":   dev.Name,
		"property": c.Param("prop"),
		"value":    value,
	})
}

// PUT /api/v1/devices/:name/properties/:prop
func (s *Server) setProperty(c *gin.Context) {
	var req struct {
		Value any `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("bad_request", "invalid request body", err.Error()))
		return
	}

	name := c.Param("name")
	prop := c.Param("prop")

	if err := s.lm.DeviceManager().SetProperty(name, prop, req.Value); err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"device":   name,
		"property": prop,
		"value":    req.Value,
	})
}

// GET /api/v1/devices/:name/stream
//
// Upgrades to a websocket and registers the connection as a frame
// subscriber. The registration is the Subscribe RPC; closing the
// socket or sending an unsubscribe message ends it.
func (s *Server) streamDevice(c *gin.Context) {
	dd, err := s.lm.DeviceManager().GetData(c.Param("name"))
	if err != nil {
		s.respondError(c, err)
		return
	}

	ws.ServeStream(dd, s.authService, c.Writer, c.Request, s.logger)
}

// GET /api/v1/sessions
func (s *Server) listSessions(c *gin.Context) {
	limit := 50
	sessions, err := s.lm.Storage().RecentSessions(limit)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}
