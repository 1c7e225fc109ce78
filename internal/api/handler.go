package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eyevinn-osaas/strom-sub001/internal/ctyconv"
	"github.com/eyevinn-osaas/strom-sub001/internal/engine"
	"github.com/eyevinn-osaas/strom-sub001/internal/flow"
	"github.com/eyevinn-osaas/strom-sub001/internal/graph"
	"github.com/eyevinn-osaas/strom-sub001/internal/guard"
	"github.com/eyevinn-osaas/strom-sub001/internal/lifecycle"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PropertyRequest is the body of PUT /api/v1/properties.
type PropertyRequest struct {
	Target string `json:"target" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Value  any    `json:"value"`
}

// PropertyResponse carries one property value.
type PropertyResponse struct {
	Target string `json:"target"`
	Name   string `json:"name"`
	Value  any    `json:"value"`
}

// ControlRequest is the body of PUT /api/v1/controls/:name.
type ControlRequest struct {
	On *bool `json:"on" binding:"required"`
}

// ControlResponse carries one control position.
type ControlResponse struct {
	Name string `json:"name"`
	On   bool   `json:"on"`
}

// StateRequest is the body of PUT /api/v1/state.
type StateRequest struct {
	State string `json:"state" binding:"required"`
}

func (s *Server) healthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK\n")
}

func (s *Server) diagnosticsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, s.flow.Diagnostics())
}

// GET /api/v1/properties?target=<node[.pad]>&name=<property>
func (s *Server) getPropertyHandler(c *gin.Context) {
	target, name := c.Query("target"), c.Query("name")
	if target == "" || name == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "target and name query parameters are required"})
		return
	}
	v, err := s.flow.GetProperty(c.Request.Context(), target, name)
	if err != nil {
		fail(c, err)
		return
	}
	native, err := ctyconv.ToNative(v)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PropertyResponse{Target: target, Name: name, Value: native})
}

func (s *Server) updatePropertyHandler(c *gin.Context) {
	var req PropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.flow.UpdateProperty(c.Request.Context(), req.Target, req.Name, req.Value); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, PropertyResponse(req))
}

func (s *Server) listControlsHandler(c *gin.Context) {
	names := s.flow.Controls()
	out := make([]ControlResponse, 0, len(names))
	for _, name := range names {
		on, err := s.flow.Control(c.Request.Context(), name)
		if err != nil {
			fail(c, err)
			return
		}
		out = append(out, ControlResponse{Name: name, On: on})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) setControlHandler(c *gin.Context) {
	var req ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	name := c.Param("name")
	if err := s.flow.SetControl(c.Request.Context(), name, *req.On); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ControlResponse{Name: name, On: *req.On})
}

func (s *Server) setStateHandler(c *gin.Context) {
	var req StateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	st, err := lifecycle.ParseState(req.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if err := s.flow.SetState(c.Request.Context(), st); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": st.String()})
}

// fail maps err onto a status code: unknown things are 404, guard
// rejections and a torn down graph are 409, the rest is 400.
func fail(c *gin.Context, err error) {
	status := http.StatusBadRequest
	var ge *guard.Error
	switch {
	case errors.Is(err, flow.ErrUnknownTarget), errors.Is(err, flow.ErrUnknownControl), errors.Is(err, engine.ErrNoSuchProperty):
		status = http.StatusNotFound
	case errors.As(err, &ge), errors.Is(err, graph.ErrClosed):
		status = http.StatusConflict
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}
