package controller

import (
	"net/http"

	"github.com/turingarena/turingarena-sub002/internal/compile"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// CompileRequest carries an interface source.
type CompileRequest struct {
	Source string `json:"source" binding:"required"`
}

// InterfaceController handles interface compilation endpoints.
type InterfaceController struct {
	svc *compile.Service
}

func NewInterfaceController(svc *compile.Service) *InterfaceController {
	return &InterfaceController{svc: svc}
}

// Register mounts the endpoints on group.
func (h *InterfaceController) Register(group *gin.RouterGroup) {
	group.POST("", h.Compile)
	group.POST("/validate", h.Validate)
	group.GET("/:key", h.Get)
	group.GET("/:key/describe", h.Describe)
	group.DELETE("/:key", h.Delete)
}

// Compile compiles the source and returns its report, diagnostics included.
func (h *InterfaceController) Compile(c *gin.Context) {
	report, ok := h.compile(c)
	if !ok {
		return
	}
	response.Success(c, report)
}

// Validate is Compile that fails when the interface has diagnostics.
func (h *InterfaceController) Validate(c *gin.Context) {
	report, ok := h.compile(c)
	if !ok {
		return
	}
	if !report.Valid {
		response.ErrorWithData(c, errors.Newf(errors.InterfaceInvalid, "interface has %d diagnostics", len(report.Diagnostics)), report)
		return
	}
	response.Success(c, report)
}

func (h *InterfaceController) compile(c *gin.Context) (*compile.Report, bool) {
	var req CompileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return nil, false
	}
	report, err := h.svc.Compile(c.Request.Context(), req.Source)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return report, true
}

func (h *InterfaceController) Get(c *gin.Context) {
	report, err := h.svc.Report(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, report)
}

// Describe returns the plain-text description, for skeleton generators.
func (h *InterfaceController) Describe(c *gin.Context) {
	report, err := h.svc.Report(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.String(http.StatusOK, report.Description)
}

func (h *InterfaceController) Delete(c *gin.Context) {
	if err := h.svc.Forget(c.Request.Context(), c.Param("key")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
