package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/antriver/moodle-enrol-self-parents/internal/middleware"
	"github.com/antriver/moodle-enrol-self-parents/internal/service"
	appErrors "github.com/antriver/moodle-enrol-self-parents/pkg/errors"
	"github.com/antriver/moodle-enrol-self-parents/pkg/response"
)

// InstanceHandler exposes enrolment instance management endpoints.
type InstanceHandler struct {
	instances *service.InstanceService
}

// NewInstanceHandler constructs InstanceHandler.
func NewInstanceHandler(instances *service.InstanceService) *InstanceHandler {
	return &InstanceHandler{instances: instances}
}

// Defaults godoc
// @Summary New-instance defaults from site settings
// @Tags Instances
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /instances/defaults [get]
func (h *InstanceHandler) Defaults(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.instances.Defaults())
}

// Create godoc
// @Summary Attach an enrolment instance to a course
// @Tags Instances
// @Accept json
// @Produce json
// @Param payload body service.CreateInstanceRequest true "Instance payload"
// @Success 201 {object} response.Envelope
// @Router /instances [post]
func (h *InstanceHandler) Create(c *gin.Context) {
	var req service.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	instance, err := h.instances.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, instance)
}

// Get godoc
// @Summary Get one enrolment instance
// @Tags Instances
// @Produce json
// @Param id path int true "Instance ID"
// @Success 200 {object} response.Envelope
// @Router /instances/{id} [get]
func (h *InstanceHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid instance id"))
		return
	}
	instance, err := h.instances.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"instance":     instance,
		"display_name": h.instances.DisplayName(instance),
	})
}

// InfoIcons godoc
// @Summary Enrolment icons for a course listing
// @Tags Instances
// @Produce json
// @Param courseId path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/enrol-icons [get]
func (h *InstanceHandler) InfoIcons(c *gin.Context) {
	courseID, err := strconv.ParseInt(c.Param("courseId"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid course id"))
		return
	}
	var userID int64
	if claims, ok := middleware.ActingUser(c); ok {
		userID = claims.UserID
	}
	icons, err := h.instances.InfoIcons(c.Request.Context(), courseID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"icons": icons})
}
