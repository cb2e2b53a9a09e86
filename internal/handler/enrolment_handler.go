package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/antriver/moodle-enrol-self-parents/internal/middleware"
	"github.com/antriver/moodle-enrol-self-parents/internal/models"
	"github.com/antriver/moodle-enrol-self-parents/internal/service"
	appErrors "github.com/antriver/moodle-enrol-self-parents/pkg/errors"
	"github.com/antriver/moodle-enrol-self-parents/pkg/response"
)

// EnrolmentHandler exposes the enrolment form surface: eligibility checks,
// submissions, child navigation and parent-initiated unenrolment.
type EnrolmentHandler struct {
	instances  *service.InstanceService
	enrolments *service.EnrolmentService
	exports    *service.ExportService
}

// NewEnrolmentHandler constructs EnrolmentHandler.
func NewEnrolmentHandler(instances *service.InstanceService, enrolments *service.EnrolmentService, exports *service.ExportService) *EnrolmentHandler {
	return &EnrolmentHandler{instances: instances, enrolments: enrolments, exports: exports}
}

// Eligibility godoc
// @Summary Check whether the acting user may enrol
// @Tags Enrolments
// @Produce json
// @Param id path int true "Instance ID"
// @Param checkExisting query bool false "Also deny already-enrolled users"
// @Success 200 {object} response.Envelope
// @Router /instances/{id}/eligibility [get]
func (h *EnrolmentHandler) Eligibility(c *gin.Context) {
	instance, claims, ok := h.load(c)
	if !ok {
		return
	}
	checkExisting := c.DefaultQuery("checkExisting", "true") != "false"
	decision, err := h.enrolments.CanUserEnrol(c.Request.Context(), instance, claims.UserID, checkExisting)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision)
}

// Submit godoc
// @Summary Submit an enrolment form
// @Tags Enrolments
// @Accept json
// @Produce json
// @Param id path int true "Instance ID"
// @Param payload body service.SubmitEnrolmentRequest true "Submission payload"
// @Success 200 {object} response.Envelope
// @Router /instances/{id}/enrolments [post]
func (h *EnrolmentHandler) Submit(c *gin.Context) {
	instance, claims, ok := h.load(c)
	if !ok {
		return
	}
	var req service.SubmitEnrolmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.ActingUserID = claims.UserID

	result, err := h.enrolments.SubmitEnrolment(c.Request.Context(), instance, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ChildActions godoc
// @Summary Navigation links for the acting parent on this instance
// @Tags Enrolments
// @Produce json
// @Param id path int true "Instance ID"
// @Success 200 {object} response.Envelope
// @Router /instances/{id}/child-actions [get]
func (h *EnrolmentHandler) ChildActions(c *gin.Context) {
	instance, claims, ok := h.load(c)
	if !ok {
		return
	}
	actions, err := h.enrolments.ChildActions(c.Request.Context(), instance, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"actions": actions})
}

// UnenrolChild godoc
// @Summary Unenrol one of the acting parent's children
// @Tags Enrolments
// @Accept json
// @Produce json
// @Param id path int true "Instance ID"
// @Param payload body service.UnenrolChildRequest true "Unenrol payload"
// @Success 200 {object} response.Envelope
// @Router /instances/{id}/unenrol-child [post]
func (h *EnrolmentHandler) UnenrolChild(c *gin.Context) {
	instance, claims, ok := h.load(c)
	if !ok {
		return
	}
	var req service.UnenrolChildRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	prompt, err := h.enrolments.UnenrolChild(c.Request.Context(), instance, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if prompt != nil {
		response.JSON(c, http.StatusOK, prompt)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unenrolled": true})
}

// Answers godoc
// @Summary Stored custom-question answers for the acting user and children
// @Tags Enrolments
// @Produce json
// @Param id path int true "Instance ID"
// @Success 200 {object} response.Envelope
// @Router /instances/{id}/answers [get]
func (h *EnrolmentHandler) Answers(c *gin.Context) {
	instance, claims, ok := h.load(c)
	if !ok {
		return
	}
	answers, err := h.enrolments.RecordedAnswers(c.Request.Context(), instance, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"answers": answers})
}

// Roster godoc
// @Summary Export the active roster of an instance
// @Tags Enrolments
// @Produce json
// @Param id path int true "Instance ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /instances/{id}/roster [get]
func (h *EnrolmentHandler) Roster(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid instance id"))
		return
	}
	format := c.DefaultQuery("format", service.FormatCSV)
	doc, err := h.exports.Roster(c.Request.Context(), id, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+doc.Filename)
	c.Data(http.StatusOK, doc.ContentType, doc.Body)
}

// load resolves the instance from the path and the acting user from the
// session; it writes the error response itself on failure.
func (h *EnrolmentHandler) load(c *gin.Context) (*models.Instance, *models.SessionClaims, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid instance id"))
		return nil, nil, false
	}
	instance, err := h.instances.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return nil, nil, false
	}
	claims, ok := middleware.ActingUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, nil, false
	}
	return instance, claims, true
}
