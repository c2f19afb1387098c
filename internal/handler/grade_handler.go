package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/univ-erp-api/internal/models"
	"github.com/noah-isme/univ-erp-api/internal/service"
	appErrors "github.com/noah-isme/univ-erp-api/pkg/errors"
	"github.com/noah-isme/univ-erp-api/pkg/response"
)

// GradeHandler exposes gradebook endpoints.
type GradeHandler struct {
	grades      *service.GradeService
	enrollments *service.EnrollmentService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService, enrollments *service.EnrollmentService) *GradeHandler {
	return &GradeHandler{grades: grades, enrollments: enrollments}
}

// Create godoc
// @Summary Enter a grade component
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body service.EnterComponentRequest true "Component payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	var req service.EnterComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	component, err := h.grades.EnterComponent(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, component)
}

// Update godoc
// @Summary Update a grade component
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Component ID"
// @Param payload body service.UpdateComponentRequest true "Component payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades/{id} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	var req service.UpdateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	component, err := h.grades.UpdateComponent(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, component, nil)
}

// Delete godoc
// @Summary Delete a grade component
// @Tags Grades
// @Produce json
// @Param id path string true "Component ID"
// @Success 204 {object} response.Envelope
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.grades.DeleteComponent(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Summary godoc
// @Summary Gradebook summary for an enrollment
// @Description Components plus derived final percentage and letter grade
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/grades [get]
func (h *GradeHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	enrollmentID := c.Param("id")
	if claims.Role == models.RoleStudent {
		detail, err := h.enrollments.FindDetail(c.Request.Context(), enrollmentID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if detail.StudentID != claims.IdentityID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}

	summary, err := h.grades.Summary(c.Request.Context(), enrollmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// MyCGPA godoc
// @Summary CGPA of the authenticated student
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/cgpa [get]
func (h *GradeHandler) MyCGPA(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.respondCGPA(c, claims.IdentityID)
}

// StudentCGPA godoc
// @Summary CGPA of a student
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/cgpa [get]
func (h *GradeHandler) StudentCGPA(c *gin.Context) {
	h.respondCGPA(c, c.Param("id"))
}

func (h *GradeHandler) respondCGPA(c *gin.Context, studentID string) {
	result, err := h.grades.CGPA(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result == nil {
		response.JSON(c, http.StatusOK, gin.H{"student_id": studentID, "cgpa": nil, "message": "no graded courses yet"}, nil)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SectionStatistics godoc
// @Summary Graded performance statistics of a section
// @Tags Grades
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/statistics [get]
func (h *GradeHandler) SectionStatistics(c *gin.Context) {
	stats, err := h.grades.SectionStatistics(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
