package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/assignment"
)

type createAssignmentRequest struct {
	GroupID     string `json:"groupId" form:"groupId" binding:"required"`
	Title       string `json:"title" form:"title" binding:"required"`
	Description string `json:"description" form:"description" binding:"required"`
	Deadline    string `json:"deadline" form:"deadline" binding:"required"`
	MaxMarks    int    `json:"maxMarks" form:"maxMarks"`
}

var deadlineLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// parseDeadline accepts RFC 3339 timestamps and the formats an HTML
// datetime-local or date input submits. Zone-less values are read as UTC.
func parseDeadline(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid deadline %q", v)
}

func (s *server) createAssignment(c *gin.Context) {
	var req createAssignmentRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	deadline, err := parseDeadline(req.Deadline)
	if err != nil {
		badRequest(c, err)
		return
	}
	files, err := formFiles(c, "attachments")
	if err != nil {
		badRequest(c, err)
		return
	}
	a, err := s.Assignments.Create(c.Request.Context(), actor(c), assignment.CreateInput{
		GroupID:     req.GroupID,
		Title:       req.Title,
		Description: req.Description,
		Deadline:    deadline,
		MaxMarks:    req.MaxMarks,
	}, files)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *server) listAssignments(c *gin.Context) {
	list, err := s.Assignments.ListByGroup(c.Request.Context(), actor(c), c.Param("groupId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *server) getAssignment(c *gin.Context) {
	a, err := s.Assignments.Get(c.Request.Context(), actor(c), c.Param("assignmentId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (s *server) submitAssignment(c *gin.Context) {
	files, err := formFiles(c, "files")
	if err != nil {
		badRequest(c, err)
		return
	}
	sub, err := s.Assignments.Submit(c.Request.Context(), actor(c), c.Param("assignmentId"), files)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Assignment submitted successfully", "submission": sub})
}

func (s *server) gradeSubmission(c *gin.Context) {
	var req struct {
		Grade    *float64 `json:"grade" binding:"required"`
		Feedback string   `json:"feedback"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sub, err := s.Assignments.Grade(c.Request.Context(), actor(c), c.Param("assignmentId"), c.Param("submissionId"), *req.Grade, req.Feedback)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Submission graded successfully", "submission": sub})
}

func (s *server) gradeSheet(c *gin.Context) {
	sheet, err := s.Assignments.GradeSheet(c.Request.Context(), actor(c), c.Param("assignmentId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sheet)
}
