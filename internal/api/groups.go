package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/group"
)

func (s *server) listGroups(c *gin.Context) {
	groups, err := s.Groups.ListForUser(c.Request.Context(), actor(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (s *server) createGroup(c *gin.Context) {
	var in group.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err)
		return
	}
	g, err := s.Groups.Create(c.Request.Context(), actor(c), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (s *server) getGroup(c *gin.Context) {
	g, err := s.Groups.Get(c.Request.Context(), actor(c), c.Param("groupId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *server) addMember(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	g, err := s.Groups.AddMember(c.Request.Context(), actor(c), c.Param("groupId"), req.UserID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (s *server) removeMember(c *gin.Context) {
	g, err := s.Groups.RemoveMember(c.Request.Context(), actor(c), c.Param("groupId"), c.Param("userId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// availableStudents lists approved students outside the group. sameCohort
// defaults to true so the picker shows the group's batch and semester first.
func (s *server) availableStudents(c *gin.Context) {
	sameCohort := true
	if v := c.Query("sameCohort"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			sameCohort = parsed
		}
	}
	students, err := s.Groups.AvailableStudents(c.Request.Context(), actor(c), c.Param("groupId"), sameCohort)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, students)
}
