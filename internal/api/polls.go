package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/poll"
)

func (s *server) createPoll(c *gin.Context) {
	var req struct {
		GroupID        string     `json:"groupId" binding:"required"`
		Question       string     `json:"question" binding:"required"`
		Options        []string   `json:"options" binding:"required"`
		MultipleChoice bool       `json:"multipleChoice"`
		ExpiresAt      *time.Time `json:"expiresAt"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.Polls.Create(c.Request.Context(), actor(c), poll.CreateInput{
		GroupID:        req.GroupID,
		Question:       req.Question,
		Options:        req.Options,
		MultipleChoice: req.MultipleChoice,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *server) listPolls(c *gin.Context) {
	list, err := s.Polls.ListByGroup(c.Request.Context(), actor(c), c.Param("groupId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *server) getPoll(c *gin.Context) {
	p, err := s.Polls.Get(c.Request.Context(), actor(c), c.Param("pollId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *server) vote(c *gin.Context) {
	var req struct {
		OptionIndex *int `json:"optionIndex" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := s.Polls.Vote(c.Request.Context(), actor(c), c.Param("pollId"), *req.OptionIndex)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
