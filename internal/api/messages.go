package api

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
)

type sendMessageRequest struct {
	GroupID    string `json:"groupId" form:"groupId" binding:"required"`
	Content    string `json:"content" form:"content"`
	Type       string `json:"type" form:"type"`
	YoutubeURL string `json:"youtubeUrl" form:"youtubeUrl"`
}

func (s *server) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, err)
		return
	}
	file, err := optionalFile(c, "file")
	if err != nil {
		badRequest(c, err)
		return
	}
	m, err := s.Messages.Send(c.Request.Context(), actor(c), message.SendInput{
		GroupID:    req.GroupID,
		Content:    req.Content,
		Type:       req.Type,
		YoutubeURL: req.YoutubeURL,
	}, file)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (s *server) listMessages(c *gin.Context) {
	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	msgs, err := s.Messages.List(c.Request.Context(), actor(c), c.Param("groupId"), page, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func (s *server) markRead(c *gin.Context) {
	if err := s.Messages.MarkRead(c.Request.Context(), actor(c), c.Param("messageId")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read"})
}

func (s *server) deleteMessage(c *gin.Context) {
	if err := s.Messages.Delete(c.Request.Context(), actor(c), c.Param("messageId")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted successfully"})
}

// optionalFile returns the uploaded file under field, or nil when the
// request is not multipart or carries no such file.
func optionalFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	return fh, err
}

// formFiles returns every uploaded file under field.
func formFiles(c *gin.Context, field string) ([]*multipart.FileHeader, error) {
	if c.ContentType() != gin.MIMEMultipartPOSTForm {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	return form.File[field], nil
}
