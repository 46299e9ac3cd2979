// Package api is the HTTP boundary: routing, request binding and error mapping.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/apperr"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/assignment"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/auth"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/group"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/httpmiddleware"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/message"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/metrics"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/poll"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/relay"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/upload"
	"github.com/ramabhadrarao/BCA-Communication-Platform/internal/user"
)

// Probe reports the health of a backing service.
type Probe interface {
	Healthy(ctx context.Context) bool
}

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Users       *user.Service
	Groups      *group.Service
	Messages    *message.Service
	Assignments *assignment.Service
	Polls       *poll.Service
	Hub         *relay.Hub
	Issuer      *auth.Issuer

	// Files serves locally stored uploads; nil when uploads live elsewhere.
	Files *upload.LocalStore

	// Store and Redis are nil when the corresponding backend is not in use.
	Store Probe
	Redis Probe

	Env             string
	CORSOrigin      string
	RateLimitPerMin int
	Logger          *slog.Logger
}

type server struct {
	Deps
}

// NewRouter builds the gin engine with middleware and every route.
func NewRouter(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	s := &server{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{SkipPaths: []string{"/api/health", "/metrics"}}))
	r.Use(metrics.GinMiddleware())
	r.Use(httpmiddleware.CORS(d.CORSOrigin))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(d.RateLimitPerMin, d.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", d.Hub.ServeWS(d.Issuer, d.CORSOrigin))
	r.GET(upload.URLPrefix+"/*path", s.serveUpload)

	api := r.Group("/api")
	api.GET("/health", s.health)

	authPublic := api.Group("/auth")
	authPublic.POST("/register", s.register)
	authPublic.POST("/login", s.login)
	authPublic.POST("/refresh", s.refresh)

	secured := api.Group("", auth.UserAuth(d.Issuer))

	accounts := secured.Group("/auth")
	accounts.GET("/me", s.me)
	accounts.GET("/users", auth.RequireRoles(auth.Privileged...), s.listUsers)
	accounts.GET("/pending", auth.RequireRoles(auth.Approvers...), s.listPending)
	accounts.PUT("/approve/:userId", auth.RequireRoles(auth.Approvers...), s.approve)
	accounts.DELETE("/reject/:userId", auth.RequireRoles(auth.Approvers...), s.reject)

	groups := secured.Group("/groups")
	groups.GET("", s.listGroups)
	groups.POST("", auth.RequireRoles(auth.Privileged...), s.createGroup)
	groups.GET("/:groupId", s.getGroup)
	groups.POST("/:groupId/members", auth.RequireRoles(auth.Privileged...), s.addMember)
	groups.DELETE("/:groupId/members/:userId", auth.RequireRoles(auth.Privileged...), s.removeMember)
	groups.GET("/:groupId/available-students", auth.RequireRoles(auth.Privileged...), s.availableStudents)

	messages := secured.Group("/messages")
	messages.POST("", s.sendMessage)
	messages.GET("/group/:groupId", s.listMessages)
	messages.POST("/:messageId/read", s.markRead)
	messages.DELETE("/:messageId", s.deleteMessage)

	assignments := secured.Group("/assignments")
	assignments.POST("", auth.RequireRoles(auth.Privileged...), s.createAssignment)
	assignments.GET("/group/:groupId", s.listAssignments)
	assignments.GET("/:assignmentId", s.getAssignment)
	assignments.POST("/:assignmentId/submit", auth.RequireRoles(auth.RoleStudent), s.submitAssignment)
	assignments.POST("/:assignmentId/submissions/:submissionId/grade", auth.RequireRoles(auth.Privileged...), s.gradeSubmission)
	assignments.GET("/:assignmentId/gradesheet", auth.RequireRoles(auth.Privileged...), s.gradeSheet)

	polls := secured.Group("/polls")
	polls.POST("", auth.RequireRoles(auth.Privileged...), s.createPoll)
	polls.GET("/group/:groupId", s.listPolls)
	polls.GET("/:pollId", s.getPoll)
	polls.POST("/:pollId/vote", auth.RequireRoles(auth.RoleStudent), s.vote)

	return r
}

// actor returns the authenticated caller. Routes using it sit behind UserAuth.
func actor(c *gin.Context) auth.Actor {
	claims, _ := auth.Current(c)
	return claims.Actor()
}

// fail writes err as a JSON error. Unclassified errors are logged and masked.
func (s *server) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.Logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

// badRequest reports a binding failure.
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

