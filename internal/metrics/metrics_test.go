package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/api/groups/:groupId", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.ToFloat64(httpRequests.WithLabelValues("/api/groups/:groupId", "GET", "204"))
	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/groups/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("/api/groups/:groupId", "GET", "204"))
	assert.Equal(t, 2.0, after-before)

	unmatched := httpRequests.WithLabelValues("unmatched", "GET", "404")
	before = testutil.ToFloat64(unmatched)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, 1.0, testutil.ToFloat64(unmatched)-before)
}

func TestRecord(t *testing.T) {
	before := testutil.ToFloat64(DomainEvents.WithLabelValues("poll_voted"))
	Record("poll_voted")
	assert.Equal(t, before+1, testutil.ToFloat64(DomainEvents.WithLabelValues("poll_voted")))
}
