package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordVote(t *testing.T) {
	before := testutil.ToFloat64(VotesTotal.WithLabelValues("answer", "flip"))
	RecordVote("answer", "flip")
	assert.Equal(t, before+1, testutil.ToFloat64(VotesTotal.WithLabelValues("answer", "flip")))
}

func TestRecordNotification(t *testing.T) {
	created := testutil.ToFloat64(NotificationsCreated.WithLabelValues("mention"))
	failed := testutil.ToFloat64(NotificationFailures.WithLabelValues("mention"))

	RecordNotification("mention", nil)
	RecordNotification("mention", errors.New("db down"))

	assert.Equal(t, created+1, testutil.ToFloat64(NotificationsCreated.WithLabelValues("mention")))
	assert.Equal(t, failed+1, testutil.ToFloat64(NotificationFailures.WithLabelValues("mention")))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/9", nil))

	assert.GreaterOrEqual(t, testutil.CollectAndCount(APIRequestDuration, "stackit_http_request_duration_seconds"), 1)
}
