package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type observation struct {
	method string
	path   string
	status int
}

type observerStub struct {
	seen []observation
}

func (o *observerStub) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	o.seen = append(o.seen, observation{method: method, path: path, status: status})
}

func TestResponseMetaReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var meta map[string]interface{}
	router.GET("/public/summary", WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := serve(router, http.MethodGet, "/public/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestResponseMetaAbsentWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	var meta map[string]interface{}
	router.GET("/projects", func(c *gin.Context) {
		SetCacheHit(c, false)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	w := serve(router, http.MethodGet, "/projects", "")
	assert.Nil(t, meta)
	assert.Empty(t, w.Header().Get("X-Cache"))
}

func TestMetricsUsesRouteTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &observerStub{}
	router := gin.New()
	router.Use(Metrics(observer, "/health"))
	router.GET("/projects/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodGet, "/projects/abc", "")
	serve(router, http.MethodGet, "/health", "")
	serve(router, http.MethodGet, "/wp-login.php", "")

	require.Len(t, observer.seen, 2)
	assert.Equal(t, observation{method: http.MethodGet, path: "/projects/:id", status: http.StatusOK}, observer.seen[0])
	assert.Equal(t, observation{method: http.MethodGet, path: "unmatched", status: http.StatusNotFound}, observer.seen[1])
}

func TestMetricsToleratesNilObserver(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Metrics(nil))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/ok", "").Code)
}
