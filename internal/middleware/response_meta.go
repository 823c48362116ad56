package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "portal.response_meta"
	cacheHeader     = "X-Cache"
)

type responseMeta struct {
	start  time.Time
	values map[string]interface{}
}

// WithResponseMeta enables the meta block on public envelopes. Handlers outside
// a WithResponseMeta group get no meta.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, &responseMeta{start: time.Now(), values: map[string]interface{}{}})
		c.Next()
	}
}

// SetCacheHit marks whether the payload came from the stats cache.
func SetCacheHit(c *gin.Context, hit bool) {
	meta := metaFrom(c)
	if meta == nil {
		return
	}
	meta.values["cache_hit"] = hit
	if hit {
		c.Header(cacheHeader, "HIT")
	} else {
		c.Header(cacheHeader, "MISS")
	}
}

// ExtractMeta snapshots the metadata for the response being written, stamping
// the elapsed processing time.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := metaFrom(c)
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta.values)+1)
	for k, v := range meta.values {
		out[k] = v
	}
	out["processing_time_ms"] = time.Since(meta.start).Milliseconds()
	return out
}

func metaFrom(c *gin.Context) *responseMeta {
	if c == nil {
		return nil
	}
	if v, ok := c.Get(responseMetaKey); ok {
		if meta, ok := v.(*responseMeta); ok {
			return meta
		}
	}
	return nil
}
