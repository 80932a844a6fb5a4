package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/workhub-api/pkg/middleware/requestid"
)

const (
	responseMetaKey  = "response_meta"
	requestStartKey  = "response_meta_start"
	cacheHitKey      = "cache_hit"
	processingTimeMS = "processing_time_ms"
)

// ResponseMeta collects the "meta" block of an announcement response.
type ResponseMeta map[string]interface{}

// WithResponseMeta seeds the request with a meta block carrying the request
// id. The handling time is stamped when a handler extracts the block.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		meta := ResponseMeta{}
		if id := requestid.Value(c); id != "" {
			meta["request_id"] = id
		}
		c.Set(responseMetaKey, meta)
		c.Next()
	}
}

// SetCacheHit records whether a search page came from the search cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

// SetMeta stores one entry of the response meta block.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	metaFor(c)[key] = value
}

// ExtractMeta returns the meta block, stamped with the time spent so far, or
// nil when WithResponseMeta did not run and nothing was set. Call it right
// before writing the response.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	meta := lookupMeta(c)
	if meta == nil {
		return nil
	}
	value, _ := c.Get(requestStartKey)
	if start, ok := value.(time.Time); ok {
		meta[processingTimeMS] = time.Since(start).Milliseconds()
	}
	return meta
}

func lookupMeta(c *gin.Context) ResponseMeta {
	if c == nil {
		return nil
	}
	value, exists := c.Get(responseMetaKey)
	if !exists {
		return nil
	}
	meta, ok := value.(ResponseMeta)
	if !ok {
		return nil
	}
	return meta
}

func metaFor(c *gin.Context) ResponseMeta {
	if meta := lookupMeta(c); meta != nil {
		return meta
	}
	meta := ResponseMeta{}
	c.Set(responseMetaKey, meta)
	return meta
}
