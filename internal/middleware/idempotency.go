package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	internalredis "rydz/internal/redis"
)

const idempotencyHeader = "Idempotency-Key"

// storedResponse is the recorded outcome of an idempotent request.
type storedResponse struct {
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body"`
}

// captureWriter wraps gin.ResponseWriter to capture the response body.
type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency returns middleware that replays the recorded response for a
// repeated Idempotency-Key instead of re-running the mutation.
func Idempotency(cache internalredis.CacheStoreInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		data, err := cache.GetIdempotentResponse(ctx, key)
		if err == nil && data != nil {
			var stored storedResponse
			if json.Unmarshal(data, &stored) == nil {
				c.Data(stored.StatusCode, "application/json", stored.Body)
				c.Abort()
				return
			}
		}

		w := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		// Server-side failures are not recorded; the client may retry.
		if c.Writer.Status() >= 200 && c.Writer.Status() < 500 {
			stored := storedResponse{
				StatusCode: c.Writer.Status(),
				Body:       w.body.Bytes(),
			}
			if data, err := json.Marshal(stored); err == nil {
				_ = cache.SetIdempotentResponse(ctx, key, data)
			}
		}
	}
}
