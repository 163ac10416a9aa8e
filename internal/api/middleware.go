package api

import (
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
)

const (
	HeaderRequestID = "X-Request-ID"
	ctxRequestID    = "requestID"
)

// ulid.Monotonic не потокобезопасен
type ulidSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newULIDSource() *ulidSource {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &ulidSource{entropy: ulid.Monotonic(src, 0)}
}

func (s *ulidSource) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// RequestID берёт X-Request-ID клиента или выдаёт новый ULID.
func RequestID() gin.HandlerFunc {
	ids := newULIDSource()
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = ids.next()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"request_id", requestID(c),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
