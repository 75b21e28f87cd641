package middleware

import (
	"net/http"
	"time"

	"github.com/annel0/voxel-detach/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// RequestIDHeader заголовок, в котором клиент может передать свой id запроса
const RequestIDHeader = "X-Request-ID"

// RequestLogger снабжает каждый HTTP-запрос trace-ID и пишет краткие логи.
// Входящая строка пишется на DEBUG, итоговая на INFO, 4xx на WARN, 5xx на ERROR.
type RequestLogger struct {
	logger *logging.Logger
	quiet  map[string]bool
}

// NewRequestLogger создаёт middleware. logger == nil означает пакетный логгер.
// Для путей из quiet итоговая строка опускается до DEBUG.
func NewRequestLogger(logger *logging.Logger, quiet ...string) *RequestLogger {
	rl := &RequestLogger{logger: logger, quiet: make(map[string]bool, len(quiet))}
	for _, p := range quiet {
		rl.quiet[p] = true
	}
	return rl
}

func (rl *RequestLogger) log() *logging.Logger {
	if rl.logger != nil {
		return rl.logger
	}
	return logging.DefaultLogger()
}

// traceID берёт id из OpenTelemetry, затем из заголовка, иначе генерирует новый
func traceID(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.IsValid() {
		return sc.TraceID().String()
	}
	if id := c.GetHeader(RequestIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

func (rl *RequestLogger) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := traceID(c)
		c.Set("trace_id", id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log := rl.log()

		log.Debug("[HTTP] ▶ %s %s ip=%s trace=%s", method, path, c.ClientIP(), id)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("[HTTP] ◀ %s %s %d %s trace=%s errors=%s", method, path, status, latency, id, c.Errors.String())
		case status >= http.StatusBadRequest:
			log.Warn("[HTTP] ◀ %s %s %d %s trace=%s", method, path, status, latency, id)
		case rl.quiet[path]:
			log.Debug("[HTTP] ◀ %s %s %d %s trace=%s", method, path, status, latency, id)
		default:
			log.Info("[HTTP] ◀ %s %s %d %s trace=%s", method, path, status, latency, id)
		}
	}
}
