package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"somfy-rts/internal/bitbuffer"
	"somfy-rts/internal/decoder"
	"somfy-rts/internal/logging"
	"somfy-rts/internal/metrics"
	"somfy-rts/internal/pipeline"
	"somfy-rts/internal/remotes"
	"somfy-rts/internal/somfy"
)

// Backend is the runtime surface the API reads from. *pipeline.Runtime
// implements it.
type Backend interface {
	Status(nowUTC time.Time) pipeline.StatusSnapshot
	Remotes(nowUTC time.Time) []remotes.Remote
	Frames(limit int) []pipeline.Record
	Decode(buf bitbuffer.Buffer) (somfy.Frame, error)
}

// maxDecodeBody bounds POST /api/decode.
const maxDecodeBody = 64 * 1024

func init() {
	gin.SetMode(gin.ReleaseMode)
}

func Router(b Backend, logs *logging.LogBuffer, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger), RequestMetrics())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.JSON(http.StatusOK, b.Status(time.Now().UTC()))
	})
	api.GET("/remotes", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"remotes": b.Remotes(time.Now().UTC())})
	})
	api.GET("/frames", func(c *gin.Context) {
		limit, ok := intQuery(c, "limit", 50, 1, 1000)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"frames": b.Frames(limit)})
	})
	api.POST("/decode", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDecodeBody+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if len(body) > maxDecodeBody {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "capture too large"})
			return
		}
		buf, err := decoder.ParseCaptureLine(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f, err := b.Decode(buf)
		if err != nil {
			var de *somfy.DecodeError
			if errors.As(err, &de) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": de.Kind.String()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, f)
	})
	if logs != nil {
		api.GET("/logs", func(c *gin.Context) {
			tail, ok := intQuery(c, "tail", 200, 1, 5000)
			if !ok {
				return
			}
			lines, dropped := logs.Snapshot(tail)
			c.Header("Cache-Control", "no-store")
			if strings.EqualFold(c.Query("format"), "text") {
				var sb strings.Builder
				for _, line := range lines {
					sb.WriteString(line)
					sb.WriteByte('\n')
				}
				c.String(http.StatusOK, sb.String())
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"now_utc": time.Now().UTC().Format(time.RFC3339Nano),
				"dropped": dropped,
				"lines":   lines,
			})
		})
	}
	return r
}

func intQuery(c *gin.Context, key string, def, lo, hi int) (int, bool) {
	s := strings.TrimSpace(c.Query(key))
	if s == "" {
		return def, true
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < lo || v > hi {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be an integer in [" + strconv.Itoa(lo) + "," + strconv.Itoa(hi) + "]"})
		return 0, false
	}
	return v, true
}

func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", routePath(c)).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("http_request")
	}
}

func RequestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordHTTPRequest(c.Request.Method, routePath(c), c.Writer.Status(), time.Since(start))
	}
}

// routePath prefers the route pattern so metric labels stay bounded.
func routePath(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

func Serve(ctx context.Context, listenAddr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
