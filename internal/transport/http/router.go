package http

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var registerTagNames sync.Once

// NewRouter builds the gin engine serving the API and the live feed.
func NewRouter(h *Handler, ws *WSHandler, adminSecret string) *gin.Engine {
	registerTagNames.Do(useJSONFieldNames)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(), cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/healthz", Healthz)
	r.GET("/ws/results", gin.WrapF(ws.ServeWS))

	api := r.Group("/api")
	api.POST("/submit-test", h.SubmitTest)
	api.GET("/process-results", h.ProcessResults)
	api.POST("/process-results", h.ProcessResults)
	api.POST("/send-test-notification", AdminOnly(adminSecret), h.SendTestNotification)
	api.GET("/results/:id", h.GetResult)
	api.GET("/tests/:testId/attempts", h.ListAttempts)
	return r
}

// useJSONFieldNames makes binding errors report JSON names instead of Go field names.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		evt := log.Info()
		if status >= 500 {
			evt = log.Error()
		} else if status >= 400 {
			evt = log.Warn()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
