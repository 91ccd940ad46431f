package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/csv-agent/internal/common"
	"github.com/suPer8Hu/csv-agent/internal/httpapi/handlers"
	"github.com/suPer8Hu/csv-agent/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery(logger))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/", h.Index)
	r.GET("/health", h.Health)

	r.POST("/chat", h.Chat)
	r.POST("/clear", h.Clear)

	// async turns, served when RABBIT_URL is set
	r.POST("/chat/async", h.SendChatMessageAsync)
	r.GET("/chat/jobs/:job_id", h.GetChatJob)
	return r
}
