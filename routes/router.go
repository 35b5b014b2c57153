package routes

import (
	"net/http"

	"civichero-be/controllers"

	"github.com/gin-gonic/gin"
)

// Handlers is everything the router mounts. Limiters and the websocket and
// metrics handlers are optional.
type Handlers struct {
	Auth  *controllers.AuthController
	Issue *controllers.IssueController
	User  *controllers.UserController
	File  *controllers.FileController

	Authenticate gin.HandlerFunc
	LoginLimiter gin.HandlerFunc
	IssueLimiter gin.HandlerFunc

	IssueFeed gin.HandlerFunc
	Metrics   http.Handler

	Middleware []gin.HandlerFunc
}

// NewRouter builds the engine with every route group registered.
func NewRouter(h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(h.Middleware...)
	r.Use(chain(h.Authenticate)...)

	AuthRoutes(r, h)
	IssueRoutes(r, h)
	UserRoutes(r, h)

	r.GET("/files/:bucket/:name", h.File.ServeFile)
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}
	return r
}

// chain drops nil handlers so optional middleware can be left unset.
func chain(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}
