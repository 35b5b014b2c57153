package routes

import (
	"civichero-be/gate"
	"civichero-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, h Handlers) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", chain(h.LoginLimiter, h.Auth.Register)...)
		auth.POST("/login", chain(h.LoginLimiter, h.Auth.Login)...)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/me", middlewares.RequireRole(gate.AnyRole), h.Auth.Me)
	}
}
