package routes

import (
	"civichero-be/gate"
	"civichero-be/middlewares"
	"civichero-be/models"

	"github.com/gin-gonic/gin"
)

func UserRoutes(r *gin.Engine, h Handlers) {
	r.GET("/api/leaderboard", middlewares.RequireRole(gate.AnyRole), h.User.GetLeaderboard)
	r.GET("/api/dashboard", middlewares.RequireRole(gate.AnyRole), h.User.GetDashboard)

	r.GET("/citizen/dashboard", middlewares.RequireRole(models.Citizen), h.User.GetCitizenDashboard)
	r.GET("/ngo/dashboard", middlewares.RequireRole(models.NGO), h.User.GetNGODashboard)
}
