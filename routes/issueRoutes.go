package routes

import (
	"civichero-be/gate"
	"civichero-be/middlewares"
	"civichero-be/models"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes and the change-feed socket
func IssueRoutes(r *gin.Engine, h Handlers) {
	issue := r.Group("/api/issues")
	{
		issue.POST("", chain(middlewares.RequireRole(models.Citizen), h.IssueLimiter, h.Issue.CreateIssue)...)
		issue.GET("/mine", middlewares.RequireRole(models.Citizen), h.Issue.GetMyIssues)
		issue.GET("", middlewares.RequireRole(models.NGO), h.Issue.GetAllIssues)
		issue.GET("/:id", middlewares.RequireRole(gate.AnyRole), h.Issue.GetIssueByID)
		issue.POST("/:id/resolve", middlewares.RequireRole(models.NGO), h.Issue.ResolveIssue)
	}

	if h.IssueFeed != nil {
		r.GET("/ws/issues", middlewares.RequireRole(gate.AnyRole), h.IssueFeed)
	}
}
