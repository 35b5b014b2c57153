package controllers

import (
	"context"
	"net/http"
	"time"

	"civichero-be/apperr"
	"civichero-be/models"
	"civichero-be/services"
	"civichero-be/session"

	"github.com/gin-gonic/gin"
)

type Leaderboard interface {
	Top(ctx context.Context, typ models.ProfileType, limit int) ([]services.LeaderboardEntry, error)
}

type Dashboards interface {
	Build(ctx context.Context, sess *session.Session) (any, error)
	Citizen(ctx context.Context, sess *session.Session) (*services.CitizenDashboard, error)
	NGO(ctx context.Context, sess *session.Session) (*services.NGODashboard, error)
}

type UserController struct {
	leaderboard Leaderboard
	dashboards  Dashboards
}

func NewUserController(leaderboard Leaderboard, dashboards Dashboards) *UserController {
	return &UserController{leaderboard: leaderboard, dashboards: dashboards}
}

// GetLeaderboard ranks profiles by XP. ?type defaults to the caller's own.
func (uc *UserController) GetLeaderboard(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	typ := models.ProfileType(c.DefaultQuery("type", string(sess.Role())))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	entries, err := uc.leaderboard.Top(ctx, typ, parseLimit(c))
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": typ, "entries": entries})
}

// GetDashboard returns the dashboard matching the caller's profile type.
func (uc *UserController) GetDashboard(c *gin.Context) {
	uc.render(c, uc.dashboards.Build)
}

func (uc *UserController) GetCitizenDashboard(c *gin.Context) {
	uc.render(c, func(ctx context.Context, sess *session.Session) (any, error) {
		return uc.dashboards.Citizen(ctx, sess)
	})
}

func (uc *UserController) GetNGODashboard(c *gin.Context) {
	uc.render(c, func(ctx context.Context, sess *session.Session) (any, error) {
		return uc.dashboards.NGO(ctx, sess)
	})
}

func (uc *UserController) render(c *gin.Context, build func(context.Context, *session.Session) (any, error)) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	dash, err := build(ctx, sess)
	if err != nil {
		apperr.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
