package controllers

import (
	"context"
	"net/http"
	"time"

	"civichero-be/apperr"
	"civichero-be/middlewares"
	"civichero-be/models"
	"civichero-be/session"
	authUtils "civichero-be/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionManager is the session store as seen by the auth endpoints.
type SessionManager interface {
	Login(ctx context.Context, email, password string) (*session.Session, error)
	Register(ctx context.Context, email, password, name string, typ models.ProfileType) (*session.Session, error)
	Logout(ctx context.Context, id string) error
}

type CookieConfig struct {
	Domain     string
	Production bool
	JWTSecret  string
	// CrossSite is set when named client origins live on another site and
	// need the cookie sent along with their requests.
	CrossSite bool
}

type AuthController struct {
	sessions SessionManager
	cookie   CookieConfig
	logger   *zap.Logger
}

func NewAuthController(sessions SessionManager, cookie CookieConfig, logger *zap.Logger) *AuthController {
	return &AuthController{sessions: sessions, cookie: cookie, logger: logger}
}

type sessionResponse struct {
	Profile   models.Profile `json:"profile"`
	Redirect  string         `json:"redirect"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

func newSessionResponse(sess *session.Session) sessionResponse {
	return sessionResponse{
		Profile:   sess.Profile,
		Redirect:  sess.Role().Dashboard(),
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	}
}

// Register handles profile creation and signs the new profile in.
func (a *AuthController) Register(c *gin.Context) {
	var input struct {
		Name     string             `json:"name" binding:"required,max=50"`
		Email    string             `json:"email" binding:"required,email"`
		Password string             `json:"password" binding:"required,min=6"`
		Type     models.ProfileType `json:"type" binding:"required,oneof=citizen ngo"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sess, err := a.sessions.Register(ctx, input.Email, input.Password, input.Name, input.Type)
	if err != nil {
		a.logger.Info("registration failed", zap.String("email", input.Email), zap.Error(err))
		apperr.Respond(c, err)
		return
	}

	a.setCookie(c, sess)
	c.JSON(http.StatusCreated, newSessionResponse(sess))
}

// Login handles credential sign-in.
func (a *AuthController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sess, err := a.sessions.Login(ctx, input.Email, input.Password)
	if err != nil {
		apperr.Respond(c, err)
		return
	}

	a.setCookie(c, sess)
	c.JSON(http.StatusOK, newSessionResponse(sess))
}

// Me returns the caller's session profile.
func (a *AuthController) Me(c *gin.Context) {
	sess, ok := middlewares.SessionFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile":   sess.Profile,
		"redirect":  sess.Role().Dashboard(),
		"expiresAt": sess.ExpiresAt,
	})
}

// Logout drops the session snapshot and clears the cookie. Calling it
// without a session is not an error.
func (a *AuthController) Logout(c *gin.Context) {
	if token := middlewares.TokenFromRequest(c); token != "" {
		if claims, err := authUtils.ParseToken(a.cookie.JWTSecret, token); err == nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
			defer cancel()
			if err := a.sessions.Logout(ctx, claims.SessionID); err != nil {
				apperr.Respond(c, err)
				return
			}
		}
	}

	c.SetSameSite(a.sameSite())
	c.SetCookie(middlewares.AuthCookie, "", -1, "/", a.cookieDomain(), a.cookie.Production, true)
	c.JSON(http.StatusOK, gin.H{
		"message":  "Logged out successfully",
		"redirect": "/login",
	})
}

// For production, don't set domain to allow cross-origin cookies.
func (a *AuthController) cookieDomain() string {
	if a.cookie.Production {
		return ""
	}
	return a.cookie.Domain
}

func (a *AuthController) setCookie(c *gin.Context, sess *session.Session) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middlewares.AuthCookie,
		Value:    sess.Token,
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		Path:     "/",
		Domain:   a.cookieDomain(),
		Secure:   a.cookie.Production,
		HttpOnly: true,
		SameSite: a.sameSite(),
	})
}

func (a *AuthController) sameSite() http.SameSite {
	if a.cookie.CrossSite {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
