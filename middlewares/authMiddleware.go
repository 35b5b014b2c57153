package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"civichero-be/apperr"
	"civichero-be/gate"
	"civichero-be/models"
	"civichero-be/session"
	authUtils "civichero-be/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// AuthCookie carries the session token for browser clients.
	AuthCookie = "auth_token"

	gateStateKey = "gate_state"
	sessionKey   = "session"
	userIDKey    = "user_id"
)

// SessionRestorer loads a session snapshot by id.
type SessionRestorer interface {
	Restore(ctx context.Context, id string) (*session.Session, error)
}

// TokenFromRequest reads a "Bearer <token>" header, falling back to the
// auth cookie.
func TokenFromRequest(c *gin.Context) string {
	if authHeader := c.Request.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}
	return ""
}

// Authenticate restores the caller's session and records the resulting gate
// state. It never aborts; RequireRole enforces access.
func Authenticate(sessions SessionRestorer, jwtSecret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(gateStateKey, gate.State{Phase: gate.Unauthenticated})

		tokenString := TokenFromRequest(c)
		if tokenString == "" {
			c.Next()
			return
		}

		claims, err := authUtils.ParseToken(jwtSecret, tokenString)
		if err != nil {
			logger.Debug("token validation failed", zap.Error(err))
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		sess, err := sessions.Restore(ctx, claims.SessionID)
		switch {
		case err == nil:
		case errors.Is(err, session.ErrNoSession):
			c.Next()
			return
		default:
			logger.Warn("session restore failed", zap.String("session_id", claims.SessionID), zap.Error(err))
			c.Set(gateStateKey, gate.State{Phase: gate.Loading})
			c.Next()
			return
		}

		if sess.Profile.ID.Hex() != claims.UserID {
			logger.Warn("token user does not match session", zap.String("session_id", claims.SessionID))
			c.Next()
			return
		}

		sess.Token = tokenString
		SetSession(c, sess)
		c.Next()
	}
}

// RequireRole lets through sessions holding role, or any authorized session
// when role is gate.AnyRole. API callers get JSON errors carrying the
// redirect target; page routes get a 302.
func RequireRole(role models.ProfileType) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := gate.Evaluate(StateFrom(c), role)
		switch decision.Action {
		case gate.Render:
			c.Next()
		case gate.Placeholder:
			c.Header("Retry-After", "1")
			apperr.Respond(c, apperr.Network("Session is still loading, please retry", nil))
		default:
			if !isAPIRequest(c) {
				c.Redirect(http.StatusFound, decision.Target)
				c.Abort()
				return
			}
			status, msg := http.StatusForbidden, "You do not have access to this resource"
			if decision.Target == gate.LoginPath {
				status, msg = http.StatusUnauthorized, "User not authenticated"
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg, "redirect": decision.Target})
		}
	}
}

func isAPIRequest(c *gin.Context) bool {
	p := c.Request.URL.Path
	return strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/ws/")
}

// StateFrom returns the gate state Authenticate recorded.
func StateFrom(c *gin.Context) gate.State {
	if v, ok := c.Get(gateStateKey); ok {
		if st, ok := v.(gate.State); ok {
			return st
		}
	}
	return gate.State{Phase: gate.Unauthenticated}
}

// SetSession records sess as the caller's authorized session.
func SetSession(c *gin.Context, sess *session.Session) {
	c.Set(sessionKey, sess)
	c.Set(userIDKey, sess.Profile.ID.Hex())
	c.Set(gateStateKey, gate.AuthorizedAs(sess.Role()))
}

// SessionFrom returns the restored session, if any.
func SessionFrom(c *gin.Context) (*session.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	sess, ok := v.(*session.Session)
	return sess, ok && sess != nil
}
