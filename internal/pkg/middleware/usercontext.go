package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"

	"github.com/ManuelReschke/ToolFox/internal/pkg/session"
	"github.com/ManuelReschke/ToolFox/internal/pkg/usercontext"
)

// UserContextMiddleware sets up the user context from the shared session store.
func UserContextMiddleware(c *fiber.Ctx) error {
	return UserContext(session.GetSessionStore())(c)
}

// UserContext builds the middleware for an explicit store. Requests without a
// readable session continue as anonymous.
func UserContext(store *fibersession.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		anonymous := usercontext.UserContext{}
		if store == nil {
			usercontext.Set(c, anonymous)
			return c.Next()
		}

		sess, err := store.Get(c)
		if err != nil {
			usercontext.Set(c, anonymous)
			return c.Next()
		}

		userID := sessionString(sess.Get(usercontext.KeyUserID))
		if userID == "" {
			usercontext.Set(c, anonymous)
			return c.Next()
		}

		usercontext.Set(c, usercontext.UserContext{
			UserID:     userID,
			Username:   sessionString(sess.Get(usercontext.KeyUsername)),
			IsLoggedIn: true,
			IsAdmin:    sessionBool(sess.Get(usercontext.KeyIsAdmin)),
		})
		return c.Next()
	}
}

func sessionString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func sessionBool(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	default:
		return false
	}
}
