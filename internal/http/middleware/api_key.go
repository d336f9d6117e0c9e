package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"

	"github.com/shelfwise/catalog-notifier/internal/repository"
)

// OrgIDFromCtx extracts the authenticated organization id set by APIKeyMiddleware.
func OrgIDFromCtx(c echo.Context) (uuid.UUID, bool) {
	v := c.Get("org_id")
	id, ok := v.(uuid.UUID)
	return id, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header against
// organizations.api_key. On success it stores the organization id (and its
// rate limit override, if any) in context.
func APIKeyMiddleware(orgs repository.OrgsRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			org, err := orgs.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if org == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set("org_id", org.ID)
			if org.RateLimitRPS != nil {
				c.Set("org_rps", *org.RateLimitRPS)
			}
			return next(c)
		}
	}
}
