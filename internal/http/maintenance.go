package http

import (
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

type pruneReq struct {
	Retention string `json:"retention"` // Go duration, e.g. "168h"
}

// pruneHandler removes delivered events older than the retention window.
// Global across organizations: pruning only touches rows every consumer has
// already seen.
func pruneHandler(outbox repository.OutboxRepository, cfg config.MaintenanceConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req pruneReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		retention := cfg.Retention
		if raw := strings.TrimSpace(req.Retention); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid retention"})
			}
			retention = d
		}

		pruned, err := outbox.PruneDelivered(c.Request().Context(), retention)
		if err != nil {
			c.Logger().Errorf("prune failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"pruned":    pruned,
			"retention": retention.String(),
		})
	}
}

type migrateDLQReq struct {
	MaxAttempts int    `json:"max_attempts"`
	MaxAge      string `json:"max_age"` // Go duration, e.g. "24h"
}

// migrateDLQHandler moves exhausted or expired undelivered events to the DLQ.
func migrateDLQHandler(outbox repository.OutboxRepository, cfg config.MaintenanceConfig) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req migrateDLQReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		maxAttempts := cfg.DLQMaxAttempts
		if req.MaxAttempts > 0 {
			maxAttempts = req.MaxAttempts
		}
		maxAge := cfg.DLQMaxAge
		if raw := strings.TrimSpace(req.MaxAge); raw != "" {
			d, err := time.ParseDuration(raw)
			if err != nil || d <= 0 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid max_age"})
			}
			maxAge = d
		}

		migrated, err := outbox.MigrateFailedToDLQ(c.Request().Context(), maxAttempts, maxAge)
		if err != nil {
			c.Logger().Errorf("dlq migrate failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusOK, map[string]any{
			"migrated":     migrated,
			"max_attempts": maxAttempts,
			"max_age":      maxAge.String(),
		})
	}
}
