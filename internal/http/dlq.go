package http

import (
	"net/http"

	echo "github.com/labstack/echo/v4"

	"github.com/shelfwise/catalog-notifier/internal/http/middleware"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

func listDLQHandler(dlq repository.DLQRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit, offset := pageParams(c)
		ctx := c.Request().Context()

		rows, err := dlq.List(ctx, &orgID, limit, offset)
		if err != nil {
			c.Logger().Errorf("dlq list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		total, err := dlq.Count(ctx, &orgID)
		if err != nil {
			c.Logger().Errorf("dlq count failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if rows == nil {
			rows = []model.DLQEvent{}
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(rows),
			"total":   total,
			"results": rows,
		})
	}
}
