package http

import (
	"net/http"
	"strings"
	"time"

	echo "github.com/labstack/echo/v4"

	"github.com/shelfwise/catalog-notifier/internal/http/middleware"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

func listCursorsHandler(cursors repository.CursorsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		rows, err := cursors.ListByOrg(c.Request().Context(), orgID)
		if err != nil {
			c.Logger().Errorf("list cursors failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if rows == nil {
			rows = []model.Cursor{}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"count":   len(rows),
			"results": rows,
		})
	}
}

type advanceCursorReq struct {
	EventID     int64      `json:"event_id"`
	DeliveredAt *time.Time `json:"delivered_at"` // defaults to now
}

// advanceCursorHandler moves a consumer cursor forward. Requests behind the
// current position are accepted but report moved=false.
func advanceCursorHandler(cursors repository.CursorsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		consumerID := strings.TrimSpace(c.Param("consumer"))
		if consumerID == "" || len(consumerID) > 128 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid consumer"})
		}

		var req advanceCursorReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.EventID <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "event_id required"})
		}
		at := time.Now().UTC()
		if req.DeliveredAt != nil {
			at = req.DeliveredAt.UTC()
		}

		ctx := c.Request().Context()
		prev, err := cursors.Get(ctx, orgID, consumerID)
		if err != nil {
			c.Logger().Errorf("read cursor failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		cur, err := cursors.Advance(ctx, orgID, consumerID, req.EventID, at)
		if err != nil {
			c.Logger().Errorf("advance cursor failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}

		moved := prev == nil || cur.LastEventID > prev.LastEventID
		return c.JSON(http.StatusOK, map[string]any{
			"moved":  moved,
			"cursor": cur,
		})
	}
}
