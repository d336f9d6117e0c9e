package http

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/shelfwise/catalog-notifier/internal/http/middleware"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/repository"
)

// listEventHistoryHandler reads the delivered-event archive in ClickHouse.
// Rows land there through the firehose, so this view trails delivery by the
// archiver's batching interval.
func listEventHistoryHandler(chRepo repository.CHEventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit, offset := pageParams(c)

		filter := repository.EventHistoryFilter{
			OrgID:    &orgID,
			EntityID: strings.TrimSpace(c.QueryParam("entity_id")),
		}
		if raw := strings.TrimSpace(c.QueryParam("event_type")); raw != "" {
			if et := model.EventType(raw); et.Valid() {
				filter.EventType = raw
			}
		}

		events, err := chRepo.List(c.Request().Context(), filter, limit, offset)
		if err != nil {
			c.Logger().Errorf("clickhouse list failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "query failed"})
		}
		if events == nil {
			events = []model.ArchivedEvent{}
		}

		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(events),
			"results": events,
		})
	}
}
