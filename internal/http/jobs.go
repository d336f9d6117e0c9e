package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/shelfwise/catalog-notifier/internal/http/middleware"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/service/catalog"
)

// CatalogService is the slice of the catalog service the job handlers use.
type CatalogService interface {
	CreateJob(ctx context.Context, orgID uuid.UUID, title string, source model.JobSource, itemCount int) (*model.CatalogingJob, error)
	TransitionJob(ctx context.Context, orgID uuid.UUID, id string, next model.JobStatus, errorDetail *string) (*model.CatalogingJob, error)
	FinalizeJob(ctx context.Context, orgID uuid.UUID, id string) (*model.CatalogingJob, error)
	UpdateDetails(ctx context.Context, orgID uuid.UUID, id string, title *string, itemCount *int) (*model.CatalogingJob, error)
	DeleteJob(ctx context.Context, orgID uuid.UUID, id string) error
	Get(ctx context.Context, orgID uuid.UUID, id string) (*model.CatalogingJob, error)
	List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]model.CatalogingJob, error)
}

type createJobReq struct {
	Title      string `json:"title"`
	SourceType string `json:"source_type"` // "isbn_lookup" | "csv_import" | "manual"
	ItemCount  int    `json:"item_count"`
}

func createJobHandler(svc CatalogService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createJobReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		req.Title = strings.TrimSpace(req.Title)
		if req.Title == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "title required"})
		}
		if utf8.RuneCountInString(req.Title) > 200 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "title too long"})
		}

		source, ok := model.ParseJobSource(req.SourceType)
		if !ok {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid source_type"})
		}

		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		job, err := svc.CreateJob(c.Request().Context(), orgID, req.Title, source, req.ItemCount)
		if err != nil {
			log.Errorf("create job failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		return c.JSON(http.StatusCreated, job)
	}
}

func listJobsHandler(svc CatalogService) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		limit, offset := pageParams(c)
		jobs, err := svc.List(c.Request().Context(), orgID, limit, offset)
		if err != nil {
			c.Logger().Errorf("list jobs failed: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
		}
		if jobs == nil {
			jobs = []model.CatalogingJob{}
		}
		return c.JSON(http.StatusOK, map[string]any{
			"limit":   limit,
			"offset":  offset,
			"count":   len(jobs),
			"results": jobs,
		})
	}
}

func getJobHandler(svc CatalogService) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		job, err := svc.Get(c.Request().Context(), orgID, c.Param("id"))
		if err != nil {
			return jobError(c, err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

type updateJobReq struct {
	Title     *string `json:"title"`
	ItemCount *int    `json:"item_count"`
}

func updateJobHandler(svc CatalogService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateJobReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}
		if req.Title == nil && req.ItemCount == nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "nothing to update"})
		}
		if req.Title != nil {
			t := strings.TrimSpace(*req.Title)
			if t == "" || utf8.RuneCountInString(t) > 200 {
				return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid title"})
			}
			req.Title = &t
		}
		if req.ItemCount != nil && *req.ItemCount < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid item_count"})
		}

		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		job, err := svc.UpdateDetails(c.Request().Context(), orgID, c.Param("id"), req.Title, req.ItemCount)
		if err != nil {
			return jobError(c, err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

type transitionJobReq struct {
	Status      string  `json:"status"` // "processing" | "completed" | "failed"
	ErrorDetail *string `json:"error_detail"`
}

func transitionJobHandler(svc CatalogService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req transitionJobReq
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "bad request"})
		}

		next := model.JobStatus(strings.ToLower(strings.TrimSpace(req.Status)))
		if !next.Valid() {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid status"})
		}

		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		job, err := svc.TransitionJob(c.Request().Context(), orgID, c.Param("id"), next, req.ErrorDetail)
		if err != nil {
			return jobError(c, err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

func finalizeJobHandler(svc CatalogService) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		job, err := svc.FinalizeJob(c.Request().Context(), orgID, c.Param("id"))
		if err != nil {
			return jobError(c, err)
		}
		return c.JSON(http.StatusOK, job)
	}
}

func deleteJobHandler(svc CatalogService) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := middleware.OrgIDFromCtx(c)
		if !ok {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		}

		id := c.Param("id")
		if err := svc.DeleteJob(c.Request().Context(), orgID, id); err != nil {
			return jobError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]any{"deleted": true, "id": id})
	}
}

// jobError maps service errors onto HTTP responses.
func jobError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, catalog.ErrJobNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	case errors.Is(err, catalog.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, map[string]any{
			"error":       "invalid_transition",
			"description": err.Error(),
		})
	default:
		c.Logger().Errorf("job op failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
}

// pageParams reads limit/offset query params, capping limit at 1000.
func pageParams(c echo.Context) (limit, offset int) {
	limit, offset = 50, 0
	if v := c.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	if v := c.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
