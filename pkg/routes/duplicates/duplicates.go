// Package duplicates exposes duplicate detection over HTTP.
package duplicates

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/detection"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/ratelimit"
)

// FindRequest is the body of a single-record detection call.
type FindRequest struct {
	Attributes models.AttributeSet `json:"attributes"`
	Threshold  *int                `json:"threshold,omitempty"`
	ExcludeID  string              `json:"exclude_id,omitempty"`
}

type FindResponse struct {
	Matches []models.DuplicateMatch `json:"matches"`
}

// Handler serves the detection endpoints. The detector and logger are
// resolved per request from the active container.
type Handler struct {
	scanLimiter      *ratelimit.TenantLimiter
	defaultThreshold int
}

func NewHandler(scanLimiter *ratelimit.TenantLimiter, defaultThreshold int) *Handler {
	return &Handler{scanLimiter: scanLimiter, defaultThreshold: defaultThreshold}
}

// RegisterRoutes registers duplicate routes
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/:kind/find", h.Find)
	g.GET("/:kind/scan", h.Scan)
}

// Find ranks the tenant's records that look like the submitted attributes.
func (h *Handler) Find(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	kind, err := models.ParseEntityKind(c.Param("kind"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var req FindRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	threshold := h.defaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	ctx, detector, err := ectoinject.GetContext[*detection.Detector](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get detector")
	}

	matches, err := detector.FindDuplicatesFor(ctx, tenantID, kind, req.Attributes, threshold, req.ExcludeID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, FindResponse{Matches: matches})
}

// Scan returns one page of every duplicate pair of the tenant's records.
func (h *Handler) Scan(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID := appctx.GetTenantID(ctx)

	kind, err := models.ParseEntityKind(c.Param("kind"))
	if err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	threshold, page, pageSize := h.defaultThreshold, 1, detection.DefaultPageSize
	if err := echo.QueryParamsBinder(c).
		Int("threshold", &threshold).
		Int("page", &page).
		Int("page_size", &pageSize).
		BindError(); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "threshold, page and page_size must be integers")
	}

	ctx, detector, err := ectoinject.GetContext[*detection.Detector](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get detector")
	}

	if h.scanLimiter != nil && !h.scanLimiter.Allow(tenantID) {
		ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
		if logger != nil {
			logger.WithContext(ctx).WithField("tenant_id", tenantID).Warn("Scan rate limit exceeded")
		}
		return httperror.NewHTTPError(http.StatusTooManyRequests, "scan rate limit exceeded")
	}

	result, err := detector.ScanAllDuplicates(ctx, tenantID, kind, threshold, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
