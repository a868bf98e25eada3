// Package merges exposes the merge orchestrator and its audit trail over HTTP.
package merges

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
)

// MergeBody is the client half of a merge request; tenant and user come from headers.
type MergeBody struct {
	EntityKind      models.EntityKind `json:"entity_kind"`
	SurvivorID      string            `json:"survivor_id"`
	LoserID         string            `json:"loser_id"`
	FieldSelections map[string]any    `json:"field_selections"`
}

// Register registers merge routes
func Register(g *echo.Group) {
	g.POST("", merge)
	g.GET("/audit", listAudits)
	g.GET("/audit/:id", getAudit)
}

// merge folds the loser into the survivor.
func merge(c echo.Context) error {
	ctx := c.Request().Context()

	var body MergeBody
	if err := c.Bind(&body); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	ctx, orchestrator, err := ectoinject.GetContext[*merging.Orchestrator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge orchestrator")
	}

	result, err := orchestrator.Merge(ctx, models.MergeRequest{
		TenantID:        appctx.GetTenantID(ctx),
		EntityKind:      body.EntityKind,
		SurvivorID:      body.SurvivorID,
		LoserID:         body.LoserID,
		FieldSelections: body.FieldSelections,
		PerformedBy:     appctx.GetUserID(ctx),
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}

// listAudits lists the merges a record took part in.
func listAudits(c echo.Context) error {
	ctx := c.Request().Context()

	recordID := c.QueryParam("record_id")
	if recordID == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "record_id query parameter is required")
	}

	ctx, orchestrator, err := ectoinject.GetContext[*merging.Orchestrator](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge orchestrator")
	}

	audits, err := orchestrator.History(ctx, appctx.GetTenantID(ctx), recordID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, audits)
}

func getAudit(c echo.Context) error {
	ctx, orchestrator, err := ectoinject.GetContext[*merging.Orchestrator](c.Request().Context())
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get merge orchestrator")
	}

	audit, err := orchestrator.Audit(ctx, appctx.GetTenantID(ctx), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, audit)
}
