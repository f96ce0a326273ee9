package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/api/dto"
	"github.com/spec-kit/ticket-premerge/internal/auth"
	"github.com/spec-kit/ticket-premerge/internal/report"
	"github.com/spec-kit/ticket-premerge/internal/repository"
	"github.com/spec-kit/ticket-premerge/internal/service"
	apperrors "github.com/spec-kit/ticket-premerge/pkg/util/errorutil"
)

// RunService is the part of the pre-merge service the API drives.
type RunService interface {
	Start(ctx context.Context, opts service.RunOptions) (string, error)
	Latest() (*report.Report, bool)
}

// RunsHandler exposes run triggering and history.
type RunsHandler struct {
	service RunService
	// runs is nil when Postgres is not configured.
	runs          repository.RunRepository
	logger        *zap.Logger
	maxWindowDays int
}

// NewRunsHandler constructs handler.
func NewRunsHandler(svc RunService, runs repository.RunRepository, maxWindowDays int, logger *zap.Logger) *RunsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{service: svc, runs: runs, maxWindowDays: maxWindowDays, logger: logger}
}

// Trigger POST /runs. The run outlives the request, so it is detached from
// the request context.
func (h *RunsHandler) Trigger(c *fiber.Ctx) error {
	var req dto.TriggerRunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if req.WindowDays < 0 || (h.maxWindowDays > 0 && req.WindowDays > h.maxWindowDays) {
		return apperrors.NewValidationError("window_days out of range", map[string]any{"max": h.maxWindowDays})
	}

	runID, err := h.service.Start(context.Background(), service.RunOptions{
		Trigger:    service.TriggerAPI,
		WindowDays: req.WindowDays,
		DryRun:     req.DryRun,
	})
	if err != nil {
		return err
	}

	if principal, ok := auth.PrincipalFromContext(c); ok {
		h.logger.Info("run triggered via API", zap.String("run_id", runID), zap.String("subject", principal.Subject))
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"data": dto.TriggerRunResponse{RunID: runID, Status: "started"}})
}

// Latest GET /runs/latest.
func (h *RunsHandler) Latest(c *fiber.Ctx) error {
	if rep, ok := h.service.Latest(); ok {
		return c.JSON(fiber.Map{"data": rep})
	}
	if h.runs == nil {
		return apperrors.NewNotFound("run", nil)
	}
	run, err := h.runs.Latest(c.UserContext())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("run", nil)
		}
		return err
	}
	return c.JSON(fiber.Map{"data": json.RawMessage(run.Report)})
}

// Get GET /runs/:id.
func (h *RunsHandler) Get(c *fiber.Ctx) error {
	runID := c.Params("id")
	if rep, ok := h.service.Latest(); ok && rep.RunID == runID {
		return c.JSON(fiber.Map{"data": rep})
	}
	if h.runs == nil {
		return apperrors.NewNotFound("run", map[string]any{"run_id": runID})
	}
	run, err := h.runs.GetByID(c.UserContext(), runID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("run", map[string]any{"run_id": runID})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": json.RawMessage(run.Report)})
}

// List GET /runs.
func (h *RunsHandler) List(c *fiber.Ctx) error {
	query := dto.RunListQuery{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if query.Limit <= 0 || query.Limit > 100 {
		query.Limit = 20
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	items := []dto.RunSummary{}
	if h.runs != nil {
		runs, err := h.runs.List(c.UserContext(), query.Limit, query.Offset)
		if err != nil {
			return err
		}
		for _, run := range runs {
			items = append(items, dto.NewRunSummary(run))
		}
	}
	return c.JSON(fiber.Map{
		"data": items,
		"pagination": fiber.Map{
			"limit":  query.Limit,
			"offset": query.Offset,
		},
	})
}
