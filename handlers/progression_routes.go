// handlers/progression_routes.go
package handlers

import (
	"errors"
	"strconv"

	"warungsoal-progression/middleware"
	"warungsoal-progression/models"
	"warungsoal-progression/services"
	"warungsoal-progression/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// ProgressionHandlers serves the progression HTTP API.
type ProgressionHandlers struct {
	Progression  *services.ProgressionService
	Seasons      *services.SeasonController
	Stream       *services.StatsStream
	Auth         middleware.TokenValidator // nil disables the stats stream
	ServiceToken string                    // X-Service-Token expected on /progression/events
}

// SetupProgressionRoutes registers every route. The gateway forwards paths like
// /api/v1/progression/user/progress as /user/progress.
func SetupProgressionRoutes(app *fiber.App, h *ProgressionHandlers) {
	userCtx := middleware.UserContextMiddleware()

	app.Get("/user/progress", userCtx, h.getMyProgress)
	app.Get("/user/progress/seasons", userCtx, h.getMySeasons)
	app.Get("/users/:id/progress", userCtx, h.getUserProgress)
	app.Get("/leaderboard", userCtx, h.getLeaderboard)
	app.Get("/season", userCtx, h.getSeason)
	app.Post("/progression/events", middleware.ServiceTokenMiddleware(h.ServiceToken), h.postEvent)

	admin := app.Group("/s/admin", userCtx, middleware.RequireRole(models.RoleAdmin))
	admin.Post("/season/reset", h.resetSeason)

	if h.Auth != nil && h.Stream != nil {
		app.Get("/stream/stats", middleware.SSEAuthMiddleware(h.Auth), h.streamStats)
	}
}

func (h *ProgressionHandlers) getMyProgress(c *fiber.Ctx) error {
	return h.progressFor(c, middleware.UserID(c))
}

func (h *ProgressionHandlers) getUserProgress(c *fiber.Ctx) error {
	return h.progressFor(c, c.Params("id"))
}

func (h *ProgressionHandlers) progressFor(c *fiber.Ctx, userID string) error {
	stats, err := h.Progression.GetStats(c.UserContext(), userID)
	if err != nil {
		return writeError(c, "failed to get progress", err)
	}
	return c.JSON(services.NewStatsView(*stats))
}

func (h *ProgressionHandlers) getMySeasons(c *fiber.Ctx) error {
	results, err := h.Seasons.History(c.UserContext(), middleware.UserID(c))
	if err != nil {
		return writeError(c, "failed to get season history", err)
	}
	return c.JSON(fiber.Map{"seasons": results})
}

func (h *ProgressionHandlers) getLeaderboard(c *fiber.Ctx) error {
	scope, ok := services.ParseLeaderboardScope(c.Query("scope"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid scope",
			"cause": "scope must be seasonal or alltime",
		})
	}

	limit := services.DefaultLeaderboardLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid limit",
				"cause": err.Error(),
			})
		}
		limit = n
	}

	entries, err := h.Progression.GetLeaderboard(c.UserContext(), scope, limit)
	if err != nil {
		return writeError(c, "failed to get leaderboard", err)
	}
	return c.JSON(fiber.Map{"scope": scope, "entries": entries})
}

func (h *ProgressionHandlers) getSeason(c *fiber.Ctx) error {
	status, err := h.Seasons.Status(c.UserContext())
	if err != nil {
		return writeError(c, "failed to get season", err)
	}
	return c.JSON(status)
}

// awardEventRequest is posted by the Q&A workflow, which owns the question and
// answer rows and therefore the author ids. ActorID is the user whose action
// triggered the event.
type awardEventRequest struct {
	EventID          string            `json:"event_id"`
	ActorID          string            `json:"actor_id"`
	ActorRoles       []string          `json:"actor_roles"`
	RecipientID      string            `json:"recipient_id"`
	Action           models.Action     `json:"action"`
	Difficulty       models.Difficulty `json:"difficulty"`
	QuestionID       string            `json:"question_id"`
	QuestionAuthorID string            `json:"question_author_id"`
	AnswerID         string            `json:"answer_id"`
	AnswerAuthorID   string            `json:"answer_author_id"`
}

func (h *ProgressionHandlers) postEvent(c *fiber.Ctx) error {
	var body awardEventRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON",
			"cause": err.Error(),
		})
	}
	if _, err := uuid.Parse(body.EventID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "event_id must be a UUID",
			"cause": err.Error(),
		})
	}
	if body.QuestionID == "" || (body.Action != models.ActionQuestionAsked && body.AnswerID == "") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing question_id or answer_id",
			"cause": "question_id is always required, answer_id for answer awards",
		})
	}

	req := services.AwardRequest{
		EventID:          body.EventID,
		ActorID:          body.ActorID,
		ActorRoles:       body.ActorRoles,
		RecipientID:      body.RecipientID,
		QuestionID:       body.QuestionID,
		QuestionAuthorID: body.QuestionAuthorID,
		AnswerID:         body.AnswerID,
		AnswerAuthorID:   body.AnswerAuthorID,
		Action:           body.Action,
		Difficulty:       body.Difficulty,
	}
	if err := services.ValidateAward(req); err != nil {
		return writeError(c, "award rejected", err)
	}

	out, err := h.Progression.Award(c.UserContext(), req.Event())
	if err != nil {
		return writeError(c, "award failed", err)
	}
	return c.JSON(fiber.Map{
		"event_id": body.EventID,
		"replayed": out.Replayed,
		"stats":    services.NewStatsView(*out.Stats),
	})
}

func (h *ProgressionHandlers) streamStats(c *fiber.Ctx) error {
	utils.LogInfo("📡 [SSE] stats stream for %s (device %s, filter=%q)",
		middleware.UserID(c), middleware.DeviceID(c), c.Query("user_id"))
	return h.Stream.Handler(c)
}

func (h *ProgressionHandlers) resetSeason(c *fiber.Ctx) error {
	report, err := h.Seasons.ResetSeason(c.UserContext())
	if err != nil {
		return writeError(c, "season reset failed", err)
	}

	resp := fiber.Map{
		"closed":      report.Closed,
		"opened":      report.Opened,
		"users_reset": report.UsersReset,
	}
	if report.ArchiveURL != "" {
		resp["archive_url"] = report.ArchiveURL
	}
	if report.ArchiveErr != nil {
		resp["archive_error"] = report.ArchiveErr.Error()
	}
	return c.JSON(resp)
}

// statusFor maps the service error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidAction):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrSelfAward), errors.Is(err, services.ErrForbiddenAward):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrConcurrencyConflict), errors.Is(err, services.ErrDuplicateAward):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

func writeError(c *fiber.Ctx, msg string, err error) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
