package rebalance

import (
	"github.com/gofiber/fiber/v2"

	"github.com/astralabs/astra-backend/pkg/authx"
	"github.com/astralabs/astra-backend/pkg/statusx"
)

// Handlers exposes the service over HTTP.
type Handlers struct {
	service *Service
}

// NewHandlers creates the HTTP handlers for the service.
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the user and agent routes. userAuth protects the
// user-facing routes; agentAuth protects the agent callbacks.
func (h *Handlers) RegisterRoutes(app *fiber.App, userAuth, agentAuth fiber.Handler) {
	api := app.Group("/api")

	api.Post("/rebalance", userAuth, h.submit)
	api.Get("/rebalance/status/:jobId", userAuth, h.jobStatus)

	agent := api.Group("/agent/rebalance", agentAuth)
	agent.Get("/jobs", h.agentJobs)
	agent.Post("/:jobId/status", h.agentUpdateStatus)

	api.Get("/metrics", h.metricsSummary)
}

func (h *Handlers) submit(c *fiber.Ctx) error {
	user := authx.UserFromCtx(c)
	if user == nil {
		return rebalanceErrors.NewWithMessage(ErrInvalidRequest, "missing authenticated user")
	}

	payload := map[string]any{}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return rebalanceErrors.NewWithCause(ErrInvalidRequest, err)
		}
	}

	requestMeta := map[string]any{
		"ip":        c.IP(),
		"userAgent": c.Get("User-Agent"),
		"requestId": c.Get("X-Request-ID"),
	}

	job, err := h.service.SubmitRebalance(c.Context(), user, payload, requestMeta)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"job":     job,
	})
}

func (h *Handlers) jobStatus(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return rebalanceErrors.NewWithMessage(ErrInvalidRequest, "missing job id")
	}

	job, err := h.service.GetJobStatus(c.Context(), jobID)
	if err != nil {
		return err
	}
	return c.JSON(job)
}

type agentStatusUpdate struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handlers) agentUpdateStatus(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return rebalanceErrors.NewWithMessage(ErrInvalidRequest, "missing job id")
	}

	var body agentStatusUpdate
	if err := c.BodyParser(&body); err != nil {
		return rebalanceErrors.NewWithCause(ErrInvalidRequest, err)
	}

	job, err := h.service.AgentUpdateStatus(c.Context(), jobID, statusx.Status(body.Status), body.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"job":     job,
	})
}

func (h *Handlers) agentJobs(c *fiber.Ctx) error {
	jobs, err := h.service.ListPendingJobs(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (h *Handlers) metricsSummary(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	summary, err := h.service.MetricsSummary(c.Context(), days)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}
