package rebalance

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/astralabs/astra-backend/pkg/authx"
	"github.com/astralabs/astra-backend/pkg/errx"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	service, _ := newTestService(t, Config{})

	// Stub auth: the middleware contract is just a user in locals.
	userAuth := func(c *fiber.Ctx) error {
		c.Locals(authx.LocalsUserKey, testUser())
		return c.Next()
	}
	agentAuth := func(c *fiber.Ctx) error { return c.Next() }

	app := fiber.New(fiber.Config{ErrorHandler: errx.FiberErrorHandler})
	NewHandlers(service).RegisterRoutes(app, userAuth, agentAuth)
	return app
}

func TestSubmitAndStatusRoutes(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/rebalance", strings.NewReader(`{"amount": 42}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("submit request: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var created struct {
		Success bool `json:"success"`
		Job     struct {
			JobID  string `json:"jobId"`
			Status string `json:"status"`
		} `json:"job"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !created.Success || created.Job.JobID == "" || created.Job.Status != "created" {
		t.Fatalf("unexpected response: %s", body)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/rebalance/status/"+created.Job.JobID, nil))
	if err != nil {
		t.Fatalf("status request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestStatusRouteUnknownJob(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/rebalance/status/nope", nil))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestAgentRoutes(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/rebalance", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("submit failed: status=%d err=%v", resp.StatusCode, err)
	}
	var created struct {
		Job struct {
			JobID string `json:"jobId"`
		} `json:"job"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/agent/rebalance/jobs", nil))
	if err != nil {
		t.Fatalf("jobs request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var listing struct {
		Count int `json:"count"`
	}
	body, _ = io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &listing); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listing.Count != 1 {
		t.Fatalf("expected 1 pending job, got %d", listing.Count)
	}

	update := strings.NewReader(`{"status": "done", "message": "Completed"}`)
	req = httptest.NewRequest("POST", "/api/agent/rebalance/"+created.Job.JobID+"/status", update)
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("update request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/metrics", nil))
	if err != nil {
		t.Fatalf("metrics request: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var summary struct {
		TotalJobs int `json:"totalJobs"`
	}
	body, _ = io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.TotalJobs != 1 {
		t.Fatalf("expected 1 total job, got %d", summary.TotalJobs)
	}
}

func TestAgentUpdateRejectsBadStatus(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("POST", "/api/agent/rebalance/some-job/status", strings.NewReader(`{"status": "exploded"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
