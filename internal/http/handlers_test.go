package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"sitewright/internal/provision"
	"sitewright/internal/store"
)

// memJobStore backs a real provision.Service in handler tests without
// a database.
type memJobStore struct {
	jobs map[uuid.UUID]provision.JobRecord
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[uuid.UUID]provision.JobRecord)}
}

func (m *memJobStore) CreateJob(ctx context.Context, job *provision.JobRecord) error {
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobStore) GetJob(ctx context.Context, id uuid.UUID) (*provision.JobRecord, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, provision.ErrJobNotFound
	}
	cp := j
	return &cp, nil
}

func (m *memJobStore) ListTenantJobs(ctx context.Context, tenantID uuid.UUID) ([]*provision.JobRecord, error) {
	var out []*provision.JobRecord
	for _, j := range m.jobs {
		if j.TenantID == tenantID {
			cp := j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *memJobStore) UpdateJob(ctx context.Context, job *provision.JobRecord) error {
	cur, ok := m.jobs[job.ID]
	if !ok {
		return provision.ErrJobNotFound
	}
	if cur.Status.Terminal() {
		return provision.ErrJobFinished
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobStore) ListActiveJobs(ctx context.Context) ([]*provision.JobRecord, error) {
	return nil, nil
}

func testService(jobs provision.JobStore) *provision.Service {
	reg := provision.NewRegistry(provision.Deps{})
	return provision.NewService(context.Background(), jobs, nil, reg, nil, nil, nil)
}

func TestJobStatus_InvalidID(t *testing.T) {
	app := fiber.New()
	svc := testService(newMemJobStore())

	app.Get("/v1/jobs/:id", func(c *fiber.Ctx) error {
		c.Locals("provision", svc)
		return jobStatusHandler(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/not-a-uuid", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestJobStatus_NotFound(t *testing.T) {
	app := fiber.New()
	svc := testService(newMemJobStore())

	app.Get("/v1/jobs/:id", func(c *fiber.Ctx) error {
		c.Locals("provision", svc)
		return jobStatusHandler(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+uuid.New().String(), nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestJobStatus_ReturnsFormattedJob(t *testing.T) {
	jobs := newMemJobStore()
	jobID := uuid.New()
	tenantID := uuid.New()
	jobs.jobs[jobID] = provision.JobRecord{
		ID: jobID, TenantID: tenantID, Type: provision.JobCreate,
		Status: provision.StatusRunning, Progress: 50,
		CurrentStep: "DEPLOY_TO_CDN", StepsTotal: 6, StepsCompleted: 3,
		CreatedAt: time.Now(),
	}
	svc := testService(jobs)

	app := fiber.New()
	app.Get("/v1/jobs/:id", func(c *fiber.Ctx) error {
		c.Locals("provision", svc)
		return jobStatusHandler(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/"+jobID.String(), nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body JobStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Job == nil || body.Job.Progress != 50 || body.Job.CurrentStep != "DEPLOY_TO_CDN" {
		t.Fatalf("unexpected body %+v", body.Job)
	}
}

func TestCancelJob_InvalidID(t *testing.T) {
	app := fiber.New()
	svc := testService(newMemJobStore())

	app.Post("/v1/jobs/:id/cancel", func(c *fiber.Ctx) error {
		c.Locals("provision", svc)
		return cancelJobHandler(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/nope/cancel", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCancelJob_UnknownReportsNotCancelled(t *testing.T) {
	app := fiber.New()
	svc := testService(newMemJobStore())

	app.Post("/v1/jobs/:id/cancel", func(c *fiber.Ctx) error {
		c.Locals("provision", svc)
		return cancelJobHandler(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/"+uuid.New().String()+"/cancel", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body CancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Cancelled {
		t.Fatalf("unknown job must report cancelled=false")
	}
}

func TestCancelJob_QueuedJob(t *testing.T) {
	jobs := newMemJobStore()
	jobID := uuid.New()
	jobs.jobs[jobID] = provision.JobRecord{
		ID: jobID, TenantID: uuid.New(), Type: provision.JobCreate,
		Status: provision.StatusQueued, CurrentStep: provision.CurrentStepQueued,
		StepsTotal: 6, CreatedAt: time.Now(),
	}
	svc := testService(jobs)

	app := fiber.New()
	app.Post("/v1/jobs/:id/cancel", func(c *fiber.Ctx) error {
		c.Locals("provision", svc)
		return cancelJobHandler(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/jobs/"+jobID.String()+"/cancel", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body CancelResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Cancelled {
		t.Fatalf("queued job should cancel")
	}
	if got := jobs.jobs[jobID].Status; got != provision.StatusCancelled {
		t.Fatalf("stored status = %s, want cancelled", got)
	}
}

func TestTenantJobs_InvalidID(t *testing.T) {
	app := fiber.New()
	svc := testService(newMemJobStore())

	app.Get("/v1/tenants/:id/jobs", func(c *fiber.Ctx) error {
		c.Locals("provision", svc)
		return tenantJobsHandler(c)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/tenants/xyz/jobs", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPublish_InvalidType(t *testing.T) {
	app := fiber.New()
	svc := testService(newMemJobStore())
	st := &store.Store{}

	app.Post("/v1/tenants/:id/publish", func(c *fiber.Ctx) error {
		c.Locals("provision", svc)
		c.Locals("store", st)
		return publishHandler(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/tenants/"+uuid.New().String()+"/publish",
		strings.NewReader(`{"type":"destroy"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCreateTenant_InvalidSlug(t *testing.T) {
	app := fiber.New()
	st := &store.Store{}

	app.Post("/v1/tenants", func(c *fiber.Ctx) error {
		c.Locals("store", st)
		return createTenantHandler(c)
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/tenants",
		strings.NewReader(`{"slug":"Bad Slug!","name":"Acme"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
