package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"sitewright/internal/model"
)

// memJobStore is an in-memory JobStore. Update snapshots are recorded
// so tests can assert on the exact persisted sequence.
type memJobStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]JobRecord
	updates []JobRecord

	failUpdate  bool
	afterUpdate func(n int, st *memJobStore)
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[uuid.UUID]JobRecord)}
}

func (m *memJobStore) CreateJob(ctx context.Context, job *JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.jobs {
		if j.TenantID == job.TenantID && !j.Status.Terminal() {
			return ErrTenantBusy
		}
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobStore) GetJob(ctx context.Context, id uuid.UUID) (*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := j
	return &cp, nil
}

func (m *memJobStore) ListTenantJobs(ctx context.Context, tenantID uuid.UUID) ([]*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*JobRecord
	for _, j := range m.jobs {
		if j.TenantID == tenantID {
			cp := j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out, nil
}

func (m *memJobStore) UpdateJob(ctx context.Context, job *JobRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate {
		return fmt.Errorf("update rejected")
	}
	cur, ok := m.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	// Terminal records are immutable, like the guarded SQL update.
	if cur.Status.Terminal() {
		return ErrJobFinished
	}
	m.jobs[job.ID] = *job
	m.updates = append(m.updates, *job)
	if m.afterUpdate != nil {
		m.afterUpdate(len(m.updates), m)
	}
	return nil
}

func (m *memJobStore) ListActiveJobs(ctx context.Context) ([]*JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*JobRecord
	for _, j := range m.jobs {
		if !j.Status.Terminal() {
			cp := j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

// setStatus flips a stored job's status directly, bypassing UpdateJob.
func (m *memJobStore) setStatus(id uuid.UUID, st Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	j.Status = st
	m.jobs[id] = j
}

type memTenantStore struct {
	mu          sync.Mutex
	snapshot    *model.TenantSnapshot
	published   int
	unpublished int
}

func (m *memTenantStore) GetTenantSnapshot(ctx context.Context, id uuid.UUID) (*model.TenantSnapshot, error) {
	if m.snapshot == nil {
		return nil, ErrTenantNotFound
	}
	return m.snapshot, nil
}

func (m *memTenantStore) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published++
	return nil
}

func (m *memTenantStore) MarkUnpublished(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unpublished++
	return nil
}

// callLog records the order of side effects across all fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeBuilder struct {
	log        *callLog
	buildErr   error
	discardErr error
}

func (f *fakeBuilder) Build(ctx context.Context, t *model.TenantSnapshot) (BuildResult, error) {
	f.log.add("build")
	if f.buildErr != nil {
		return BuildResult{}, f.buildErr
	}
	return BuildResult{BuildID: "b-1", OutputDir: "/tmp/b-1", Pages: 4}, nil
}

func (f *fakeBuilder) Discard(ctx context.Context, buildID string) error {
	f.log.add("discard:" + buildID)
	return f.discardErr
}

type fakeDeployer struct {
	log       *callLog
	deployErr error
	removeErr error
}

func (f *fakeDeployer) Deploy(ctx context.Context, t *model.TenantSnapshot, buildID string) (DeployResult, error) {
	f.log.add("deploy:" + buildID)
	if f.deployErr != nil {
		return DeployResult{}, f.deployErr
	}
	return DeployResult{SiteID: "site-" + t.Slug, URL: "https://" + t.Slug + ".cdn.example"}, nil
}

func (f *fakeDeployer) Remove(ctx context.Context, siteID string) error {
	f.log.add("remove:" + siteID)
	return f.removeErr
}

type fakeIndexer struct {
	log        *callLog
	ensureErr  error
	ensureHook func()
}

func (f *fakeIndexer) EnsureIndex(ctx context.Context, t *model.TenantSnapshot) (string, error) {
	f.log.add("index")
	if f.ensureHook != nil {
		f.ensureHook()
	}
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	return SearchIndexID(t.ID), nil
}

func (f *fakeIndexer) DeleteIndex(ctx context.Context, indexID string) error {
	f.log.add("unindex:" + indexID)
	return nil
}

type fakeDomains struct {
	log          *callLog
	configureErr error
}

func (f *fakeDomains) Configure(ctx context.Context, t *model.TenantSnapshot) (string, error) {
	f.log.add("domain")
	if f.configureErr != nil {
		return "", f.configureErr
	}
	if t.Domain != "" {
		return t.Domain, nil
	}
	return t.Slug + ".sites.example", nil
}

func (f *fakeDomains) Release(ctx context.Context, domain string) error {
	f.log.add("undomain:" + domain)
	return nil
}

type env struct {
	jobs    *memJobStore
	tenants *memTenantStore
	builder *fakeBuilder
	cdn     *fakeDeployer
	search  *fakeIndexer
	domains *fakeDomains
	log     *callLog
	reg     *Registry
	runner  *Runner
	clock   Clock
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := &callLog{}
	e := &env{
		jobs:    newMemJobStore(),
		tenants: &memTenantStore{snapshot: testSnapshot()},
		builder: &fakeBuilder{log: log},
		cdn:     &fakeDeployer{log: log},
		search:  &fakeIndexer{log: log},
		domains: &fakeDomains{log: log},
		log:     log,
		clock:   fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	}
	e.reg = NewRegistry(Deps{
		Builder:      e.builder,
		CDN:          e.cdn,
		Search:       e.search,
		Domains:      e.domains,
		Tenants:      e.tenants,
		AdminBaseURL: "https://admin.example",
		Clock:        e.clock,
		Logger:       slog.Default(),
	})
	e.runner = NewRunner(e.jobs, e.tenants, e.reg, e.clock, slog.Default())
	return e
}

func testSnapshot() *model.TenantSnapshot {
	tid := uuid.New()
	cid := uuid.New()
	return &model.TenantSnapshot{
		Tenant: model.Tenant{
			ID:     tid,
			Slug:   "acme",
			Name:   "Acme Directory",
			Status: model.TenantDraft,
		},
		Categories: []model.Category{
			{ID: cid, TenantID: tid, Slug: "plumbers", Name: "Plumbers"},
		},
		Listings: []model.Listing{
			{ID: uuid.New(), TenantID: tid, CategoryID: cid, Slug: "mario-bros", Name: "Mario Bros"},
		},
	}
}

func (e *env) queueJob(t *testing.T, typ JobType) *JobRecord {
	t.Helper()
	job := &JobRecord{
		ID:          uuid.New(),
		TenantID:    e.tenants.snapshot.ID,
		Type:        typ,
		Status:      StatusQueued,
		CurrentStep: CurrentStepQueued,
		StepsTotal:  e.reg.StepsTotal(typ),
		CreatedAt:   e.clock(),
	}
	if err := e.jobs.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func TestRunCreateJobCompletes(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobCreate)

	e.runner.Run(context.Background(), job.ID)

	got, err := e.jobs.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.Progress != 100 || got.StepsCompleted != 6 {
		t.Fatalf("progress/steps = %d/%d, want 100/6", got.Progress, got.StepsCompleted)
	}
	if got.CurrentStep != StepCompleted {
		t.Fatalf("currentStep = %s, want %s", got.CurrentStep, StepCompleted)
	}
	if got.CompletedAt == nil || got.StartedAt == nil {
		t.Fatalf("expected startedAt and completedAt to be set")
	}
	if got.ExternalRefs.Result == nil {
		t.Fatalf("expected a result on the completed job")
	}
	if want := "https://acme.sites.example"; got.ExternalRefs.Result.TenantURL != want {
		t.Fatalf("tenantUrl = %q, want %q", got.ExternalRefs.Result.TenantURL, want)
	}
	if want := "https://admin.example/tenants/" + got.TenantID.String(); got.ExternalRefs.Result.AdminURL != want {
		t.Fatalf("adminUrl = %q, want %q", got.ExternalRefs.Result.AdminURL, want)
	}
	if e.tenants.published != 1 {
		t.Fatalf("published = %d, want 1", e.tenants.published)
	}
}

func TestRunCreateJobProgressSequence(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobCreate)

	e.runner.Run(context.Background(), job.ID)

	// One persist for the running transition, then exactly one per step.
	if len(e.jobs.updates) != 7 {
		t.Fatalf("persisted updates = %d, want 7", len(e.jobs.updates))
	}
	want := []int{17, 33, 50, 67, 83, 100}
	for i, w := range want {
		u := e.jobs.updates[i+1]
		if u.Progress != w {
			t.Fatalf("update %d progress = %d, want %d", i+1, u.Progress, w)
		}
		if u.StepsCompleted != i+1 {
			t.Fatalf("update %d stepsCompleted = %d, want %d", i+1, u.StepsCompleted, i+1)
		}
	}
	// Terminal status and the final progress write are a single persist.
	last := e.jobs.updates[len(e.jobs.updates)-1]
	if last.Status != StatusCompleted || last.Progress != 100 {
		t.Fatalf("final update = %s/%d, want completed/100", last.Status, last.Progress)
	}
}

func TestRunFailureCompensatesInReverseOrder(t *testing.T) {
	e := newEnv(t)
	e.search.ensureErr = errors.New("index quota exceeded")
	job := e.queueJob(t, JobCreate)

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if !strings.Contains(got.ErrorMessage, "index quota exceeded") {
		t.Fatalf("errorMessage = %q, want the step cause", got.ErrorMessage)
	}
	if got.CurrentStep != StepSetupSearchIndex {
		t.Fatalf("currentStep = %s, want %s", got.CurrentStep, StepSetupSearchIndex)
	}

	calls := e.log.get()
	want := []string{"build", "deploy:b-1", "index", "remove:site-acme", "discard:b-1"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q (all: %v)", i, calls[i], want[i], calls)
		}
	}
}

func TestRunCompensationErrorDoesNotHaltOthers(t *testing.T) {
	e := newEnv(t)
	e.search.ensureErr = errors.New("boom")
	e.cdn.removeErr = errors.New("cdn unreachable")
	job := e.queueJob(t, JobCreate)

	e.runner.Run(context.Background(), job.ID)

	calls := e.log.get()
	sawDiscard := false
	for _, c := range calls {
		if c == "discard:b-1" {
			sawDiscard = true
		}
	}
	if !sawDiscard {
		t.Fatalf("expected build discard despite cdn remove failure, calls: %v", calls)
	}

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
}

func TestRunTenantMissingFailsWithoutSideEffects(t *testing.T) {
	e := newEnv(t)
	e.tenants.snapshot = nil
	job := &JobRecord{
		ID: uuid.New(), TenantID: uuid.New(), Type: JobCreate,
		Status: StatusQueued, CurrentStep: CurrentStepQueued,
		StepsTotal: e.reg.StepsTotal(JobCreate), CreatedAt: e.clock(),
	}
	if err := e.jobs.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.ErrorMessage != "Tenant not found" {
		t.Fatalf("errorMessage = %q, want %q", got.ErrorMessage, "Tenant not found")
	}
	if len(e.log.get()) != 0 {
		t.Fatalf("expected no side effects, got %v", e.log.get())
	}
}

func TestRunEmptyDirectoryStillPublishes(t *testing.T) {
	e := newEnv(t)
	e.tenants.snapshot.Categories = nil
	e.tenants.snapshot.Listings = nil
	job := e.queueJob(t, JobCreate)

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestRunCancelObservedAtStepBoundary(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobCreate)

	// Flip the persisted record to cancelled right after the runner
	// stores the GENERATE_STATIC_SITE progress (update 1 is the running
	// transition, 2 is VALIDATE, 3 is GENERATE).
	e.jobs.afterUpdate = func(n int, st *memJobStore) {
		if n == 3 {
			j := st.jobs[job.ID]
			j.Status = StatusCancelled
			st.jobs[job.ID] = j
		}
	}

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	for _, c := range e.log.get() {
		if strings.HasPrefix(c, "deploy:") {
			t.Fatalf("deploy ran after cancellation: %v", e.log.get())
		}
	}
	// Completed side effects stay in place: no compensation on cancel.
	for _, c := range e.log.get() {
		if strings.HasPrefix(c, "discard:") || strings.HasPrefix(c, "remove:") {
			t.Fatalf("cancel must not compensate, calls: %v", e.log.get())
		}
	}
}

func TestRunCancelDuringStepIsNotOverwritten(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobCreate)

	// The cancel lands while SETUP_SEARCH_INDEX is executing, after the
	// runner last read the record. The in-flight step finishes, but its
	// progress write must not resurrect the cancelled record.
	e.search.ensureHook = func() {
		e.jobs.setStatus(job.ID, StatusCancelled)
	}

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled", got.Status)
	}
	if got.StepsCompleted != 3 {
		t.Fatalf("stepsCompleted = %d, want 3 (step after the cancel never persisted)", got.StepsCompleted)
	}
	// running transition + VALIDATE + GENERATE + DEPLOY; nothing after.
	if len(e.jobs.updates) != 4 {
		t.Fatalf("persisted updates = %d, want 4", len(e.jobs.updates))
	}
	for _, c := range e.log.get() {
		if c == "domain" {
			t.Fatalf("step after cancellation ran: %v", e.log.get())
		}
		if strings.HasPrefix(c, "discard:") || strings.HasPrefix(c, "remove:") {
			t.Fatalf("cancel must not compensate, calls: %v", e.log.get())
		}
	}
}

func TestRunCancelDuringFailingStepDoesNotCompensate(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobCreate)
	e.search.ensureErr = errors.New("index quota exceeded")
	e.search.ensureHook = func() {
		e.jobs.setStatus(job.ID, StatusCancelled)
	}

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled (failure must not overwrite a cancel)", got.Status)
	}
	if got.ErrorMessage != "" {
		t.Fatalf("errorMessage = %q, want empty on a cancelled job", got.ErrorMessage)
	}
	for _, c := range e.log.get() {
		if strings.HasPrefix(c, "discard:") || strings.HasPrefix(c, "remove:") {
			t.Fatalf("cancel must not compensate, calls: %v", e.log.get())
		}
	}
}

func TestRunResumeSkipsCompletedSteps(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobCreate)

	// Simulate a crash after GENERATE_STATIC_SITE: two steps done, the
	// build refs persisted, process restarted.
	started := e.clock()
	stored, _ := e.jobs.GetJob(context.Background(), job.ID)
	stored.Status = StatusRunning
	stored.StartedAt = &started
	stored.StepsCompleted = 2
	stored.CurrentStep = StepGenerateSite
	stored.Progress = progressPct(2, stored.StepsTotal)
	stored.ExternalRefs.Build = &BuildRefs{Generated: true, BuildID: "b-prev", Pages: 4}
	stored.Compensation.Build = &BuildUndo{BuildID: "b-prev"}
	if err := e.jobs.UpdateJob(context.Background(), stored); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	e.jobs.updates = nil

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	calls := e.log.get()
	for _, c := range calls {
		if c == "build" {
			t.Fatalf("build must not rerun on resume, calls: %v", calls)
		}
	}
	if calls[0] != "deploy:b-prev" {
		t.Fatalf("resume should deploy the persisted build, calls: %v", calls)
	}
}

func TestRunDeleteJobTeardown(t *testing.T) {
	e := newEnv(t)
	e.tenants.snapshot.Domain = "dir.acme.com"
	job := e.queueJob(t, JobDelete)

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	calls := e.log.get()
	want := []string{
		"remove:acme",
		"unindex:" + SearchIndexID(e.tenants.snapshot.ID),
		"undomain:dir.acme.com",
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
	if e.tenants.unpublished != 1 {
		t.Fatalf("unpublished = %d, want 1", e.tenants.unpublished)
	}
	// A completed delete reports no result URLs.
	if got.ExternalRefs.Result != nil {
		t.Fatalf("delete job should not produce a result")
	}
}

func TestRunDeleteSkipsDomainWhenUnset(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobDelete)

	e.runner.Run(context.Background(), job.ID)

	for _, c := range e.log.get() {
		if strings.HasPrefix(c, "undomain:") {
			t.Fatalf("no domain release expected, calls: %v", e.log.get())
		}
	}
	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
}

func TestRunPersistFailureStopsQuietly(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobCreate)
	e.jobs.failUpdate = true

	e.runner.Run(context.Background(), job.ID)

	got, _ := e.jobs.GetJob(context.Background(), job.ID)
	if got.Status != StatusQueued {
		t.Fatalf("status = %s, want queued (running transition never persisted)", got.Status)
	}
	if len(e.log.get()) != 0 {
		t.Fatalf("no step should run when the running transition fails, calls: %v", e.log.get())
	}
}

func TestRunTerminalJobIsUntouched(t *testing.T) {
	e := newEnv(t)
	job := e.queueJob(t, JobCreate)
	e.jobs.setStatus(job.ID, StatusCancelled)

	e.runner.Run(context.Background(), job.ID)

	if len(e.log.get()) != 0 {
		t.Fatalf("terminal job must not execute, calls: %v", e.log.get())
	}
	if len(e.jobs.updates) != 0 {
		t.Fatalf("terminal job must not be rewritten, updates: %d", len(e.jobs.updates))
	}
}
