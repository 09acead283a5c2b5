package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/casefile"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/caseinstance"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/comment"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/definition"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/dynamic"
	"github.com/mdproctor/casemgmt/internal/casemgmt/domain/role"
	"github.com/mdproctor/casemgmt/internal/casemgmt/storage"
	apperrors "github.com/mdproctor/casemgmt/internal/platform/errors"
)

// fakeStore is an in-memory storage.Store for service tests.
type fakeStore struct {
	mu        sync.Mutex
	cases     map[string]storage.CaseRecord
	files     map[string]map[string]casefile.Value
	roles     map[string]map[string][]role.Entity
	comments  map[string][]comment.Comment
	sequences map[string]int64

	listPageSizes []int
	createErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cases:     map[string]storage.CaseRecord{},
		files:     map[string]map[string]casefile.Value{},
		roles:     map[string]map[string][]role.Entity{},
		comments:  map[string][]comment.Comment{},
		sequences: map[string]int64{},
	}
}

func (f *fakeStore) CreateCase(_ context.Context, rec storage.CaseRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.cases[rec.ID]; ok {
		return storage.ErrAlreadyExists
	}
	f.cases[rec.ID] = rec
	return nil
}

func (f *fakeStore) GetCase(_ context.Context, caseID string) (storage.CaseRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.cases[caseID]
	if !ok {
		return storage.CaseRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (f *fakeStore) UpdateCaseState(_ context.Context, caseID string, state caseinstance.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.cases[caseID]
	if !ok {
		return storage.ErrNotFound
	}
	rec.State = state
	f.cases[caseID] = rec
	return nil
}

func (f *fakeStore) AttachProcessInstance(_ context.Context, caseID, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.cases[caseID]
	if !ok {
		return storage.ErrNotFound
	}
	for _, id := range rec.SecondaryInstanceIDs {
		if id == instanceID {
			return nil
		}
	}
	rec.SecondaryInstanceIDs = append(rec.SecondaryInstanceIDs, instanceID)
	f.cases[caseID] = rec
	return nil
}

func (f *fakeStore) DeleteCase(_ context.Context, caseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cases[caseID]; !ok {
		return storage.ErrNotFound
	}
	delete(f.cases, caseID)
	delete(f.files, caseID)
	delete(f.roles, caseID)
	delete(f.comments, caseID)
	return nil
}

func (f *fakeStore) ListCases(_ context.Context, pageSize int, pageToken string) (storage.CasePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Same contract as the SQLite store: the page size must be positive.
	if pageSize <= 0 {
		return storage.CasePage{}, fmt.Errorf("page size must be positive")
	}
	f.listPageSizes = append(f.listPageSizes, pageSize)
	var page storage.CasePage
	for _, rec := range f.cases {
		page.Cases = append(page.Cases, rec)
	}
	return page, nil
}

func (f *fakeStore) PutCaseFileValues(_ context.Context, caseID string, values map[string]casefile.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.files[caseID]
	if !ok {
		file = map[string]casefile.Value{}
		f.files[caseID] = file
	}
	for name, value := range values {
		file[name] = value
	}
	return nil
}

func (f *fakeStore) RemoveCaseFileValues(_ context.Context, caseID string, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		delete(f.files[caseID], name)
	}
	return nil
}

func (f *fakeStore) GetCaseFile(_ context.Context, caseID string) (*casefile.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return casefile.FromMap(f.files[caseID]), nil
}

func (f *fakeStore) AddRoleAssignment(_ context.Context, caseID, roleName string, entity role.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	byRole, ok := f.roles[caseID]
	if !ok {
		byRole = map[string][]role.Entity{}
		f.roles[caseID] = byRole
	}
	for _, existing := range byRole[roleName] {
		if existing == entity {
			return nil
		}
	}
	byRole[roleName] = append(byRole[roleName], entity)
	return nil
}

func (f *fakeStore) RemoveRoleAssignment(_ context.Context, caseID, roleName string, entity role.Entity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entities := f.roles[caseID][roleName]
	kept := entities[:0]
	for _, existing := range entities {
		if existing != entity {
			kept = append(kept, existing)
		}
	}
	if f.roles[caseID] != nil {
		f.roles[caseID][roleName] = kept
	}
	return nil
}

func (f *fakeStore) ListRoleAssignments(_ context.Context, caseID string) (map[string][]role.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string][]role.Entity{}
	for roleName, entities := range f.roles[caseID] {
		out[roleName] = append([]role.Entity(nil), entities...)
	}
	return out, nil
}

func (f *fakeStore) AddComment(_ context.Context, caseID string, c comment.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments[caseID] = append(f.comments[caseID], c)
	return nil
}

func (f *fakeStore) UpdateComment(_ context.Context, caseID string, c comment.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.comments[caseID] {
		if existing.ID == c.ID {
			existing.Author = c.Author
			existing.Text = c.Text
			existing.UpdatedAt = c.UpdatedAt
			f.comments[caseID][i] = existing
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) RemoveComment(_ context.Context, caseID, commentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.comments[caseID] {
		if existing.ID == commentID {
			f.comments[caseID] = append(f.comments[caseID][:i], f.comments[caseID][i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) ListComments(_ context.Context, caseID string) ([]comment.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]comment.Comment(nil), f.comments[caseID]...), nil
}

func (f *fakeStore) NextSequence(_ context.Context, prefix string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequences[prefix]++
	return f.sequences[prefix], nil
}

var _ storage.Store = (*fakeStore)(nil)

type fakeInstance struct {
	processID string
	stages    map[string]bool
}

// fakeEngine is an in-memory execution substrate with stop-failure
// injection.
type fakeEngine struct {
	mu        sync.Mutex
	nextID    int
	processes map[string][]string
	instances map[string]*fakeInstance
	injected  map[string][]dynamic.NodeSpec
	stopped   []string
	failStop  map[string]error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		processes: map[string][]string{},
		instances: map[string]*fakeInstance{},
		injected:  map[string][]dynamic.NodeSpec{},
		failStop:  map[string]error{},
	}
}

func (f *fakeEngine) registerProcess(processID string, stages ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.processes[processID] = stages
}

func (f *fakeEngine) StartProcessInstance(_ context.Context, processID string, _ map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stages, ok := f.processes[processID]
	if !ok {
		return "", fmt.Errorf("process %q is not registered", processID)
	}
	f.nextID++
	instanceID := fmt.Sprintf("inst-%d", f.nextID)
	inst := &fakeInstance{processID: processID, stages: map[string]bool{}}
	for _, stage := range stages {
		inst.stages[stage] = true
	}
	f.instances[instanceID] = inst
	return instanceID, nil
}

func (f *fakeEngine) StopProcessInstance(_ context.Context, instanceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failStop[instanceID]; ok {
		return err
	}
	if _, ok := f.instances[instanceID]; !ok {
		return fmt.Errorf("instance %q is not running", instanceID)
	}
	delete(f.instances, instanceID)
	f.stopped = append(f.stopped, instanceID)
	return nil
}

func (f *fakeEngine) InjectNode(ctx context.Context, instanceID, stageID string, spec dynamic.NodeSpec) (string, error) {
	f.mu.Lock()
	inst, ok := f.instances[instanceID]
	if !ok {
		f.mu.Unlock()
		return "", fmt.Errorf("instance %q is not running", instanceID)
	}
	if stageID != "" && !inst.stages[stageID] {
		f.mu.Unlock()
		return "", fmt.Errorf("stage %q is not active", stageID)
	}
	f.injected[instanceID] = append(f.injected[instanceID], spec)
	f.mu.Unlock()
	if spec.Kind == dynamic.KindSubprocess {
		return f.StartProcessInstance(ctx, spec.ProcessID, spec.Parameters)
	}
	return "", nil
}

func (f *fakeEngine) InstanceExists(_ context.Context, instanceID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.instances[instanceID]
	return ok, nil
}

func (f *fakeEngine) ActiveStages(_ context.Context, instanceID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %q is not running", instanceID)
	}
	var active []string
	for stage, isActive := range inst.stages {
		if isActive {
			active = append(active, stage)
		}
	}
	return active, nil
}

const (
	testDeploymentID = "org.acme:hr:1.0"
	testDefinitionID = "hr.hiring"
	testProcessID    = "hr.hiring.process"
)

var testClock = time.Date(2026, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTestRepository(t *testing.T) *definition.StaticRepository {
	t.Helper()
	repo := definition.NewStaticRepository()
	err := repo.Add(definition.CaseDefinition{
		DeploymentID:     testDeploymentID,
		ID:               testDefinitionID,
		Name:             "Hiring a Developer",
		IDPrefix:         "HR",
		PrimaryProcessID: testProcessID,
		Roles: []definition.Role{
			{Name: "owner", Cardinality: 1},
			{Name: "manager", Cardinality: 1},
			{Name: "participant"},
		},
		Stages: []definition.Stage{
			{ID: "screening", Name: "Screening"},
			{ID: "interview", Name: "Interview"},
		},
		Milestones: []definition.Milestone{
			{ID: "offer-sent", Name: "Offer sent"},
		},
		AdHocFragments: []string{"escalate"},
	})
	if err != nil {
		t.Fatalf("add definition: %v", err)
	}
	err = repo.Add(definition.CaseDefinition{
		DeploymentID:     testDeploymentID,
		ID:               "hr.governed",
		Name:             "Governed hiring",
		IDPrefix:         "GOV",
		PrimaryProcessID: testProcessID,
		FileSchema: `{
			"type": "object",
			"properties": {
				"amount": {"type": "number", "minimum": 0}
			}
		}`,
	})
	if err != nil {
		t.Fatalf("add governed definition: %v", err)
	}
	return repo
}

func newTestService(t *testing.T) (*Service, *fakeStore, *fakeEngine) {
	t.Helper()
	store := newFakeStore()
	engine := newFakeEngine()
	engine.registerProcess(testProcessID, "screening", "interview")
	svc := NewService(store, newTestRepository(t), engine, nil)
	svc.clock = func() time.Time { return testClock }
	commentSeq := 0
	svc.commentID = func() string {
		commentSeq++
		return fmt.Sprintf("comment-%d", commentSeq)
	}
	return svc, store, engine
}

func startTestCase(t *testing.T, svc *Service, file *casefile.File) string {
	t.Helper()
	caseID, err := svc.StartCase(context.Background(), testDeploymentID, testDefinitionID, file)
	if err != nil {
		t.Fatalf("start case: %v", err)
	}
	return caseID
}

func wantCode(t *testing.T, err error, code apperrors.Code) *apperrors.Error {
	t.Helper()
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("err = %v, want domain error with code %s", err, code)
	}
	if domainErr.Code != code {
		t.Fatalf("code = %s, want %s", domainErr.Code, code)
	}
	return domainErr
}

func TestStartCaseAssignsSequentialPrefixedIDs(t *testing.T) {
	svc, store, engine := newTestService(t)

	first := startTestCase(t, svc, nil)
	if first != "HR-0000000001" {
		t.Fatalf("case id = %q, want %q", first, "HR-0000000001")
	}
	second := startTestCase(t, svc, nil)
	if second != "HR-0000000002" {
		t.Fatalf("case id = %q, want %q", second, "HR-0000000002")
	}

	rec, err := store.GetCase(context.Background(), first)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if rec.State != caseinstance.StateActive {
		t.Fatalf("state = %q, want active", rec.State)
	}
	if rec.PrimaryInstanceID == "" {
		t.Fatal("primary instance was not started")
	}
	exists, err := engine.InstanceExists(context.Background(), rec.PrimaryInstanceID)
	if err != nil || !exists {
		t.Fatalf("primary instance exists = %v, %v", exists, err)
	}
}

func TestStartCasePersistsInitialFile(t *testing.T) {
	svc, _, _ := newTestService(t)

	file := casefile.New()
	file.Set("amount", casefile.Number(500))
	caseID := startTestCase(t, svc, file)

	got, err := svc.GetCaseFile(context.Background(), caseID)
	if err != nil {
		t.Fatalf("get case file: %v", err)
	}
	value, ok := got.Get("amount")
	if !ok || value.NumberValue() != 500 {
		t.Fatalf("amount = %v, %v; want 500", value, ok)
	}
}

func TestStartCaseUnknownDefinition(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.StartCase(context.Background(), testDeploymentID, "no.such.definition", nil)
	wantCode(t, err, apperrors.CodeCaseDefinitionNotFound)
}

func TestStartCaseRejectsSchemaViolatingFile(t *testing.T) {
	svc, _, _ := newTestService(t)

	file := casefile.New()
	file.Set("amount", casefile.String("not a number"))
	_, err := svc.StartCase(context.Background(), testDeploymentID, "hr.governed", file)
	wantCode(t, err, apperrors.CodeCaseFileSchemaViolation)
}

func TestGetCaseFetchOptions(t *testing.T) {
	svc, _, _ := newTestService(t)

	file := casefile.New()
	file.Set("amount", casefile.Number(500))
	caseID := startTestCase(t, svc, file)

	bare, err := svc.GetCase(context.Background(), caseID, caseinstance.FetchOptions{})
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if bare.File != nil || bare.Roles != nil || bare.Milestones != nil || bare.Stages != nil {
		t.Fatal("sections assembled without being requested")
	}
	if bare.CaseID != caseID || bare.State != caseinstance.StateActive {
		t.Fatalf("snapshot = %+v", bare)
	}

	full, err := svc.GetCase(context.Background(), caseID, caseinstance.FetchOptions{
		WithFile:       true,
		WithRoles:      true,
		WithMilestones: true,
		WithStages:     true,
	})
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if full.File == nil || full.File.Len() != 1 {
		t.Fatalf("file section = %v", full.File)
	}
	if len(full.Roles) != 3 {
		t.Fatalf("roles = %d, want one per declared role", len(full.Roles))
	}
	if len(full.Milestones) != 1 || full.Milestones[0].ID != "offer-sent" {
		t.Fatalf("milestones = %v", full.Milestones)
	}
	if len(full.Stages) != 2 {
		t.Fatalf("stages = %v", full.Stages)
	}
	for _, stage := range full.Stages {
		if !stage.Active {
			t.Fatalf("stage %s inactive, want active", stage.ID)
		}
	}
}

func TestGetCaseMissingAndEmptyID(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetCase(context.Background(), "HR-0000000404", caseinstance.FetchOptions{})
	wantCode(t, err, apperrors.CodeCaseNotFound)

	_, err = svc.GetCase(context.Background(), "  ", caseinstance.FetchOptions{})
	wantCode(t, err, apperrors.CodeCaseIDEmpty)
}

func TestCancelCaseStopsInstancesAndKeepsFile(t *testing.T) {
	svc, store, engine := newTestService(t)

	file := casefile.New()
	file.Set("amount", casefile.Number(500))
	caseID := startTestCase(t, svc, file)
	rec, _ := store.GetCase(context.Background(), caseID)

	report, err := svc.CancelCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("cancel case: %v", err)
	}
	if !report.AllStopped() || len(report.Stopped) != 1 || report.Stopped[0] != rec.PrimaryInstanceID {
		t.Fatalf("report = %+v", report)
	}
	exists, _ := engine.InstanceExists(context.Background(), rec.PrimaryInstanceID)
	if exists {
		t.Fatal("primary instance survived cancel")
	}

	// The active-read path rejects the cancelled case, carrying its state.
	_, err = svc.GetCase(context.Background(), caseID, caseinstance.FetchOptions{})
	domainErr := wantCode(t, err, apperrors.CodeCaseNotFound)
	if domainErr.Metadata["state"] != string(caseinstance.StateCancelled) {
		t.Fatalf("state metadata = %q, want cancelled", domainErr.Metadata["state"])
	}

	// The file survives cancellation.
	got, err := svc.GetCaseFile(context.Background(), caseID)
	if err != nil {
		t.Fatalf("get case file after cancel: %v", err)
	}
	if value, ok := got.Get("amount"); !ok || value.NumberValue() != 500 {
		t.Fatalf("amount after cancel = %v, %v", value, ok)
	}

	// Cancelling again fails: the case is no longer active.
	_, err = svc.CancelCase(context.Background(), caseID)
	wantCode(t, err, apperrors.CodeCaseNotFound)
}

func TestCancelCasePartialStopFailureStillCancels(t *testing.T) {
	svc, store, engine := newTestService(t)

	caseID := startTestCase(t, svc, nil)
	spawned, err := svc.AddDynamicSubprocess(context.Background(), caseID, Target{}, testProcessID, nil)
	if err != nil {
		t.Fatalf("add subprocess: %v", err)
	}
	stopErr := errors.New("substrate timeout")
	engine.failStop[spawned] = stopErr

	report, err := svc.CancelCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("cancel case: %v", err)
	}
	if report.AllStopped() {
		t.Fatal("expected a stop failure in the report")
	}
	if len(report.Stopped) != 1 || len(report.Failed) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if report.Failed[0].InstanceID != spawned || !errors.Is(report.Failed[0].Err, stopErr) {
		t.Fatalf("failure = %+v", report.Failed[0])
	}

	rec, err := store.GetCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if rec.State != caseinstance.StateCancelled {
		t.Fatalf("state = %q, want cancelled despite partial failure", rec.State)
	}
}

func TestCloseCaseRecordsClosingComment(t *testing.T) {
	svc, store, _ := newTestService(t)

	caseID := startTestCase(t, svc, nil)
	report, err := svc.CloseCase(context.Background(), caseID, "alice", "position filled")
	if err != nil {
		t.Fatalf("close case: %v", err)
	}
	if !report.AllStopped() {
		t.Fatalf("report = %+v", report)
	}

	rec, err := store.GetCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if rec.State != caseinstance.StateClosed {
		t.Fatalf("state = %q, want closed", rec.State)
	}
	comments, err := store.ListComments(context.Background(), caseID)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Text != "position filled" || comments[0].Author != "alice" {
		t.Fatalf("comments = %+v", comments)
	}
}

func TestDestroyCaseDeletesEverything(t *testing.T) {
	svc, store, engine := newTestService(t)

	file := casefile.New()
	file.Set("amount", casefile.Number(500))
	caseID := startTestCase(t, svc, file)
	rec, _ := store.GetCase(context.Background(), caseID)

	report, err := svc.DestroyCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("destroy case: %v", err)
	}
	if len(report.Stopped) != 1 {
		t.Fatalf("report = %+v, want primary stopped", report)
	}
	exists, _ := engine.InstanceExists(context.Background(), rec.PrimaryInstanceID)
	if exists {
		t.Fatal("primary instance survived destroy")
	}

	_, err = svc.GetCaseFile(context.Background(), caseID)
	wantCode(t, err, apperrors.CodeCaseNotFound)
	_, err = svc.DestroyCase(context.Background(), caseID)
	wantCode(t, err, apperrors.CodeCaseNotFound)
}

func TestDestroyCancelledCaseSkipsStops(t *testing.T) {
	svc, _, engine := newTestService(t)

	caseID := startTestCase(t, svc, nil)
	if _, err := svc.CancelCase(context.Background(), caseID); err != nil {
		t.Fatalf("cancel case: %v", err)
	}
	stoppedBefore := len(engine.stopped)

	report, err := svc.DestroyCase(context.Background(), caseID)
	if err != nil {
		t.Fatalf("destroy case: %v", err)
	}
	if len(report.Stopped) != 0 || len(report.Failed) != 0 {
		t.Fatalf("report = %+v, want empty for already-cancelled case", report)
	}
	if len(engine.stopped) != stoppedBefore {
		t.Fatal("destroy of cancelled case issued substrate stops")
	}
}

func TestListStagesReflectsSubstrateActivity(t *testing.T) {
	svc, store, engine := newTestService(t)

	caseID := startTestCase(t, svc, nil)
	rec, _ := store.GetCase(context.Background(), caseID)
	engine.instances[rec.PrimaryInstanceID].stages["screening"] = false

	stages, err := svc.ListStages(context.Background(), caseID)
	if err != nil {
		t.Fatalf("list stages: %v", err)
	}
	byID := map[string]bool{}
	for _, stage := range stages {
		byID[stage.ID] = stage.Active
	}
	if byID["screening"] || !byID["interview"] {
		t.Fatalf("stage activity = %v", byID)
	}

	milestones, err := svc.ListMilestones(context.Background(), caseID)
	if err != nil {
		t.Fatalf("list milestones: %v", err)
	}
	if len(milestones) != 1 || milestones[0].Name != "Offer sent" {
		t.Fatalf("milestones = %v", milestones)
	}
}

func TestStartCaseStopsInstanceWhenPersistenceFails(t *testing.T) {
	svc, store, engine := newTestService(t)
	store.createErr = errors.New("disk full")

	_, err := svc.StartCase(context.Background(), testDeploymentID, testDefinitionID, nil)
	wantCode(t, err, apperrors.CodeUnknown)

	if len(engine.instances) != 0 {
		t.Fatalf("running instances = %d, want none after persistence failure", len(engine.instances))
	}
	if len(engine.stopped) != 1 {
		t.Fatalf("stopped instances = %v, want exactly one", engine.stopped)
	}
}

func TestListCasesClampsPageSize(t *testing.T) {
	svc, store, _ := newTestService(t)
	startTestCase(t, svc, nil)

	page, err := svc.ListCases(context.Background(), 0, "")
	if err != nil {
		t.Fatalf("list cases with zero page size: %v", err)
	}
	if len(page.Cases) != 1 {
		t.Fatalf("cases = %d, want 1", len(page.Cases))
	}

	if _, err := svc.ListCases(context.Background(), 100000, ""); err != nil {
		t.Fatalf("list cases with oversized page size: %v", err)
	}
	if got := store.listPageSizes; len(got) != 2 || got[0] != defaultCasesPageSize || got[1] != maxCasesPageSize {
		t.Fatalf("store page sizes = %v, want [%d %d]", got, defaultCasesPageSize, maxCasesPageSize)
	}
}

func TestPerCaseSerialization(t *testing.T) {
	svc, _, _ := newTestService(t)

	caseID := startTestCase(t, svc, nil)

	// Hammer one case from many goroutines; the per-case lock must keep
	// every check-then-act consistent, ending with exactly one assignee.
	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entity := role.Entity{ID: fmt.Sprintf("user-%d", i), Type: role.EntityTypeUser}
			_ = svc.AssignToCaseRole(context.Background(), caseID, "manager", entity)
		}(i)
	}
	wg.Wait()

	assignments, err := svc.CaseRoleAssignments(context.Background(), caseID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	for _, assignment := range assignments {
		if assignment.Role == "manager" && len(assignment.Entities) != 1 {
			t.Fatalf("manager has %d assignees, want exactly 1", len(assignment.Entities))
		}
	}
}
