package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	mqcontract "bdos/contracts/mq"
	"bdos/internal/model"
)

const (
	orgA = 1
	orgB = 2
)

// fixtureCatalog builds n stages where stage i has (i%3)+1 checklist items
// and (i%2)+1 deliverables. Orders are deliberately gapped and shuffled.
func fixtureCatalog(n int) []model.StageTemplate {
	stages := make([]model.StageTemplate, 0, n)
	id := 1000
	for i := n - 1; i >= 0; i-- {
		st := model.StageTemplate{
			ID:    100 + i,
			Code:  fmt.Sprintf("S%02d", i+1),
			Name:  fmt.Sprintf("Stage %d", i+1),
			Order: (i + 1) * 10,
		}
		for c := 0; c <= i%3; c++ {
			id++
			st.Checklist = append(st.Checklist, model.ChecklistItemTemplate{ID: id, StageID: st.ID, Text: fmt.Sprintf("item %d", c), Required: true})
		}
		for d := 0; d <= i%2; d++ {
			id++
			st.Deliverables = append(st.Deliverables, model.DeliverableTemplate{ID: id, StageID: st.ID, Name: fmt.Sprintf("doc %d", d), DType: "doc", Required: true})
		}
		stages = append(stages, st)
	}
	return stages
}

type harness struct {
	engine  *Engine
	store   *memStore
	catalog *StaticCatalog
	actor   model.Actor
	account int
}

func newHarness(t *testing.T, stages int) *harness {
	t.Helper()
	db := newMemDB()
	db.accounts[1] = &model.Account{ID: 1, OrgID: orgA, Name: "Acme"}
	db.accounts[2] = &model.Account{ID: 2, OrgID: orgB, Name: "Other"}
	db.nextID = 10

	store := &memStore{db: db}
	catalog := NewStaticCatalog(fixtureCatalog(stages))
	e := NewEngine(catalog, store, zap.NewNop())
	e.now = func() time.Time { return now }

	return &harness{
		engine:  e,
		store:   store,
		catalog: catalog,
		actor:   model.Actor{UserID: 42, OrgID: orgA},
		account: 1,
	}
}

func (h *harness) create(t *testing.T) *model.Project {
	t.Helper()
	p, err := h.engine.CreateProject(context.Background(), h.actor, model.NewProject{AccountID: h.account, Name: "Expansion"})
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return p
}

func TestCreateProjectInstantiatesEveryStage(t *testing.T) {
	h := newHarness(t, 5)
	p := h.create(t)

	if p.Status != model.ProjectActive {
		t.Errorf("project status = %q, want active", p.Status)
	}

	templates, _ := h.catalog.StageTemplates(context.Background())
	var wantChecklist, wantDeliverables int
	for _, st := range templates {
		wantChecklist += len(st.Checklist)
		wantDeliverables += len(st.Deliverables)
	}

	stages := h.store.db.stagesOf(p.ID)
	if len(stages) != len(templates) {
		t.Fatalf("stages = %d, want %d", len(stages), len(templates))
	}
	for i, ps := range stages {
		if ps.Status != model.StageTodo {
			t.Errorf("stage %d status = %q, want todo", i, ps.Status)
		}
		if ps.StageID != templates[i].ID {
			t.Errorf("stage %d template = %d, want %d (catalog order)", i, ps.StageID, templates[i].ID)
		}
	}

	if len(h.store.db.checklist) != wantChecklist {
		t.Errorf("checklist entries = %d, want %d", len(h.store.db.checklist), wantChecklist)
	}
	for _, e := range h.store.db.checklist {
		if e.Done || e.DoneBy != nil || e.DoneAt != nil {
			t.Errorf("entry %d = %+v, want not done", e.ID, e)
		}
	}

	if len(h.store.db.deliverables) != wantDeliverables {
		t.Errorf("deliverables = %d, want %d", len(h.store.db.deliverables), wantDeliverables)
	}
	for _, d := range h.store.db.deliverables {
		if d.Status != model.DeliverableDraft || d.Version != 1 {
			t.Errorf("deliverable %d = {%s v%d}, want {draft v1}", d.ID, d.Status, d.Version)
		}
	}

	if len(h.store.db.events) != 1 || h.store.db.events[0].routingKey != mqcontract.RoutingProjectCreated {
		t.Fatalf("events = %+v, want one project.created", h.store.db.events)
	}
	var payload mqcontract.ProjectCreatedPayload
	if err := json.Unmarshal(h.store.db.events[0].payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.StageCount != 5 || payload.ProjectID != p.ID {
		t.Errorf("payload = %+v, want 5 stages for project %d", payload, p.ID)
	}
}

func TestCreateProjectIsAtomic(t *testing.T) {
	h := newHarness(t, 6)
	h.store.db.failInsertStageAfter = 4

	_, err := h.engine.CreateProject(context.Background(), h.actor, model.NewProject{AccountID: h.account, Name: "Doomed"})
	if err == nil {
		t.Fatal("CreateProject() error = nil, want failure")
	}

	if n := len(h.store.db.projects); n != 0 {
		t.Errorf("projects = %d, want 0 after rollback", n)
	}
	if n := len(h.store.db.stages); n != 0 {
		t.Errorf("stages = %d, want 0 after rollback", n)
	}
	if n := len(h.store.db.events); n != 0 {
		t.Errorf("events = %d, want 0 after rollback", n)
	}
}

func TestWritesRunOnTransactionContext(t *testing.T) {
	h := newHarness(t, 2)
	p := h.create(t)
	ps := h.store.db.stagesOf(p.ID)[0]

	if _, err := h.engine.Decide(context.Background(), h.actor, p.ID, ps.ID, model.DecisionApprove, ""); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}

	want := map[string]string{
		mqcontract.RoutingProjectCreated: "create_project",
		mqcontract.RoutingStageDecided:   "decide",
	}
	if len(h.store.db.events) != len(want) {
		t.Fatalf("events = %d, want %d", len(h.store.db.events), len(want))
	}
	for _, ev := range h.store.db.events {
		if ev.operation != want[ev.routingKey] {
			t.Errorf("%s appended under %q, want %q", ev.routingKey, ev.operation, want[ev.routingKey])
		}
	}
}

func TestCreateProjectRejectsForeignAccount(t *testing.T) {
	h := newHarness(t, 3)

	_, err := h.engine.CreateProject(context.Background(), h.actor, model.NewProject{AccountID: 2, Name: "Sneaky"})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("CreateProject() error = %v, want ErrNotFound", err)
	}
}

func TestCreateProjectRequiresName(t *testing.T) {
	h := newHarness(t, 3)

	_, err := h.engine.CreateProject(context.Background(), h.actor, model.NewProject{AccountID: 1, Name: "  "})
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("CreateProject() error = %v, want ErrInvalidInput", err)
	}
	if len(h.store.atomics) != 0 {
		t.Errorf("transactions opened = %v, want none", h.store.atomics)
	}
}

func TestInstantiateTwiceFails(t *testing.T) {
	h := newHarness(t, 4)
	p := h.create(t)
	before := len(h.store.db.stages)

	_, err := h.engine.InstantiateExisting(context.Background(), h.actor, p.ID)
	if !errors.Is(err, model.ErrAlreadyInstantiated) {
		t.Fatalf("InstantiateExisting() error = %v, want ErrAlreadyInstantiated", err)
	}
	if after := len(h.store.db.stages); after != before {
		t.Errorf("stages = %d after re-run, want %d", after, before)
	}
}

func TestInstantiateExistingBareProject(t *testing.T) {
	h := newHarness(t, 4)
	h.store.db.projects[5] = &model.Project{ID: 5, OrgID: orgA, AccountID: 1, Status: model.ProjectActive}

	n, err := h.engine.InstantiateExisting(context.Background(), h.actor, 5)
	if err != nil {
		t.Fatalf("InstantiateExisting() error = %v", err)
	}
	if n != 4 || len(h.store.db.stagesOf(5)) != 4 {
		t.Errorf("instantiated %d stages (stored %d), want 4", n, len(h.store.db.stagesOf(5)))
	}
}

func TestCrossOrgAccessIsNotFound(t *testing.T) {
	h := newHarness(t, 2)
	p := h.create(t)
	ps := h.store.db.stagesOf(p.ID)[0]
	outsider := model.Actor{UserID: 99, OrgID: orgB}
	ctx := context.Background()

	if _, err := h.engine.Decide(ctx, outsider, p.ID, ps.ID, model.DecisionApprove, ""); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Decide() error = %v, want ErrNotFound", err)
	}
	if _, err := h.engine.ProjectProgress(ctx, outsider, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ProjectProgress() error = %v, want ErrNotFound", err)
	}
	if _, err := h.engine.InstantiateExisting(ctx, outsider, p.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("InstantiateExisting() error = %v, want ErrNotFound", err)
	}
	if len(h.store.db.approvals) != 0 {
		t.Errorf("approvals = %d, want 0", len(h.store.db.approvals))
	}
}

func TestToggleChecklistRoundTrip(t *testing.T) {
	h := newHarness(t, 2)
	p := h.create(t)
	ps := h.store.db.stagesOf(p.ID)[0]

	var entryID int
	for _, e := range h.store.db.checklist {
		if e.ProjectStageID == ps.ID {
			entryID = e.ID
			break
		}
	}

	ctx := context.Background()
	on, err := h.engine.ToggleChecklist(ctx, h.actor, p.ID, ps.ID, entryID)
	if err != nil {
		t.Fatalf("ToggleChecklist() error = %v", err)
	}
	if !on.Done || on.DoneBy == nil || *on.DoneBy != h.actor.UserID {
		t.Errorf("first toggle = %+v, want done by %d", on, h.actor.UserID)
	}

	off, err := h.engine.ToggleChecklist(ctx, h.actor, p.ID, ps.ID, entryID)
	if err != nil {
		t.Fatalf("ToggleChecklist() error = %v", err)
	}
	if off.Done || off.DoneBy != nil || off.DoneAt != nil {
		t.Errorf("second toggle = %+v, want cleared", off)
	}

	if got := h.store.db.stages[ps.ID].Status; got != model.StageTodo {
		t.Errorf("stage status = %q after toggles, want todo", got)
	}
}

func TestToggleChecklistWrongStage(t *testing.T) {
	h := newHarness(t, 2)
	p := h.create(t)
	stages := h.store.db.stagesOf(p.ID)

	var entryID int
	for _, e := range h.store.db.checklist {
		if e.ProjectStageID == stages[0].ID {
			entryID = e.ID
		}
	}

	_, err := h.engine.ToggleChecklist(context.Background(), h.actor, p.ID, stages[1].ID, entryID)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ToggleChecklist() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateDeliverable(t *testing.T) {
	h := newHarness(t, 1)
	p := h.create(t)
	ps := h.store.db.stagesOf(p.ID)[0]

	var did int
	for _, d := range h.store.db.deliverables {
		did = d.ID
	}

	ctx := context.Background()
	got, err := h.engine.UpdateDeliverable(ctx, h.actor, p.ID, ps.ID, did, "Final scope v1")
	if err != nil {
		t.Fatalf("UpdateDeliverable() error = %v", err)
	}
	if got.Status != model.DeliverableSubmitted {
		t.Errorf("status = %q, want submitted", got.Status)
	}

	got, err = h.engine.UpdateDeliverable(ctx, h.actor, p.ID, ps.ID, did, "   ")
	if err != nil {
		t.Fatalf("UpdateDeliverable() error = %v", err)
	}
	if got.Status != model.DeliverableDraft || got.Version != 1 {
		t.Errorf("deliverable = {%s v%d}, want {draft v1}", got.Status, got.Version)
	}

	var updates int
	for _, ev := range h.store.db.events {
		if ev.routingKey == mqcontract.RoutingDeliverableUpdated {
			updates++
		}
	}
	if updates != 2 {
		t.Errorf("deliverable.updated events = %d, want 2", updates)
	}
}

func TestDecideAppendsOneApprovalPerCall(t *testing.T) {
	h := newHarness(t, 2)
	p := h.create(t)
	ps := h.store.db.stagesOf(p.ID)[0]
	ctx := context.Background()

	decisions := []struct {
		decision string
		want     string
	}{
		{model.DecisionApprove, model.StageDone},
		{model.DecisionApprove, model.StageDone},
		{model.DecisionReject, model.StageBlocked},
		{"maybe", model.StageBlocked},
		{model.DecisionApprove, model.StageDone},
	}

	for i, d := range decisions {
		got, err := h.engine.Decide(ctx, h.actor, p.ID, ps.ID, d.decision, "looks fine")
		if err != nil {
			t.Fatalf("Decide(%q) error = %v", d.decision, err)
		}
		if got.Status != d.want {
			t.Errorf("Decide(%q) status = %q, want %q", d.decision, got.Status, d.want)
		}
		if n := len(h.store.db.approvals); n != i+1 {
			t.Errorf("after %d decisions approvals = %d", i+1, n)
		}
	}

	last := h.store.db.approvals[len(h.store.db.approvals)-1]
	if last.ByUser != h.actor.UserID || last.Comment == nil || *last.Comment != "looks fine" {
		t.Errorf("approval = %+v, want by %d with comment", last, h.actor.UserID)
	}
}

func TestDecideEmptyCommentStoredAsNil(t *testing.T) {
	h := newHarness(t, 1)
	p := h.create(t)
	ps := h.store.db.stagesOf(p.ID)[0]

	if _, err := h.engine.Decide(context.Background(), h.actor, p.ID, ps.ID, model.DecisionReject, ""); err != nil {
		t.Fatalf("Decide() error = %v", err)
	}
	if c := h.store.db.approvals[0].Comment; c != nil {
		t.Errorf("comment = %q, want nil", *c)
	}
}

func TestTwelveStageWalkthrough(t *testing.T) {
	h := newHarness(t, 12)
	p := h.create(t)
	ctx := context.Background()

	stages := h.store.db.stagesOf(p.ID)
	if len(stages) != 12 {
		t.Fatalf("stages = %d, want 12", len(stages))
	}
	for _, ps := range stages {
		if ps.Status != model.StageTodo {
			t.Fatalf("stage %d status = %q, want todo", ps.ID, ps.Status)
		}
	}

	if _, err := h.engine.Decide(ctx, h.actor, p.ID, stages[0].ID, model.DecisionApprove, ""); err != nil {
		t.Fatalf("approve stage 1: %v", err)
	}
	progress, err := h.engine.ProjectProgress(ctx, h.actor, p.ID)
	if err != nil {
		t.Fatalf("ProjectProgress() error = %v", err)
	}
	if progress != 8 {
		t.Errorf("progress after approving stage 1 = %d, want 8", progress)
	}

	if _, err := h.engine.Decide(ctx, h.actor, p.ID, stages[1].ID, model.DecisionReject, "missing ICP"); err != nil {
		t.Fatalf("reject stage 2: %v", err)
	}
	after := h.store.db.stagesOf(p.ID)
	if after[0].Status != model.StageDone || after[1].Status != model.StageBlocked {
		t.Errorf("statuses = %s, %s; want done, blocked", after[0].Status, after[1].Status)
	}
	progress, _ = h.engine.ProjectProgress(ctx, h.actor, p.ID)
	if progress != 8 {
		t.Errorf("progress after rejecting stage 2 = %d, want 8", progress)
	}
}

func TestStoreFailureSurfaces(t *testing.T) {
	h := newHarness(t, 1)
	boom := errors.New("pool closed")
	h.store.atomicErr = boom

	if _, err := h.engine.ToggleChecklist(context.Background(), h.actor, 1, 1, 1); !errors.Is(err, boom) {
		t.Errorf("ToggleChecklist() error = %v, want %v", err, boom)
	}
}
