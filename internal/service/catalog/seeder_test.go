package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"go.uber.org/zap"

	"bdos/internal/model"
	"bdos/pkg/util"
)

type mockCatalogRepository struct {
	nextID       int
	stages       map[string]*model.StageTemplate
	checklist    map[string]*model.ChecklistItemTemplate
	deliverables map[string]*model.DeliverableTemplate
	upsertErr    error
}

func newMockCatalogRepository() *mockCatalogRepository {
	return &mockCatalogRepository{
		stages:       map[string]*model.StageTemplate{},
		checklist:    map[string]*model.ChecklistItemTemplate{},
		deliverables: map[string]*model.DeliverableTemplate{},
	}
}

func (m *mockCatalogRepository) UpsertStage(ctx context.Context, st *model.StageTemplate) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	if existing, ok := m.stages[st.Code]; ok {
		st.ID = existing.ID
		return nil
	}
	m.nextID++
	st.ID = m.nextID
	cp := *st
	m.stages[st.Code] = &cp
	return nil
}

func (m *mockCatalogRepository) UpsertChecklistItem(ctx context.Context, item *model.ChecklistItemTemplate) error {
	key := fmt.Sprintf("%d|%s", item.StageID, item.Text)
	if existing, ok := m.checklist[key]; ok {
		item.ID = existing.ID
		return nil
	}
	m.nextID++
	item.ID = m.nextID
	cp := *item
	m.checklist[key] = &cp
	return nil
}

func (m *mockCatalogRepository) UpsertDeliverable(ctx context.Context, d *model.DeliverableTemplate) error {
	key := fmt.Sprintf("%d|%s", d.StageID, d.Name)
	if existing, ok := m.deliverables[key]; ok {
		d.ID = existing.ID
		return nil
	}
	m.nextID++
	d.ID = m.nextID
	cp := *d
	m.deliverables[key] = &cp
	return nil
}

func (m *mockCatalogRepository) ListStageTemplates(ctx context.Context) ([]model.StageTemplate, error) {
	var out []model.StageTemplate
	for _, st := range m.stages {
		cp := *st
		for _, item := range m.checklist {
			if item.StageID == st.ID {
				cp.Checklist = append(cp.Checklist, *item)
			}
		}
		for _, d := range m.deliverables {
			if d.StageID == st.ID {
				cp.Deliverables = append(cp.Deliverables, *d)
			}
		}
		out = append(out, cp)
	}
	// map iteration order is random; the catalog must sort regardless
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

type mockDirectory struct {
	orgs  map[string]int
	users map[string]model.User
}

func (m *mockDirectory) EnsureOrg(ctx context.Context, name string) (int, error) {
	if id, ok := m.orgs[name]; ok {
		return id, nil
	}
	id := len(m.orgs) + 1
	m.orgs[name] = id
	return id, nil
}

func (m *mockDirectory) EnsureUser(ctx context.Context, u *model.User) (bool, error) {
	if _, ok := m.users[u.Email]; ok {
		return false, nil
	}
	m.users[u.Email] = *u
	return true, nil
}

func newTestSeeder() (*Seeder, *mockCatalogRepository, *mockDirectory) {
	repo := newMockCatalogRepository()
	dir := &mockDirectory{orgs: map[string]int{}, users: map[string]model.User{}}
	s := NewSeeder(repo, dir, Bootstrap{
		OrgName:       "Mohamed Marey BD OS",
		AdminName:     "Admin",
		AdminEmail:    "admin@local",
		AdminPassword: "admin1234",
	}, zap.NewNop())
	return s, repo, dir
}

func TestDefaultStagesShape(t *testing.T) {
	if len(DefaultStages) != 12 {
		t.Fatalf("len(DefaultStages) = %d, want 12", len(DefaultStages))
	}
	codes := map[string]bool{}
	orders := map[int]bool{}
	for _, def := range DefaultStages {
		if codes[def.Code] {
			t.Errorf("duplicate code %s", def.Code)
		}
		if orders[def.Order] {
			t.Errorf("duplicate order %d", def.Order)
		}
		codes[def.Code] = true
		orders[def.Order] = true
		if len(def.Checklist) == 0 || len(def.Deliverables) == 0 {
			t.Errorf("%s has %d checklist items and %d deliverables, want both non-empty", def.Code, len(def.Checklist), len(def.Deliverables))
		}
	}
	if DefaultStages[0].Code != "INTAKE" || DefaultStages[11].Code != "KPIS" {
		t.Errorf("first/last = %s/%s, want INTAKE/KPIS", DefaultStages[0].Code, DefaultStages[11].Code)
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	s, repo, dir := newTestSeeder()
	ctx := context.Background()

	if err := s.Seed(ctx); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	stages, items, dels := len(repo.stages), len(repo.checklist), len(repo.deliverables)

	if err := s.Seed(ctx); err != nil {
		t.Fatalf("second Seed() error = %v", err)
	}
	if len(repo.stages) != stages || len(repo.checklist) != items || len(repo.deliverables) != dels {
		t.Errorf("re-seed changed counts: stages %d->%d, checklist %d->%d, deliverables %d->%d",
			stages, len(repo.stages), items, len(repo.checklist), dels, len(repo.deliverables))
	}

	if stages != 12 {
		t.Errorf("stages = %d, want 12", stages)
	}
	var wantItems, wantDels int
	for _, def := range DefaultStages {
		wantItems += len(def.Checklist)
		wantDels += len(def.Deliverables)
	}
	if items != wantItems || items != 39 {
		t.Errorf("checklist items = %d, want %d", items, wantItems)
	}
	if dels != wantDels {
		t.Errorf("deliverables = %d, want %d", dels, wantDels)
	}

	if len(dir.orgs) != 1 || len(dir.users) != 1 {
		t.Errorf("orgs = %d users = %d, want 1 and 1", len(dir.orgs), len(dir.users))
	}
	admin := dir.users["admin@local"]
	if !admin.IsAdmin || !util.CheckPassword("admin1234", admin.PasswordHash) {
		t.Errorf("admin = %+v, want admin with hashed default password", admin)
	}
}

func TestSeedWithoutBootstrapTenant(t *testing.T) {
	repo := newMockCatalogRepository()
	dir := &mockDirectory{orgs: map[string]int{}, users: map[string]model.User{}}
	s := NewSeeder(repo, dir, Bootstrap{}, zap.NewNop())

	if err := s.Seed(context.Background()); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(dir.orgs) != 0 {
		t.Errorf("orgs = %d, want 0", len(dir.orgs))
	}
}

func TestSeedPropagatesRepositoryError(t *testing.T) {
	s, repo, _ := newTestSeeder()
	repo.upsertErr = errors.New("db down")

	if err := s.Seed(context.Background()); !errors.Is(err, repo.upsertErr) {
		t.Errorf("Seed() error = %v, want wrapped %v", err, repo.upsertErr)
	}
}

func TestSnapshotOrdersByStageOrder(t *testing.T) {
	s, _, _ := newTestSeeder()
	ctx := context.Background()
	if err := s.Seed(ctx); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	catalog, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	stages, _ := catalog.StageTemplates(ctx)
	for i, st := range stages {
		if st.Code != DefaultStages[i].Code {
			t.Errorf("stage[%d] = %s, want %s", i, st.Code, DefaultStages[i].Code)
		}
	}
	if got := len(stages[0].Checklist); got != 4 {
		t.Errorf("INTAKE checklist = %d, want 4", got)
	}
}
