package workflow

import (
	"context"
	"encoding/json"
	"errors"

	"bdos/internal/model"
)

type atomicOpKey struct{}

type recordedEvent struct {
	operation     string
	aggregateType string
	aggregateID   int
	routingKey    string
	payload       []byte
}

// memDB is an in-memory database shared by every org's transactions.
type memDB struct {
	nextID int

	accounts     map[int]*model.Account
	projects     map[int]*model.Project
	stages       map[int]*model.ProjectStage
	checklist    map[int]*model.ChecklistEntry
	deliverables map[int]*model.Deliverable
	approvals    []model.Approval
	events       []recordedEvent

	// failInsertStageAfter makes the nth InsertProjectStage fail when > 0.
	failInsertStageAfter int
	stageInserts         int
}

func newMemDB() *memDB {
	return &memDB{
		accounts:     map[int]*model.Account{},
		projects:     map[int]*model.Project{},
		stages:       map[int]*model.ProjectStage{},
		checklist:    map[int]*model.ChecklistEntry{},
		deliverables: map[int]*model.Deliverable{},
	}
}

func (m *memDB) id() int {
	m.nextID++
	return m.nextID
}

func (m *memDB) clone() *memDB {
	c := &memDB{
		nextID:               m.nextID,
		accounts:             map[int]*model.Account{},
		projects:             map[int]*model.Project{},
		stages:               map[int]*model.ProjectStage{},
		checklist:            map[int]*model.ChecklistEntry{},
		deliverables:         map[int]*model.Deliverable{},
		approvals:            append([]model.Approval(nil), m.approvals...),
		events:               append([]recordedEvent(nil), m.events...),
		failInsertStageAfter: m.failInsertStageAfter,
		stageInserts:         m.stageInserts,
	}
	for k, v := range m.accounts {
		cp := *v
		c.accounts[k] = &cp
	}
	for k, v := range m.projects {
		cp := *v
		c.projects[k] = &cp
	}
	for k, v := range m.stages {
		cp := *v
		c.stages[k] = &cp
	}
	for k, v := range m.checklist {
		cp := *v
		c.checklist[k] = &cp
	}
	for k, v := range m.deliverables {
		cp := *v
		c.deliverables[k] = &cp
	}
	return c
}

func (m *memDB) stagesOf(projectID int) []model.ProjectStage {
	var out []model.ProjectStage
	for i := 1; i <= m.nextID; i++ {
		if ps, ok := m.stages[i]; ok && ps.ProjectID == projectID {
			out = append(out, *ps)
		}
	}
	return out
}

// memStore gives every Atomic call a copy of the db and swaps it in on success.
type memStore struct {
	db        *memDB
	atomics   []string
	atomicErr error
}

func (s *memStore) Atomic(ctx context.Context, orgID int, operation string, fn func(context.Context, Tx) error) error {
	s.atomics = append(s.atomics, operation)
	if s.atomicErr != nil {
		return s.atomicErr
	}
	work := s.db.clone()
	txCtx := context.WithValue(ctx, atomicOpKey{}, operation)
	if err := fn(txCtx, &memTx{db: work, orgID: orgID}); err != nil {
		return err
	}
	s.db = work
	return nil
}

type memTx struct {
	db    *memDB
	orgID int
}

func (t *memTx) GetAccount(ctx context.Context, accountID int) (*model.Account, error) {
	a, ok := t.db.accounts[accountID]
	if !ok || a.OrgID != t.orgID {
		return nil, model.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (t *memTx) InsertProject(ctx context.Context, p *model.Project) error {
	p.ID = t.db.id()
	p.OrgID = t.orgID
	cp := *p
	t.db.projects[p.ID] = &cp
	return nil
}

func (t *memTx) GetProject(ctx context.Context, projectID int) (*model.Project, error) {
	p, ok := t.db.projects[projectID]
	if !ok || p.OrgID != t.orgID {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) CountProjectStages(ctx context.Context, projectID int) (int, error) {
	return len(t.db.stagesOf(projectID)), nil
}

func (t *memTx) InsertProjectStage(ctx context.Context, ps *model.ProjectStage) error {
	t.db.stageInserts++
	if t.db.failInsertStageAfter > 0 && t.db.stageInserts >= t.db.failInsertStageAfter {
		return errors.New("connection reset")
	}
	for _, existing := range t.db.stagesOf(ps.ProjectID) {
		if existing.StageID == ps.StageID {
			return model.ErrAlreadyInstantiated
		}
	}
	ps.ID = t.db.id()
	cp := *ps
	t.db.stages[ps.ID] = &cp
	return nil
}

func (t *memTx) InsertChecklistEntry(ctx context.Context, e *model.ChecklistEntry) error {
	e.ID = t.db.id()
	cp := *e
	t.db.checklist[e.ID] = &cp
	return nil
}

func (t *memTx) InsertDeliverable(ctx context.Context, d *model.Deliverable) error {
	d.ID = t.db.id()
	cp := *d
	t.db.deliverables[d.ID] = &cp
	return nil
}

func (t *memTx) ListProjectStages(ctx context.Context, projectID int) ([]model.ProjectStage, error) {
	if _, err := t.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return t.db.stagesOf(projectID), nil
}

func (t *memTx) GetProjectStage(ctx context.Context, projectID, projectStageID int) (*model.ProjectStage, error) {
	if _, err := t.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	ps, ok := t.db.stages[projectStageID]
	if !ok || ps.ProjectID != projectID {
		return nil, model.ErrNotFound
	}
	cp := *ps
	return &cp, nil
}

func (t *memTx) UpdateProjectStage(ctx context.Context, ps *model.ProjectStage) error {
	cp := *ps
	t.db.stages[ps.ID] = &cp
	return nil
}

func (t *memTx) InsertApproval(ctx context.Context, a *model.Approval) error {
	a.ID = t.db.id()
	t.db.approvals = append(t.db.approvals, *a)
	return nil
}

func (t *memTx) GetChecklistEntry(ctx context.Context, projectID, projectStageID, entryID int) (*model.ChecklistEntry, error) {
	if _, err := t.GetProjectStage(ctx, projectID, projectStageID); err != nil {
		return nil, err
	}
	e, ok := t.db.checklist[entryID]
	if !ok || e.ProjectStageID != projectStageID {
		return nil, model.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (t *memTx) UpdateChecklistEntry(ctx context.Context, e *model.ChecklistEntry) error {
	cp := *e
	t.db.checklist[e.ID] = &cp
	return nil
}

func (t *memTx) GetDeliverable(ctx context.Context, projectID, projectStageID, deliverableID int) (*model.Deliverable, error) {
	if _, err := t.GetProjectStage(ctx, projectID, projectStageID); err != nil {
		return nil, err
	}
	d, ok := t.db.deliverables[deliverableID]
	if !ok || d.ProjectStageID != projectStageID {
		return nil, model.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (t *memTx) UpdateDeliverable(ctx context.Context, d *model.Deliverable) error {
	cp := *d
	t.db.deliverables[d.ID] = &cp
	return nil
}

func (t *memTx) AppendEvent(ctx context.Context, aggregateType string, aggregateID int, routingKey string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	op, _ := ctx.Value(atomicOpKey{}).(string)
	t.db.events = append(t.db.events, recordedEvent{op, aggregateType, aggregateID, routingKey, raw})
	return nil
}
