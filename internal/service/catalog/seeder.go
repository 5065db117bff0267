package catalog

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"bdos/internal/model"
	"bdos/internal/service/workflow"
	"bdos/pkg/util"
)

// Repository persists stage templates. Upserts are keyed by natural key and
// fill in the id of the existing or new row.
type Repository interface {
	UpsertStage(ctx context.Context, st *model.StageTemplate) error
	UpsertChecklistItem(ctx context.Context, item *model.ChecklistItemTemplate) error
	UpsertDeliverable(ctx context.Context, d *model.DeliverableTemplate) error
	ListStageTemplates(ctx context.Context) ([]model.StageTemplate, error)
}

// Directory creates the bootstrap tenant.
type Directory interface {
	EnsureOrg(ctx context.Context, name string) (int, error)
	// EnsureUser inserts u unless a user with the same email exists.
	EnsureUser(ctx context.Context, u *model.User) (bool, error)
}

// Bootstrap describes the org and admin created on first start.
type Bootstrap struct {
	OrgName       string `yaml:"org_name"`
	AdminName     string `yaml:"admin_name"`
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

type Seeder struct {
	repo      Repository
	directory Directory
	stages    []StageDef
	bootstrap Bootstrap
	logger    *zap.Logger
}

func NewSeeder(repo Repository, directory Directory, bootstrap Bootstrap, logger *zap.Logger) *Seeder {
	return &Seeder{
		repo:      repo,
		directory: directory,
		stages:    DefaultStages,
		bootstrap: bootstrap,
		logger:    logger,
	}
}

// WithStages replaces the seeded definitions.
func (s *Seeder) WithStages(stages []StageDef) *Seeder {
	s.stages = stages
	return s
}

// Seed upserts the bootstrap org, its admin and every stage definition.
// Running it again creates nothing new.
func (s *Seeder) Seed(ctx context.Context) error {
	if err := s.seedTenant(ctx); err != nil {
		return err
	}

	for _, def := range s.stages {
		st := &model.StageTemplate{Code: def.Code, Name: def.Name, Order: def.Order}
		if err := s.repo.UpsertStage(ctx, st); err != nil {
			return fmt.Errorf("seed stage %s: %w", def.Code, err)
		}

		for _, text := range def.Checklist {
			item := &model.ChecklistItemTemplate{StageID: st.ID, Text: text, Required: true}
			if err := s.repo.UpsertChecklistItem(ctx, item); err != nil {
				return fmt.Errorf("seed checklist item %q for %s: %w", text, def.Code, err)
			}
		}

		for _, name := range def.Deliverables {
			d := &model.DeliverableTemplate{StageID: st.ID, Name: name, DType: "doc", Required: true}
			if err := s.repo.UpsertDeliverable(ctx, d); err != nil {
				return fmt.Errorf("seed deliverable %q for %s: %w", name, def.Code, err)
			}
		}
	}

	s.logger.Info("Stage catalog seeded", zap.Int("stages", len(s.stages)))
	return nil
}

func (s *Seeder) seedTenant(ctx context.Context) error {
	if s.bootstrap.OrgName == "" {
		return nil
	}

	orgID, err := s.directory.EnsureOrg(ctx, s.bootstrap.OrgName)
	if err != nil {
		return fmt.Errorf("seed org: %w", err)
	}

	if s.bootstrap.AdminEmail == "" {
		return nil
	}
	hash, err := util.HashPassword(s.bootstrap.AdminPassword)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	created, err := s.directory.EnsureUser(ctx, &model.User{
		OrgID:        orgID,
		Name:         s.bootstrap.AdminName,
		Email:        s.bootstrap.AdminEmail,
		PasswordHash: hash,
		IsAdmin:      true,
	})
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		s.logger.Info("Bootstrap admin created",
			zap.Int("org_id", orgID),
			zap.String("email", s.bootstrap.AdminEmail),
		)
	}
	return nil
}

// Snapshot loads the persisted catalog into an in-memory Catalog.
func (s *Seeder) Snapshot(ctx context.Context) (*workflow.StaticCatalog, error) {
	stages, err := s.repo.ListStageTemplates(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stage catalog: %w", err)
	}
	return workflow.NewStaticCatalog(stages), nil
}
