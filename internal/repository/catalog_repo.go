package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"bdos/internal/model"
)

// CatalogRepository stores stage templates. Rows are only ever upserted by
// the seeder; the workflow reads them through an in-memory snapshot.
type CatalogRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewCatalogRepository(db *pgxpool.Pool, logger *zap.Logger) *CatalogRepository {
	return &CatalogRepository{db: db, logger: logger}
}

// UpsertStage keys on code. Name and order follow the seed definition.
func (r *CatalogRepository) UpsertStage(ctx context.Context, st *model.StageTemplate) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO stages (code, name, "order")
        VALUES ($1, $2, $3)
        ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, "order" = EXCLUDED."order"
        RETURNING id
    `, st.Code, st.Name, st.Order).Scan(&st.ID)
	if err != nil {
		return fmt.Errorf("upsert stage %s: %w", st.Code, err)
	}
	return nil
}

func (r *CatalogRepository) UpsertChecklistItem(ctx context.Context, item *model.ChecklistItemTemplate) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO stage_checklist_items (stage_id, text, required)
        VALUES ($1, $2, $3)
        ON CONFLICT (stage_id, text) DO UPDATE SET required = EXCLUDED.required
        RETURNING id
    `, item.StageID, item.Text, item.Required).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("upsert checklist item: %w", err)
	}
	return nil
}

func (r *CatalogRepository) UpsertDeliverable(ctx context.Context, d *model.DeliverableTemplate) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO stage_deliverables (stage_id, name, dtype, required)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (stage_id, name) DO UPDATE SET required = EXCLUDED.required
        RETURNING id
    `, d.StageID, d.Name, d.DType, d.Required).Scan(&d.ID)
	if err != nil {
		return fmt.Errorf("upsert deliverable: %w", err)
	}
	return nil
}

// ListStageTemplates returns all templates ascending by order with their
// checklist and deliverable templates attached.
func (r *CatalogRepository) ListStageTemplates(ctx context.Context) ([]model.StageTemplate, error) {
	rows, err := r.db.Query(ctx, `SELECT id, code, name, "order" FROM stages ORDER BY "order" ASC`)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()

	var stages []model.StageTemplate
	index := map[int]int{}
	for rows.Next() {
		var st model.StageTemplate
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &st.Order); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		index[st.ID] = len(stages)
		stages = append(stages, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	items, err := r.ChecklistTemplates(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		if i, ok := index[it.StageID]; ok {
			stages[i].Checklist = append(stages[i].Checklist, it)
		}
	}

	docs, err := r.DeliverableTemplates(ctx, 0)
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if i, ok := index[d.StageID]; ok {
			stages[i].Deliverables = append(stages[i].Deliverables, d)
		}
	}

	r.logger.Debug("Loaded stage catalog", zap.Int("stages", len(stages)))
	return stages, nil
}

// ChecklistTemplates returns the checklist templates of one stage, or of all
// stages when stageID is 0.
func (r *CatalogRepository) ChecklistTemplates(ctx context.Context, stageID int) ([]model.ChecklistItemTemplate, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, stage_id, text, required
        FROM stage_checklist_items
        WHERE $1 = 0 OR stage_id = $1
        ORDER BY stage_id, id
    `, stageID)
	if err != nil {
		return nil, fmt.Errorf("query checklist templates: %w", err)
	}
	defer rows.Close()

	var out []model.ChecklistItemTemplate
	for rows.Next() {
		var it model.ChecklistItemTemplate
		if err := rows.Scan(&it.ID, &it.StageID, &it.Text, &it.Required); err != nil {
			return nil, fmt.Errorf("scan checklist template: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// DeliverableTemplates returns the deliverable templates of one stage, or of
// all stages when stageID is 0.
func (r *CatalogRepository) DeliverableTemplates(ctx context.Context, stageID int) ([]model.DeliverableTemplate, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, stage_id, name, dtype, required
        FROM stage_deliverables
        WHERE $1 = 0 OR stage_id = $1
        ORDER BY stage_id, id
    `, stageID)
	if err != nil {
		return nil, fmt.Errorf("query deliverable templates: %w", err)
	}
	defer rows.Close()

	var out []model.DeliverableTemplate
	for rows.Next() {
		var d model.DeliverableTemplate
		if err := rows.Scan(&d.ID, &d.StageID, &d.Name, &d.DType, &d.Required); err != nil {
			return nil, fmt.Errorf("scan deliverable template: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
