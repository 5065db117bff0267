package workflow

import (
	"context"
	"sort"

	"bdos/internal/model"
)

// StaticCatalog serves a fixed snapshot of stage templates.
type StaticCatalog struct {
	stages []model.StageTemplate
	byID   map[int]int
}

// NewStaticCatalog copies stages and sorts them by Order.
func NewStaticCatalog(stages []model.StageTemplate) *StaticCatalog {
	sorted := make([]model.StageTemplate, len(stages))
	copy(sorted, stages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	byID := make(map[int]int, len(sorted))
	for i, st := range sorted {
		byID[st.ID] = i
	}
	return &StaticCatalog{stages: sorted, byID: byID}
}

func (c *StaticCatalog) StageTemplates(ctx context.Context) ([]model.StageTemplate, error) {
	out := make([]model.StageTemplate, len(c.stages))
	copy(out, c.stages)
	return out, nil
}

func (c *StaticCatalog) Len() int {
	return len(c.stages)
}

// Stage looks up a template by id.
func (c *StaticCatalog) Stage(id int) (model.StageTemplate, bool) {
	i, ok := c.byID[id]
	if !ok {
		return model.StageTemplate{}, false
	}
	return c.stages[i], true
}

func findStage(stages []model.StageTemplate, id int) (model.StageTemplate, bool) {
	for _, st := range stages {
		if st.ID == id {
			return st, true
		}
	}
	return model.StageTemplate{}, false
}
