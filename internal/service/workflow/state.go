package workflow

import (
	"strings"
	"time"

	"bdos/internal/model"
)

// ApplyDecision returns ps after an approval decision. Prior status is ignored:
// approve always completes the stage, anything else blocks it.
func ApplyDecision(ps model.ProjectStage, decision string, actorID int, now time.Time) model.ProjectStage {
	if decision == model.DecisionApprove {
		ps.Status = model.StageDone
		ps.CompletedAt = &now
		ps.ApprovedBy = &actorID
		ps.ApprovedAt = &now
		return ps
	}
	ps.Status = model.StageBlocked
	return ps
}

// ToggleEntry flips e.Done. Turning it on stamps the actor and time, turning
// it off clears both.
func ToggleEntry(e model.ChecklistEntry, actorID int, now time.Time) model.ChecklistEntry {
	e.Done = !e.Done
	if e.Done {
		e.DoneBy = &actorID
		e.DoneAt = &now
	} else {
		e.DoneBy = nil
		e.DoneAt = nil
	}
	return e
}

// DeliverableStatus derives the status implied by content.
func DeliverableStatus(content string) string {
	if strings.TrimSpace(content) == "" {
		return model.DeliverableDraft
	}
	return model.DeliverableSubmitted
}

// ApplyContent overwrites the deliverable content. Version is left alone.
func ApplyContent(d model.Deliverable, content string, now time.Time) model.Deliverable {
	d.Content = &content
	d.Status = DeliverableStatus(content)
	d.UpdatedAt = now
	return d
}

// Progress is the floored percentage of done stages, 0 when there are none.
func Progress(stages []model.ProjectStage) int {
	if len(stages) == 0 {
		return 0
	}
	done := 0
	for _, s := range stages {
		if s.Status == model.StageDone {
			done++
		}
	}
	return done * 100 / len(stages)
}

// IsOverdue reports whether an open task is past its due date.
func IsOverdue(t model.Task, now time.Time) bool {
	return t.Status != model.TaskDone && t.DueDate != nil && t.DueDate.Before(now)
}
