package board

import (
	"context"
	"fmt"
	"strings"

	"github.com/existflow/ironboard/internal/category"
	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/ordering"
	"github.com/existflow/ironboard/internal/store"
)

// TaskInput describes a new task
type TaskInput struct {
	Title       string
	Description string
	Assignees   []string
	// Status defaults to Backlog
	Status model.Stage
	// Category is looked up on the board; unknown references use General
	Category model.CategoryRef
}

// CreateTask stores a new task at the end of its column, and at the end of
// its category when it lands in the Backlog. existing is the board's
// current task snapshot, used only to compute ranks.
func (s *Service) CreateTask(ctx context.Context, b model.Board, existing []model.Task, user model.User, in TaskInput) (string, error) {
	if b.ID == "" {
		return "", ErrBoardIDRequired
	}
	stage := in.Status
	if stage == "" {
		stage = model.StageBacklog
	}
	if !stage.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, in.Status)
	}

	normalized := category.Normalize(b.Categories)
	cat, ok := category.Find(normalized, in.Category)
	if !ok {
		cat = category.General(normalized)
	}
	if cat.Color == "" {
		cat.Color = model.DefaultCategoryColor
	}

	t := model.NewTask(in.Title, user)
	t.Description = in.Description
	if in.Assignees != nil {
		t.Assignees = append([]string(nil), in.Assignees...)
	}
	t.Status = stage
	t.CategoryID, t.CategoryName, t.CategoryColor = cat.ID, cat.Name, cat.Color
	t.CreatedAt = model.NewTimestamp(s.now())
	t.Order = model.IntPtr(ordering.NextOrder(ordering.InStage(existing, stage)))
	if stage == model.StageBacklog {
		t.CategoryOrder = model.IntPtr(ordering.NextCategoryOrder(ordering.InCategory(existing, cat, b.Categories)))
	}
	if stage == model.StageDone {
		done := model.NewTimestamp(s.now())
		t.CompletedAt = &done
	}

	id, err := s.store.Create(ctx, store.TasksCollection(b.ID), t)
	if err != nil {
		return "", fmt.Errorf("create task on %s: %w", b.ID, err)
	}
	s.log.Info("task created", logger.F("board_id", b.ID), logger.F("task_id", id), logger.F("status", stage))
	return id, nil
}

// TaskUpdate holds the task fields to change; nil fields are left alone
type TaskUpdate struct {
	Title       *string
	Description *string
	Assignees   *[]string
	Status      *model.Stage
	Category    *model.Category
}

// UpdateTask applies upd to task. Setting the status to Done stamps
// completedAt unless the task already has one.
func (s *Service) UpdateTask(ctx context.Context, boardID string, task model.Task, upd TaskUpdate) error {
	if boardID == "" {
		return ErrBoardIDRequired
	}
	if task.ID == "" {
		return ErrTaskIDRequired
	}

	fields := store.Fields{}
	if upd.Title != nil {
		fields["title"] = *upd.Title
	}
	if upd.Description != nil {
		fields["description"] = *upd.Description
	}
	if upd.Assignees != nil {
		fields["assignees"] = append([]string{}, (*upd.Assignees)...)
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStage, *upd.Status)
		}
		fields["status"] = string(*upd.Status)
		if *upd.Status == model.StageDone && task.CompletedAt == nil {
			fields["completedAt"] = model.NewTimestamp(s.now())
		}
	}
	if upd.Category != nil {
		c := *upd.Category
		if c.Color == "" {
			c.Color = model.DefaultCategoryColor
		}
		fields["categoryId"] = c.ID
		fields["categoryName"] = c.Name
		fields["categoryColor"] = c.Color
		fields["category"] = nil
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.store.Update(ctx, store.TaskPath(boardID, task.ID), fields); err != nil {
		return fmt.Errorf("update task %s: %w", task.ID, err)
	}
	s.log.Debug("task updated", logger.F("board_id", boardID), logger.F("task_id", task.ID))
	return nil
}

// DeleteTask removes a task
func (s *Service) DeleteTask(ctx context.Context, boardID, taskID string) error {
	if boardID == "" {
		return ErrBoardIDRequired
	}
	if taskID == "" {
		return ErrTaskIDRequired
	}
	if err := s.store.Delete(ctx, store.TaskPath(boardID, taskID)); err != nil {
		return fmt.Errorf("delete task %s: %w", taskID, err)
	}
	s.log.Info("task deleted", logger.F("board_id", boardID), logger.F("task_id", taskID))
	return nil
}

// MoveTask puts task into stage at rank order. Ranks left behind in the
// source column are not touched.
func (s *Service) MoveTask(ctx context.Context, boardID string, task model.Task, stage model.Stage, order int) error {
	if boardID == "" {
		return ErrBoardIDRequired
	}
	if task.ID == "" {
		return ErrTaskIDRequired
	}
	if !stage.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}

	p := ordering.Move(task, stage, order, s.now())
	if err := s.store.Update(ctx, store.TaskPath(boardID, task.ID), p.Fields()); err != nil {
		return fmt.Errorf("move task %s: %w", task.ID, err)
	}
	s.log.Info("task moved", logger.F("board_id", boardID), logger.F("task_id", task.ID),
		logger.F("from", task.Status), logger.F("to", stage), logger.F("order", order))
	return nil
}

// MoveTaskToEnd moves task to the end of stage as seen in existing
func (s *Service) MoveTaskToEnd(ctx context.Context, boardID string, task model.Task, stage model.Stage, existing []model.Task) error {
	var others []model.Task
	for _, t := range ordering.InStage(existing, stage) {
		if t.ID != task.ID {
			others = append(others, t)
		}
	}
	return s.MoveTask(ctx, boardID, task, stage, ordering.NextOrder(others))
}

// ReorderColumn renumbers stage to match the caller's sequence in a single
// batch write.
func (s *Service) ReorderColumn(ctx context.Context, b model.Board, stage model.Stage, tasks []model.Task) error {
	if b.ID == "" {
		return ErrBoardIDRequired
	}
	if !stage.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}

	patches := ordering.Reorder(stage, tasks, b.Categories)
	if len(patches) == 0 {
		return nil
	}
	writes := make([]store.Write, 0, len(patches))
	for _, p := range patches {
		writes = append(writes, store.Write{Path: store.TaskPath(b.ID, p.TaskID), Fields: p.Fields()})
	}
	if err := s.store.Batch(ctx, writes); err != nil {
		return fmt.Errorf("reorder %s on %s: %w", stage, b.ID, err)
	}
	s.log.Info("column reordered", logger.F("board_id", b.ID), logger.F("stage", stage), logger.F("tasks", len(writes)))
	return nil
}

// BackfillCategories persists the read-time category repair. Tasks whose
// reference no longer resolves are moved to General, legacy references are
// rewritten as id, name and color, and a missing status becomes Backlog.
// It returns the number of tasks written.
func (s *Service) BackfillCategories(ctx context.Context, b model.Board, tasks []model.Task) (int, error) {
	if b.ID == "" {
		return 0, ErrBoardIDRequired
	}
	normalized := category.Normalize(b.Categories)

	var writes []store.Write
	for _, t := range tasks {
		if t.ID == "" {
			continue
		}
		fields := store.Fields{}
		cat := category.Resolve(t, normalized)
		if cat.Color == "" {
			cat.Color = model.DefaultCategoryColor
		}
		if t.CategoryID != cat.ID || t.CategoryName != cat.Name || t.CategoryColor != cat.Color {
			fields["categoryId"] = cat.ID
			fields["categoryName"] = cat.Name
			fields["categoryColor"] = cat.Color
		}
		if t.LegacyCategory != nil {
			fields["category"] = nil
		}
		if strings.TrimSpace(string(t.Status)) == "" {
			fields["status"] = string(model.StageBacklog)
		}
		if len(fields) == 0 {
			continue
		}
		writes = append(writes, store.Write{Path: store.TaskPath(b.ID, t.ID), Fields: fields})
	}
	if len(writes) == 0 {
		return 0, nil
	}
	if err := s.store.Batch(ctx, writes); err != nil {
		return 0, fmt.Errorf("backfill categories on %s: %w", b.ID, err)
	}
	s.log.Info("categories backfilled", logger.F("board_id", b.ID), logger.F("tasks", len(writes)))
	return len(writes), nil
}
