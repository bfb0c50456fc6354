// Package board implements the mutating operations on boards and tasks.
//
// Every operation validates its arguments before touching the store and
// returns once the write is committed. The result becomes visible through
// the next subscription snapshot, never through local state.
package board

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/existflow/ironboard/internal/category"
	"github.com/existflow/ironboard/internal/logger"
	"github.com/existflow/ironboard/internal/model"
	"github.com/existflow/ironboard/internal/store"
)

// Service performs validated writes against a store
type Service struct {
	store store.Store
	log   *logger.Logger
	now   func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithClock overrides the time source used for createdAt and completedAt
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a board service
func NewService(s store.Store, log *logger.Logger, opts ...Option) *Service {
	svc := &Service{
		store: s,
		log:   log.With(logger.F("component", "board")),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// BoardInput describes a new board
type BoardInput struct {
	Name          string
	Collaborators []model.CollaboratorInput
	// Categories replaces the default set when non-nil
	Categories []model.Category
}

// CreateBoard stores a new board owned by user and returns its id
func (s *Service) CreateBoard(ctx context.Context, user model.User, in BoardInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", ErrBoardNameRequired
	}
	if user.ID == "" {
		return "", ErrUserIDRequired
	}

	emails, details := NormalizeCollaborators(in.Collaborators)
	cats := model.DefaultCategories()
	if in.Categories != nil {
		cats = category.Sanitize(in.Categories)
	}

	b := model.Board{
		Name:                name,
		Owner:               user.ID,
		OwnerEmail:          user.NormalizedEmail(),
		Collaborators:       emails,
		CollaboratorDetails: details,
		Categories:          cats,
		CreatedAt:           model.NewTimestamp(s.now()),
	}
	id, err := s.store.Create(ctx, store.BoardsCollection, b)
	if err != nil {
		return "", fmt.Errorf("create board: %w", err)
	}
	s.log.Info("board created", logger.F("board_id", id), logger.F("owner", user.ID))
	return id, nil
}

// BoardUpdate holds the board fields to change; nil fields are left alone
type BoardUpdate struct {
	Name          *string
	Collaborators *[]model.CollaboratorInput
	Categories    []model.Category
}

// UpdateBoard applies upd to b. Only the owner may change a board.
func (s *Service) UpdateBoard(ctx context.Context, user model.User, b model.Board, upd BoardUpdate) error {
	if b.ID == "" {
		return ErrBoardIDRequired
	}
	if user.ID == "" {
		return ErrUserIDRequired
	}
	if !b.IsOwnedBy(user.ID) {
		return ErrNotOwner
	}

	fields := store.Fields{}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return ErrBoardNameRequired
		}
		fields["name"] = name
	}
	if upd.Collaborators != nil {
		emails, details := NormalizeCollaborators(*upd.Collaborators)
		fields["collaborators"] = emails
		fields["collaboratorDetails"] = details
	}
	if upd.Categories != nil {
		fields["categories"] = category.Sanitize(upd.Categories)
	}
	if len(fields) == 0 {
		return nil
	}

	if err := s.store.Update(ctx, store.BoardPath(b.ID), fields); err != nil {
		return fmt.Errorf("update board %s: %w", b.ID, err)
	}
	s.log.Info("board updated", logger.F("board_id", b.ID), logger.F("fields", len(fields)))
	return nil
}

// DeleteBoard removes a board. Only the owner may delete it.
func (s *Service) DeleteBoard(ctx context.Context, user model.User, b model.Board) error {
	if b.ID == "" {
		return ErrBoardIDRequired
	}
	if user.ID == "" {
		return ErrUserIDRequired
	}
	if !b.IsOwnedBy(user.ID) {
		return ErrNotOwner
	}
	if err := s.store.Delete(ctx, store.BoardPath(b.ID)); err != nil {
		return fmt.Errorf("delete board %s: %w", b.ID, err)
	}
	s.log.Info("board deleted", logger.F("board_id", b.ID))
	return nil
}

// AddCategory appends a category named name to the board.
// The id is derived from the name and made unique on the board.
func (s *Service) AddCategory(ctx context.Context, b model.Board, name, color string) (model.Category, error) {
	if b.ID == "" {
		return model.Category{}, ErrBoardIDRequired
	}
	name = strings.TrimSpace(name)
	if name == "" || category.Slug(name) == "" {
		return model.Category{}, ErrCategoryNameRequired
	}
	current := category.Normalize(b.Categories)
	for _, c := range current {
		if category.Equals(c.Name, name) {
			return model.Category{}, fmt.Errorf("%w: %s", ErrCategoryExists, c.Name)
		}
	}
	if color == "" {
		color = model.DefaultCategoryColor
	}

	id := category.Slug(name)
	for n := 2; containsID(current, id); n++ {
		id = fmt.Sprintf("%s-%d", category.Slug(name), n)
	}
	c := model.Category{ID: id, Name: name, Color: color}

	cats := append(append([]model.Category(nil), current...), c)
	if err := s.store.Update(ctx, store.BoardPath(b.ID), store.Fields{"categories": category.Sanitize(cats)}); err != nil {
		return model.Category{}, fmt.Errorf("add category to %s: %w", b.ID, err)
	}
	s.log.Info("category added", logger.F("board_id", b.ID), logger.F("category_id", id))
	return c, nil
}

// RemoveCategory drops a category from the board. Tasks that pointed at it
// show under General until BackfillCategories persists the repair.
func (s *Service) RemoveCategory(ctx context.Context, b model.Board, categoryID string) error {
	if b.ID == "" {
		return ErrBoardIDRequired
	}
	current := category.Normalize(b.Categories)
	target, ok := category.Find(current, model.ByID(categoryID))
	if !ok {
		return fmt.Errorf("%w: %s", ErrCategoryNotFound, categoryID)
	}
	if category.Equals(target.Name, model.GeneralCategoryName) {
		return ErrGeneralCategory
	}

	kept := make([]model.Category, 0, len(current))
	for _, c := range current {
		if c.ID != target.ID {
			kept = append(kept, c)
		}
	}
	if err := s.store.Update(ctx, store.BoardPath(b.ID), store.Fields{"categories": kept}); err != nil {
		return fmt.Errorf("remove category from %s: %w", b.ID, err)
	}
	s.log.Info("category removed", logger.F("board_id", b.ID), logger.F("category_id", target.ID))
	return nil
}

func containsID(list []model.Category, id string) bool {
	_, ok := category.Find(list, model.ByID(id))
	return ok
}
