package board

import "errors"

// Validation errors, raised before any store call
var (
	ErrBoardIDRequired   = errors.New("board id is required")
	ErrTaskIDRequired    = errors.New("task id is required")
	ErrUserIDRequired    = errors.New("user id is required")
	ErrBoardNameRequired = errors.New("board name is required")
	ErrInvalidStage      = errors.New("invalid stage")
	ErrNotOwner          = errors.New("only the board owner can do this")
)

// Category errors
var (
	ErrCategoryNameRequired = errors.New("category name is required")
	ErrCategoryExists       = errors.New("category already exists")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrGeneralCategory      = errors.New("the General category cannot be removed")
)
