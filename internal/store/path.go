package store

import (
	"fmt"
	"strings"
)

// BoardsCollection holds board documents
const BoardsCollection = "boards"

// BoardPath addresses a board document
func BoardPath(boardID string) string {
	return BoardsCollection + "/" + boardID
}

// TasksCollection is the task sub-collection of a board
func TasksCollection(boardID string) string {
	return BoardPath(boardID) + "/tasks"
}

// TaskPath addresses a task document
func TaskPath(boardID, taskID string) string {
	return TasksCollection(boardID) + "/" + taskID
}

// SplitPath splits a document path into its collection and id.
// Collections have an odd number of segments, documents an even one.
func SplitPath(path string) (collection, id string, err error) {
	path = strings.Trim(path, "/")
	segs := strings.Split(path, "/")
	if path == "" || len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if s == "" {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return strings.Join(segs[:len(segs)-1], "/"), segs[len(segs)-1], nil
}

// CleanCollection validates a collection path
func CleanCollection(collection string) (string, error) {
	collection = strings.Trim(collection, "/")
	segs := strings.Split(collection, "/")
	if collection == "" || len(segs)%2 != 1 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, collection)
	}
	for _, s := range segs {
		if s == "" {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, collection)
		}
	}
	return collection, nil
}

// Children reports whether path lies under the document at parent
func Children(parent, path string) bool {
	return strings.HasPrefix(path, strings.Trim(parent, "/")+"/")
}
