package model

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Board is a shared collection of tasks
type Board struct {
	ID                  string         `json:"-"`
	Name                string         `json:"name"`
	Owner               string         `json:"owner"`
	OwnerEmail          string         `json:"ownerEmail"`
	Collaborators       []string       `json:"collaborators"`
	CollaboratorDetails []Collaborator `json:"collaboratorDetails,omitempty"`
	Categories          []Category     `json:"categories"`
	CreatedAt           Timestamp      `json:"createdAt"`
}

// Collaborator is the metadata kept for a collaborator besides the email
type Collaborator struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email"`
	Color string `json:"color,omitempty"`
}

// CollaboratorInput is what callers hand in when editing collaborators:
// either a bare email or a collaborator object.
type CollaboratorInput struct {
	Collaborator
	detailed bool
}

// EmailInput builds a bare-email collaborator input
func EmailInput(email string) CollaboratorInput {
	return CollaboratorInput{Collaborator: Collaborator{Email: email}}
}

// DetailedInput builds a collaborator input carrying metadata
func DetailedInput(c Collaborator) CollaboratorInput {
	return CollaboratorInput{Collaborator: c, detailed: true}
}

// Detailed reports whether the input came with metadata
func (c CollaboratorInput) Detailed() bool {
	return c.detailed
}

// UnmarshalJSON accepts "email" or {"id","email","color"}
func (c *CollaboratorInput) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var v Collaborator
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*c = DetailedInput(v)
		return nil
	}
	var email string
	if err := json.Unmarshal(data, &email); err != nil {
		return err
	}
	*c = EmailInput(email)
	return nil
}

// IsCollaborator reports whether email is in the collaborator set
func (b Board) IsCollaborator(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, c := range b.Collaborators {
		if c == email {
			return true
		}
	}
	return false
}

// IsOwnedBy reports whether userID owns the board
func (b Board) IsOwnedBy(userID string) bool {
	return userID != "" && b.Owner == userID
}

// Clone returns a deep copy of the board
func (b Board) Clone() Board {
	out := b
	out.Collaborators = append([]string(nil), b.Collaborators...)
	out.CollaboratorDetails = append([]Collaborator(nil), b.CollaboratorDetails...)
	out.Categories = append([]Category(nil), b.Categories...)
	return out
}
