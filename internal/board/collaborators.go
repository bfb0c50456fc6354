package board

import (
	"strings"

	"github.com/existflow/ironboard/internal/model"
)

// NormalizeCollaborators reduces collaborator inputs to the queryable email
// set and the metadata kept for inputs that carried any. Emails are trimmed,
// lower-cased, must contain '@' and appear once.
func NormalizeCollaborators(inputs []model.CollaboratorInput) ([]string, []model.Collaborator) {
	emails := make([]string, 0, len(inputs))
	details := make([]model.Collaborator, 0, len(inputs))
	seenEmail := make(map[string]bool, len(inputs))
	seenDetail := make(map[string]bool, len(inputs))

	for _, in := range inputs {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		if !strings.Contains(email, "@") {
			continue
		}
		if !seenEmail[email] {
			seenEmail[email] = true
			emails = append(emails, email)
		}
		if in.Detailed() && !seenDetail[email] {
			seenDetail[email] = true
			details = append(details, model.Collaborator{ID: in.ID, Email: email, Color: in.Color})
		}
	}
	return emails, details
}
