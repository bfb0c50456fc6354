package model

import "strings"

// User is the identity the current session acts as.
// It is supplied by configuration or an upstream identity proxy.
type User struct {
	ID    string `json:"id" yaml:"user_id"`
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
}

// NormalizedEmail returns the trimmed, lower-cased email used for membership
func (u User) NormalizedEmail() string {
	return strings.ToLower(strings.TrimSpace(u.Email))
}

// FirstName derives a short display name from the name or the email local part
func (u User) FirstName() string {
	if name := strings.TrimSpace(u.Name); name != "" {
		return strings.Fields(name)[0]
	}
	local, _, _ := strings.Cut(u.Email, "@")
	local = strings.NewReplacer(".", " ", "_", " ").Replace(local)
	fields := strings.Fields(local)
	if len(fields) == 0 {
		return ""
	}
	first := fields[0]
	return strings.ToUpper(first[:1]) + first[1:]
}
