package models

import "github.com/golang-jwt/jwt/v5"

// StudentClaims are the JWT claims issued by the identity collaborator.
// Subject carries the student ID; StudentID overrides it when present.
type StudentClaims struct {
	StudentID string `json:"student_id,omitempty"`
	Name      string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Identity resolves the effective student identifier.
func (c *StudentClaims) Identity() string {
	if c.StudentID != "" {
		return c.StudentID
	}
	return c.Subject
}
