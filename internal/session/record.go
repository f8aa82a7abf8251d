package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"
)

// Known user roles. The monitor treats the role as an opaque tag; handlers
// use it for route gating.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User identifies the authenticated principal.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}

// Record is the persisted state of one authenticated session. The monitor is
// the only component that mutates it; everything else reads snapshots.
type Record struct {
	ID                   string    `json:"id"`
	User                 User      `json:"user"`
	AuthToken            string    `json:"auth_token"`
	Authenticated        bool      `json:"authenticated"`
	LastActivityAt       time.Time `json:"last_activity_at"`
	SessionStartedAt     time.Time `json:"session_started_at"`
	RenewalPromptVisible bool      `json:"renewal_prompt_visible"`
}

// NewID generates a session identifier with 256 bits of entropy.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("session: generate id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
