package app

import (
	"context"
	"strings"
)

// StaticDirectory resolves developer emails from a fixed mapping loaded at
// startup. Unknown developers resolve to an empty email.
type StaticDirectory struct {
	emails map[string]string
}

// ParseDirectory builds a directory from a "dev=email,dev=email" spec.
// Malformed pairs are skipped.
func ParseDirectory(spec string) *StaticDirectory {
	emails := make(map[string]string)
	for _, pair := range strings.Split(spec, ",") {
		developerID, email, ok := strings.Cut(pair, "=")
		developerID = strings.TrimSpace(developerID)
		email = strings.TrimSpace(email)
		if !ok || developerID == "" || email == "" {
			continue
		}
		emails[developerID] = email
	}
	return &StaticDirectory{emails: emails}
}

// EmailFor returns the developer's email or an empty string.
func (d *StaticDirectory) EmailFor(ctx context.Context, developerID string) string {
	if d == nil {
		return ""
	}
	return d.emails[strings.TrimSpace(developerID)]
}
