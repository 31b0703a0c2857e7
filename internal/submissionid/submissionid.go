// Package submissionid mints the opaque submission identifier used to
// name workspaces, containers, and the verdict document.
package submissionid

import (
	"strings"

	"github.com/google/uuid"
)

// New mints a fresh 32-character lowercase hex submission id.
func New() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
