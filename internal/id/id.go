// Package id generates prefixed identifiers.
package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the identifiers this server hands out.
const (
	PrefixSession = "ses"
	PrefixClient  = "sse"
)

// Generate returns prefix-<nanoid>, e.g. "ses-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is Generate for callers that cannot continue without an id.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("generate id: %v", err))
	}
	return v
}

// HasPrefix reports whether v was generated with prefix.
func HasPrefix(v, prefix string) bool {
	return strings.HasPrefix(v, prefix+"-") && len(v) > len(prefix)+1
}

// EventID returns a random UUID for published events, which downstream
// consumers use for deduplication.
func EventID() string {
	return uuid.NewString()
}
