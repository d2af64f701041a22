package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonIdentChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// NewID returns a short random identifier with the given prefix
func NewID(prefix string) string {
	return prefix + "_" + shortID(10)
}

func shortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}

// portIDBase derives the readable middle part of a port id from a name
func portIDBase(name, fallback string) string {
	base := nonIdentChars.ReplaceAllString(name, "")
	if base == "" {
		return fallback
	}
	return base
}
