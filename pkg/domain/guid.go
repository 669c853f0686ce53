package domain

import (
	"strings"

	"github.com/google/uuid"
)

// GUID identifies nodes, rows and row data. It is assigned once at authoring
// time and never changes.
type GUID = uuid.UUID

// NilGUID is the zero GUID. Entities carrying it are considered unset.
var NilGUID = uuid.Nil

// authoringNamespace seeds name-derived GUIDs so the same authored name always
// yields the same GUID across loads and processes.
var authoringNamespace = uuid.MustParse("6f1b2f6a-8d7e-4c55-9d0e-2a6c3b7f4e10")

// NewGUID returns a random GUID.
func NewGUID() GUID {
	return uuid.New()
}

// GUIDFromName returns the GUID encoded in name if it parses as one,
// otherwise a stable SHA-1 GUID derived from it. An empty name yields NilGUID.
func GUIDFromName(name string) GUID {
	name = strings.TrimSpace(name)
	if name == "" {
		return NilGUID
	}
	if id, err := uuid.Parse(name); err == nil {
		return id
	}
	return uuid.NewSHA1(authoringNamespace, []byte(name))
}

// ParseGUID parses a canonical GUID string.
func ParseGUID(s string) (GUID, error) {
	return uuid.Parse(s)
}
