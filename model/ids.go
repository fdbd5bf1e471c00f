package model

import "github.com/google/uuid"

// newID returns a fresh opaque identifier for content rows.
func newID() string { return uuid.NewString() }

// Visibility gates whether public callers may see a row.
type Visibility = string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)
