package models

import (
	"strings"
	"time"
)

type Visibility string

const (
	VisibilityPublic    Visibility = "Public"
	VisibilityUnlisted  Visibility = "Unlisted"
	VisibilityPrivate   Visibility = "Private"
	VisibilityScheduled Visibility = "Scheduled"
)

// ResolveVisibility maps a raw privacy status to a Visibility. A private
// video with a publish time after now is Scheduled; anything unrecognised is
// Private.
func ResolveVisibility(privacyStatus string, publishAt *time.Time, now time.Time) Visibility {
	status := strings.ToLower(strings.TrimSpace(privacyStatus))

	if status == "private" && publishAt != nil && publishAt.After(now) {
		return VisibilityScheduled
	}

	switch status {
	case "public":
		return VisibilityPublic
	case "unlisted":
		return VisibilityUnlisted
	case "private":
		return VisibilityPrivate
	case "scheduled":
		return VisibilityScheduled
	default:
		return VisibilityPrivate
	}
}
