package store

import "time"

// Share grants ViewerUserID read access to OwnerUserID's events.
type Share struct {
	OwnerUserID  string    `json:"ownerUserId"`
	ViewerUserID string    `json:"viewerUserId"`
	CreatedAt    time.Time `json:"createdAt"`
}
