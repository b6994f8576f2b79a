package types

import (
	"fmt"
	"strings"
	"time"
)

// ReportStatus tracks the repair state of a damage report.
type ReportStatus string

const (
	ReportNotFixed ReportStatus = "Not Fixed"
	ReportFixed    ReportStatus = "Fixed"
	ReportReplaced ReportStatus = "Replaced"
)

func ParseReportStatus(name string) (ReportStatus, error) {
	name = strings.TrimSpace(name)
	for _, s := range []ReportStatus{ReportNotFixed, ReportFixed, ReportReplaced} {
		if strings.EqualFold(string(s), name) {
			return s, nil
		}
	}
	return "", fmt.Errorf("invalid status %q", name)
}

// DamageReport records a damage incident in a room.
type DamageReport struct {
	// ID is the unique identifier of the report.
	ID int `json:"id" db:"id"`

	// RoomID is the room the damage was found in. Deleting the room deletes the report.
	RoomID int `json:"room" db:"room_id"`

	// RoomNumber mirrors the room's number for display.
	RoomNumber string `json:"room_number" db:"-"`

	// AssetType is the kind of item that was damaged.
	AssetType AssetType `json:"asset_type" db:"asset_type"`

	// Description is free text supplied by the reporter.
	Description string `json:"description" db:"description"`

	// Status is the repair state.
	Status ReportStatus `json:"status" db:"status"`

	// PhotoKey is the object storage key of the attached photo, if any.
	PhotoKey *string `json:"photo_key,omitempty" db:"photo_key"`

	// ReportedAt is when the report was filed.
	ReportedAt time.Time `json:"reported_at" db:"reported_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
