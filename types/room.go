package types

import "time"

// Room is a hostel room that holds assets and collects damage reports.
type Room struct {
	ID         int       `json:"id" db:"id"`
	RoomNumber string    `json:"room_number" db:"room_number"`
	HostelName string    `json:"hostel_name" db:"hostel_name"`
	Floor      *int      `json:"floor" db:"floor"`
	Capacity   int       `json:"capacity" db:"capacity"`
	AssetCount int       `json:"asset_count" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultRoomCapacity is used when a room is created without a capacity.
const DefaultRoomCapacity = 2
