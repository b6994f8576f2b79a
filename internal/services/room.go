package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

// RoomRepository defines persistence operations for rooms.
type RoomRepository interface {
	List(ctx context.Context) ([]types.Room, error)
	Get(ctx context.Context, id int) (types.Room, error)
	Create(ctx context.Context, room types.Room) (types.Room, error)
	Update(ctx context.Context, room types.Room) (types.Room, error)
	Delete(ctx context.Context, id int) error
}

// RoomInput is the writable part of a room.
type RoomInput struct {
	RoomNumber types.Optional[string] `json:"room_number"`
	HostelName types.Optional[string] `json:"hostel_name"`
	Floor      types.Optional[*int]   `json:"floor"`
	Capacity   types.Optional[int]    `json:"capacity"`
}

func (in RoomInput) apply(room *types.Room) {
	if in.RoomNumber.Set {
		room.RoomNumber = strings.TrimSpace(in.RoomNumber.Value)
	}
	if in.HostelName.Set {
		room.HostelName = strings.TrimSpace(in.HostelName.Value)
	}
	if in.Floor.Set {
		room.Floor = in.Floor.Value
	}
	if in.Capacity.Set {
		room.Capacity = in.Capacity.Value
	}
}

// RoomService encapsulates room use-cases.
type RoomService struct {
	repo RoomRepository
}

func NewRoomService(repo RoomRepository) *RoomService {
	return &RoomService{repo: repo}
}

func (s *RoomService) List(ctx context.Context) ([]types.Room, error) {
	return s.repo.List(ctx)
}

func (s *RoomService) Get(ctx context.Context, id int) (types.Room, error) {
	return s.repo.Get(ctx, id)
}

func (s *RoomService) Create(ctx context.Context, in RoomInput) (types.Room, error) {
	room := types.Room{Capacity: types.DefaultRoomCapacity}
	in.apply(&room)
	if err := validateRoom(room); err != nil {
		return types.Room{}, err
	}
	created, err := s.repo.Create(ctx, room)
	if errors.Is(err, store.ErrConflict) {
		return types.Room{}, invalid("room with this room number already exists")
	}
	return created, err
}

// Update replaces the room's fields. With partial set only present fields
// change; otherwise room_number and hostel_name must be supplied.
func (s *RoomService) Update(ctx context.Context, id int, in RoomInput, partial bool) (types.Room, error) {
	if !partial && (!in.RoomNumber.Set || !in.HostelName.Set) {
		return types.Room{}, invalid("room_number and hostel_name are required")
	}
	room, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Room{}, err
	}
	in.apply(&room)
	if err := validateRoom(room); err != nil {
		return types.Room{}, err
	}
	updated, err := s.repo.Update(ctx, room)
	if errors.Is(err, store.ErrConflict) {
		return types.Room{}, invalid("room with this room number already exists")
	}
	return updated, err
}

// Delete removes the room, its damage reports, and unassigns its assets.
func (s *RoomService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

func validateRoom(room types.Room) error {
	if room.RoomNumber == "" {
		return invalid("room_number is required")
	}
	if utf8.RuneCountInString(room.RoomNumber) > 20 {
		return invalid("room_number must be at most 20 characters")
	}
	if room.HostelName == "" {
		return invalid("hostel_name is required")
	}
	if utf8.RuneCountInString(room.HostelName) > 100 {
		return invalid("hostel_name must be at most 100 characters")
	}
	if room.Capacity < 0 {
		return invalid("capacity cannot be negative")
	}
	return nil
}
