package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hostel-inventory/apiserver/types"
)

// RoomRepository handles persistence for rooms.
type RoomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomSelect = `
		SELECT r.id, r.room_number, r.hostel_name, r.floor, r.capacity,
		       (SELECT COUNT(1) FROM assets a WHERE a.room_id = r.id) AS asset_count,
		       r.created_at, r.updated_at
		FROM rooms r`

func scanRoom(row rowScanner) (types.Room, error) {
	var room types.Room
	var floor sql.NullInt64
	if err := row.Scan(
		&room.ID,
		&room.RoomNumber,
		&room.HostelName,
		&floor,
		&room.Capacity,
		&room.AssetCount,
		&room.CreatedAt,
		&room.UpdatedAt,
	); err != nil {
		return types.Room{}, err
	}
	if floor.Valid {
		f := int(floor.Int64)
		room.Floor = &f
	}
	return room, nil
}

func (r *RoomRepository) List(ctx context.Context) ([]types.Room, error) {
	rows, err := r.db.QueryContext(ctx, roomSelect+` ORDER BY r.hostel_name, r.room_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := make([]types.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *RoomRepository) Get(ctx context.Context, id int) (types.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx, roomSelect+` WHERE r.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrNotFound
		}
		return types.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) Create(ctx context.Context, room types.Room) (types.Room, error) {
	now := time.Now()
	room.CreatedAt = now
	room.UpdatedAt = now
	room.AssetCount = 0

	const query = `
		INSERT INTO rooms (room_number, hostel_name, floor, capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		room.RoomNumber,
		room.HostelName,
		room.Floor,
		room.Capacity,
		room.CreatedAt,
		room.UpdatedAt,
	).Scan(&room.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Room{}, ErrConflict
		}
		return types.Room{}, err
	}
	return room, nil
}

func (r *RoomRepository) Update(ctx context.Context, room types.Room) (types.Room, error) {
	const query = `
		UPDATE rooms
		SET room_number = $1,
			hostel_name = $2,
			floor = $3,
			capacity = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		room.RoomNumber,
		room.HostelName,
		room.Floor,
		room.Capacity,
		time.Now(),
		room.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Room{}, ErrConflict
		}
		return types.Room{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Room{}, err
	}
	return r.Get(ctx, room.ID)
}

// Delete removes the room together with its damage reports and detaches its
// assets. The foreign keys enforce the same rules; doing it explicitly keeps
// the behavior independent of how the schema was created.
func (r *RoomRepository) Delete(ctx context.Context, id int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM damage_reports WHERE room_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE assets SET room_id = NULL, updated_at = $1 WHERE room_id = $2`, time.Now(), id); err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := expectAffected(result); err != nil {
		return err
	}
	return tx.Commit()
}
