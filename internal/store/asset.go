package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hostel-inventory/apiserver/types"
)

// AssetFilter narrows asset listings. Zero values mean "any".
type AssetFilter struct {
	RoomID    int
	Condition types.Condition
	AssetType types.AssetType
}

// AssetRepository handles persistence for assets.
type AssetRepository struct {
	db *sql.DB
}

func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetSelect = `
		SELECT a.id, a.name, a.asset_type, a.total_quantity, a.damaged_quantity, a.condition,
		       a.room_id, r.room_number, a.created_at, a.updated_at
		FROM assets a
		LEFT JOIN rooms r ON r.id = a.room_id`

func scanAsset(row rowScanner) (types.Asset, error) {
	var asset types.Asset
	var roomID sql.NullInt64
	var roomNumber sql.NullString
	if err := row.Scan(
		&asset.ID,
		&asset.Name,
		&asset.AssetType,
		&asset.TotalQuantity,
		&asset.DamagedQuantity,
		&asset.Condition,
		&roomID,
		&roomNumber,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	); err != nil {
		return types.Asset{}, err
	}
	if roomID.Valid {
		id := int(roomID.Int64)
		asset.RoomID = &id
	}
	if roomNumber.Valid {
		asset.RoomDisplay = &roomNumber.String
	}
	return asset, nil
}

func (r *AssetRepository) List(ctx context.Context, filter AssetFilter) ([]types.Asset, error) {
	var where []string
	var args []any
	if filter.RoomID > 0 {
		args = append(args, filter.RoomID)
		where = append(where, fmt.Sprintf("a.room_id = $%d", len(args)))
	}
	if filter.Condition != "" {
		args = append(args, filter.Condition)
		where = append(where, fmt.Sprintf("a.condition = $%d", len(args)))
	}
	if filter.AssetType != "" {
		args = append(args, filter.AssetType)
		where = append(where, fmt.Sprintf("a.asset_type = $%d", len(args)))
	}

	query := assetSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY a.created_at DESC, a.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := make([]types.Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *AssetRepository) Get(ctx context.Context, id int) (types.Asset, error) {
	asset, err := scanAsset(r.db.QueryRowContext(ctx, assetSelect+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Asset{}, ErrNotFound
		}
		return types.Asset{}, err
	}
	return asset, nil
}

func (r *AssetRepository) Create(ctx context.Context, asset types.Asset) (types.Asset, error) {
	now := time.Now()
	const query = `
		INSERT INTO assets (name, asset_type, total_quantity, damaged_quantity, condition, room_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	var id int
	if err := r.db.QueryRowContext(
		ctx,
		query,
		asset.Name,
		asset.AssetType,
		asset.TotalQuantity,
		asset.DamagedQuantity,
		asset.Condition,
		asset.RoomID,
		now,
		now,
	).Scan(&id); err != nil {
		return types.Asset{}, err
	}
	return r.Get(ctx, id)
}

func (r *AssetRepository) Update(ctx context.Context, asset types.Asset) (types.Asset, error) {
	const query = `
		UPDATE assets
		SET name = $1,
			asset_type = $2,
			total_quantity = $3,
			damaged_quantity = $4,
			condition = $5,
			room_id = $6,
			updated_at = $7
		WHERE id = $8`
	result, err := r.db.ExecContext(
		ctx,
		query,
		asset.Name,
		asset.AssetType,
		asset.TotalQuantity,
		asset.DamagedQuantity,
		asset.Condition,
		asset.RoomID,
		time.Now(),
		asset.ID,
	)
	if err != nil {
		return types.Asset{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.Asset{}, err
	}
	return r.Get(ctx, asset.ID)
}

// SaveDamage persists the damage counter and condition of asset, provided the
// stored counter still equals previous. A concurrent change yields ErrConflict.
func (r *AssetRepository) SaveDamage(ctx context.Context, asset types.Asset, previous int) (types.Asset, error) {
	const query = `
		UPDATE assets
		SET damaged_quantity = $1,
			condition = $2,
			updated_at = $3
		WHERE id = $4 AND damaged_quantity = $5`
	result, err := r.db.ExecContext(ctx, query, asset.DamagedQuantity, asset.Condition, time.Now(), asset.ID, previous)
	if err != nil {
		return types.Asset{}, err
	}
	if err := expectAffected(result); err != nil {
		if errors.Is(err, ErrNotFound) {
			return types.Asset{}, ErrConflict
		}
		return types.Asset{}, err
	}
	return r.Get(ctx, asset.ID)
}

func (r *AssetRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
