package services

import (
	"context"
	"errors"
	"strings"

	"github.com/hostel-inventory/apiserver/internal/metrics"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

// AssetRepository defines persistence operations for assets.
type AssetRepository interface {
	List(ctx context.Context, filter store.AssetFilter) ([]types.Asset, error)
	Get(ctx context.Context, id int) (types.Asset, error)
	Create(ctx context.Context, asset types.Asset) (types.Asset, error)
	Update(ctx context.Context, asset types.Asset) (types.Asset, error)
	SaveDamage(ctx context.Context, asset types.Asset, previous int) (types.Asset, error)
	Delete(ctx context.Context, id int) error
}

// RoomLookup resolves room references on inventory records.
type RoomLookup interface {
	Get(ctx context.Context, id int) (types.Room, error)
}

// AssetInput is the writable part of an asset. Condition is derived from the
// quantities and cannot be set directly.
type AssetInput struct {
	Name            types.Optional[string] `json:"name"`
	AssetType       types.Optional[string] `json:"asset_type"`
	TotalQuantity   types.Optional[int]    `json:"total_quantity"`
	DamagedQuantity types.Optional[int]    `json:"damaged_quantity"`
	Room            types.Optional[*int]   `json:"room"`
}

func (in AssetInput) apply(asset *types.Asset) error {
	if in.Name.Set {
		asset.Name = strings.TrimSpace(in.Name.Value)
	}
	if in.AssetType.Set {
		assetType, err := types.ParseAssetType(in.AssetType.Value)
		if err != nil {
			return invalid("%s", err)
		}
		asset.AssetType = assetType
	}
	if in.TotalQuantity.Set {
		asset.TotalQuantity = in.TotalQuantity.Value
	}
	if in.DamagedQuantity.Set {
		asset.DamagedQuantity = in.DamagedQuantity.Value
	}
	if in.Room.Set {
		asset.RoomID = in.Room.Value
	}
	return nil
}

// AssetService encapsulates asset use-cases.
type AssetService struct {
	repo    AssetRepository
	rooms   RoomLookup
	metrics *metrics.Metrics
}

func NewAssetService(repo AssetRepository, rooms RoomLookup, m *metrics.Metrics) *AssetService {
	return &AssetService{repo: repo, rooms: rooms, metrics: m}
}

func (s *AssetService) List(ctx context.Context, filter store.AssetFilter) ([]types.Asset, error) {
	return s.repo.List(ctx, filter)
}

func (s *AssetService) Get(ctx context.Context, id int) (types.Asset, error) {
	return s.repo.Get(ctx, id)
}

func (s *AssetService) Create(ctx context.Context, in AssetInput) (types.Asset, error) {
	if !in.AssetType.Set {
		return types.Asset{}, invalid("asset_type is required")
	}
	asset := types.Asset{TotalQuantity: 1}
	if err := s.prepare(ctx, &asset, in); err != nil {
		return types.Asset{}, err
	}
	return s.repo.Create(ctx, asset)
}

// Update replaces the asset's fields. With partial set only present fields
// change; otherwise name and asset_type must be supplied.
func (s *AssetService) Update(ctx context.Context, id int, in AssetInput, partial bool) (types.Asset, error) {
	if !partial && (!in.Name.Set || !in.AssetType.Set) {
		return types.Asset{}, invalid("name and asset_type are required")
	}
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Asset{}, err
	}
	if err := s.prepare(ctx, &asset, in); err != nil {
		return types.Asset{}, err
	}
	return s.repo.Update(ctx, asset)
}

func (s *AssetService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}

// MarkDamaged records one more damaged unit of the asset. It fails with
// types.ErrAllDamaged once every unit is damaged, and with store.ErrConflict
// if the counter changed concurrently.
func (s *AssetService) MarkDamaged(ctx context.Context, id int) (types.Asset, error) {
	asset, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.Asset{}, err
	}
	previous := asset.DamagedQuantity
	if err := asset.MarkDamaged(); err != nil {
		return types.Asset{}, err
	}
	updated, err := s.repo.SaveDamage(ctx, asset, previous)
	if err != nil {
		return types.Asset{}, err
	}
	s.metrics.AssetMarkedDamaged()
	return updated, nil
}

func (s *AssetService) prepare(ctx context.Context, asset *types.Asset, in AssetInput) error {
	if err := in.apply(asset); err != nil {
		return err
	}
	if err := asset.Validate(); err != nil {
		return invalid("%s", err)
	}
	if asset.RoomID != nil {
		if err := checkRoom(ctx, s.rooms, *asset.RoomID); err != nil {
			return err
		}
	}
	asset.DeriveCondition()
	return nil
}

func checkRoom(ctx context.Context, rooms RoomLookup, id int) error {
	if _, err := rooms.Get(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return invalid("room %d does not exist", id)
		}
		return err
	}
	return nil
}
