package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/hostel-inventory/apiserver/internal/store"
	"github.com/hostel-inventory/apiserver/types"
)

// ErrPhotosDisabled is returned when no object storage is configured.
var ErrPhotosDisabled = errors.New("photo storage is not configured")

// ErrNoPhoto is returned when a report has no photo attached.
var ErrNoPhoto = errors.New("damage report has no photo")

// DamageReportRepository defines persistence operations for damage reports.
type DamageReportRepository interface {
	List(ctx context.Context, filter store.DamageReportFilter) ([]types.DamageReport, error)
	Get(ctx context.Context, id int) (types.DamageReport, error)
	Create(ctx context.Context, report types.DamageReport) (types.DamageReport, error)
	Update(ctx context.Context, report types.DamageReport) (types.DamageReport, error)
	SetPhoto(ctx context.Context, id int, key string) error
	Delete(ctx context.Context, id int) error
}

// PhotoStorage is the object store damage report photos are kept in.
type PhotoStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// DamageReportInput is the writable part of a damage report.
type DamageReportInput struct {
	Room        types.Optional[int]    `json:"room"`
	AssetType   types.Optional[string] `json:"asset_type"`
	Description types.Optional[string] `json:"description"`
	Status      types.Optional[string] `json:"status"`
}

func (in DamageReportInput) apply(report *types.DamageReport) error {
	if in.Room.Set {
		report.RoomID = in.Room.Value
	}
	if in.AssetType.Set {
		assetType, err := types.ParseAssetType(in.AssetType.Value)
		if err != nil {
			return invalid("%s", err)
		}
		report.AssetType = assetType
	}
	if in.Description.Set {
		report.Description = strings.TrimSpace(in.Description.Value)
	}
	if in.Status.Set {
		status, err := types.ParseReportStatus(in.Status.Value)
		if err != nil {
			return invalid("%s", err)
		}
		report.Status = status
	}
	return nil
}

// DamageReportService encapsulates damage report use-cases.
type DamageReportService struct {
	repo    DamageReportRepository
	rooms   RoomLookup
	storage PhotoStorage
}

// NewDamageReportService constructs the service. photos may be nil, in which
// case photo operations return ErrPhotosDisabled.
func NewDamageReportService(repo DamageReportRepository, rooms RoomLookup, photos PhotoStorage) *DamageReportService {
	return &DamageReportService{repo: repo, rooms: rooms, storage: photos}
}

func (s *DamageReportService) List(ctx context.Context, filter store.DamageReportFilter) ([]types.DamageReport, error) {
	return s.repo.List(ctx, filter)
}

func (s *DamageReportService) Get(ctx context.Context, id int) (types.DamageReport, error) {
	return s.repo.Get(ctx, id)
}

func (s *DamageReportService) Create(ctx context.Context, in DamageReportInput) (types.DamageReport, error) {
	if !in.Room.Set || !in.AssetType.Set || !in.Description.Set {
		return types.DamageReport{}, invalid("room, asset_type and description are required")
	}
	report := types.DamageReport{Status: types.ReportNotFixed}
	if err := s.prepare(ctx, &report, in); err != nil {
		return types.DamageReport{}, err
	}
	return s.repo.Create(ctx, report)
}

// Update replaces the report's fields. With partial set only present fields
// change; otherwise room, asset_type and description must be supplied.
func (s *DamageReportService) Update(ctx context.Context, id int, in DamageReportInput, partial bool) (types.DamageReport, error) {
	if !partial && (!in.Room.Set || !in.AssetType.Set || !in.Description.Set) {
		return types.DamageReport{}, invalid("room, asset_type and description are required")
	}
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.DamageReport{}, err
	}
	if err := s.prepare(ctx, &report, in); err != nil {
		return types.DamageReport{}, err
	}
	return s.repo.Update(ctx, report)
}

func (s *DamageReportService) Delete(ctx context.Context, id int) error {
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if report.PhotoKey != nil {
		s.dropPhoto(ctx, *report.PhotoKey)
	}
	return nil
}

// AttachPhoto stores a photo for the report, replacing any previous one.
func (s *DamageReportService) AttachPhoto(ctx context.Context, id int, r io.Reader, size int64, contentType string) (types.DamageReport, error) {
	if s.storage == nil {
		return types.DamageReport{}, ErrPhotosDisabled
	}
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return types.DamageReport{}, err
	}

	key := fmt.Sprintf("damage-reports/%d/%s", id, uuid.NewString())
	if err := s.storage.Put(ctx, key, r, size, contentType); err != nil {
		return types.DamageReport{}, fmt.Errorf("store photo: %w", err)
	}
	if err := s.repo.SetPhoto(ctx, id, key); err != nil {
		s.dropPhoto(ctx, key)
		return types.DamageReport{}, err
	}
	if report.PhotoKey != nil {
		s.dropPhoto(ctx, *report.PhotoKey)
	}
	report.PhotoKey = &key
	return report, nil
}

// Photo opens the report's photo. The caller closes the reader.
func (s *DamageReportService) Photo(ctx context.Context, id int) (io.ReadCloser, error) {
	if s.storage == nil {
		return nil, ErrPhotosDisabled
	}
	report, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if report.PhotoKey == nil {
		return nil, ErrNoPhoto
	}
	return s.storage.Get(ctx, *report.PhotoKey)
}

func (s *DamageReportService) prepare(ctx context.Context, report *types.DamageReport, in DamageReportInput) error {
	if err := in.apply(report); err != nil {
		return err
	}
	if report.Description == "" {
		return invalid("description is required")
	}
	return checkRoom(ctx, s.rooms, report.RoomID)
}

func (s *DamageReportService) dropPhoto(ctx context.Context, key string) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to delete photo", "key", key, "error", err)
	}
}
