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

// DamageReportFilter narrows report listings. Zero values mean "any".
type DamageReportFilter struct {
	RoomID int
	Status types.ReportStatus
}

// DamageReportRepository handles persistence for damage reports.
type DamageReportRepository struct {
	db *sql.DB
}

func NewDamageReportRepository(db *sql.DB) *DamageReportRepository {
	return &DamageReportRepository{db: db}
}

const reportSelect = `
		SELECT d.id, d.room_id, r.room_number, d.asset_type, d.description, d.status,
		       d.photo_key, d.reported_at, d.updated_at
		FROM damage_reports d
		JOIN rooms r ON r.id = d.room_id`

func scanReport(row rowScanner) (types.DamageReport, error) {
	var report types.DamageReport
	var photoKey sql.NullString
	if err := row.Scan(
		&report.ID,
		&report.RoomID,
		&report.RoomNumber,
		&report.AssetType,
		&report.Description,
		&report.Status,
		&photoKey,
		&report.ReportedAt,
		&report.UpdatedAt,
	); err != nil {
		return types.DamageReport{}, err
	}
	if photoKey.Valid {
		report.PhotoKey = &photoKey.String
	}
	return report, nil
}

func (r *DamageReportRepository) List(ctx context.Context, filter DamageReportFilter) ([]types.DamageReport, error) {
	var where []string
	var args []any
	if filter.RoomID > 0 {
		args = append(args, filter.RoomID)
		where = append(where, fmt.Sprintf("d.room_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("d.status = $%d", len(args)))
	}

	query := reportSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.reported_at DESC, d.id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]types.DamageReport, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *DamageReportRepository) Get(ctx context.Context, id int) (types.DamageReport, error) {
	report, err := scanReport(r.db.QueryRowContext(ctx, reportSelect+` WHERE d.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.DamageReport{}, ErrNotFound
		}
		return types.DamageReport{}, err
	}
	return report, nil
}

func (r *DamageReportRepository) Create(ctx context.Context, report types.DamageReport) (types.DamageReport, error) {
	now := time.Now()
	const query = `
		INSERT INTO damage_reports (room_id, asset_type, description, status, reported_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	var id int
	if err := r.db.QueryRowContext(
		ctx,
		query,
		report.RoomID,
		report.AssetType,
		report.Description,
		report.Status,
		now,
		now,
	).Scan(&id); err != nil {
		return types.DamageReport{}, err
	}
	return r.Get(ctx, id)
}

func (r *DamageReportRepository) Update(ctx context.Context, report types.DamageReport) (types.DamageReport, error) {
	const query = `
		UPDATE damage_reports
		SET room_id = $1,
			asset_type = $2,
			description = $3,
			status = $4,
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(
		ctx,
		query,
		report.RoomID,
		report.AssetType,
		report.Description,
		report.Status,
		time.Now(),
		report.ID,
	)
	if err != nil {
		return types.DamageReport{}, err
	}
	if err := expectAffected(result); err != nil {
		return types.DamageReport{}, err
	}
	return r.Get(ctx, report.ID)
}

// SetPhoto records the object key of the report's photo.
func (r *DamageReportRepository) SetPhoto(ctx context.Context, id int, key string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE damage_reports SET photo_key = $1, updated_at = $2 WHERE id = $3`, key, time.Now(), id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}

func (r *DamageReportRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM damage_reports WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(result)
}
