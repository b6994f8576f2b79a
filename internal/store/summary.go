package store

import (
	"context"
	"database/sql"

	"github.com/hostel-inventory/apiserver/types"
)

// SummaryRepository computes dashboard counts.
type SummaryRepository struct {
	db *sql.DB
}

func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) Summary(ctx context.Context) (types.Summary, error) {
	const query = `
		SELECT
			(SELECT COUNT(1) FROM assets),
			(SELECT COUNT(1) FROM assets WHERE condition = 'Damaged'),
			(SELECT COUNT(1) FROM assets WHERE condition = 'Good'),
			(SELECT COUNT(1) FROM damage_reports WHERE status = 'Not Fixed'),
			(SELECT COUNT(1) FROM rooms),
			(SELECT COUNT(1) FROM users)`
	var s types.Summary
	err := r.db.QueryRowContext(ctx, query).Scan(
		&s.TotalAssets,
		&s.DamagedAssets,
		&s.GoodAssets,
		&s.OpenDamageReports,
		&s.TotalRooms,
		&s.TotalUsers,
	)
	if err != nil {
		return types.Summary{}, err
	}
	return s, nil
}
