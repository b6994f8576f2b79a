package services

import (
	"context"

	"github.com/hostel-inventory/apiserver/types"
)

// SummaryRepository computes dashboard counts.
type SummaryRepository interface {
	Summary(ctx context.Context) (types.Summary, error)
}

type DashboardService struct {
	repo SummaryRepository
}

func NewDashboardService(repo SummaryRepository) *DashboardService {
	return &DashboardService{repo: repo}
}

func (s *DashboardService) Summary(ctx context.Context) (types.Summary, error) {
	return s.repo.Summary(ctx)
}
