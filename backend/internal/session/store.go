package session

import (
	"context"

	"github.com/shopspring/decimal"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/service"
)

// ScheduleStore 排期编辑会话依赖的持久化端口
type ScheduleStore interface {
	ListMilestones(ctx context.Context, projectID int64) ([]dto.MilestoneResponse, error)
	UpdateMilestone(ctx context.Context, id int64, fields dto.MilestoneFields) error
	ReplacePredecessors(ctx context.Context, milestoneID int64, ids []int64) error
	BulkCreateMilestones(ctx context.Context, projectID int64, rows []dto.NewMilestoneRow) ([]dto.PlaceholderMapping, error)
	DeleteMilestone(ctx context.Context, id int64) error
}

// FundingStore 拨款矩阵编辑会话依赖的持久化端口
type FundingStore interface {
	GetMatrix(ctx context.Context, projectID int64) (*dto.FundingMatrixResponse, error)
	AddFirstCell(ctx context.Context, projectID int64, year, typeID int, amount decimal.Decimal) error
	AddFiscalYear(ctx context.Context, projectID int64, year int) error
	AddFundingType(ctx context.Context, projectID int64, typeID int) error
	RemoveFiscalYear(ctx context.Context, projectID int64, year int) error
	RemoveFundingType(ctx context.Context, projectID int64, typeID int) error
	UpdateCells(ctx context.Context, projectID int64, cells []dto.FundingCell) error
}

// ── 基于 Service 的端口实现，绑定操作人用于审计日志 ──

type serviceScheduleStore struct {
	milestones   service.MilestoneService
	dependencies service.DependencyService
	userID       int64
}

// NewScheduleStore 以里程碑与依赖 Service 实现 ScheduleStore
func NewScheduleStore(milestones service.MilestoneService, dependencies service.DependencyService, userID int64) ScheduleStore {
	return &serviceScheduleStore{milestones: milestones, dependencies: dependencies, userID: userID}
}

func (s *serviceScheduleStore) ListMilestones(ctx context.Context, projectID int64) ([]dto.MilestoneResponse, error) {
	return s.milestones.ListByProject(ctx, projectID)
}

func (s *serviceScheduleStore) UpdateMilestone(ctx context.Context, id int64, fields dto.MilestoneFields) error {
	_, err := s.milestones.Update(ctx, id, fields, s.userID)
	return err
}

func (s *serviceScheduleStore) ReplacePredecessors(ctx context.Context, milestoneID int64, ids []int64) error {
	_, err := s.dependencies.ReplacePredecessors(ctx, milestoneID, ids, s.userID)
	return err
}

func (s *serviceScheduleStore) BulkCreateMilestones(ctx context.Context, projectID int64, rows []dto.NewMilestoneRow) ([]dto.PlaceholderMapping, error) {
	return s.milestones.BulkCreate(ctx, projectID, rows, s.userID)
}

func (s *serviceScheduleStore) DeleteMilestone(ctx context.Context, id int64) error {
	return s.milestones.Delete(ctx, id, s.userID)
}

type serviceFundingStore struct {
	funding service.FundingService
	userID  int64
}

// NewFundingStore 以拨款 Service 实现 FundingStore
func NewFundingStore(funding service.FundingService, userID int64) FundingStore {
	return &serviceFundingStore{funding: funding, userID: userID}
}

func (s *serviceFundingStore) GetMatrix(ctx context.Context, projectID int64) (*dto.FundingMatrixResponse, error) {
	return s.funding.GetMatrix(ctx, projectID)
}

func (s *serviceFundingStore) AddFirstCell(ctx context.Context, projectID int64, year, typeID int, amount decimal.Decimal) error {
	return s.funding.AddFirstCell(ctx, projectID, &dto.AddFirstCellRequest{
		FiscalYear:    year,
		FundingTypeID: typeID,
		Amount:        amount,
	}, s.userID)
}

func (s *serviceFundingStore) AddFiscalYear(ctx context.Context, projectID int64, year int) error {
	return s.funding.AddFiscalYear(ctx, projectID, year, s.userID)
}

func (s *serviceFundingStore) AddFundingType(ctx context.Context, projectID int64, typeID int) error {
	return s.funding.AddFundingType(ctx, projectID, typeID, s.userID)
}

func (s *serviceFundingStore) RemoveFiscalYear(ctx context.Context, projectID int64, year int) error {
	return s.funding.RemoveFiscalYear(ctx, projectID, year, s.userID)
}

func (s *serviceFundingStore) RemoveFundingType(ctx context.Context, projectID int64, typeID int) error {
	return s.funding.RemoveFundingType(ctx, projectID, typeID, s.userID)
}

func (s *serviceFundingStore) UpdateCells(ctx context.Context, projectID int64, cells []dto.FundingCell) error {
	return s.funding.UpdateCells(ctx, projectID, cells, s.userID)
}
