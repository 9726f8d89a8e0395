package service

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
	"contract-tracker/backend/pkg/metrics"
)

// ── 拨款模块业务错误 ──

var (
	ErrFiscalYearExists     = errors.New("该财年已存在")
	ErrFiscalYearNotFound   = errors.New("该财年不存在")
	ErrFundingTypeExists    = errors.New("该拨款类型已存在")
	ErrFundingTypeNotFound  = errors.New("拨款类型不存在")
	ErrFundingCellNotFound  = errors.New("拨款单元格不存在")
	ErrFundingAmountInvalid = errors.New("拨款金额不能为负数")
	ErrFundingMatrixEmpty   = errors.New("拨款矩阵为空，请先添加首个单元格")
	ErrFundingMatrixPresent = errors.New("拨款矩阵已有数据，请通过行列添加")
)

// FundingService 批准拨款矩阵业务接口
type FundingService interface {
	GetMatrix(ctx context.Context, projectID int64) (*dto.FundingMatrixResponse, error)
	AddFirstCell(ctx context.Context, projectID int64, req *dto.AddFirstCellRequest, callerID int64) error
	AddFiscalYear(ctx context.Context, projectID int64, year int, callerID int64) error
	AddFundingType(ctx context.Context, projectID int64, typeID int, callerID int64) error
	RemoveFiscalYear(ctx context.Context, projectID int64, year int, callerID int64) error
	RemoveFundingType(ctx context.Context, projectID int64, typeID int, callerID int64) error
	UpdateCells(ctx context.Context, projectID int64, cells []dto.FundingCell, callerID int64) error
	ListFundingTypes(ctx context.Context) ([]dto.FundingTypeResponse, error)
}

type fundingService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewFundingService 创建 FundingService 实例
func NewFundingService(repo *repository.Repository, logger *zap.Logger) FundingService {
	return &fundingService{repo: repo, logger: logger}
}

// ────────────────────── GetMatrix ──────────────────────

// GetMatrix 单元格与拨款类型名称并行查询后组装；行列均由现有单元格推导
func (s *fundingService) GetMatrix(ctx context.Context, projectID int64) (*dto.FundingMatrixResponse, error) {
	if err := s.checkProject(ctx, projectID); err != nil {
		return nil, err
	}

	var (
		cells []model.ApprovedFunding
		types []model.FundingType
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cells, err = s.repo.Funding.ListByProject(gctx, projectID)
		return err
	})
	g.Go(func() error {
		var err error
		types, err = s.repo.Funding.ListFundingTypes(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("查询拨款矩阵失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	return buildFundingMatrix(projectID, cells, types), nil
}

// ────────────────────── AddFirstCell ──────────────────────

// AddFirstCell 空矩阵的首个单元格；矩阵已有数据时拒绝
func (s *fundingService) AddFirstCell(ctx context.Context, projectID int64, req *dto.AddFirstCellRequest, callerID int64) error {
	if req.Amount.IsNegative() {
		return ErrFundingAmountInvalid
	}
	if err := s.checkProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.checkFundingType(ctx, req.FundingTypeID); err != nil {
		return err
	}

	years, err := s.repo.Funding.ActiveFiscalYears(ctx, projectID)
	if err != nil {
		s.logger.Error("查询财年失败", zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	if len(years) > 0 {
		return ErrFundingMatrixPresent
	}

	cell := model.ApprovedFunding{
		ProjectID:      projectID,
		FiscalYear:     req.FiscalYear,
		FundingTypeID:  req.FundingTypeID,
		ApprovedAmount: req.Amount,
	}
	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Funding.BatchCreate(ctx, []model.ApprovedFunding{cell}); err != nil {
			return err
		}
		return appendHistory(ctx, txRepo, projectID, callerID, EntityFunding, model.ActionCreate, req)
	})
	metrics.RecordBatch("funding_add_first_cell", err)
	if err != nil {
		s.logger.Error("添加首个拨款单元格失败", zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── AddFiscalYear ──────────────────────

// AddFiscalYear 为每个现有拨款类型插入该财年的零金额单元格
func (s *fundingService) AddFiscalYear(ctx context.Context, projectID int64, year int, callerID int64) error {
	if err := s.checkProject(ctx, projectID); err != nil {
		return err
	}

	years, types, err := s.activeDimensions(ctx, projectID)
	if err != nil {
		return err
	}
	if containsInt(years, year) {
		return ErrFiscalYearExists
	}
	if len(types) == 0 {
		return ErrFundingMatrixEmpty
	}

	cells := make([]model.ApprovedFunding, 0, len(types))
	for _, t := range types {
		cells = append(cells, model.ApprovedFunding{
			ProjectID:      projectID,
			FiscalYear:     year,
			FundingTypeID:  t,
			ApprovedAmount: decimal.Zero,
		})
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Funding.BatchCreate(ctx, cells); err != nil {
			return err
		}
		return appendHistory(ctx, txRepo, projectID, callerID, EntityFunding, model.ActionCreate,
			map[string]interface{}{"fiscal_year": year, "cells": len(cells)})
	})
	metrics.RecordBatch("funding_add_fiscal_year", err)
	if err != nil {
		s.logger.Error("添加财年失败", zap.Int64("project_id", projectID), zap.Int("year", year), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── AddFundingType ──────────────────────

// AddFundingType 为每个现有财年插入该拨款类型的零金额单元格
func (s *fundingService) AddFundingType(ctx context.Context, projectID int64, typeID int, callerID int64) error {
	if err := s.checkProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.checkFundingType(ctx, typeID); err != nil {
		return err
	}

	years, types, err := s.activeDimensions(ctx, projectID)
	if err != nil {
		return err
	}
	if containsInt(types, typeID) {
		return ErrFundingTypeExists
	}
	if len(years) == 0 {
		return ErrFundingMatrixEmpty
	}

	cells := make([]model.ApprovedFunding, 0, len(years))
	for _, y := range years {
		cells = append(cells, model.ApprovedFunding{
			ProjectID:      projectID,
			FiscalYear:     y,
			FundingTypeID:  typeID,
			ApprovedAmount: decimal.Zero,
		})
	}

	err = runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		if err := txRepo.Funding.BatchCreate(ctx, cells); err != nil {
			return err
		}
		return appendHistory(ctx, txRepo, projectID, callerID, EntityFunding, model.ActionCreate,
			map[string]interface{}{"funding_type_id": typeID, "cells": len(cells)})
	})
	metrics.RecordBatch("funding_add_funding_type", err)
	if err != nil {
		s.logger.Error("添加拨款类型失败", zap.Int64("project_id", projectID), zap.Int("type_id", typeID), zap.Error(err))
		return err
	}
	return nil
}

// ────────────────────── RemoveFiscalYear ──────────────────────

func (s *fundingService) RemoveFiscalYear(ctx context.Context, projectID int64, year int, callerID int64) error {
	if err := s.checkProject(ctx, projectID); err != nil {
		return err
	}

	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		deleted, err := txRepo.Funding.DeleteByFiscalYear(ctx, projectID, year)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrFiscalYearNotFound
		}
		return appendHistory(ctx, txRepo, projectID, callerID, EntityFunding, model.ActionDelete,
			map[string]interface{}{"fiscal_year": year, "cells": deleted})
	})
	metrics.RecordBatch("funding_remove_fiscal_year", err)
	if err != nil {
		if !errors.Is(err, ErrFiscalYearNotFound) {
			s.logger.Error("删除财年失败", zap.Int64("project_id", projectID), zap.Int("year", year), zap.Error(err))
		}
		return err
	}
	return nil
}

// ────────────────────── RemoveFundingType ──────────────────────

func (s *fundingService) RemoveFundingType(ctx context.Context, projectID int64, typeID int, callerID int64) error {
	if err := s.checkProject(ctx, projectID); err != nil {
		return err
	}

	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		deleted, err := txRepo.Funding.DeleteByFundingType(ctx, projectID, typeID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return ErrFundingTypeNotFound
		}
		return appendHistory(ctx, txRepo, projectID, callerID, EntityFunding, model.ActionDelete,
			map[string]interface{}{"funding_type_id": typeID, "cells": deleted})
	})
	metrics.RecordBatch("funding_remove_funding_type", err)
	if err != nil {
		if !errors.Is(err, ErrFundingTypeNotFound) {
			s.logger.Error("删除拨款类型失败", zap.Int64("project_id", projectID), zap.Int("type_id", typeID), zap.Error(err))
		}
		return err
	}
	return nil
}

// ────────────────────── UpdateCells ──────────────────────

// UpdateCells 每个修改过的单元格一条 UPDATE，全部在同一事务内
func (s *fundingService) UpdateCells(ctx context.Context, projectID int64, cells []dto.FundingCell, callerID int64) error {
	if len(cells) == 0 {
		return nil
	}
	for _, c := range cells {
		if c.Amount.IsNegative() {
			return ErrFundingAmountInvalid
		}
	}
	if err := s.checkProject(ctx, projectID); err != nil {
		return err
	}

	err := runInTx(ctx, s.repo, s.logger, func(txRepo *repository.Repository) error {
		for _, c := range cells {
			if err := txRepo.Funding.UpdateAmount(ctx, projectID, c.FiscalYear, c.FundingTypeID, c.Amount); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrFundingCellNotFound
				}
				return err
			}
		}
		return appendHistory(ctx, txRepo, projectID, callerID, EntityFunding, model.ActionUpdate, cells)
	})
	metrics.RecordBatch("funding_update_cells", err)
	if err != nil {
		if !errors.Is(err, ErrFundingCellNotFound) {
			s.logger.Error("更新拨款单元格失败", zap.Int64("project_id", projectID), zap.Error(err))
		}
		return err
	}
	return nil
}

// ────────────────────── ListFundingTypes ──────────────────────

func (s *fundingService) ListFundingTypes(ctx context.Context) ([]dto.FundingTypeResponse, error) {
	types, err := s.repo.Funding.ListFundingTypes(ctx)
	if err != nil {
		s.logger.Error("查询拨款类型失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.FundingTypeResponse, 0, len(types))
	for _, t := range types {
		result = append(result, dto.FundingTypeResponse{ID: t.FundingTypeID, Name: t.FundingType})
	}
	return result, nil
}

// ── 内部辅助方法 ──

func (s *fundingService) checkProject(ctx context.Context, projectID int64) error {
	if _, err := s.repo.Project.GetByID(ctx, projectID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.Int64("project_id", projectID), zap.Error(err))
		return err
	}
	return nil
}

func (s *fundingService) checkFundingType(ctx context.Context, typeID int) error {
	if _, err := s.repo.Funding.GetFundingType(ctx, typeID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFundingTypeNotFound
		}
		s.logger.Error("查询拨款类型失败", zap.Int("type_id", typeID), zap.Error(err))
		return err
	}
	return nil
}

func (s *fundingService) activeDimensions(ctx context.Context, projectID int64) ([]int, []int, error) {
	years, err := s.repo.Funding.ActiveFiscalYears(ctx, projectID)
	if err != nil {
		s.logger.Error("查询财年失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, nil, err
	}
	types, err := s.repo.Funding.ActiveFundingTypes(ctx, projectID)
	if err != nil {
		s.logger.Error("查询拨款类型失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, nil, err
	}
	return years, types, nil
}

// buildFundingMatrix 行为使用中的拨款类型，列为使用中的财年，均升序
func buildFundingMatrix(projectID int64, cells []model.ApprovedFunding, types []model.FundingType) *dto.FundingMatrixResponse {
	names := make(map[int]string, len(types))
	for _, t := range types {
		names[t.FundingTypeID] = t.FundingType
	}

	yearSet := make(map[int]bool)
	typeSet := make(map[int]bool)
	total := decimal.Zero
	out := make([]dto.FundingCell, 0, len(cells))
	for _, c := range cells {
		yearSet[c.FiscalYear] = true
		typeSet[c.FundingTypeID] = true
		total = total.Add(c.ApprovedAmount)
		out = append(out, dto.FundingCell{
			FiscalYear:    c.FiscalYear,
			FundingTypeID: c.FundingTypeID,
			Amount:        c.ApprovedAmount,
		})
	}

	years := make([]int, 0, len(yearSet))
	for y := range yearSet {
		years = append(years, y)
	}
	sort.Ints(years)

	typeIDs := make([]int, 0, len(typeSet))
	for t := range typeSet {
		typeIDs = append(typeIDs, t)
	}
	sort.Ints(typeIDs)
	rows := make([]dto.FundingTypeResponse, 0, len(typeIDs))
	for _, t := range typeIDs {
		rows = append(rows, dto.FundingTypeResponse{ID: t, Name: names[t]})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FundingTypeID != out[j].FundingTypeID {
			return out[i].FundingTypeID < out[j].FundingTypeID
		}
		return out[i].FiscalYear < out[j].FiscalYear
	})

	mode := dto.FundingModePopulated
	if len(out) == 0 {
		mode = dto.FundingModeEmpty
	}

	return &dto.FundingMatrixResponse{
		ProjectID:    projectID,
		Mode:         mode,
		FiscalYears:  years,
		FundingTypes: rows,
		Cells:        out,
		Total:        total,
	}
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
