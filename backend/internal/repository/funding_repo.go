package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"contract-tracker/backend/internal/model"
)

// FundingRepository 批准拨款数据访问接口
type FundingRepository interface {
	ListByProject(ctx context.Context, projectID int64) ([]model.ApprovedFunding, error)
	ActiveFiscalYears(ctx context.Context, projectID int64) ([]int, error)
	ActiveFundingTypes(ctx context.Context, projectID int64) ([]int, error)
	BatchCreate(ctx context.Context, cells []model.ApprovedFunding) error
	UpdateAmount(ctx context.Context, projectID int64, fiscalYear, fundingTypeID int, amount decimal.Decimal) error
	DeleteByFiscalYear(ctx context.Context, projectID int64, fiscalYear int) (int64, error)
	DeleteByFundingType(ctx context.Context, projectID int64, fundingTypeID int) (int64, error)

	ListFundingTypes(ctx context.Context) ([]model.FundingType, error)
	GetFundingType(ctx context.Context, id int) (*model.FundingType, error)
}

type fundingRepo struct {
	db *gorm.DB
}

// NewFundingRepo 创建 FundingRepository 实例
func NewFundingRepo(db *gorm.DB) FundingRepository {
	return &fundingRepo{db: db}
}

func (r *fundingRepo) ListByProject(ctx context.Context, projectID int64) ([]model.ApprovedFunding, error) {
	var cells []model.ApprovedFunding
	err := r.db.WithContext(ctx).
		Preload("FundingType").
		Where("project_id = ?", projectID).
		Order("fiscal_year ASC, funding_type_id ASC").
		Find(&cells).Error
	return cells, err
}

func (r *fundingRepo) ActiveFiscalYears(ctx context.Context, projectID int64) ([]int, error) {
	var years []int
	err := r.db.WithContext(ctx).
		Model(&model.ApprovedFunding{}).
		Where("project_id = ?", projectID).
		Distinct("fiscal_year").
		Order("fiscal_year ASC").
		Pluck("fiscal_year", &years).Error
	return years, err
}

func (r *fundingRepo) ActiveFundingTypes(ctx context.Context, projectID int64) ([]int, error) {
	var types []int
	err := r.db.WithContext(ctx).
		Model(&model.ApprovedFunding{}).
		Where("project_id = ?", projectID).
		Distinct("funding_type_id").
		Order("funding_type_id ASC").
		Pluck("funding_type_id", &types).Error
	return types, err
}

// BatchCreate 违反 (project_id, fiscal_year, funding_type_id) 唯一约束时整体失败
func (r *fundingRepo) BatchCreate(ctx context.Context, cells []model.ApprovedFunding) error {
	if len(cells) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&cells).Error
}

func (r *fundingRepo) UpdateAmount(ctx context.Context, projectID int64, fiscalYear, fundingTypeID int, amount decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&model.ApprovedFunding{}).
		Where("project_id = ? AND fiscal_year = ? AND funding_type_id = ?", projectID, fiscalYear, fundingTypeID).
		Updates(map[string]interface{}{
			"approved_amount": amount,
			"updated_at":      gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *fundingRepo) DeleteByFiscalYear(ctx context.Context, projectID int64, fiscalYear int) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND fiscal_year = ?", projectID, fiscalYear).
		Delete(&model.ApprovedFunding{})
	return result.RowsAffected, result.Error
}

func (r *fundingRepo) DeleteByFundingType(ctx context.Context, projectID int64, fundingTypeID int) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("project_id = ? AND funding_type_id = ?", projectID, fundingTypeID).
		Delete(&model.ApprovedFunding{})
	return result.RowsAffected, result.Error
}

func (r *fundingRepo) ListFundingTypes(ctx context.Context) ([]model.FundingType, error) {
	var types []model.FundingType
	err := r.db.WithContext(ctx).
		Order("funding_type_id ASC").
		Find(&types).Error
	return types, err
}

func (r *fundingRepo) GetFundingType(ctx context.Context, id int) (*model.FundingType, error) {
	var ft model.FundingType
	err := r.db.WithContext(ctx).
		Where("funding_type_id = ?", id).
		First(&ft).Error
	if err != nil {
		return nil, err
	}
	return &ft, nil
}
