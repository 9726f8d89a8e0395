package repository

import (
	"context"

	"gorm.io/gorm"

	"contract-tracker/backend/internal/model"
	pkgerrors "contract-tracker/backend/pkg/errors"
)

// ContractRepository 合同数据访问接口
type ContractRepository interface {
	Create(ctx context.Context, contract *model.ContractAward) error
	GetByID(ctx context.Context, id int64) (*model.ContractAward, error)
	ListByProject(ctx context.Context, projectID int64) ([]model.ContractAward, error)
	Update(ctx context.Context, contract *model.ContractAward) error
	Delete(ctx context.Context, id int64) error
}

type contractRepo struct {
	db *gorm.DB
}

// NewContractRepo 创建 ContractRepository 实例
func NewContractRepo(db *gorm.DB) ContractRepository {
	return &contractRepo{db: db}
}

func (r *contractRepo) Create(ctx context.Context, contract *model.ContractAward) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *contractRepo) GetByID(ctx context.Context, id int64) (*model.ContractAward, error) {
	var contract model.ContractAward
	err := r.db.WithContext(ctx).
		Where("contract_id = ?", id).
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *contractRepo) ListByProject(ctx context.Context, projectID int64) ([]model.ContractAward, error) {
	var contracts []model.ContractAward
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("contract_id ASC").
		Find(&contracts).Error
	return contracts, err
}

func (r *contractRepo) Update(ctx context.Context, contract *model.ContractAward) error {
	oldVersion := contract.Version
	result := r.db.WithContext(ctx).
		Model(&model.ContractAward{}).
		Where("contract_id = ? AND version = ?", contract.ContractID, oldVersion).
		Updates(map[string]interface{}{
			"contract_number": contract.ContractNumber,
			"contractor_id":   contract.ContractorID,
			"contract_status": contract.ContractStatus,
			"award_date":      contract.AwardDate,
			"contract_value":  contract.ContractValue,
			"updated_by":      contract.UpdatedBy,
			"updated_at":      gorm.Expr("NOW()"),
			"version":         oldVersion + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	contract.Version = oldVersion + 1
	return nil
}

func (r *contractRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ?", id).
		Delete(&model.ContractAward{}).Error
}
