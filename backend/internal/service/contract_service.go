package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
	pkgerrors "contract-tracker/backend/pkg/errors"
)

// ── 合同模块业务错误 ──

var (
	ErrContractNotFound      = errors.New("合同不存在")
	ErrContractValueInvalid  = errors.New("合同金额不能为负数")
	ErrContractProjectDiffer = errors.New("合同不属于该项目")
)

// ContractService 合同业务接口
type ContractService interface {
	ListByProject(ctx context.Context, projectID int64) ([]dto.ContractResponse, error)
	GetByID(ctx context.Context, projectID, id int64) (*dto.ContractResponse, error)
	Create(ctx context.Context, projectID int64, req *dto.CreateContractRequest, callerID int64) (*dto.ContractResponse, error)
	// Update 合同状态变化时通知项目全部 IPT 成员
	Update(ctx context.Context, projectID, id int64, req *dto.UpdateContractRequest, callerID int64) (*dto.ContractResponse, error)
	Delete(ctx context.Context, projectID, id int64, callerID int64) error
}

type contractService struct {
	repo     *repository.Repository
	notifier Notifier
	baseURL  string
	logger   *zap.Logger
}

// NewContractService 创建 ContractService 实例
func NewContractService(repo *repository.Repository, notifier Notifier, baseURL string, logger *zap.Logger) ContractService {
	return &contractService{repo: repo, notifier: notifier, baseURL: baseURL, logger: logger}
}

// ────────────────────── ListByProject ──────────────────────

func (s *contractService) ListByProject(ctx context.Context, projectID int64) ([]dto.ContractResponse, error) {
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}

	contracts, err := s.repo.Contract.ListByProject(ctx, projectID)
	if err != nil {
		s.logger.Error("列出合同失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ContractResponse, 0, len(contracts))
	for i := range contracts {
		result = append(result, *toContractResponse(&contracts[i]))
	}
	return result, nil
}

// ────────────────────── GetByID ──────────────────────

func (s *contractService) GetByID(ctx context.Context, projectID, id int64) (*dto.ContractResponse, error) {
	contract, err := s.getContract(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	return toContractResponse(contract), nil
}

// ────────────────────── Create ──────────────────────

func (s *contractService) Create(ctx context.Context, projectID int64, req *dto.CreateContractRequest, callerID int64) (*dto.ContractResponse, error) {
	if req.ContractValue.IsNegative() {
		return nil, ErrContractValueInvalid
	}
	if _, err := s.getProject(ctx, projectID); err != nil {
		return nil, err
	}

	status := req.ContractStatus
	if status == "" {
		status = model.StatusPreAward
	}
	contract := &model.ContractAward{
		ProjectID:      projectID,
		ContractNumber: req.ContractNumber,
		ContractorID:   req.ContractorID,
		ContractStatus: status,
		AwardDate:      req.AwardDate.TimePtr(),
		ContractValue:  req.ContractValue,
	}
	contract.CreatedBy = &callerID
	contract.UpdatedBy = &callerID
	contract.Version = 1

	if err := s.repo.Contract.Create(ctx, contract); err != nil {
		s.logger.Error("创建合同失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}

	if err := appendHistory(ctx, s.repo, projectID, callerID, EntityContract, model.ActionCreate, req); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Int64("project_id", projectID), zap.Error(err))
	}

	return toContractResponse(contract), nil
}

// ────────────────────── Update ──────────────────────

func (s *contractService) Update(ctx context.Context, projectID, id int64, req *dto.UpdateContractRequest, callerID int64) (*dto.ContractResponse, error) {
	contract, err := s.getContract(ctx, projectID, id)
	if err != nil {
		return nil, err
	}
	if contract.Version != req.Version {
		return nil, ErrVersionConflict
	}

	oldStatus := contract.ContractStatus
	if req.ContractNumber != nil {
		contract.ContractNumber = *req.ContractNumber
	}
	if req.ContractorID != nil {
		contract.ContractorID = req.ContractorID
	}
	if req.ContractStatus != nil {
		contract.ContractStatus = *req.ContractStatus
	}
	if req.AwardDate != nil {
		contract.AwardDate = req.AwardDate.TimePtr()
	}
	if req.ContractValue != nil {
		if req.ContractValue.IsNegative() {
			return nil, ErrContractValueInvalid
		}
		contract.ContractValue = *req.ContractValue
	}
	contract.UpdatedBy = &callerID

	if err := s.repo.Contract.Update(ctx, contract); err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrVersionConflict
		}
		s.logger.Error("更新合同失败", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}

	if err := appendHistory(ctx, s.repo, projectID, callerID, EntityContract, model.ActionUpdate, req); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Int64("project_id", projectID), zap.Error(err))
	}

	if contract.ContractStatus != oldStatus {
		s.notifyStatusChange(ctx, contract, oldStatus)
	}

	return toContractResponse(contract), nil
}

// ────────────────────── Delete ──────────────────────

func (s *contractService) Delete(ctx context.Context, projectID, id int64, callerID int64) error {
	contract, err := s.getContract(ctx, projectID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Contract.Delete(ctx, id); err != nil {
		s.logger.Error("删除合同失败", zap.Int64("id", id), zap.Error(err))
		return err
	}

	if err := appendHistory(ctx, s.repo, projectID, callerID, EntityContract, model.ActionDelete,
		map[string]interface{}{"contract_id": id, "contract_number": contract.ContractNumber}); err != nil {
		s.logger.Warn("写入审计日志失败", zap.Int64("project_id", projectID), zap.Error(err))
	}
	return nil
}

// ── 内部辅助方法 ──

// notifyStatusChange 收件人查询失败只记日志，不影响本次更新
func (s *contractService) notifyStatusChange(ctx context.Context, contract *model.ContractAward, oldStatus string) {
	project, err := s.repo.Project.GetByID(ctx, contract.ProjectID)
	if err != nil {
		s.logger.Warn("查询项目失败，跳过通知", zap.Int64("project_id", contract.ProjectID), zap.Error(err))
		return
	}
	recipients, err := memberEmails(ctx, s.repo, contract.ProjectID)
	if err != nil {
		s.logger.Warn("查询 IPT 成员失败，跳过通知", zap.Int64("project_id", contract.ProjectID), zap.Error(err))
		return
	}

	subject := fmt.Sprintf("合同 %s 状态变更为 %s", contract.ContractNumber, contract.ContractStatus)
	body := fmt.Sprintf("项目「%s」的合同 %s 状态已由 %s 变更为 %s。\n查看项目：%s/projects/%d\n",
		project.ProjectName, contract.ContractNumber, oldStatus, contract.ContractStatus, s.baseURL, project.ProjectID)
	s.notifier.Notify(ctx, EventContractStatusChange, recipients, subject, body)
}

func (s *contractService) getProject(ctx context.Context, projectID int64) (*model.Project, error) {
	project, err := s.repo.Project.GetByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		s.logger.Error("查询项目失败", zap.Int64("project_id", projectID), zap.Error(err))
		return nil, err
	}
	return project, nil
}

func (s *contractService) getContract(ctx context.Context, projectID, id int64) (*model.ContractAward, error) {
	contract, err := s.repo.Contract.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContractNotFound
		}
		s.logger.Error("查询合同失败", zap.Int64("id", id), zap.Error(err))
		return nil, err
	}
	if contract.ProjectID != projectID {
		return nil, ErrContractProjectDiffer
	}
	return contract, nil
}

func toContractResponse(c *model.ContractAward) *dto.ContractResponse {
	return &dto.ContractResponse{
		ID:             c.ContractID,
		ProjectID:      c.ProjectID,
		ContractNumber: c.ContractNumber,
		ContractorID:   c.ContractorID,
		ContractStatus: c.ContractStatus,
		AwardDate:      dto.DatePtr(c.AwardDate),
		ContractValue:  c.ContractValue,
		Version:        c.Version,
	}
}
