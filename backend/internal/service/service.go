package service

import (
	"context"

	"go.uber.org/zap"

	"contract-tracker/backend/config"
	"contract-tracker/backend/internal/repository"
	"contract-tracker/backend/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	User       UserService
	Project    ProjectService
	Milestone  MilestoneService
	Dependency DependencyService
	Funding    FundingService
	Contract   ContractService
	History    HistoryService
	Export     ExportService
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	jwtMgr *jwt.Manager,
	blacklist TokenBlacklist,
	notifier Notifier,
	logger *zap.Logger,
) *Service {
	baseURL := cfg.Server.BaseURL
	return &Service{
		Auth:       NewAuthService(cfg, repo, jwtMgr, blacklist, logger),
		User:       NewUserService(repo, logger),
		Project:    NewProjectService(repo, notifier, baseURL, logger),
		Milestone:  NewMilestoneService(repo, logger),
		Dependency: NewDependencyService(repo, logger),
		Funding:    NewFundingService(repo, logger),
		Contract:   NewContractService(repo, notifier, baseURL, logger),
		History:    NewHistoryService(repo, logger),
		Export:     NewExportService(repo, logger),
	}
}

// runInTx 在单个事务内执行 fn；fn 返回错误或 panic 时回滚。
// 未绑定数据库时 tx 为 nil，fn 直接作用于 repo 本身。
func runInTx(ctx context.Context, repo *repository.Repository, logger *zap.Logger, fn func(txRepo *repository.Repository) error) (err error) {
	tx, err := repo.BeginTx(ctx)
	if err != nil {
		logger.Error("开启事务失败", zap.Error(err))
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			if tx != nil {
				tx.Rollback()
			}
			panic(r)
		}
	}()

	if err := fn(repo.WithTx(tx)); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return err
	}

	if tx != nil {
		if err := tx.Commit().Error; err != nil {
			logger.Error("提交事务失败", zap.Error(err))
			return err
		}
	}
	return nil
}
