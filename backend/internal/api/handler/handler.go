package handler

import (
	"contract-tracker/backend/config"
	"contract-tracker/backend/internal/service"
	"contract-tracker/backend/internal/session"
)

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Auth      *AuthHandler
	User      *UserHandler
	Project   *ProjectHandler
	Milestone *MilestoneHandler
	Funding   *FundingHandler
	Contract  *ContractHandler
	Export    *ExportHandler
	Session   *SessionHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(cfg *config.Config, svc *service.Service, registry *session.Registry) *Handler {
	return &Handler{
		Auth:      NewAuthHandler(svc.Auth, cfg.Auth),
		User:      NewUserHandler(svc.User),
		Project:   NewProjectHandler(svc.Project, svc.History),
		Milestone: NewMilestoneHandler(svc.Milestone, svc.Dependency),
		Funding:   NewFundingHandler(svc.Funding),
		Contract:  NewContractHandler(svc.Contract),
		Export:    NewExportHandler(svc.Export),
		Session:   NewSessionHandler(registry, svc.Milestone, svc.Dependency, svc.Funding, cfg.Session),
	}
}
