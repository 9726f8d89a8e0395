package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/service"
	"contract-tracker/backend/pkg/response"
)

// ContractHandler 合同模块 HTTP 处理器，路由挂在项目下
type ContractHandler struct {
	contractSvc service.ContractService
}

// NewContractHandler 创建 ContractHandler
func NewContractHandler(contractSvc service.ContractService) *ContractHandler {
	return &ContractHandler{contractSvc: contractSvc}
}

// ListContracts 项目合同列表
// GET /api/v1/projects/:id/contracts
func (h *ContractHandler) ListContracts(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	list, err := h.contractSvc.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, list)
}

// GetContract 合同详情
// GET /api/v1/projects/:id/contracts/:cid
func (h *ContractHandler) GetContract(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "cid")
	if !ok {
		return
	}

	contract, err := h.contractSvc.GetByID(c.Request.Context(), projectID, id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, contract)
}

// CreateContract 创建合同
// POST /api/v1/projects/:id/contracts
func (h *ContractHandler) CreateContract(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	contract, err := h.contractSvc.Create(c.Request.Context(), projectID, &req, callerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, contract)
}

// UpdateContract 更新合同（乐观锁），状态变化时通知 IPT 成员
// PUT /api/v1/projects/:id/contracts/:cid
func (h *ContractHandler) UpdateContract(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "cid")
	if !ok {
		return
	}

	var req dto.UpdateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	contract, err := h.contractSvc.Update(c.Request.Context(), projectID, id, &req, callerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, contract)
}

// DeleteContract 删除合同
// DELETE /api/v1/projects/:id/contracts/:cid
func (h *ContractHandler) DeleteContract(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "cid")
	if !ok {
		return
	}

	if err := h.contractSvc.Delete(c.Request.Context(), projectID, id, callerID); err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, nil)
}

func (h *ContractHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 30001, "项目不存在")
	case errors.Is(err, service.ErrContractNotFound):
		response.NotFound(c, 33001, "合同不存在")
	case errors.Is(err, service.ErrContractValueInvalid):
		response.Unprocessable(c, 33002, "合同金额不能为负数")
	case errors.Is(err, service.ErrContractProjectDiffer):
		response.NotFound(c, 33003, "合同不属于该项目")
	case errors.Is(err, service.ErrVersionConflict):
		response.Conflict(c, 33004, "合同已被他人修改，请刷新后重试")
	default:
		response.InternalError(c)
	}
}
