package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/service"
	"contract-tracker/backend/pkg/response"
)

// FundingHandler 批准拨款矩阵 HTTP 处理器（直接写库，不经过编辑会话）
type FundingHandler struct {
	fundingSvc service.FundingService
}

// NewFundingHandler 创建 FundingHandler
func NewFundingHandler(fundingSvc service.FundingService) *FundingHandler {
	return &FundingHandler{fundingSvc: fundingSvc}
}

// ListFundingTypes 拨款类型字典
// GET /api/v1/funding-types
func (h *FundingHandler) ListFundingTypes(c *gin.Context) {
	list, err := h.fundingSvc.ListFundingTypes(c.Request.Context())
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OK(c, list)
}

// GetMatrix 项目拨款矩阵
// GET /api/v1/projects/:id/funding
func (h *FundingHandler) GetMatrix(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	matrix, err := h.fundingSvc.GetMatrix(c.Request.Context(), projectID)
	if err != nil {
		handleFundingError(c, err)
		return
	}
	response.OK(c, matrix)
}

// AddFirstCell 空矩阵时新增首个单元格
// POST /api/v1/projects/:id/funding/first-cell
func (h *FundingHandler) AddFirstCell(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.AddFirstCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.fundingSvc.AddFirstCell(c.Request.Context(), projectID, &req, callerID); err != nil {
		handleFundingError(c, err)
		return
	}
	h.respondMatrix(c, projectID)
}

// AddFiscalYear 新增财年列，对每个已有拨款类型补零
// POST /api/v1/projects/:id/funding/years
func (h *FundingHandler) AddFiscalYear(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.AddFiscalYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.fundingSvc.AddFiscalYear(c.Request.Context(), projectID, req.FiscalYear, callerID); err != nil {
		handleFundingError(c, err)
		return
	}
	h.respondMatrix(c, projectID)
}

// AddFundingType 新增拨款类型行，对每个已有财年补零
// POST /api/v1/projects/:id/funding/types
func (h *FundingHandler) AddFundingType(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.AddFundingTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.fundingSvc.AddFundingType(c.Request.Context(), projectID, req.FundingTypeID, callerID); err != nil {
		handleFundingError(c, err)
		return
	}
	h.respondMatrix(c, projectID)
}

// RemoveFiscalYear 删除财年列
// DELETE /api/v1/projects/:id/funding/years/:year
func (h *FundingHandler) RemoveFiscalYear(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	year, ok := parseIntParam(c, "year")
	if !ok {
		return
	}

	if err := h.fundingSvc.RemoveFiscalYear(c.Request.Context(), projectID, year, callerID); err != nil {
		handleFundingError(c, err)
		return
	}
	h.respondMatrix(c, projectID)
}

// RemoveFundingType 删除拨款类型行
// DELETE /api/v1/projects/:id/funding/types/:type_id
func (h *FundingHandler) RemoveFundingType(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	typeID, ok := parseIntParam(c, "type_id")
	if !ok {
		return
	}

	if err := h.fundingSvc.RemoveFundingType(c.Request.Context(), projectID, typeID, callerID); err != nil {
		handleFundingError(c, err)
		return
	}
	h.respondMatrix(c, projectID)
}

// UpdateCells 批量更新单元格金额
// PUT /api/v1/projects/:id/funding/cells
func (h *FundingHandler) UpdateCells(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateCellsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.fundingSvc.UpdateCells(c.Request.Context(), projectID, req.Cells, callerID); err != nil {
		handleFundingError(c, err)
		return
	}
	h.respondMatrix(c, projectID)
}

// respondMatrix 写操作成功后返回最新矩阵
func (h *FundingHandler) respondMatrix(c *gin.Context, projectID int64) {
	matrix, err := h.fundingSvc.GetMatrix(c.Request.Context(), projectID)
	if err != nil {
		handleFundingError(c, err)
		return
	}
	response.OK(c, matrix)
}

// handleFundingError 拨款错误映射，会话处理器共用
func handleFundingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 30001, "项目不存在")
	case errors.Is(err, service.ErrFiscalYearExists):
		response.Conflict(c, 32001, "财年已存在")
	case errors.Is(err, service.ErrFiscalYearNotFound):
		response.NotFound(c, 32002, "财年不存在")
	case errors.Is(err, service.ErrFundingTypeExists):
		response.Conflict(c, 32003, "拨款类型已存在")
	case errors.Is(err, service.ErrFundingTypeNotFound):
		response.NotFound(c, 32004, "拨款类型不存在")
	case errors.Is(err, service.ErrFundingCellNotFound):
		response.NotFound(c, 32005, "单元格不存在")
	case errors.Is(err, service.ErrFundingAmountInvalid):
		response.Unprocessable(c, 32006, "金额不能为负数")
	case errors.Is(err, service.ErrFundingMatrixEmpty):
		response.Unprocessable(c, 32007, "矩阵为空，请先添加首个单元格")
	case errors.Is(err, service.ErrFundingMatrixPresent):
		response.Conflict(c, 32008, "矩阵已有数据")
	default:
		response.InternalError(c)
	}
}
