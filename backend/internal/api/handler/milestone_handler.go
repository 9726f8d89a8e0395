package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/service"
	"contract-tracker/backend/pkg/response"
)

// MilestoneHandler 里程碑与依赖 HTTP 处理器
type MilestoneHandler struct {
	milestoneSvc  service.MilestoneService
	dependencySvc service.DependencyService
}

// NewMilestoneHandler 创建 MilestoneHandler
func NewMilestoneHandler(milestoneSvc service.MilestoneService, dependencySvc service.DependencyService) *MilestoneHandler {
	return &MilestoneHandler{milestoneSvc: milestoneSvc, dependencySvc: dependencySvc}
}

// ListMilestones 项目进度表
// GET /api/v1/projects/:id/milestones
func (h *MilestoneHandler) ListMilestones(c *gin.Context) {
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	list, err := h.milestoneSvc.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.OK(c, list)
}

// BulkCreateMilestones 批量新建里程碑，占位符之间可互为前驱
// POST /api/v1/projects/:id/milestones
func (h *MilestoneHandler) BulkCreateMilestones(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.BulkCreateMilestonesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	mapping, err := h.milestoneSvc.BulkCreate(c.Request.Context(), projectID, req.ToRows(), callerID)
	if err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.Created(c, mapping)
}

// GetMilestone 里程碑详情
// GET /api/v1/milestones/:mid
func (h *MilestoneHandler) GetMilestone(c *gin.Context) {
	id, ok := parseIDParam(c, "mid")
	if !ok {
		return
	}

	m, err := h.milestoneSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.OK(c, m)
}

// UpdateMilestone 更新里程碑
// PUT /api/v1/milestones/:mid
func (h *MilestoneHandler) UpdateMilestone(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "mid")
	if !ok {
		return
	}

	var req dto.UpdateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	m, err := h.milestoneSvc.Update(c.Request.Context(), id, req.Fields(), callerID)
	if err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.OK(c, m)
}

// DeleteMilestone 删除里程碑，同时删除相关依赖边
// DELETE /api/v1/milestones/:mid
func (h *MilestoneHandler) DeleteMilestone(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "mid")
	if !ok {
		return
	}

	if err := h.milestoneSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.OK(c, nil)
}

// ── 依赖 ──

// ListPredecessors 前驱列表
// GET /api/v1/milestones/:mid/predecessors
func (h *MilestoneHandler) ListPredecessors(c *gin.Context) {
	id, ok := parseIDParam(c, "mid")
	if !ok {
		return
	}

	list, err := h.dependencySvc.ListPredecessors(c.Request.Context(), id)
	if err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.OK(c, list)
}

// ListSuccessors 后继列表
// GET /api/v1/milestones/:mid/successors
func (h *MilestoneHandler) ListSuccessors(c *gin.Context) {
	id, ok := parseIDParam(c, "mid")
	if !ok {
		return
	}

	list, err := h.dependencySvc.ListSuccessors(c.Request.Context(), id)
	if err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.OK(c, list)
}

// ReplacePredecessors 整体替换前驱集合，支持 "3, 7, 9" 文本形式
// PUT /api/v1/milestones/:mid/predecessors
func (h *MilestoneHandler) ReplacePredecessors(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "mid")
	if !ok {
		return
	}

	var req dto.ReplacePredecessorsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	ids := req.Predecessors
	if req.PredecessorText != nil {
		ids = service.ParsePredecessorText(*req.PredecessorText)
	}

	result, err := h.dependencySvc.ReplacePredecessors(c.Request.Context(), id, ids, callerID)
	if err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.OK(c, gin.H{
		"predecessors":      result,
		"predecessor_label": service.PredecessorLabel(result),
	})
}

// AddDependency 新增一条（可跨项目的）依赖边
// POST /api/v1/dependencies
func (h *MilestoneHandler) AddDependency(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var edge dto.DependencyEdge
	if err := c.ShouldBindJSON(&edge); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.dependencySvc.Add(c.Request.Context(), &edge, callerID); err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.Created(c, edge)
}

// RemoveDependency 删除依赖边
// DELETE /api/v1/dependencies
func (h *MilestoneHandler) RemoveDependency(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var edge dto.DependencyEdge
	if err := c.ShouldBindJSON(&edge); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.dependencySvc.Remove(c.Request.Context(), &edge, callerID); err != nil {
		handleMilestoneError(c, err)
		return
	}
	response.OK(c, nil)
}

// handleMilestoneError 里程碑、依赖错误映射，会话处理器共用
func handleMilestoneError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 30001, "项目不存在")
	case errors.Is(err, service.ErrMilestoneNotFound):
		response.NotFound(c, 31001, "里程碑不存在")
	case errors.Is(err, service.ErrMilestoneDateRequired):
		response.Unprocessable(c, 31002, "计划开始与结束日期必填")
	case errors.Is(err, service.ErrMilestoneDateInvalid):
		response.Unprocessable(c, 31003, "计划结束日期不能早于开始日期")
	case errors.Is(err, service.ErrMilestoneActualDateInvalid):
		response.Unprocessable(c, 31004, "实际结束日期不能早于实际开始日期")
	case errors.Is(err, service.ErrPlaceholderInvalid):
		response.BadRequest(c, 31005, "占位符无效或重复")
	case errors.Is(err, service.ErrPlaceholderUnknown):
		response.BadRequest(c, 31006, "引用了未知的占位符")
	case errors.Is(err, service.ErrSelfDependency):
		response.BadRequest(c, 31101, "里程碑不能依赖自身")
	case errors.Is(err, service.ErrPredecessorNotFound):
		response.Unprocessable(c, 31102, "前驱里程碑不存在")
	case errors.Is(err, service.ErrDependencyNotFound):
		response.NotFound(c, 31103, "依赖关系不存在")
	case errors.Is(err, service.ErrDependencyProjectMismatch):
		response.BadRequest(c, 31104, "依赖边的项目与里程碑不匹配")
	default:
		response.InternalError(c)
	}
}
