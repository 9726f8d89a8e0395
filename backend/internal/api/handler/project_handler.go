package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/service"
	"contract-tracker/backend/pkg/response"
)

// ProjectHandler 项目模块 HTTP 处理器（含 IPT 成员、收藏、变更历史）
type ProjectHandler struct {
	projectSvc service.ProjectService
	historySvc service.HistoryService
}

// NewProjectHandler 创建 ProjectHandler
func NewProjectHandler(projectSvc service.ProjectService, historySvc service.HistoryService) *ProjectHandler {
	return &ProjectHandler{projectSvc: projectSvc, historySvc: historySvc}
}

// ListProjects 项目列表
// GET /api/v1/projects
func (h *ProjectHandler) ListProjects(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, total, err := h.projectSvc.List(c.Request.Context(), &req, callerID)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// GetProject 项目详情
// GET /api/v1/projects/:id
func (h *ProjectHandler) GetProject(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	project, err := h.projectSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, project)
}

// CreateProject 创建项目
// POST /api/v1/projects
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}

	var req dto.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	project, err := h.projectSvc.Create(c.Request.Context(), &req, callerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, project)
}

// UpdateProject 更新项目（乐观锁）
// PUT /api/v1/projects/:id
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	project, err := h.projectSvc.Update(c.Request.Context(), id, &req, callerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, project)
}

// DeleteProject 删除项目
// DELETE /api/v1/projects/:id
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.projectSvc.Delete(c.Request.Context(), id, callerID); err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// ── IPT 成员 ──

// ListMembers 成员列表
// GET /api/v1/projects/:id/members
func (h *ProjectHandler) ListMembers(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	members, err := h.projectSvc.ListMembers(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, members)
}

// AddMember 添加成员
// POST /api/v1/projects/:id/members
func (h *ProjectHandler) AddMember(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := h.projectSvc.AddMember(c.Request.Context(), id, req.UserID, callerID); err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, nil)
}

// RemoveMember 移除成员
// DELETE /api/v1/projects/:id/members/:user_id
func (h *ProjectHandler) RemoveMember(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	userID, ok := parseIDParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.projectSvc.RemoveMember(c.Request.Context(), id, userID, callerID); err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, nil)
}

// ToggleFavorite 切换收藏
// POST /api/v1/projects/:id/favorite
func (h *ProjectHandler) ToggleFavorite(c *gin.Context) {
	callerID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.projectSvc.ToggleFavorite(c.Request.Context(), id, callerID)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, result)
}

// ListHistory 项目变更历史（游标分页）
// GET /api/v1/projects/:id/history
func (h *ProjectHandler) ListHistory(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.CursorRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	list, next, err := h.historySvc.List(c.Request.Context(), id, &req)
	if err != nil {
		response.InternalError(c)
		return
	}
	response.OKCursor(c, list, next)
}

func (h *ProjectHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrProjectNotFound):
		response.NotFound(c, 30001, "项目不存在")
	case errors.Is(err, service.ErrVersionConflict):
		response.Conflict(c, 30002, "项目已被他人修改，请刷新后重试")
	case errors.Is(err, service.ErrMemberNotFound):
		response.NotFound(c, 30003, "成员不存在")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 20001, "用户不存在")
	default:
		response.InternalError(c)
	}
}
