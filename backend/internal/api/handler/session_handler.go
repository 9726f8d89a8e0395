package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"contract-tracker/backend/config"
	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/service"
	"contract-tracker/backend/internal/session"
	"contract-tracker/backend/pkg/response"
)

// SessionHandler 排期与拨款矩阵编辑会话 HTTP 处理器。
// 会话保存在进程内注册表，按 (会话 ID, 用户) 取用
type SessionHandler struct {
	registry      *session.Registry
	milestoneSvc  service.MilestoneService
	dependencySvc service.DependencyService
	fundingSvc    service.FundingService
	sessionCfg    config.SessionConfig
}

// NewSessionHandler 创建 SessionHandler
func NewSessionHandler(
	registry *session.Registry,
	milestoneSvc service.MilestoneService,
	dependencySvc service.DependencyService,
	fundingSvc service.FundingService,
	sessionCfg config.SessionConfig,
) *SessionHandler {
	return &SessionHandler{
		registry:      registry,
		milestoneSvc:  milestoneSvc,
		dependencySvc: dependencySvc,
		fundingSvc:    fundingSvc,
		sessionCfg:    sessionCfg,
	}
}

// ────────────────────── Schedule ──────────────────────

// OpenSchedule 打开排期编辑会话并载入工作集
// POST /api/v1/projects/:id/schedule-sessions
func (h *SessionHandler) OpenSchedule(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	store := session.NewScheduleStore(h.milestoneSvc, h.dependencySvc, userID)
	s := session.NewScheduleSession(store, projectID, h.sessionCfg.CloseDelay)
	if err := s.Load(c.Request.Context()); err != nil {
		handleSessionError(c, err)
		return
	}

	id := h.registry.OpenSchedule(userID, s)
	response.Created(c, scheduleView(id, s))
}

// GetSchedule 当前工作集
// GET /api/v1/projects/:id/schedule-sessions/:sid
func (h *SessionHandler) GetSchedule(c *gin.Context) {
	s, sid, ok := h.schedule(c)
	if !ok {
		return
	}
	response.OK(c, scheduleView(sid, s))
}

// AddRow 追加新行
// POST /api/v1/projects/:id/schedule-sessions/:sid/rows
func (h *SessionHandler) AddRow(c *gin.Context) {
	s, _, ok := h.schedule(c)
	if !ok {
		return
	}

	row, err := s.AddRow()
	if err != nil {
		handleSessionError(c, err)
		return
	}
	response.Created(c, row)
}

// UpdateRowField 修改某行字段
// PATCH /api/v1/projects/:id/schedule-sessions/:sid/rows/:row
func (h *SessionHandler) UpdateRowField(c *gin.Context) {
	s, sid, ok := h.schedule(c)
	if !ok {
		return
	}
	index, ok := parseIntParam(c, "row")
	if !ok {
		return
	}

	var req dto.UpdateRowFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := s.UpdateField(index, session.Field(req.Field), req.Value); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, scheduleView(sid, s))
}

// ClearRowDate 清空某行日期
// POST /api/v1/projects/:id/schedule-sessions/:sid/rows/:row/clear
func (h *SessionHandler) ClearRowDate(c *gin.Context) {
	s, sid, ok := h.schedule(c)
	if !ok {
		return
	}
	index, ok := parseIntParam(c, "row")
	if !ok {
		return
	}

	var req dto.ClearDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := s.ClearDate(index, session.Field(req.Field)); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, scheduleView(sid, s))
}

// DeleteRow 删除行，:row 为临时 ID（A、B…）或里程碑 ID
// DELETE /api/v1/projects/:id/schedule-sessions/:sid/rows/:row
func (h *SessionHandler) DeleteRow(c *gin.Context) {
	s, sid, ok := h.schedule(c)
	if !ok {
		return
	}

	if err := s.DeleteRow(c.Request.Context(), c.Param("row")); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, scheduleView(sid, s))
}

// SaveSchedule 保存工作集
// POST /api/v1/projects/:id/schedule-sessions/:sid/save
func (h *SessionHandler) SaveSchedule(c *gin.Context) {
	s, sid, ok := h.schedule(c)
	if !ok {
		return
	}

	result, err := s.Save(c.Request.Context())
	if err != nil {
		handleSessionError(c, err)
		return
	}
	view := scheduleView(sid, s)
	view["result"] = result
	response.OK(c, view)
}

// CloseSchedule 关闭会话，可选先保存；保存失败时会话保持打开
// POST /api/v1/projects/:id/schedule-sessions/:sid/close
func (h *SessionHandler) CloseSchedule(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	s, sid, ok := h.schedule(c)
	if !ok {
		return
	}

	var req dto.CloseSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 10001, "参数校验失败")
			return
		}
	}

	result, err := s.Close(c.Request.Context(), req.Save)
	if err != nil {
		handleSessionError(c, err)
		return
	}
	h.registry.Remove(sid, userID)
	response.OK(c, gin.H{"result": result})
}

// ────────────────────── Funding ──────────────────────

// OpenFunding 打开拨款矩阵编辑会话
// POST /api/v1/projects/:id/funding-sessions
func (h *SessionHandler) OpenFunding(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	m := session.NewFundingMatrix(session.NewFundingStore(h.fundingSvc, userID), projectID)
	if err := m.Load(c.Request.Context()); err != nil {
		handleSessionError(c, err)
		return
	}

	id := h.registry.OpenFunding(userID, m)
	response.Created(c, fundingView(id, m))
}

// GetFunding 当前矩阵（含未保存修改）
// GET /api/v1/projects/:id/funding-sessions/:sid
func (h *SessionHandler) GetFunding(c *gin.Context) {
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}
	response.OK(c, fundingView(sid, m))
}

// AddFundingFirstCell 空矩阵时新增首个单元格（立即写库）
// POST /api/v1/projects/:id/funding-sessions/:sid/first-cell
func (h *SessionHandler) AddFundingFirstCell(c *gin.Context) {
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}

	var req dto.AddFirstCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := m.AddFirstCell(c.Request.Context(), req.FiscalYear, req.FundingTypeID, req.Amount); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, fundingView(sid, m))
}

// AddFundingYear 新增财年列（立即写库）
// POST /api/v1/projects/:id/funding-sessions/:sid/years
func (h *SessionHandler) AddFundingYear(c *gin.Context) {
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}

	var req dto.AddFiscalYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := m.AddFiscalYear(c.Request.Context(), req.FiscalYear); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, fundingView(sid, m))
}

// AddFundingTypeRow 新增拨款类型行（立即写库）
// POST /api/v1/projects/:id/funding-sessions/:sid/types
func (h *SessionHandler) AddFundingTypeRow(c *gin.Context) {
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}

	var req dto.AddFundingTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := m.AddFundingType(c.Request.Context(), req.FundingTypeID); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, fundingView(sid, m))
}

// RemoveFundingYear 删除财年列（立即写库）
// DELETE /api/v1/projects/:id/funding-sessions/:sid/years/:year
func (h *SessionHandler) RemoveFundingYear(c *gin.Context) {
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}
	year, ok := parseIntParam(c, "year")
	if !ok {
		return
	}

	if err := m.RemoveFiscalYear(c.Request.Context(), year); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, fundingView(sid, m))
}

// RemoveFundingTypeRow 删除拨款类型行（立即写库）
// DELETE /api/v1/projects/:id/funding-sessions/:sid/types/:type_id
func (h *SessionHandler) RemoveFundingTypeRow(c *gin.Context) {
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}
	typeID, ok := parseIntParam(c, "type_id")
	if !ok {
		return
	}

	if err := m.RemoveFundingType(c.Request.Context(), typeID); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, fundingView(sid, m))
}

// EditFundingCell 修改单元格金额，只改内存
// PATCH /api/v1/projects/:id/funding-sessions/:sid/cells
func (h *SessionHandler) EditFundingCell(c *gin.Context) {
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}

	var req dto.FundingCell
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	if err := m.EditCell(req.FiscalYear, req.FundingTypeID, req.Amount); err != nil {
		handleSessionError(c, err)
		return
	}
	response.OK(c, fundingView(sid, m))
}

// SaveFunding 写回修改过的单元格
// POST /api/v1/projects/:id/funding-sessions/:sid/save
func (h *SessionHandler) SaveFunding(c *gin.Context) {
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}

	n, err := m.SaveUpdated(c.Request.Context())
	if err != nil {
		handleSessionError(c, err)
		return
	}
	view := fundingView(sid, m)
	view["saved"] = n
	response.OK(c, view)
}

// CloseFunding 关闭会话，未保存的修改被丢弃
// DELETE /api/v1/projects/:id/funding-sessions/:sid
func (h *SessionHandler) CloseFunding(c *gin.Context) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return
	}
	m, sid, ok := h.funding(c)
	if !ok {
		return
	}

	m.Close()
	h.registry.Remove(sid, userID)
	response.OK(c, nil)
}

// ── 内部辅助方法 ──

func (h *SessionHandler) schedule(c *gin.Context) (*session.ScheduleSession, string, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return nil, "", false
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return nil, "", false
	}

	sid := c.Param("sid")
	s, err := h.registry.Schedule(sid, userID)
	if err == nil && s.ProjectID() != projectID {
		err = session.ErrSessionProject
	}
	if err != nil {
		handleSessionError(c, err)
		return nil, "", false
	}
	return s, sid, true
}

func (h *SessionHandler) funding(c *gin.Context) (*session.FundingMatrix, string, bool) {
	userID, ok := MustGetUserID(c)
	if !ok {
		return nil, "", false
	}
	projectID, ok := parseIDParam(c, "id")
	if !ok {
		return nil, "", false
	}

	sid := c.Param("sid")
	m, err := h.registry.Funding(sid, userID)
	if err == nil && m.ProjectID() != projectID {
		err = session.ErrSessionProject
	}
	if err != nil {
		handleSessionError(c, err)
		return nil, "", false
	}
	return m, sid, true
}

func scheduleView(sid string, s *session.ScheduleSession) gin.H {
	return gin.H{
		"session_id": sid,
		"project_id": s.ProjectID(),
		"rows":       s.Rows(),
	}
}

func fundingView(sid string, m *session.FundingMatrix) gin.H {
	return gin.H{
		"session_id": sid,
		"matrix":     m.View(),
		"dirty":      m.DirtyCount(),
	}
}

// handleSessionError 会话错误映射，其余交给里程碑或拨款的映射
func handleSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		response.NotFound(c, 34001, "编辑会话不存在或已过期")
	case errors.Is(err, session.ErrSessionProject):
		response.NotFound(c, 34002, "会话不属于该项目")
	case errors.Is(err, session.ErrSessionClosed):
		response.Conflict(c, 34003, "编辑会话已关闭")
	case errors.Is(err, session.ErrRowIndex):
		response.BadRequest(c, 34004, "行号超出范围")
	case errors.Is(err, session.ErrRowNotFound):
		response.NotFound(c, 34005, "工作集中不存在该行")
	case errors.Is(err, session.ErrUnknownField):
		response.BadRequest(c, 34006, "不支持的字段")
	case errors.Is(err, session.ErrNotDateField):
		response.BadRequest(c, 34007, "该字段不是日期字段")
	case errors.Is(err, session.ErrInvalidDate):
		response.Unprocessable(c, 34008, "日期格式应为 YYYY-MM-DD")
	case errors.Is(err, session.ErrRequiredDate):
		response.Unprocessable(c, 34009, "预计日期不能清空")
	case errors.Is(err, session.ErrInvalidRowID):
		response.BadRequest(c, 34010, "行标识既不是临时 ID 也不是里程碑 ID")
	case isFundingError(err):
		handleFundingError(c, err)
	default:
		handleMilestoneError(c, err)
	}
}

func isFundingError(err error) bool {
	for _, target := range []error{
		service.ErrFiscalYearExists, service.ErrFiscalYearNotFound,
		service.ErrFundingTypeExists, service.ErrFundingTypeNotFound,
		service.ErrFundingCellNotFound, service.ErrFundingAmountInvalid,
		service.ErrFundingMatrixEmpty, service.ErrFundingMatrixPresent,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
