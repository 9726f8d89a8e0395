package session

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/service"
)

// ── 编辑会话错误 ──

var (
	ErrSessionClosed  = errors.New("编辑会话已关闭")
	ErrRowIndex       = errors.New("行号超出范围")
	ErrRowNotFound    = errors.New("工作集中不存在该行")
	ErrUnknownField   = errors.New("不支持的字段")
	ErrNotDateField   = errors.New("该字段不是日期字段")
	ErrInvalidDate    = errors.New("日期格式应为 YYYY-MM-DD")
	ErrRequiredDate   = errors.New("预计日期不能清空")
	ErrInvalidRowID   = errors.New("行标识既不是临时 ID 也不是里程碑 ID")
	ErrSessionProject = errors.New("会话不属于该项目")
)

// Field 可编辑字段
type Field string

const (
	FieldTaskName       Field = "task_name"
	FieldProjectedStart Field = "projected_start"
	FieldProjectedEnd   Field = "projected_end"
	FieldActualStart    Field = "actual_start"
	FieldActualEnd      Field = "actual_end"
	FieldPredecessors   Field = "predecessors"
)

// Row 工作集中的一行。ID 为 0 且 PlaceholderID 非空表示尚未持久化
type Row struct {
	ID                      int64      `json:"id,omitempty"`
	PlaceholderID           string     `json:"placeholder_id,omitempty"`
	TaskName                string     `json:"task_name"`
	ProjectedStart          *time.Time `json:"projected_start"`
	ProjectedEnd            *time.Time `json:"projected_end"`
	ActualStart             *time.Time `json:"actual_start"`
	ActualEnd               *time.Time `json:"actual_end"`
	Predecessors            []int64    `json:"predecessors"`
	PredecessorPlaceholders []string   `json:"predecessor_placeholders,omitempty"`
	PredecessorLabel        string     `json:"predecessor_label"`
	Dirty                   bool       `json:"dirty"`
}

// IsNew 尚未持久化
func (r *Row) IsNew() bool { return r.ID == 0 }

// original 载入时的快照，用于判断名称与前驱是否变化
type original struct {
	taskName     string
	predecessors []int64
}

// SaveResult 一次保存实际发出的写操作
type SaveResult struct {
	Updated      []int64                  `json:"updated"`
	Relinked     []int64                  `json:"relinked"`
	Created      []dto.PlaceholderMapping `json:"created"`
	BulkInserted bool                     `json:"bulk_inserted"`
}

// ScheduleSession 一个项目排期的编辑会话。
// 工作集在 Load 时从存储复制，编辑只改内存，Save 时按批次写回。
type ScheduleSession struct {
	mu         sync.Mutex
	store      ScheduleStore
	projectID  int64
	closeDelay time.Duration
	now        func() time.Time

	rows      []Row
	originals map[int64]original
	closed    bool
}

// NewScheduleSession 创建排期编辑会话；closeDelay 为 Close 后清空工作集的延迟
func NewScheduleSession(store ScheduleStore, projectID int64, closeDelay time.Duration) *ScheduleSession {
	return &ScheduleSession{
		store:      store,
		projectID:  projectID,
		closeDelay: closeDelay,
		now:        time.Now,
		originals:  make(map[int64]original),
	}
}

// ProjectID 会话所属项目
func (s *ScheduleSession) ProjectID() int64 { return s.projectID }

// ────────────────────── Load ──────────────────────

// Load 从存储复制项目的里程碑到工作集。工作集非空时为空操作，避免覆盖进行中的编辑
func (s *ScheduleSession) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if len(s.rows) > 0 {
		return nil
	}

	milestones, err := s.store.ListMilestones(ctx, s.projectID)
	if err != nil {
		return err
	}

	s.rows = make([]Row, 0, len(milestones))
	s.originals = make(map[int64]original, len(milestones))
	for _, m := range milestones {
		preds := append([]int64{}, m.Predecessors...)
		s.rows = append(s.rows, Row{
			ID:               m.ID,
			TaskName:         m.TaskName,
			ProjectedStart:   m.ProjectedStart.TimePtr(),
			ProjectedEnd:     m.ProjectedEnd.TimePtr(),
			ActualStart:      m.ActualStart.TimePtr(),
			ActualEnd:        m.ActualEnd.TimePtr(),
			Predecessors:     preds,
			PredecessorLabel: service.PredecessorLabel(preds),
		})
		s.originals[m.ID] = original{taskName: m.TaskName, predecessors: append([]int64{}, preds...)}
	}
	return nil
}

// Rows 返回工作集的副本
func (s *ScheduleSession) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([]Row, len(s.rows))
	for i, r := range s.rows {
		r.Predecessors = append([]int64{}, r.Predecessors...)
		r.PredecessorPlaceholders = append([]string(nil), r.PredecessorPlaceholders...)
		rows[i] = r
	}
	return rows
}

// ────────────────────── AddRow ──────────────────────

// AddRow 追加一个新行：临时 ID 按待保存新行数顺延，预计开始为今天、预计结束为明天
func (s *ScheduleSession) AddRow() (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Row{}, ErrSessionClosed
	}

	used := make(map[string]bool)
	for i := range s.rows {
		if s.rows[i].IsNew() {
			used[s.rows[i].PlaceholderID] = true
		}
	}
	n := len(used)
	for used[PlaceholderID(n)] {
		n++
	}

	today := dto.NewDate(s.now()).Time
	tomorrow := today.AddDate(0, 0, 1)
	row := Row{
		PlaceholderID:  PlaceholderID(n),
		ProjectedStart: &today,
		ProjectedEnd:   &tomorrow,
		Predecessors:   []int64{},
	}
	s.rows = append(s.rows, row)
	return row, nil
}

// ────────────────────── UpdateField ──────────────────────

// UpdateField 以文本值替换第 index 行的字段并标记该行已修改，其他行不受影响。
// 前驱文本按逗号分隔：数字为里程碑 ID，大写字母为本会话新行的临时 ID，其余片段忽略
func (s *ScheduleSession) UpdateField(index int, field Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.rowAt(index)
	if err != nil {
		return err
	}

	switch field {
	case FieldTaskName:
		row.TaskName = value
	case FieldProjectedStart, FieldProjectedEnd, FieldActualStart, FieldActualEnd:
		t, err := parseDate(value)
		if err != nil {
			return err
		}
		*datePtr(row, field) = &t
	case FieldPredecessors:
		ids, refs := s.parsePredecessors(value, row)
		row.Predecessors = ids
		row.PredecessorPlaceholders = refs
		row.PredecessorLabel = predecessorText(ids, refs)
	default:
		return ErrUnknownField
	}
	row.Dirty = true
	return nil
}

// ────────────────────── ClearDate ──────────────────────

// ClearDate 将日期字段置空并标记该行已修改。预计日期为必填，不允许清空
func (s *ScheduleSession) ClearDate(index int, field Field) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.rowAt(index)
	if err != nil {
		return err
	}

	switch field {
	case FieldActualStart, FieldActualEnd:
		*datePtr(row, field) = nil
	case FieldProjectedStart, FieldProjectedEnd:
		return ErrRequiredDate
	default:
		return ErrNotDateField
	}
	row.Dirty = true
	return nil
}

// ────────────────────── DeleteRow ──────────────────────

// DeleteRow 临时 ID 只从工作集移除；里程碑 ID 先在存储中删除（连同其全部依赖边），
// 再从工作集移除并清理其他行对它的前驱引用
func (s *ScheduleSession) DeleteRow(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}

	if ph := normalizePlaceholder(identifier); isPlaceholder(ph) {
		idx := s.indexOfPlaceholder(ph)
		if idx < 0 {
			return ErrRowNotFound
		}
		s.rows = append(s.rows[:idx], s.rows[idx+1:]...)
		for i := range s.rows {
			r := &s.rows[i]
			if refs := removeString(r.PredecessorPlaceholders, ph); len(refs) != len(r.PredecessorPlaceholders) {
				r.PredecessorPlaceholders = refs
				r.PredecessorLabel = predecessorText(r.Predecessors, refs)
			}
		}
		return nil
	}

	id, err := strconv.ParseInt(strings.TrimSpace(identifier), 10, 64)
	if err != nil || id <= 0 {
		return ErrInvalidRowID
	}
	idx := s.indexOfID(id)
	if idx < 0 {
		return ErrRowNotFound
	}

	if err := s.store.DeleteMilestone(ctx, id); err != nil {
		return err
	}

	s.rows = append(s.rows[:idx], s.rows[idx+1:]...)
	delete(s.originals, id)
	// 存储侧已级联删除依赖边，本地引用与快照同步移除，不视为前驱变化
	for i := range s.rows {
		r := &s.rows[i]
		if preds := removeInt64(r.Predecessors, id); len(preds) != len(r.Predecessors) {
			r.Predecessors = preds
			r.PredecessorLabel = predecessorText(preds, r.PredecessorPlaceholders)
		}
		if !r.IsNew() {
			if o, ok := s.originals[r.ID]; ok {
				o.predecessors = removeInt64(o.predecessors, id)
				s.originals[r.ID] = o
			}
		}
	}
	return nil
}

// ────────────────────── Save ──────────────────────

// Save 将工作集写回存储：
//  1. 全部新行一次批量插入（含前驱边），临时 ID 替换为服务端 ID
//  2. 已修改或名称变化的已有行逐行更新
//  3. 前驱集合变化的已有行整体替换依赖边；未变化的行不触碰依赖表
//
// 任一步失败即中止，已成功的步骤保持已保存状态
func (s *ScheduleSession) Save(ctx context.Context) (*SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}
	return s.save(ctx)
}

func (s *ScheduleSession) save(ctx context.Context) (*SaveResult, error) {
	result := &SaveResult{Updated: []int64{}, Relinked: []int64{}, Created: []dto.PlaceholderMapping{}}

	// 1. 新行批量插入
	var newRows []dto.NewMilestoneRow
	for i := range s.rows {
		r := &s.rows[i]
		if !r.IsNew() {
			continue
		}
		newRows = append(newRows, dto.NewMilestoneRow{
			PlaceholderID:           r.PlaceholderID,
			Fields:                  rowFields(r),
			Predecessors:            append([]int64{}, r.Predecessors...),
			PredecessorPlaceholders: append([]string(nil), r.PredecessorPlaceholders...),
		})
	}

	assigned := make(map[string]int64)
	created := make(map[int64]bool)
	if len(newRows) > 0 {
		mappings, err := s.store.BulkCreateMilestones(ctx, s.projectID, newRows)
		if err != nil {
			return result, err
		}
		result.BulkInserted = true
		result.Created = mappings
		for _, m := range mappings {
			assigned[m.PlaceholderID] = m.MilestoneID
			created[m.MilestoneID] = true
		}
		s.promoteNewRows(assigned)
	}

	// 2. 已有行更新（跳过本次刚插入的行）
	for i := range s.rows {
		r := &s.rows[i]
		if r.IsNew() || created[r.ID] {
			continue
		}
		orig := s.originals[r.ID]
		if !r.Dirty && r.TaskName == orig.taskName {
			continue
		}
		if err := s.store.UpdateMilestone(ctx, r.ID, rowFields(r)); err != nil {
			return result, err
		}
		orig.taskName = r.TaskName
		s.originals[r.ID] = orig
		r.Dirty = false
		result.Updated = append(result.Updated, r.ID)
	}

	// 3. 前驱变化的已有行替换依赖边
	for i := range s.rows {
		r := &s.rows[i]
		if r.IsNew() || created[r.ID] {
			continue
		}
		preds := append([]int64{}, r.Predecessors...)
		for _, ref := range r.PredecessorPlaceholders {
			if id, ok := assigned[ref]; ok {
				preds = appendUnique(preds, id)
			}
		}
		orig := s.originals[r.ID]
		if sameSet(preds, orig.predecessors) {
			continue
		}
		if err := s.store.ReplacePredecessors(ctx, r.ID, preds); err != nil {
			return result, err
		}
		r.Predecessors = append([]int64{}, preds...)
		r.PredecessorPlaceholders = nil
		r.PredecessorLabel = service.PredecessorLabel(r.Predecessors)
		orig.predecessors = append([]int64{}, preds...)
		s.originals[r.ID] = orig
		result.Relinked = append(result.Relinked, r.ID)
	}

	return result, nil
}

// promoteNewRows 用服务端 ID 替换新行的临时 ID
func (s *ScheduleSession) promoteNewRows(assigned map[string]int64) {
	for i := range s.rows {
		r := &s.rows[i]
		if !r.IsNew() {
			continue
		}
		id, ok := assigned[r.PlaceholderID]
		if !ok {
			continue
		}
		preds := append([]int64{}, r.Predecessors...)
		for _, ref := range r.PredecessorPlaceholders {
			if pid, ok := assigned[ref]; ok {
				preds = appendUnique(preds, pid)
			}
		}
		r.ID = id
		r.PlaceholderID = ""
		r.Predecessors = preds
		r.PredecessorPlaceholders = nil
		r.PredecessorLabel = service.PredecessorLabel(preds)
		r.Dirty = false
		s.originals[id] = original{taskName: r.TaskName, predecessors: append([]int64{}, preds...)}
	}
}

// ────────────────────── Close ──────────────────────

// Close 关闭会话：didSave 为 true 时先保存；之后经过 closeDelay 清空工作集。
// 保存失败时会话保持打开，工作集不变
func (s *ScheduleSession) Close(ctx context.Context, didSave bool) (*SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	var result *SaveResult
	if didSave {
		var err error
		if result, err = s.save(ctx); err != nil {
			return result, err
		}
	}

	s.closed = true
	if s.closeDelay <= 0 {
		s.clear()
	} else {
		time.AfterFunc(s.closeDelay, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.clear()
		})
	}
	return result, nil
}

// Closed 会话是否已关闭
func (s *ScheduleSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *ScheduleSession) clear() {
	s.rows = nil
	s.originals = make(map[int64]original)
}

// ── 内部辅助方法 ──

func (s *ScheduleSession) rowAt(index int) (*Row, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if index < 0 || index >= len(s.rows) {
		return nil, ErrRowIndex
	}
	return &s.rows[index], nil
}

func (s *ScheduleSession) indexOfPlaceholder(ph string) int {
	for i := range s.rows {
		if s.rows[i].IsNew() && s.rows[i].PlaceholderID == ph {
			return i
		}
	}
	return -1
}

func (s *ScheduleSession) indexOfID(id int64) int {
	for i := range s.rows {
		if s.rows[i].ID == id {
			return i
		}
	}
	return -1
}

// parsePredecessors 临时 ID 只接受工作集中其他新行的 ID
func (s *ScheduleSession) parsePredecessors(text string, self *Row) ([]int64, []string) {
	var numeric []string
	var refs []string
	seen := make(map[string]bool)
	for _, token := range strings.Split(text, ",") {
		token = strings.TrimSpace(token)
		if ph := normalizePlaceholder(token); isPlaceholder(ph) {
			if ph == self.PlaceholderID || seen[ph] || s.indexOfPlaceholder(ph) < 0 {
				continue
			}
			seen[ph] = true
			refs = append(refs, ph)
			continue
		}
		numeric = append(numeric, token)
	}

	ids := service.ParsePredecessorText(strings.Join(numeric, ","))
	if !self.IsNew() {
		ids = removeInt64(ids, self.ID)
	}
	return ids, refs
}

func datePtr(r *Row, field Field) **time.Time {
	switch field {
	case FieldProjectedStart:
		return &r.ProjectedStart
	case FieldProjectedEnd:
		return &r.ProjectedEnd
	case FieldActualStart:
		return &r.ActualStart
	default:
		return &r.ActualEnd
	}
}

// rowFields 预计日期为空时传零值，由 Service 校验拒绝
func rowFields(r *Row) dto.MilestoneFields {
	f := dto.MilestoneFields{
		TaskName:    r.TaskName,
		ActualStart: r.ActualStart,
		ActualEnd:   r.ActualEnd,
	}
	if r.ProjectedStart != nil {
		f.ProjectedStart = *r.ProjectedStart
	}
	if r.ProjectedEnd != nil {
		f.ProjectedEnd = *r.ProjectedEnd
	}
	return f
}

func parseDate(value string) (time.Time, error) {
	t, err := time.Parse(dto.DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

func predecessorText(ids []int64, refs []string) string {
	label := service.PredecessorLabel(ids)
	if len(refs) == 0 {
		return label
	}
	if label == "" {
		return strings.Join(refs, ", ")
	}
	return label + ", " + strings.Join(refs, ", ")
}

func sameSet(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]int64(nil), a...)
	y := append([]int64(nil), b...)
	sort.Slice(x, func(i, j int) bool { return x[i] < x[j] })
	sort.Slice(y, func(i, j int) bool { return y[i] < y[j] })
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func appendUnique(ids []int64, id int64) []int64 {
	for _, v := range ids {
		if v == id {
			return ids
		}
	}
	return append(ids, id)
}

func removeInt64(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func removeString(ss []string, s string) []string {
	out := make([]string, 0, len(ss))
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
