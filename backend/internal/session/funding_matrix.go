package session

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/service"
)

type cellKey struct {
	year   int
	typeID int
}

// FundingMatrix 一个项目批准拨款矩阵的编辑会话。
// 行列增删立即写入存储并重新拉取；单元格金额只改工作副本，SaveUpdated 时批量写回
type FundingMatrix struct {
	mu        sync.Mutex
	store     FundingStore
	projectID int64

	years []int
	types []dto.FundingTypeResponse
	saved map[cellKey]decimal.Decimal
	cells map[cellKey]decimal.Decimal
	dirty map[cellKey]bool

	closed bool
}

// NewFundingMatrix 创建拨款矩阵编辑会话，调用 Load 后可用
func NewFundingMatrix(store FundingStore, projectID int64) *FundingMatrix {
	return &FundingMatrix{
		store:     store,
		projectID: projectID,
		saved:     make(map[cellKey]decimal.Decimal),
		cells:     make(map[cellKey]decimal.Decimal),
		dirty:     make(map[cellKey]bool),
	}
}

// ProjectID 会话所属项目
func (m *FundingMatrix) ProjectID() int64 { return m.projectID }

// Load 拉取服务端矩阵；未保存的金额修改在对应单元格仍存在时保留
func (m *FundingMatrix) Load(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSessionClosed
	}
	return m.refresh(ctx)
}

// Mode 以最近一次拉取的服务端状态为准：无单元格为 empty，否则为 populated
func (m *FundingMatrix) Mode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode()
}

// View 当前工作副本（含未保存的金额修改）
func (m *FundingMatrix) View() dto.FundingMatrixResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	view := dto.FundingMatrixResponse{
		ProjectID:    m.projectID,
		Mode:         m.mode(),
		FiscalYears:  append([]int{}, m.years...),
		FundingTypes: append([]dto.FundingTypeResponse{}, m.types...),
		Cells:        make([]dto.FundingCell, 0, len(m.cells)),
		Total:        decimal.Zero,
	}
	for _, k := range sortedKeys(m.cells) {
		amount := m.cells[k]
		view.Cells = append(view.Cells, dto.FundingCell{FiscalYear: k.year, FundingTypeID: k.typeID, Amount: amount})
		view.Total = view.Total.Add(amount)
	}
	return view
}

// DirtyCount 未保存的单元格数
func (m *FundingMatrix) DirtyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dirty)
}

// ────────────────────── AddFirstCell ──────────────────────

// AddFirstCell 空矩阵时的首个单元格；成功后重新拉取，矩阵转为 populated
func (m *FundingMatrix) AddFirstCell(ctx context.Context, year, typeID int, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSessionClosed
	}
	if m.mode() != dto.FundingModeEmpty {
		return service.ErrFundingMatrixPresent
	}
	if amount.IsNegative() {
		return service.ErrFundingAmountInvalid
	}
	if err := m.store.AddFirstCell(ctx, m.projectID, year, typeID, amount); err != nil {
		return err
	}
	return m.refresh(ctx)
}

// ────────────────────── AddFiscalYear / AddFundingType ──────────────────────

// AddFiscalYear 年份已在使用中时直接拒绝，不写入任何单元格
func (m *FundingMatrix) AddFiscalYear(ctx context.Context, year int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSessionClosed
	}
	if containsYear(m.years, year) {
		return service.ErrFiscalYearExists
	}
	if m.mode() == dto.FundingModeEmpty {
		return service.ErrFundingMatrixEmpty
	}
	if err := m.store.AddFiscalYear(ctx, m.projectID, year); err != nil {
		return err
	}
	return m.refresh(ctx)
}

// AddFundingType 拨款类型已在使用中时直接拒绝，不写入任何单元格
func (m *FundingMatrix) AddFundingType(ctx context.Context, typeID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSessionClosed
	}
	if m.typeIndex(typeID) >= 0 {
		return service.ErrFundingTypeExists
	}
	if m.mode() == dto.FundingModeEmpty {
		return service.ErrFundingMatrixEmpty
	}
	if err := m.store.AddFundingType(ctx, m.projectID, typeID); err != nil {
		return err
	}
	return m.refresh(ctx)
}

// ────────────────────── RemoveFiscalYear / RemoveFundingType ──────────────────────

// RemoveFiscalYear 删除该年份的全部单元格，并丢弃其未保存的修改
func (m *FundingMatrix) RemoveFiscalYear(ctx context.Context, year int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSessionClosed
	}
	if !containsYear(m.years, year) {
		return service.ErrFiscalYearNotFound
	}
	if err := m.store.RemoveFiscalYear(ctx, m.projectID, year); err != nil {
		return err
	}
	for k := range m.dirty {
		if k.year == year {
			delete(m.dirty, k)
		}
	}
	return m.refresh(ctx)
}

// RemoveFundingType 删除该拨款类型的全部单元格（不论年份），并丢弃其未保存的修改
func (m *FundingMatrix) RemoveFundingType(ctx context.Context, typeID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSessionClosed
	}
	if m.typeIndex(typeID) < 0 {
		return service.ErrFundingTypeNotFound
	}
	if err := m.store.RemoveFundingType(ctx, m.projectID, typeID); err != nil {
		return err
	}
	for k := range m.dirty {
		if k.typeID == typeID {
			delete(m.dirty, k)
		}
	}
	return m.refresh(ctx)
}

// ────────────────────── EditCell ──────────────────────

// EditCell 只修改工作副本；改回原值时取消该单元格的修改标记
func (m *FundingMatrix) EditCell(year, typeID int, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrSessionClosed
	}
	k := cellKey{year: year, typeID: typeID}
	if _, ok := m.cells[k]; !ok {
		return service.ErrFundingCellNotFound
	}
	if amount.IsNegative() {
		return service.ErrFundingAmountInvalid
	}

	m.cells[k] = amount
	if m.saved[k].Equal(amount) {
		delete(m.dirty, k)
	} else {
		m.dirty[k] = true
	}
	return nil
}

// ────────────────────── SaveUpdated ──────────────────────

// SaveUpdated 写回全部修改过的单元格，成功后才重新拉取。返回写回的单元格数
func (m *FundingMatrix) SaveUpdated(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrSessionClosed
	}
	if len(m.dirty) == 0 {
		return 0, nil
	}

	cells := make([]dto.FundingCell, 0, len(m.dirty))
	for _, k := range sortedKeys(m.dirty) {
		cells = append(cells, dto.FundingCell{FiscalYear: k.year, FundingTypeID: k.typeID, Amount: m.cells[k]})
	}
	if err := m.store.UpdateCells(ctx, m.projectID, cells); err != nil {
		return 0, err
	}

	m.dirty = make(map[cellKey]bool)
	if err := m.refresh(ctx); err != nil {
		return len(cells), err
	}
	return len(cells), nil
}

// Close 关闭会话，未保存的修改被丢弃
func (m *FundingMatrix) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.cells = make(map[cellKey]decimal.Decimal)
	m.dirty = make(map[cellKey]bool)
}

// Closed 会话是否已关闭
func (m *FundingMatrix) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// ── 内部辅助方法 ──

func (m *FundingMatrix) refresh(ctx context.Context) error {
	matrix, err := m.store.GetMatrix(ctx, m.projectID)
	if err != nil {
		return err
	}

	m.years = append([]int{}, matrix.FiscalYears...)
	m.types = append([]dto.FundingTypeResponse{}, matrix.FundingTypes...)
	m.saved = make(map[cellKey]decimal.Decimal, len(matrix.Cells))
	for _, c := range matrix.Cells {
		m.saved[cellKey{year: c.FiscalYear, typeID: c.FundingTypeID}] = c.Amount
	}

	cells := make(map[cellKey]decimal.Decimal, len(m.saved))
	for k, v := range m.saved {
		cells[k] = v
	}
	for k := range m.dirty {
		if _, ok := cells[k]; !ok {
			delete(m.dirty, k)
			continue
		}
		cells[k] = m.cells[k]
	}
	m.cells = cells
	return nil
}

func (m *FundingMatrix) mode() string {
	if len(m.saved) == 0 {
		return dto.FundingModeEmpty
	}
	return dto.FundingModePopulated
}

func (m *FundingMatrix) typeIndex(typeID int) int {
	for i, t := range m.types {
		if t.ID == typeID {
			return i
		}
	}
	return -1
}

// sortedKeys 按拨款类型、年份排序
func sortedKeys[V any](set map[cellKey]V) []cellKey {
	keys := make([]cellKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].typeID != keys[j].typeID {
			return keys[i].typeID < keys[j].typeID
		}
		return keys[i].year < keys[j].year
	})
	return keys
}

func containsYear(years []int, year int) bool {
	for _, y := range years {
		if y == year {
			return true
		}
	}
	return false
}
