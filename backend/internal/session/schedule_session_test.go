package session

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"contract-tracker/backend/internal/dto"
)

// ── Fake ScheduleStore ──

type fakeScheduleStore struct {
	milestones []dto.MilestoneResponse
	nextID     int64

	listCalls    int
	updates      []int64
	replacements map[int64][]int64
	bulkCalls    [][]dto.NewMilestoneRow
	deletes      []int64

	bulkErr error
}

func newFakeScheduleStore(milestones ...dto.MilestoneResponse) *fakeScheduleStore {
	return &fakeScheduleStore{
		milestones:   milestones,
		nextID:       100,
		replacements: make(map[int64][]int64),
	}
}

func (f *fakeScheduleStore) ListMilestones(_ context.Context, _ int64) ([]dto.MilestoneResponse, error) {
	f.listCalls++
	return f.milestones, nil
}

func (f *fakeScheduleStore) UpdateMilestone(_ context.Context, id int64, _ dto.MilestoneFields) error {
	f.updates = append(f.updates, id)
	return nil
}

func (f *fakeScheduleStore) ReplacePredecessors(_ context.Context, milestoneID int64, ids []int64) error {
	f.replacements[milestoneID] = append([]int64{}, ids...)
	return nil
}

func (f *fakeScheduleStore) BulkCreateMilestones(_ context.Context, _ int64, rows []dto.NewMilestoneRow) ([]dto.PlaceholderMapping, error) {
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	f.bulkCalls = append(f.bulkCalls, rows)
	mappings := make([]dto.PlaceholderMapping, 0, len(rows))
	for _, r := range rows {
		f.nextID++
		mappings = append(mappings, dto.PlaceholderMapping{PlaceholderID: r.PlaceholderID, MilestoneID: f.nextID})
	}
	return mappings, nil
}

func (f *fakeScheduleStore) DeleteMilestone(_ context.Context, id int64) error {
	f.deletes = append(f.deletes, id)
	return nil
}

func milestone(id int64, name string, preds ...int64) dto.MilestoneResponse {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if preds == nil {
		preds = []int64{}
	}
	return dto.MilestoneResponse{
		ID:             id,
		ProjectID:      1,
		TaskName:       name,
		ProjectedStart: dto.NewDate(start),
		ProjectedEnd:   dto.NewDate(start.AddDate(0, 0, 7)),
		Predecessors:   preds,
	}
}

func loadedSession(t *testing.T, store *fakeScheduleStore) *ScheduleSession {
	t.Helper()
	s := NewScheduleSession(store, 1, 0)
	s.now = func() time.Time { return time.Date(2024, 5, 10, 15, 30, 0, 0, time.UTC) }
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("Load 失败: %v", err)
	}
	return s
}

// ── Placeholder ──

func TestPlaceholderID_Sequence(t *testing.T) {
	cases := map[int]string{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA", 701: "ZZ", 702: "AAA"}
	for n, want := range cases {
		if got := PlaceholderID(n); got != want {
			t.Errorf("PlaceholderID(%d) 期望 %s，实际 %s", n, want, got)
		}
	}
}

// ── Load ──

func TestScheduleSession_Load_OnlyOnceWhileNonEmpty(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"))
	s := loadedSession(t, store)

	if err := s.UpdateField(0, FieldTaskName, "详细设计"); err != nil {
		t.Fatalf("UpdateField 失败: %v", err)
	}
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("重复 Load 失败: %v", err)
	}

	if store.listCalls != 1 {
		t.Errorf("工作集非空时不应再次查询，实际查询 %d 次", store.listCalls)
	}
	if rows := s.Rows(); rows[0].TaskName != "详细设计" {
		t.Errorf("进行中的编辑被覆盖: %s", rows[0].TaskName)
	}
}

// ── AddRow ──

func TestScheduleSession_AddRow_Defaults(t *testing.T) {
	s := loadedSession(t, newFakeScheduleStore())

	row, err := s.AddRow()
	if err != nil {
		t.Fatalf("AddRow 失败: %v", err)
	}

	if row.PlaceholderID != "A" {
		t.Errorf("期望临时 ID A，实际 %s", row.PlaceholderID)
	}
	wantStart := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	if !row.ProjectedStart.Equal(wantStart) {
		t.Errorf("预计开始应为今天，实际 %v", row.ProjectedStart)
	}
	if !row.ProjectedEnd.Equal(wantStart.AddDate(0, 0, 1)) {
		t.Errorf("预计结束应为明天，实际 %v", row.ProjectedEnd)
	}
	if row.TaskName != "" || len(row.Predecessors) != 0 {
		t.Error("新行名称与前驱应为空")
	}
}

func TestScheduleSession_AddRow_SkipsPlaceholderInUse(t *testing.T) {
	s := loadedSession(t, newFakeScheduleStore())
	ctx := context.Background()

	s.AddRow() // A
	s.AddRow() // B
	if err := s.DeleteRow(ctx, "A"); err != nil {
		t.Fatalf("DeleteRow 失败: %v", err)
	}
	row, _ := s.AddRow()

	if row.PlaceholderID != "C" {
		t.Errorf("B 仍在使用，期望 C，实际 %s", row.PlaceholderID)
	}
}

// ── UpdateField / ClearDate ──

func TestScheduleSession_UpdateField_OnlyTouchesTargetRow(t *testing.T) {
	s := loadedSession(t, newFakeScheduleStore(milestone(1, "设计"), milestone(2, "实施")))

	if err := s.UpdateField(1, FieldActualStart, "2024-03-04"); err != nil {
		t.Fatalf("UpdateField 失败: %v", err)
	}

	rows := s.Rows()
	if rows[0].Dirty || rows[0].ActualStart != nil {
		t.Error("其他行不应被修改")
	}
	if !rows[1].Dirty || rows[1].ActualStart == nil || rows[1].ActualStart.Format(dto.DateLayout) != "2024-03-04" {
		t.Errorf("目标行未正确更新: %+v", rows[1])
	}
}

func TestScheduleSession_UpdateField_Errors(t *testing.T) {
	s := loadedSession(t, newFakeScheduleStore(milestone(1, "设计")))

	if err := s.UpdateField(5, FieldTaskName, "x"); !errors.Is(err, ErrRowIndex) {
		t.Errorf("期望 ErrRowIndex，实际: %v", err)
	}
	if err := s.UpdateField(0, FieldProjectedEnd, "03/04/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("期望 ErrInvalidDate，实际: %v", err)
	}
	if err := s.UpdateField(0, Field("budget"), "1"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("期望 ErrUnknownField，实际: %v", err)
	}
	if s.Rows()[0].Dirty {
		t.Error("失败的修改不应标记行")
	}
}

func TestScheduleSession_ClearDate(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"))
	s := loadedSession(t, store)
	s.UpdateField(0, FieldActualEnd, "2024-03-09")

	if err := s.ClearDate(0, FieldActualEnd); err != nil {
		t.Fatalf("ClearDate 失败: %v", err)
	}
	if row := s.Rows()[0]; row.ActualEnd != nil || !row.Dirty {
		t.Errorf("实际结束应为空且行已标记: %+v", row)
	}
	if err := s.ClearDate(0, FieldProjectedStart); !errors.Is(err, ErrRequiredDate) {
		t.Errorf("期望 ErrRequiredDate，实际: %v", err)
	}
	if err := s.ClearDate(0, FieldTaskName); !errors.Is(err, ErrNotDateField) {
		t.Errorf("期望 ErrNotDateField，实际: %v", err)
	}
}

// ── Save ──

func TestScheduleSession_Save_TwoNewRowsSingleBulkInsert(t *testing.T) {
	store := newFakeScheduleStore()
	s := loadedSession(t, store)

	s.AddRow()
	s.AddRow()
	result, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	if len(store.bulkCalls) != 1 {
		t.Fatalf("期望 1 次批量插入，实际 %d", len(store.bulkCalls))
	}
	batch := store.bulkCalls[0]
	if len(batch) != 2 || batch[0].PlaceholderID != "A" || batch[1].PlaceholderID != "B" {
		t.Errorf("批量插入内容不正确: %+v", batch)
	}
	if len(store.updates) != 0 {
		t.Errorf("不应有更新调用，实际 %v", store.updates)
	}
	if len(result.Created) != 2 {
		t.Errorf("期望 2 条映射，实际 %d", len(result.Created))
	}
	for _, row := range s.Rows() {
		if row.IsNew() || row.PlaceholderID != "" {
			t.Errorf("保存后不应残留临时 ID: %+v", row)
		}
	}
}

func TestScheduleSession_Save_PlaceholderRowsNeverUpdated(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"))
	s := loadedSession(t, store)

	row, _ := s.AddRow()
	s.UpdateField(1, FieldTaskName, "验收")
	s.UpdateField(1, FieldPredecessors, "1")

	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	if len(store.updates) != 0 {
		t.Errorf("新行只走批量插入，实际更新了 %v", store.updates)
	}
	if len(store.replacements) != 0 {
		t.Errorf("新行的前驱边随批量插入写入，不应单独替换: %v", store.replacements)
	}
	got := store.bulkCalls[0][0]
	if got.PlaceholderID != row.PlaceholderID || !reflect.DeepEqual(got.Predecessors, []int64{1}) {
		t.Errorf("批量插入行不正确: %+v", got)
	}
}

func TestScheduleSession_Save_UnchangedPredecessorsNotRelinked(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"), milestone(2, "实施", 1))
	s := loadedSession(t, store)

	s.UpdateField(1, FieldTaskName, "实施一期")
	s.UpdateField(1, FieldPredecessors, " 1 ")

	result, err := s.Save(context.Background())
	if err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	if !reflect.DeepEqual(store.updates, []int64{2}) {
		t.Errorf("期望只更新里程碑 2，实际 %v", store.updates)
	}
	if len(store.replacements) != 0 || len(result.Relinked) != 0 {
		t.Errorf("前驱未变化时不应触碰依赖边: %v", store.replacements)
	}
}

func TestScheduleSession_Save_RenamedRowUpdatedWithoutDirtyFlag(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"))
	s := loadedSession(t, store)

	// 绕过 UpdateField 只改名称，不设置脏标记
	s.mu.Lock()
	s.rows[0].TaskName = "概要设计"
	s.mu.Unlock()

	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if !reflect.DeepEqual(store.updates, []int64{1}) {
		t.Errorf("名称变化应触发更新，实际 %v", store.updates)
	}
}

func TestScheduleSession_Save_PredecessorTextReconciled(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "a"), milestone(3, "b"), milestone(7, "c"), milestone(9, "d"), milestone(12, "e", 1))
	s := loadedSession(t, store)

	if err := s.UpdateField(4, FieldPredecessors, "3, 7, abc, 9"); err != nil {
		t.Fatalf("UpdateField 失败: %v", err)
	}
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	if got := store.replacements[12]; !reflect.DeepEqual(got, []int64{3, 7, 9}) {
		t.Errorf("期望前驱 [3 7 9]，实际 %v", got)
	}
	if label := s.Rows()[4].PredecessorLabel; label != "3, 7, 9" {
		t.Errorf("期望展示文本 \"3, 7, 9\"，实际 %q", label)
	}
}

func TestScheduleSession_Save_ExistingRowReferencesNewRow(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"))
	s := loadedSession(t, store)

	s.AddRow() // A → 101
	if err := s.UpdateField(0, FieldPredecessors, "A"); err != nil {
		t.Fatalf("UpdateField 失败: %v", err)
	}
	if _, err := s.Save(context.Background()); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}

	if got := store.replacements[1]; !reflect.DeepEqual(got, []int64{101}) {
		t.Errorf("临时 ID 应解析为新里程碑 ID，实际 %v", got)
	}
}

func TestScheduleSession_Save_BulkFailureKeepsWorkingSet(t *testing.T) {
	store := newFakeScheduleStore()
	store.bulkErr = errors.New("db down")
	s := loadedSession(t, store)
	s.AddRow()

	if _, err := s.Save(context.Background()); err == nil {
		t.Fatal("期望保存失败")
	}
	if rows := s.Rows(); len(rows) != 1 || rows[0].PlaceholderID != "A" {
		t.Errorf("失败后新行应保留: %+v", rows)
	}
}

// ── DeleteRow ──

func TestScheduleSession_DeleteRow_PlaceholderIsLocalOnly(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"))
	s := loadedSession(t, store)
	s.AddRow()
	s.AddRow()
	s.UpdateField(2, FieldPredecessors, "A, 1")

	if err := s.DeleteRow(context.Background(), "a"); err != nil {
		t.Fatalf("DeleteRow 失败: %v", err)
	}

	if len(store.deletes) != 0 {
		t.Errorf("临时行不应访问存储，实际删除 %v", store.deletes)
	}
	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("期望剩余 2 行，实际 %d", len(rows))
	}
	if len(rows[1].PredecessorPlaceholders) != 0 || rows[1].PredecessorLabel != "1" {
		t.Errorf("对已删除临时行的引用应被清理: %+v", rows[1])
	}
}

func TestScheduleSession_DeleteRow_PersistedCascades(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"), milestone(2, "实施", 1))
	s := loadedSession(t, store)
	ctx := context.Background()

	if err := s.DeleteRow(ctx, "1"); err != nil {
		t.Fatalf("DeleteRow 失败: %v", err)
	}
	if !reflect.DeepEqual(store.deletes, []int64{1}) {
		t.Errorf("期望删除里程碑 1，实际 %v", store.deletes)
	}

	rows := s.Rows()
	if len(rows) != 1 || len(rows[0].Predecessors) != 0 {
		t.Errorf("本地前驱引用应被移除: %+v", rows)
	}

	// 存储侧已级联删除，保存时不应再替换依赖边
	if _, err := s.Save(ctx); err != nil {
		t.Fatalf("Save 失败: %v", err)
	}
	if len(store.replacements) != 0 {
		t.Errorf("不应替换依赖边: %v", store.replacements)
	}
}

func TestScheduleSession_DeleteRow_Unknown(t *testing.T) {
	s := loadedSession(t, newFakeScheduleStore(milestone(1, "设计")))

	if err := s.DeleteRow(context.Background(), "Q"); !errors.Is(err, ErrRowNotFound) {
		t.Errorf("期望 ErrRowNotFound，实际: %v", err)
	}
	if err := s.DeleteRow(context.Background(), "3.5"); !errors.Is(err, ErrInvalidRowID) {
		t.Errorf("期望 ErrInvalidRowID，实际: %v", err)
	}
}

// ── Close ──

func TestScheduleSession_Close_SavesThenClears(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"))
	s := loadedSession(t, store)
	s.UpdateField(0, FieldTaskName, "详细设计")

	if _, err := s.Close(context.Background(), true); err != nil {
		t.Fatalf("Close 失败: %v", err)
	}

	if len(store.updates) != 1 {
		t.Errorf("didSave 时应先保存，实际更新 %v", store.updates)
	}
	if len(s.Rows()) != 0 {
		t.Error("关闭后工作集应被清空")
	}
	if _, err := s.AddRow(); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("期望 ErrSessionClosed，实际: %v", err)
	}
}

func TestScheduleSession_Close_DelayedClear(t *testing.T) {
	store := newFakeScheduleStore(milestone(1, "设计"))
	s := NewScheduleSession(store, 1, 200*time.Millisecond)
	s.Load(context.Background())

	if _, err := s.Close(context.Background(), false); err != nil {
		t.Fatalf("Close 失败: %v", err)
	}
	if len(s.Rows()) != 1 {
		t.Error("延迟到期前工作集应保留")
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(s.Rows()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("延迟到期后工作集未清空")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(store.updates) != 0 {
		t.Error("didSave 为 false 时不应保存")
	}
}
