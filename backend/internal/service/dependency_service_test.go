package service

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
)

var testDay = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func setupTestDependencyService() (DependencyService, *testRepos, int64, []int64) {
	repo, mocks := newTestRepo()
	projectID := mocks.seedProject("雷达升级")
	ids := []int64{
		mocks.seedMilestone(projectID, "需求评审", testDay),
		mocks.seedMilestone(projectID, "方案设计", testDay.AddDate(0, 0, 7)),
		mocks.seedMilestone(projectID, "样机试制", testDay.AddDate(0, 0, 14)),
	}
	return NewDependencyService(repo, zap.NewNop()), mocks, projectID, ids
}

func TestParsePredecessorText(t *testing.T) {
	cases := []struct {
		in   string
		want []int64
	}{
		{"3, 7, abc, 9", []int64{3, 7, 9}},
		{"", []int64{}},
		{" 5 ,5, 2", []int64{5, 2}},
		{"0, -4, 1.5, 8", []int64{8}},
	}
	for _, c := range cases {
		got := ParsePredecessorText(c.in)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ParsePredecessorText(%q) = %v，期望 %v", c.in, got, c.want)
		}
	}
	if label := PredecessorLabel([]int64{3, 7, 9}); label != "3, 7, 9" {
		t.Errorf("展示文本不正确: %q", label)
	}
}

func TestReplacePredecessors(t *testing.T) {
	svc, mocks, _, ids := setupTestDependencyService()
	ctx := context.Background()

	got, err := svc.ReplacePredecessors(ctx, ids[2], []int64{ids[0], ids[1], ids[1]}, 1)
	if err != nil {
		t.Fatalf("替换前驱失败: %v", err)
	}
	if !reflect.DeepEqual(got, []int64{ids[0], ids[1]}) {
		t.Errorf("规范化结果不正确: %v", got)
	}
	if len(mocks.dependency.edges) != 2 {
		t.Errorf("期望 2 条边，实际 %d", len(mocks.dependency.edges))
	}
	if mocks.history.count(EntityDependency, model.ActionUpdate) != 1 {
		t.Error("应写入一条审计日志")
	}

	// 再次替换
	if _, err := svc.ReplacePredecessors(ctx, ids[2], []int64{ids[1]}, 1); err != nil {
		t.Fatalf("替换前驱失败: %v", err)
	}
	preds := mocks.dependency.predecessorsOf(ids[2])
	if !reflect.DeepEqual([]int64(preds), []int64{ids[1]}) {
		t.Errorf("替换后前驱应只剩 %d，实际 %v", ids[1], preds)
	}
}

func TestReplacePredecessors_UnchangedSkipsWrite(t *testing.T) {
	svc, mocks, projectID, ids := setupTestDependencyService()
	mocks.link(projectID, ids[0], ids[2])
	mocks.link(projectID, ids[1], ids[2])

	if _, err := svc.ReplacePredecessors(context.Background(), ids[2], []int64{ids[1], ids[0]}, 1); err != nil {
		t.Fatalf("替换前驱失败: %v", err)
	}
	if mocks.dependency.deleteBySuccessorCalls != 0 || mocks.dependency.batchCreateCalls != 0 {
		t.Error("集合未变化时不应触碰依赖表")
	}
	if len(mocks.history.entries) != 0 {
		t.Error("集合未变化时不应写审计日志")
	}
}

func TestReplacePredecessors_Rejections(t *testing.T) {
	svc, mocks, projectID, ids := setupTestDependencyService()
	mocks.link(projectID, ids[0], ids[2])
	ctx := context.Background()

	if _, err := svc.ReplacePredecessors(ctx, ids[2], []int64{ids[2]}, 1); !errors.Is(err, ErrSelfDependency) {
		t.Errorf("期望 ErrSelfDependency，实际 %v", err)
	}
	if _, err := svc.ReplacePredecessors(ctx, ids[2], []int64{ids[1], 999}, 1); !errors.Is(err, ErrPredecessorNotFound) {
		t.Errorf("期望 ErrPredecessorNotFound，实际 %v", err)
	}
	if _, err := svc.ReplacePredecessors(ctx, 999, []int64{ids[0]}, 1); !errors.Is(err, ErrMilestoneNotFound) {
		t.Errorf("期望 ErrMilestoneNotFound，实际 %v", err)
	}

	// 被拒绝时原有前驱保持不变
	preds := mocks.dependency.predecessorsOf(ids[2])
	if !reflect.DeepEqual([]int64(preds), []int64{ids[0]}) {
		t.Errorf("被拒绝的替换不应修改前驱，实际 %v", preds)
	}
}

func TestAddDependency_Idempotent(t *testing.T) {
	svc, mocks, projectID, ids := setupTestDependencyService()
	ctx := context.Background()
	edge := &dto.DependencyEdge{
		PredecessorProjectID:   projectID,
		PredecessorMilestoneID: ids[0],
		SuccessorProjectID:     projectID,
		SuccessorMilestoneID:   ids[1],
	}

	if err := svc.Add(ctx, edge, 1); err != nil {
		t.Fatalf("添加依赖失败: %v", err)
	}
	if err := svc.Add(ctx, edge, 1); err != nil {
		t.Fatalf("重复添加应视为成功: %v", err)
	}
	if len(mocks.dependency.edges) != 1 {
		t.Errorf("期望 1 条边，实际 %d", len(mocks.dependency.edges))
	}
	if mocks.history.count(EntityDependency, model.ActionCreate) != 1 {
		t.Error("重复添加不应重复写审计日志")
	}
}

func TestAddDependency_ProjectMismatch(t *testing.T) {
	svc, mocks, projectID, ids := setupTestDependencyService()
	other := mocks.seedProject("卫星通信")

	err := svc.Add(context.Background(), &dto.DependencyEdge{
		PredecessorProjectID:   other,
		PredecessorMilestoneID: ids[0],
		SuccessorProjectID:     projectID,
		SuccessorMilestoneID:   ids[1],
	}, 1)
	if !errors.Is(err, ErrDependencyProjectMismatch) {
		t.Errorf("期望 ErrDependencyProjectMismatch，实际 %v", err)
	}
}

func TestAddDependency_CrossProject(t *testing.T) {
	svc, mocks, projectID, ids := setupTestDependencyService()
	other := mocks.seedProject("卫星通信")
	foreign := mocks.seedMilestone(other, "天线交付", testDay)

	err := svc.Add(context.Background(), &dto.DependencyEdge{
		PredecessorProjectID:   other,
		PredecessorMilestoneID: foreign,
		SuccessorProjectID:     projectID,
		SuccessorMilestoneID:   ids[0],
	}, 1)
	if err != nil {
		t.Fatalf("跨项目依赖应允许: %v", err)
	}

	rows, err := svc.ListSuccessors(context.Background(), foreign)
	if err != nil {
		t.Fatalf("查询后继失败: %v", err)
	}
	if len(rows) != 1 || rows[0].SuccessorProjectID != projectID {
		t.Errorf("后继视图不正确: %+v", rows)
	}
}

func TestRemoveDependency_NotFound(t *testing.T) {
	svc, _, projectID, ids := setupTestDependencyService()

	err := svc.Remove(context.Background(), &dto.DependencyEdge{
		PredecessorProjectID:   projectID,
		PredecessorMilestoneID: ids[0],
		SuccessorProjectID:     projectID,
		SuccessorMilestoneID:   ids[1],
	}, 1)
	if !errors.Is(err, ErrDependencyNotFound) {
		t.Errorf("期望 ErrDependencyNotFound，实际 %v", err)
	}
}
