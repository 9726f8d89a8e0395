//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	pkgerrors "contract-tracker/backend/pkg/errors"

	"contract-tracker/backend/internal/model"
	"contract-tracker/backend/internal/repository"
	"contract-tracker/backend/pkg/database"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=tracker password=tracker_password dbname=tracker_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	// 视图与约束只存在于迁移脚本中，不走 AutoMigrate
	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Exit(code)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// setupProject 创建一个项目及两个里程碑，返回清理函数
func setupProject(t *testing.T) (project *model.Project, ms []model.Milestone, cleanup func()) {
	t.Helper()
	ctx := context.Background()

	project = &model.Project{
		ProjectName:   fmt.Sprintf("测试项目-%d", time.Now().UnixNano()),
		ProjectType:   "PROGRAM",
		ProjectStatus: model.StatusPreAward,
	}
	if err := testDB.WithContext(ctx).Create(project).Error; err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}

	ms = []model.Milestone{
		{ProjectID: project.ProjectID, TaskName: "需求评审", ProjectedStart: date(2025, 1, 6), ProjectedEnd: date(2025, 1, 31)},
		{ProjectID: project.ProjectID, TaskName: "方案设计", ProjectedStart: date(2025, 2, 3), ProjectedEnd: date(2025, 3, 14)},
	}
	if err := repository.NewRepository(testDB).Milestone.BatchCreate(ctx, ms); err != nil {
		t.Fatalf("创建里程碑失败: %v", err)
	}

	cleanup = func() {
		testDB.Where("project_id = ?", project.ProjectID).Delete(&model.Project{})
	}
	return
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_RollbackLeavesEdgesIntact(t *testing.T) {
	project, ms, cleanup := setupProject(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	edge := model.MilestoneDependency{
		PredecessorProjectID: project.ProjectID, PredecessorMilestoneID: ms[0].MilestoneID,
		SuccessorProjectID: project.ProjectID, SuccessorMilestoneID: ms[1].MilestoneID,
	}
	if _, err := repo.Dependency.Create(ctx, &edge); err != nil {
		t.Fatalf("创建依赖失败: %v", err)
	}

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx 失败: %v", err)
	}
	txRepo := repo.WithTx(tx)

	if err := txRepo.Dependency.DeleteBySuccessor(ctx, ms[1].MilestoneID); err != nil {
		tx.Rollback()
		t.Fatalf("事务内删除依赖失败: %v", err)
	}
	tx.Rollback()

	preds, err := repo.Dependency.ListPredecessors(ctx, ms[1].MilestoneID)
	if err != nil {
		t.Fatalf("查询前驱失败: %v", err)
	}
	if len(preds) != 1 {
		t.Fatalf("回滚后应保留 1 条前驱，实际 %d", len(preds))
	}
	if preds[0].PredecessorTaskName != "需求评审" {
		t.Errorf("前驱名称不匹配: %s", preds[0].PredecessorTaskName)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Milestone / Dependency
// ═══════════════════════════════════════════════════════════

func TestMilestone_PredecessorsAggregated(t *testing.T) {
	project, ms, cleanup := setupProject(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	edges := []model.MilestoneDependency{{
		PredecessorProjectID: project.ProjectID, PredecessorMilestoneID: ms[0].MilestoneID,
		SuccessorProjectID: project.ProjectID, SuccessorMilestoneID: ms[1].MilestoneID,
	}}
	if err := repo.Dependency.BatchCreate(ctx, edges); err != nil {
		t.Fatalf("批量创建依赖失败: %v", err)
	}
	// 重复插入被忽略
	if err := repo.Dependency.BatchCreate(ctx, edges); err != nil {
		t.Fatalf("重复插入不应报错: %v", err)
	}

	list, err := repo.Milestone.ListByProject(ctx, project.ProjectID)
	if err != nil {
		t.Fatalf("列出里程碑失败: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("期望 2 个里程碑，实际 %d", len(list))
	}
	if len(list[0].Predecessors) != 0 {
		t.Errorf("首个里程碑不应有前驱: %v", list[0].Predecessors)
	}
	if len(list[1].Predecessors) != 1 || list[1].Predecessors[0] != ms[0].MilestoneID {
		t.Errorf("前驱聚合错误: %v", list[1].Predecessors)
	}
}

func TestMilestone_DeleteCascadesEdges(t *testing.T) {
	project, ms, cleanup := setupProject(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	edge := model.MilestoneDependency{
		PredecessorProjectID: project.ProjectID, PredecessorMilestoneID: ms[0].MilestoneID,
		SuccessorProjectID: project.ProjectID, SuccessorMilestoneID: ms[1].MilestoneID,
	}
	if _, err := repo.Dependency.Create(ctx, &edge); err != nil {
		t.Fatalf("创建依赖失败: %v", err)
	}

	if err := repo.Milestone.Delete(ctx, ms[0].MilestoneID); err != nil {
		t.Fatalf("删除里程碑失败: %v", err)
	}

	var count int64
	testDB.Model(&model.MilestoneDependency{}).
		Where("predecessor_milestone_id = ? OR successor_milestone_id = ?", ms[0].MilestoneID, ms[0].MilestoneID).
		Count(&count)
	if count != 0 {
		t.Errorf("删除里程碑后应无残留依赖，实际 %d", count)
	}
}

func TestDependency_SchemaRejectsInvalidEdges(t *testing.T) {
	project, ms, cleanup := setupProject(t)
	defer cleanup()

	other, _, cleanupOther := setupProject(t)
	defer cleanupOther()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	selfLoop := model.MilestoneDependency{
		PredecessorProjectID: project.ProjectID, PredecessorMilestoneID: ms[0].MilestoneID,
		SuccessorProjectID: project.ProjectID, SuccessorMilestoneID: ms[0].MilestoneID,
	}
	if _, err := repo.Dependency.Create(ctx, &selfLoop); err == nil {
		t.Error("自环应被 CHECK 约束拒绝")
	}

	// 后继里程碑不属于边中声明的项目
	wrongProject := model.MilestoneDependency{
		PredecessorProjectID: project.ProjectID, PredecessorMilestoneID: ms[0].MilestoneID,
		SuccessorProjectID: other.ProjectID, SuccessorMilestoneID: ms[1].MilestoneID,
	}
	if _, err := repo.Dependency.Create(ctx, &wrongProject); err == nil {
		t.Error("端点项目不一致应被复合外键拒绝")
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Funding
// ═══════════════════════════════════════════════════════════

func TestFunding_UniqueCellAndFanOutDelete(t *testing.T) {
	project, _, cleanup := setupProject(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	cells := []model.ApprovedFunding{
		{ProjectID: project.ProjectID, FiscalYear: 2025, FundingTypeID: 1, ApprovedAmount: decimal.NewFromInt(100)},
		{ProjectID: project.ProjectID, FiscalYear: 2026, FundingTypeID: 1, ApprovedAmount: decimal.NewFromInt(200)},
		{ProjectID: project.ProjectID, FiscalYear: 2025, FundingTypeID: 2, ApprovedAmount: decimal.Zero},
	}
	if err := repo.Funding.BatchCreate(ctx, cells); err != nil {
		t.Fatalf("批量创建拨款失败: %v", err)
	}

	dup := []model.ApprovedFunding{{ProjectID: project.ProjectID, FiscalYear: 2025, FundingTypeID: 1}}
	if err := repo.Funding.BatchCreate(ctx, dup); err == nil {
		t.Error("重复单元格应被唯一约束拒绝")
	}

	deleted, err := repo.Funding.DeleteByFundingType(ctx, project.ProjectID, 1)
	if err != nil {
		t.Fatalf("删除拨款类型失败: %v", err)
	}
	if deleted != 2 {
		t.Errorf("应删除 2 个单元格，实际 %d", deleted)
	}

	types, err := repo.Funding.ActiveFundingTypes(ctx, project.ProjectID)
	if err != nil {
		t.Fatalf("查询拨款类型失败: %v", err)
	}
	if len(types) != 1 || types[0] != 2 {
		t.Errorf("剩余拨款类型应为 [2]，实际 %v", types)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock / History
// ═══════════════════════════════════════════════════════════

func TestOptimisticLock_Project_ConflictDetected(t *testing.T) {
	project, _, cleanup := setupProject(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	stale := *project
	project.ProjectName = "第一次更新"
	if err := repo.Project.Update(ctx, project); err != nil {
		t.Fatalf("首次更新失败: %v", err)
	}
	if project.Version != 2 {
		t.Errorf("版本号应递增到 2，实际 %d", project.Version)
	}

	stale.ProjectName = "过期更新"
	err := repo.Project.Update(ctx, &stale)
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，得到: %v", err)
	}
}

func TestHistory_CursorPagination(t *testing.T) {
	project, _, cleanup := setupProject(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		entry := &model.ProjectHistory{
			ProjectID: project.ProjectID,
			Entity:    "project",
			Action:    model.ActionUpdate,
			Changes:   []byte(fmt.Sprintf(`{"seq": %d}`, i)),
		}
		if err := repo.History.Create(ctx, entry); err != nil {
			t.Fatalf("写入审计日志失败: %v", err)
		}
	}

	page1, err := repo.History.List(ctx, project.ProjectID, nil, 3)
	if err != nil {
		t.Fatalf("第一页查询失败: %v", err)
	}
	if len(page1) != 3 {
		t.Fatalf("第一页应有 3 行，实际 %d", len(page1))
	}

	cursor := page1[len(page1)-1].HistoryID
	page2, err := repo.History.List(ctx, project.ProjectID, &cursor, 3)
	if err != nil {
		t.Fatalf("第二页查询失败: %v", err)
	}
	if len(page2) != 2 {
		t.Fatalf("第二页应有 2 行，实际 %d", len(page2))
	}
	if page2[0].HistoryID >= cursor {
		t.Errorf("第二页首行 ID 应小于游标 %d，实际 %d", cursor, page2[0].HistoryID)
	}
}
