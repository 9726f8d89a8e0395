package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"contract-tracker/backend/internal/dto"
	"contract-tracker/backend/internal/model"
)

const testBaseURL = "https://tracker.example.com"

func setupTestProjectService() (ProjectService, *testRepos, *mockNotifier) {
	repo, mocks := newTestRepo()
	ctx := context.Background()
	_ = mocks.user.Create(ctx, &model.User{Name: "管理员", Email: "admin@example.com", Role: model.RoleAdmin})
	_ = mocks.user.Create(ctx, &model.User{Name: "成员甲", Email: "a@example.com", Role: model.RoleIPTMember})
	_ = mocks.user.Create(ctx, &model.User{Name: "成员乙", Email: "b@example.com", Role: model.RoleIPTMember})

	notifier := &mockNotifier{}
	return NewProjectService(repo, notifier, testBaseURL, zap.NewNop()), mocks, notifier
}

func TestCreateProject(t *testing.T) {
	svc, mocks, _ := setupTestProjectService()

	resp, err := svc.Create(context.Background(), &dto.CreateProjectRequest{
		ProjectName: "雷达升级",
		ProjectType: "PROGRAM",
	}, 1)
	if err != nil {
		t.Fatalf("创建项目失败: %v", err)
	}
	if resp.ProjectStatus != model.StatusPreAward || resp.Version != 1 {
		t.Errorf("新项目应为 PRE_AWARD 且版本为 1: %+v", resp)
	}
	if mocks.history.count(EntityProject, model.ActionCreate) != 1 {
		t.Error("应写入一条审计日志")
	}
}

func TestUpdateProject_VersionConflict(t *testing.T) {
	svc, mocks, _ := setupTestProjectService()
	ctx := context.Background()
	id := mocks.seedProject("雷达升级")

	name := "雷达升级二期"
	resp, err := svc.Update(ctx, id, &dto.UpdateProjectRequest{ProjectName: &name, Version: 1}, 1)
	if err != nil {
		t.Fatalf("更新项目失败: %v", err)
	}
	if resp.Version != 2 || resp.ProjectName != name {
		t.Errorf("更新结果不正确: %+v", resp)
	}

	// 使用旧版本号再次更新
	if _, err := svc.Update(ctx, id, &dto.UpdateProjectRequest{ProjectName: &name, Version: 1}, 1); !errors.Is(err, ErrVersionConflict) {
		t.Errorf("期望 ErrVersionConflict，实际 %v", err)
	}
}

func TestAddMember_NotifiesOnce(t *testing.T) {
	svc, _, notifier := setupTestProjectService()
	ctx := context.Background()
	resp, _ := svc.Create(ctx, &dto.CreateProjectRequest{ProjectName: "雷达升级", ProjectType: "PROJECT"}, 1)

	if err := svc.AddMember(ctx, resp.ID, 2, 1); err != nil {
		t.Fatalf("添加成员失败: %v", err)
	}
	if err := svc.AddMember(ctx, resp.ID, 2, 1); err != nil {
		t.Fatalf("重复添加应视为成功: %v", err)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("期望发送 1 封通知，实际 %d", len(notifier.sent))
	}
	n := notifier.sent[0]
	if n.event != EventMemberAdded || len(n.recipients) != 1 || n.recipients[0] != "a@example.com" {
		t.Errorf("通知内容不正确: %+v", n)
	}
	if !strings.Contains(n.body, testBaseURL) {
		t.Errorf("通知正文应包含项目链接: %s", n.body)
	}
}

func TestAddMember_UnknownUser(t *testing.T) {
	svc, mocks, notifier := setupTestProjectService()
	id := mocks.seedProject("雷达升级")

	if err := svc.AddMember(context.Background(), id, 99, 1); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("期望 ErrUserNotFound，实际 %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Error("失败时不应发送通知")
	}
}

func TestRemoveMember(t *testing.T) {
	svc, mocks, _ := setupTestProjectService()
	ctx := context.Background()
	id := mocks.seedProject("雷达升级")
	_ = svc.AddMember(ctx, id, 2, 1)

	if err := svc.RemoveMember(ctx, id, 3, 1); !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("期望 ErrMemberNotFound，实际 %v", err)
	}
	if err := svc.RemoveMember(ctx, id, 2, 1); err != nil {
		t.Fatalf("移除成员失败: %v", err)
	}
	members, _ := svc.ListMembers(ctx, id)
	if len(members) != 0 {
		t.Errorf("成员应已移除，实际 %+v", members)
	}
}

func TestToggleFavorite_AndList(t *testing.T) {
	svc, mocks, _ := setupTestProjectService()
	ctx := context.Background()
	a := mocks.seedProject("雷达升级")
	mocks.seedProject("卫星通信")

	resp, err := svc.ToggleFavorite(ctx, a, 2)
	if err != nil {
		t.Fatalf("收藏失败: %v", err)
	}
	if !resp.IsFavorite {
		t.Error("第一次切换应为已收藏")
	}

	items, total, err := svc.List(ctx, &dto.ProjectListRequest{FavoritesOnly: true}, 2)
	if err != nil {
		t.Fatalf("列出项目失败: %v", err)
	}
	if total != 1 || len(items) != 1 || items[0].ID != a || !items[0].IsFavorite {
		t.Errorf("收藏列表不正确: %+v", items)
	}
	if !items[0].ApprovedTotal.Equal(decimal.Zero) {
		t.Errorf("合计应为 0: %s", items[0].ApprovedTotal)
	}

	// 其他用户看不到该收藏
	items, _, _ = svc.List(ctx, &dto.ProjectListRequest{}, 3)
	for _, it := range items {
		if it.IsFavorite {
			t.Errorf("收藏按用户隔离，项目 %d 不应标记为收藏", it.ID)
		}
	}

	resp, _ = svc.ToggleFavorite(ctx, a, 2)
	if resp.IsFavorite {
		t.Error("第二次切换应取消收藏")
	}
}

func TestDeleteProject_NotFound(t *testing.T) {
	svc, _, _ := setupTestProjectService()

	if err := svc.Delete(context.Background(), 42, 1); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("期望 ErrProjectNotFound，实际 %v", err)
	}
}
