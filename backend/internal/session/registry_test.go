package session

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestRegistry_OpenAndGet(t *testing.T) {
	r := NewRegistry(time.Minute, zap.NewNop())
	s := NewScheduleSession(newFakeScheduleStore(), 1, 0)

	id := r.OpenSchedule(7, s)
	got, err := r.Schedule(id, 7)
	if err != nil {
		t.Fatalf("Schedule 失败: %v", err)
	}
	if got != s {
		t.Error("取出的会话与登记的不一致")
	}
}

func TestRegistry_OtherUserOrKindNotFound(t *testing.T) {
	r := NewRegistry(time.Minute, zap.NewNop())
	id := r.OpenSchedule(7, NewScheduleSession(newFakeScheduleStore(), 1, 0))

	if _, err := r.Schedule(id, 8); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("其他用户应取不到会话，实际: %v", err)
	}
	if _, err := r.Funding(id, 7); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("类型不匹配应取不到会话，实际: %v", err)
	}
	if _, err := r.Schedule("missing", 7); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("未知 ID 应取不到会话，实际: %v", err)
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry(time.Minute, zap.NewNop())
	id := r.OpenFunding(7, NewFundingMatrix(newFakeFundingStore(), 1))

	r.Remove(id, 8)
	if r.Len() != 1 {
		t.Error("其他用户不能注销会话")
	}
	r.Remove(id, 7)
	if r.Len() != 0 {
		t.Error("会话应已注销")
	}
}

func TestRegistry_SweepExpired(t *testing.T) {
	r := NewRegistry(10*time.Minute, zap.NewNop())
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	stale := NewScheduleSession(newFakeScheduleStore(), 1, 0)
	staleID := r.OpenSchedule(1, stale)
	matrix := NewFundingMatrix(newFakeFundingStore(), 1)
	r.OpenFunding(1, matrix)

	now = now.Add(8 * time.Minute)
	freshID := r.OpenSchedule(2, NewScheduleSession(newFakeScheduleStore(), 2, 0))

	now = now.Add(3 * time.Minute)
	if n := r.Sweep(); n != 2 {
		t.Fatalf("期望回收 2 个会话，实际 %d", n)
	}

	if _, err := r.Schedule(staleID, 1); !errors.Is(err, ErrSessionNotFound) {
		t.Error("过期会话应已回收")
	}
	if !stale.Closed() || !matrix.Closed() {
		t.Error("回收的会话应被关闭")
	}
	if _, err := r.Schedule(freshID, 2); err != nil {
		t.Errorf("未过期会话不应回收: %v", err)
	}
}

func TestRegistry_AccessRefreshesIdleTimer(t *testing.T) {
	r := NewRegistry(10*time.Minute, zap.NewNop())
	now := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	id := r.OpenSchedule(1, NewScheduleSession(newFakeScheduleStore(), 1, 0))
	now = now.Add(9 * time.Minute)
	r.Schedule(id, 1)
	now = now.Add(9 * time.Minute)

	if n := r.Sweep(); n != 0 {
		t.Errorf("访问后空闲计时应重置，实际回收 %d", n)
	}
}
