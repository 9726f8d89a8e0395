package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"contract-tracker/backend/pkg/metrics"
)

// 会话类型
const (
	KindSchedule = "schedule"
	KindFunding  = "funding"
)

// ErrSessionNotFound 会话不存在、已过期或不属于当前用户
var ErrSessionNotFound = errors.New("编辑会话不存在或已过期")

type entry struct {
	kind     string
	userID   int64
	schedule *ScheduleSession
	funding  *FundingMatrix
	lastUsed time.Time
}

// Registry 按不透明 ID 持有各用户打开的编辑会话，空闲超过 ttl 的会话由 Sweep 回收
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*entry
	now     func() time.Time
	logger  *zap.Logger
}

// NewRegistry 创建会话注册表
func NewRegistry(ttl time.Duration, logger *zap.Logger) *Registry {
	return &Registry{
		ttl:     ttl,
		entries: make(map[string]*entry),
		now:     time.Now,
		logger:  logger,
	}
}

// ────────────────────── Schedule ──────────────────────

// OpenSchedule 登记排期编辑会话，返回会话 ID
func (r *Registry) OpenSchedule(userID int64, s *ScheduleSession) string {
	return r.open(&entry{kind: KindSchedule, userID: userID, schedule: s})
}

// Schedule 取出会话并刷新空闲计时
func (r *Registry) Schedule(id string, userID int64) (*ScheduleSession, error) {
	e, err := r.get(id, userID, KindSchedule)
	if err != nil {
		return nil, err
	}
	return e.schedule, nil
}

// ────────────────────── Funding ──────────────────────

// OpenFunding 登记拨款矩阵编辑会话，返回会话 ID
func (r *Registry) OpenFunding(userID int64, m *FundingMatrix) string {
	return r.open(&entry{kind: KindFunding, userID: userID, funding: m})
}

// Funding 取出会话并刷新空闲计时
func (r *Registry) Funding(id string, userID int64) (*FundingMatrix, error) {
	e, err := r.get(id, userID, KindFunding)
	if err != nil {
		return nil, err
	}
	return e.funding, nil
}

// ────────────────────── Remove / Sweep ──────────────────────

// Remove 注销会话。会话对象本身的关闭由调用方负责
func (r *Registry) Remove(id string, userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.userID != userID {
		return
	}
	delete(r.entries, id)
	metrics.SessionClosed(e.kind)
}

// Sweep 回收空闲超时的会话，未保存的修改被丢弃。返回回收数量
func (r *Registry) Sweep() int {
	r.mu.Lock()
	var expired []*entry
	now := r.now()
	for id, e := range r.entries {
		if now.Sub(e.lastUsed) > r.ttl {
			expired = append(expired, e)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, e := range expired {
		switch e.kind {
		case KindSchedule:
			e.schedule.Close(context.Background(), false)
		case KindFunding:
			e.funding.Close()
		}
		metrics.SessionClosed(e.kind)
	}
	if len(expired) > 0 {
		r.logger.Info("回收过期编辑会话", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run 按 interval 周期执行 Sweep，直到 ctx 取消
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len 当前登记的会话数
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ── 内部辅助方法 ──

func (r *Registry) open(e *entry) string {
	id := uuid.NewString()
	e.lastUsed = r.now()

	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()

	metrics.SessionOpened(e.kind)
	return id
}

func (r *Registry) get(id string, userID int64, kind string) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.userID != userID || e.kind != kind {
		return nil, ErrSessionNotFound
	}
	e.lastUsed = r.now()
	return e, nil
}
