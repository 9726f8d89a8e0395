package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"contract-tracker/backend/pkg/mailer"
	"contract-tracker/backend/pkg/metrics"
)

// 通知事件
const (
	EventMemberAdded          = "member_added"
	EventContractStatusChange = "contract_status_changed"
)

const notifyTimeout = 30 * time.Second

// Notifier IPT 通知接口。调用方不等待结果，失败只记录日志
type Notifier interface {
	Notify(ctx context.Context, event string, recipients []string, subject, body string)
}

type mailNotifier struct {
	mailer mailer.Mailer
	logger *zap.Logger
}

// NewNotifier 创建基于邮件的 Notifier
func NewNotifier(m mailer.Mailer, logger *zap.Logger) Notifier {
	return &mailNotifier{mailer: m, logger: logger}
}

// Notify 在后台协程中发送；请求结束后继续执行，受独立超时约束
func (n *mailNotifier) Notify(ctx context.Context, event string, recipients []string, subject, body string) {
	if len(recipients) == 0 {
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		err := n.mailer.Send(sendCtx, recipients, subject, body)
		metrics.RecordNotification(event, err)
		if err != nil {
			n.logger.Warn("发送通知邮件失败",
				zap.String("event", event),
				zap.Int("recipients", len(recipients)),
				zap.Error(err),
			)
		}
	}()
}
