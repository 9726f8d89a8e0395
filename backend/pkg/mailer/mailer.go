package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"contract-tracker/backend/config"
)

var ErrNoRecipients = errors.New("收件人列表为空")

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, to []string, subject, body string) error
}

// New 根据配置选择实现：启用 SMTP 时走 go-mail，否则仅写日志
func New(cfg *config.MailConfig, logger *zap.Logger) Mailer {
	if !cfg.Enabled {
		return &logMailer{logger: logger}
	}
	return &smtpMailer{cfg: cfg, logger: logger}
}

// ── SMTP 实现 ──

type smtpMailer struct {
	cfg    *config.MailConfig
	logger *zap.Logger
}

func (m *smtpMailer) Send(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("设置发件人失败: %w", err)
	}
	if err := msg.To(to...); err != nil {
		return fmt.Errorf("设置收件人失败: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("创建 SMTP 客户端失败: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}

	m.logger.Info("邮件已发送", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// ── 日志实现（未启用邮件时） ──

type logMailer struct {
	logger *zap.Logger
}

func (m *logMailer) Send(_ context.Context, to []string, subject, _ string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	m.logger.Info("邮件未启用，跳过发送", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}
