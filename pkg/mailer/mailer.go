package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"regdesk/config"
)

//go:embed templates/*.html
var templatesFS embed.FS

var approvedTmpl = template.Must(template.ParseFS(templatesFS, "templates/account_approved.html"))

const approvedSubject = "Account approved"

// Mailer SMTP 邮件发送器
type Mailer struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

// New 创建 Mailer；未配置 smtp_host 时返回 nil（邮件功能关闭）
func New(cfg *config.MailConfig, logger *zap.Logger) *Mailer {
	if cfg == nil || !cfg.Enabled() {
		return nil
	}
	return &Mailer{cfg: *cfg, logger: logger}
}

// Timeout 单次投递超时
func (m *Mailer) Timeout() time.Duration {
	if m.cfg.Timeout <= 0 {
		return 10 * time.Second
	}
	return m.cfg.Timeout
}

// SendPassword 将审批生成的一次性密码发送给申请人
// 失败只返回错误，不记录密码明文
func (m *Mailer) SendPassword(ctx context.Context, to, name, password string) error {
	body, err := renderApproved(name, password)
	if err != nil {
		return err
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("mailer: 发件人无效: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("mailer: 收件人无效: %w", err)
	}
	msg.Subject(approvedSubject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTimeout(m.Timeout()),
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
		return fmt.Errorf("mailer: 创建 SMTP 客户端失败: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("mailer: 发送失败: %w", err)
	}

	m.logger.Info("审批通知邮件已发送", zap.String("to", to))
	return nil
}

// renderApproved 渲染审批通过邮件正文
func renderApproved(name, password string) (string, error) {
	var buf bytes.Buffer
	err := approvedTmpl.Execute(&buf, struct {
		Name     string
		Password string
	}{Name: name, Password: password})
	if err != nil {
		return "", fmt.Errorf("mailer: 渲染模板失败: %w", err)
	}
	return buf.String(), nil
}
