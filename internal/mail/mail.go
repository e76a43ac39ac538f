// Package mail 训练结果邮件通知
package mail

import (
	"crypto/tls"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"

	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/model"
)

// Options SMTP 配置
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Sender 发送训练通知
type Sender struct {
	opts Options
	log  *logrus.Entry
	send func(e *email.Email) error
}

// NewSender 465 端口走 SSL，其余端口走 STARTTLS
func NewSender(opts Options, log logrus.FieldLogger) *Sender {
	if opts.From == "" {
		opts.From = opts.User
	}
	s := &Sender{opts: opts, log: logger.Component(log, "mail")}
	s.send = s.smtpSend
	return s
}

func (s *Sender) smtpSend(e *email.Email) error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	auth := smtp.PlainAuth("", s.opts.User, s.opts.Password, s.opts.Host)
	if s.opts.Port == 465 {
		return e.SendWithTLS(addr, auth, &tls.Config{ServerName: s.opts.Host})
	}
	return e.Send(addr, auth)
}

// NotifyTraining 训练结束后通知所有收件人，逐个发送，返回最后一个错误
func (s *Sender) NotifyTraining(trigger string, resp model.TrainResponse, trainErr error) error {
	if len(s.opts.To) == 0 {
		return fmt.Errorf("未配置通知邮箱 NOTIFY_EMAILS")
	}
	var lastErr error
	for _, to := range s.opts.To {
		to = strings.TrimSpace(to)
		if to == "" {
			continue
		}
		e := s.trainingMessage(to, trigger, resp, trainErr)
		if err := s.send(e); err != nil {
			s.log.WithError(err).WithField("to", to).Error("发送邮件失败")
			lastErr = fmt.Errorf("发送邮件到 %s 失败: %w", to, err)
			continue
		}
		s.log.WithField("to", to).Info("训练通知已发送")
	}
	return lastErr
}

func (s *Sender) trainingMessage(to, trigger string, resp model.TrainResponse, trainErr error) *email.Email {
	e := email.NewEmail()
	e.From = s.opts.From
	e.To = []string{to}

	var b strings.Builder
	b.WriteString(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">`)
	if trainErr != nil {
		e.Subject = "【信用风险评估】模型训练失败"
		fmt.Fprintf(&b, `<h2 style="color: #dc3545;">模型训练失败</h2><p>触发方式：%s</p>`, html.EscapeString(trigger))
		fmt.Fprintf(&b, `<pre style="background: #1e293b; color: #f8fafc; padding: 16px; border-radius: 8px;">%s</pre>`, html.EscapeString(trainErr.Error()))
	} else {
		e.Subject = "【信用风险评估】模型训练完成"
		fmt.Fprintf(&b, `<h2 style="color: #10b981;">模型训练完成</h2><p>触发方式：%s，样本数：%d，完成时间：%s</p>`,
			html.EscapeString(trigger), resp.Samples, resp.TrainedAt.Format("2006-01-02 15:04:05"))
	}
	if len(resp.Metrics) > 0 {
		b.WriteString(metricsTable(resp.Metrics))
	}
	b.WriteString(`<p style="color: #64748b; font-size: 12px; margin-top: 20px;">此邮件由系统自动发送，请勿回复。</p></div>`)
	e.HTML = []byte(b.String())
	return e
}

func metricsTable(m map[string]model.ModelMetrics) string {
	var b strings.Builder
	b.WriteString(`<table style="border-collapse: collapse; width: 100%;">`)
	b.WriteString(`<tr><th align="left">模型</th><th>Accuracy</th><th>Precision</th><th>Recall</th><th>F1</th><th>AUC</th></tr>`)
	for _, name := range model.ModelNames {
		mm, ok := m[name]
		if !ok {
			continue
		}
		auc := "-"
		if mm.AUC.Valid {
			auc = fmt.Sprintf("%.4f", mm.AUC.Value)
		}
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%.4f</td><td>%.4f</td><td>%.4f</td><td>%.4f</td><td>%s</td></tr>`,
			name, mm.Accuracy, mm.Precision, mm.Recall, mm.F1, auc)
	}
	b.WriteString(`</table>`)
	return b.String()
}
