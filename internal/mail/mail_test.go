package mail

import (
	"errors"
	"testing"
	"time"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/model"
)

func newTestSender(to []string, fail map[string]bool) (*Sender, *[]*email.Email) {
	s := NewSender(Options{Host: "smtp.example.com", Port: 465, User: "bot@example.com", To: to}, logger.Discard())
	var sent []*email.Email
	s.send = func(e *email.Email) error {
		if fail[e.To[0]] {
			return errors.New("refused")
		}
		sent = append(sent, e)
		return nil
	}
	return s, &sent
}

func TestNotifyTraining_Success(t *testing.T) {
	s, sent := newTestSender([]string{"a@example.com", " ", " b@example.com"}, nil)
	resp := model.TrainResponse{
		Samples:   250,
		TrainedAt: time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
		Metrics: map[string]model.ModelMetrics{
			model.ModelStacking: {Accuracy: 0.9, AUC: model.Some(0.95)},
			model.ModelLogistic: {Accuracy: 0.8},
		},
	}
	require.NoError(t, s.NotifyTraining("schedule", resp, nil))
	require.Len(t, *sent, 2)

	e := (*sent)[0]
	assert.Equal(t, "bot@example.com", e.From)
	assert.Equal(t, []string{"a@example.com"}, e.To)
	assert.Equal(t, []string{"b@example.com"}, (*sent)[1].To)
	assert.Contains(t, e.Subject, "训练完成")
	body := string(e.HTML)
	assert.Contains(t, body, "250")
	assert.Contains(t, body, "2024-05-01 03:00:00")
	assert.Contains(t, body, "0.9500")
	assert.Contains(t, body, "<td>-</td>")
}

func TestNotifyTraining_FailureEscaped(t *testing.T) {
	s, sent := newTestSender([]string{"a@example.com"}, nil)
	require.NoError(t, s.NotifyTraining("manual", model.TrainResponse{}, errors.New("bad <data>")))
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].Subject, "训练失败")
	assert.Contains(t, string((*sent)[0].HTML), "bad &lt;data&gt;")
}

func TestNotifyTraining_PartialFailure(t *testing.T) {
	s, sent := newTestSender([]string{"a@example.com", "b@example.com"}, map[string]bool{"a@example.com": true})
	err := s.NotifyTraining("manual", model.TrainResponse{}, nil)
	assert.ErrorContains(t, err, "a@example.com")
	assert.Len(t, *sent, 1)
}

func TestNotifyTraining_NoRecipients(t *testing.T) {
	s, _ := newTestSender(nil, nil)
	assert.Error(t, s.NotifyTraining("manual", model.TrainResponse{}, nil))
}
