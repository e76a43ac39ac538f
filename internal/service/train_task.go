package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/model"
)

// 任务状态
const (
	TaskPending  = "pending"
	TaskRunning  = "running"
	TaskDone     = "done"
	TaskFailed   = "failed"
	TaskCanceled = "canceled"
)

// TrainFunc 执行一次训练
type TrainFunc func(ctx context.Context, trigger string) (model.TrainResponse, error)

type TrainTaskStatus struct {
	TaskID     string               `json:"task_id"`
	Status     string               `json:"status"`
	Trigger    string               `json:"trigger"`
	Result     *model.TrainResponse `json:"result,omitempty"`
	Error      string               `json:"error,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	ExpiresAt  time.Time            `json:"expires_at"`
}

type trainTask struct {
	id         string
	status     string
	trigger    string
	requestID  string
	result     *model.TrainResponse
	err        string
	cancel     context.CancelFunc
	createdAt  time.Time
	finishedAt time.Time
	expiresAt  time.Time
}

// TrainTasks 后台训练任务；同一时间最多一个任务在排队或运行
type TrainTasks struct {
	mu         sync.Mutex
	tasks      map[string]*trainTask
	requestMap map[string]string
	active     string

	train   TrainFunc
	ttl     time.Duration
	timeout time.Duration
	log     *logrus.Entry
	wg      sync.WaitGroup
}

// NewTrainTasks ttl 为任务结果保留时间，timeout<=0 表示不限时
func NewTrainTasks(train TrainFunc, ttl, timeout time.Duration, log logrus.FieldLogger) *TrainTasks {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &TrainTasks{
		tasks:      make(map[string]*trainTask),
		requestMap: make(map[string]string),
		train:      train,
		ttl:        ttl,
		timeout:    timeout,
		log:        logger.Component(log, "train_task"),
	}
}

// Create 创建训练任务；已有任务在进行或 requestID 重复时返回已有任务，created=false
func (m *TrainTasks) Create(trigger, requestID string) (TrainTaskStatus, bool) {
	requestID = strings.TrimSpace(requestID)
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupExpiredLocked(now)

	if requestID != "" {
		if id, ok := m.requestMap[requestID]; ok {
			if t, ok := m.tasks[id]; ok {
				return t.statusLocked(), false
			}
			delete(m.requestMap, requestID)
		}
	}
	if t, ok := m.tasks[m.active]; ok {
		return t.statusLocked(), false
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), m.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	t := &trainTask{
		id:        uuid.NewString(),
		status:    TaskPending,
		trigger:   trigger,
		requestID: requestID,
		cancel:    cancel,
		createdAt: now,
		expiresAt: now.Add(m.ttl),
	}
	m.tasks[t.id] = t
	m.active = t.id
	if requestID != "" {
		m.requestMap[requestID] = t.id
	}

	m.wg.Add(1)
	go m.run(ctx, t)
	return t.statusLocked(), true
}

// Get 查询任务
func (m *TrainTasks) Get(id string) (TrainTaskStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupExpiredLocked(time.Now())
	t, ok := m.tasks[id]
	if !ok {
		return TrainTaskStatus{}, false
	}
	return t.statusLocked(), true
}

// Cancel 取消排队或运行中的任务，已结束的任务原样返回
// 活动槽位在训练函数返回后由 run 释放
func (m *TrainTasks) Cancel(id string) (TrainTaskStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupExpiredLocked(time.Now())
	t, ok := m.tasks[id]
	if !ok {
		return TrainTaskStatus{}, false
	}
	switch t.status {
	case TaskDone, TaskFailed, TaskCanceled:
	default:
		t.status = TaskCanceled
		t.err = "任务已取消"
		t.finishedAt = time.Now()
		t.cancel()
	}
	return t.statusLocked(), true
}

// Wait 等待所有任务结束，关闭服务时使用
func (m *TrainTasks) Wait() {
	m.wg.Wait()
}

// Shutdown 取消全部未结束任务并等待
func (m *TrainTasks) Shutdown() {
	m.mu.Lock()
	for _, t := range m.tasks {
		if t.status == TaskPending || t.status == TaskRunning {
			t.cancel()
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *TrainTasks) run(ctx context.Context, t *trainTask) {
	defer m.wg.Done()
	defer t.cancel()

	m.mu.Lock()
	if t.status != TaskPending {
		m.releaseLocked(t)
		m.mu.Unlock()
		return
	}
	t.status = TaskRunning
	m.mu.Unlock()

	log := m.log.WithFields(logrus.Fields{"task_id": t.id, "trigger": t.trigger})
	log.Info("训练任务开始")
	resp, err := m.train(ctx, t.trigger)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.releaseLocked(t)
	if t.status == TaskCanceled {
		log.Info("训练任务已取消")
		return
	}
	t.finishedAt = time.Now()
	t.expiresAt = t.finishedAt.Add(m.ttl)
	if err != nil {
		t.status = TaskFailed
		t.err = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			t.err = "训练超时"
		}
		log.WithError(err).Warn("训练任务失败")
		// 训练本身成功、仅保存失败时仍返回指标
		if len(resp.Metrics) > 0 {
			t.result = &resp
		}
	} else {
		t.status = TaskDone
		t.result = &resp
		log.Info("训练任务完成")
	}
}

func (m *TrainTasks) releaseLocked(t *trainTask) {
	if m.active == t.id {
		m.active = ""
	}
}

func (m *TrainTasks) cleanupExpiredLocked(now time.Time) {
	for id, t := range m.tasks {
		if t.status == TaskPending || t.status == TaskRunning || id == m.active {
			continue
		}
		if now.After(t.expiresAt) {
			delete(m.tasks, id)
			if t.requestID != "" && m.requestMap[t.requestID] == id {
				delete(m.requestMap, t.requestID)
			}
		}
	}
}

func (t *trainTask) statusLocked() TrainTaskStatus {
	out := TrainTaskStatus{
		TaskID:    t.id,
		Status:    t.status,
		Trigger:   t.trigger,
		Result:    t.result,
		Error:     t.err,
		CreatedAt: t.createdAt,
		ExpiresAt: t.expiresAt,
	}
	if !t.finishedAt.IsZero() {
		ft := t.finishedAt
		out.FinishedAt = &ft
	}
	return out
}
