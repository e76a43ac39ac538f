// Package scheduler 定时重新训练模型
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/model"
)

// Retrainer 执行训练，*service.ModelService 实现
type Retrainer interface {
	Retrain(ctx context.Context, trigger string) (model.TrainResponse, error)
}

// Options 调度配置
type Options struct {
	Schedule      string // 标准5段 cron 表达式
	RetryCount    int
	RetryInterval time.Duration
	Timeout       time.Duration // 单次训练超时，<=0 不限
	Trigger       string
}

// Scheduler 按 cron 表达式重新训练，失败时按间隔重试
type Scheduler struct {
	opts      Options
	retrainer Retrainer
	cron      *cron.Cron
	log       *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建调度器
func New(r Retrainer, opts Options, log logrus.FieldLogger) *Scheduler {
	if opts.Trigger == "" {
		opts.Trigger = "schedule"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		opts:      opts,
		retrainer: r,
		cron:      cron.New(),
		log:       logger.Component(log, "scheduler"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start 注册任务并启动
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.opts.Schedule, func() {
		s.wg.Add(1)
		defer s.wg.Done()
		s.RunOnce(s.ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"schedule": s.opts.Schedule,
		"next_run": s.cron.Entry(id).Next.Format("2006-01-02 15:04:05"),
	}).Info("定时训练已启动")
	return nil
}

// Stop 停止调度，中断等待中的重试并等待正在执行的训练结束
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.log.Info("定时训练已停止")
}

// RunOnce 训练一次（带重试），返回是否成功
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	for i := 0; i <= s.opts.RetryCount; i++ {
		if i > 0 {
			s.log.Infof("第 %d 次重试训练...", i)
		} else {
			s.log.Info("开始定时训练")
		}

		err := s.train(ctx)
		if err == nil {
			s.log.Info("定时训练完成")
			return true
		}
		s.log.WithError(err).Warn("定时训练失败")
		if ctx.Err() != nil {
			return false
		}
		if i < s.opts.RetryCount {
			s.log.Infof("将在 %v 后重试", s.opts.RetryInterval)
			select {
			case <-time.After(s.opts.RetryInterval):
			case <-ctx.Done():
				return false
			}
		}
	}
	s.log.Errorf("定时训练失败，已重试 %d 次", s.opts.RetryCount)
	return false
}

func (s *Scheduler) train(ctx context.Context) error {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}
	_, err := s.retrainer.Retrain(ctx, s.opts.Trigger)
	return err
}
