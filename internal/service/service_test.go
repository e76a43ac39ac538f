package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-risk-backend/internal/cache"
	"credit-risk-backend/internal/ensemble"
	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/model"
	"credit-risk-backend/internal/statement"
	"credit-risk-backend/internal/store"
)

type fakePredictor struct {
	pd        float64
	err       error
	calls     atomic.Int32
	trainedAt time.Time
}

func (p *fakePredictor) Predict(features [model.RatioCount]model.Amount) (model.Predictions, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	out := model.Predictions{}
	for _, name := range model.ModelNames {
		out[name] = model.PredictionResult{PD: p.pd, Label: model.LabelNonDefault}
	}
	return out, nil
}

func (p *fakePredictor) TrainedAt() time.Time { return p.trainedAt }

func statements() model.Statements {
	header := []string{"Chỉ tiêu", "Năm 2022", "Năm 2023"}
	return model.Statements{
		BalanceSheet: &model.StatementTable{Header: header, Rows: [][]string{
			{"Tổng tài sản", "1,000", "1,200"},
			{"Nợ phải trả", "600", "750"},
			{"Vốn chủ sở hữu", "400", "450"},
		}},
		IncomeStatement: &model.StatementTable{Header: header, Rows: [][]string{
			{"Doanh thu thuần", "1,800", "2,000"},
			{"Lợi nhuận gộp", "400", "500"},
			{"Chi phí lãi vay", "-35", "-40"},
			{"Lợi nhuận trước thuế", "120", "150"},
		}},
		CashFlow: &model.StatementTable{Header: header},
	}
}

func TestEvaluate_Pipeline(t *testing.T) {
	p := &fakePredictor{pd: 0.03, trainedAt: time.Unix(100, 0)}
	svc := NewEvaluationService(p, statement.DefaultAliases(), nil, 0, logger.Discard())

	ev, err := svc.Evaluate(statements(), "ACME", SourceJSON)
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.Equal(t, "ACME", ev.CompanyName)
	assert.Equal(t, "low", ev.Classification.Classification)
	assert.Equal(t, "A-BBB", ev.Classification.Rating)
	assert.Len(t, ev.Ratios, model.RatioCount)
	assert.Len(t, ev.Features, model.RatioCount)
	assert.InDelta(t, 0.625, ev.Features["X_5"].Value, 1e-12)
	assert.Len(t, ev.Predictions, 4)
}

func TestEvaluate_MissingStatement(t *testing.T) {
	p := &fakePredictor{pd: 0.03}
	svc := NewEvaluationService(p, statement.DefaultAliases(), nil, 0, logger.Discard())

	st := statements()
	st.CashFlow = nil
	_, err := svc.Evaluate(st, "", SourceJSON)
	assert.ErrorIs(t, err, statement.ErrMissingStatement)
	assert.Zero(t, p.calls.Load())
}

func TestEvaluate_ModelNotReady(t *testing.T) {
	svc := NewEvaluationService(ensemble.New(ensemble.Options{}), statement.DefaultAliases(), nil, 0, logger.Discard())
	_, err := svc.Evaluate(statements(), "", SourceJSON)
	assert.ErrorIs(t, err, ensemble.ErrModelNotReady)
}

func TestEvaluate_Cache(t *testing.T) {
	p := &fakePredictor{pd: 0.25, trainedAt: time.Unix(100, 0)}
	svc := NewEvaluationService(p, statement.DefaultAliases(), cache.NewMemory(10), time.Minute, logger.Discard())

	first, err := svc.Evaluate(statements(), "ACME", SourceJSON)
	require.NoError(t, err)
	second, err := svc.Evaluate(statements(), "ACME", SourceJSON)
	require.NoError(t, err)

	assert.Equal(t, int32(1), p.calls.Load())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Classification, second.Classification)
	assert.Equal(t, "very high", second.Classification.Classification)

	// 公司名不同
	_, err = svc.Evaluate(statements(), "Other", SourceJSON)
	require.NoError(t, err)
	assert.Equal(t, int32(2), p.calls.Load())

	// 模型重新训练后缓存失效
	p.trainedAt = time.Unix(200, 0)
	_, err = svc.Evaluate(statements(), "ACME", SourceJSON)
	require.NoError(t, err)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestEvaluateWorkbook_BadInput(t *testing.T) {
	svc := NewEvaluationService(&fakePredictor{}, statement.DefaultAliases(), nil, 0, logger.Discard())
	_, err := svc.EvaluateWorkbook(strings.NewReader("not a workbook"), "")
	assert.Error(t, err)
}

type memLoader struct {
	ds      model.Dataset
	err     error
	block   chan struct{}
	entered chan struct{}
}

func (l *memLoader) Load(ctx context.Context) (model.Dataset, error) {
	if l.entered != nil {
		close(l.entered)
	}
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return model.Dataset{}, ctx.Err()
		}
	}
	return l.ds, l.err
}

func (l *memLoader) Describe() string { return "memory" }

func trainingData(n int) model.Dataset {
	rng := rand.New(rand.NewSource(7))
	var ds model.Dataset
	for i := 0; i < n; i++ {
		var row [model.RatioCount]model.Amount
		for j := range row {
			row[j] = model.Some(rng.NormFloat64())
		}
		leverage := rng.Float64()
		row[4] = model.Some(leverage)
		label := 0
		if leverage+0.1*rng.NormFloat64() > 0.6 {
			label = 1
		}
		ds.Append(row, label)
	}
	return ds
}

func smallScorer() *ensemble.Scorer {
	return ensemble.New(ensemble.Options{
		Seed: 1, ForestTrees: 5, ForestDepth: 3, BoostRounds: 5, BoostDepth: 2, MaxIter: 100,
	})
}

type recordingNotifier struct {
	mu       sync.Mutex
	triggers []string
	errs     []error
}

func (n *recordingNotifier) NotifyTraining(trigger string, resp model.TrainResponse, err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.triggers = append(n.triggers, trigger)
	n.errs = append(n.errs, err)
	return nil
}

func TestModelService_BootstrapTrainsAndSaves(t *testing.T) {
	dir := t.TempDir()
	fs := store.NewFileStore(dir)
	notifier := &recordingNotifier{}
	svc := NewModelService(smallScorer(), fs, &memLoader{ds: trainingData(200)}, logger.Discard())
	svc.SetNotifier(notifier)

	require.NoError(t, svc.Bootstrap(context.Background()))
	st := svc.Status()
	assert.True(t, st.Ready)
	require.NotNil(t, st.TrainedAt)
	assert.Len(t, st.Metrics, 4)
	assert.Equal(t, []string{TriggerBootstrap}, notifier.triggers)

	// 第二次启动直接加载，不再训练
	failing := &memLoader{err: errors.New("should not be called")}
	again := NewModelService(smallScorer(), fs, failing, logger.Discard())
	require.NoError(t, again.Bootstrap(context.Background()))
	assert.True(t, again.Scorer().Ready())
	assert.Equal(t, st.TrainedAt.UnixNano(), again.Scorer().TrainedAt().UnixNano())

	p1, err := svc.Scorer().Predict(trainingData(1).Rows[0])
	require.NoError(t, err)
	p2, err := again.Scorer().Predict(trainingData(1).Rows[0])
	require.NoError(t, err)
	assert.InDelta(t, p1.Final().Value, p2.Final().Value, 1e-12)
}

func TestModelService_BootstrapLoadError(t *testing.T) {
	svc := NewModelService(smallScorer(), store.NewFileStore(t.TempDir()), &memLoader{err: errors.New("boom")}, logger.Discard())
	err := svc.Bootstrap(context.Background())
	assert.ErrorContains(t, err, "boom")
	assert.False(t, svc.Status().Ready)
}

func TestModelService_RetrainBusy(t *testing.T) {
	loader := &memLoader{ds: trainingData(120), block: make(chan struct{}), entered: make(chan struct{})}
	svc := NewModelService(smallScorer(), store.NewFileStore(t.TempDir()), loader, logger.Discard())

	done := make(chan error, 1)
	go func() {
		_, err := svc.Retrain(context.Background(), TriggerManual)
		done <- err
	}()

	<-loader.entered
	_, err := svc.Retrain(context.Background(), TriggerSchedule)
	assert.ErrorIs(t, err, ErrTrainingBusy)

	close(loader.block)
	require.NoError(t, <-done)
	assert.True(t, svc.Status().Ready)
}

func TestTrainTasks_Lifecycle(t *testing.T) {
	release := make(chan struct{})
	tasks := NewTrainTasks(func(ctx context.Context, trigger string) (model.TrainResponse, error) {
		<-release
		return model.TrainResponse{Samples: 10}, nil
	}, time.Minute, 0, logger.Discard())

	st, created := tasks.Create(TriggerManual, "req-1")
	require.True(t, created)
	assert.Contains(t, []string{TaskPending, TaskRunning}, st.Status)

	// 同一请求或已有任务时复用
	dup, created := tasks.Create(TriggerManual, "req-1")
	assert.False(t, created)
	assert.Equal(t, st.TaskID, dup.TaskID)
	other, created := tasks.Create(TriggerManual, "req-2")
	assert.False(t, created)
	assert.Equal(t, st.TaskID, other.TaskID)

	close(release)
	tasks.Wait()

	got, ok := tasks.Get(st.TaskID)
	require.True(t, ok)
	assert.Equal(t, TaskDone, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 10, got.Result.Samples)
	assert.NotNil(t, got.FinishedAt)

	next, created := tasks.Create(TriggerManual, "req-3")
	assert.True(t, created)
	assert.NotEqual(t, st.TaskID, next.TaskID)
	tasks.Wait()

	_, ok = tasks.Get("missing")
	assert.False(t, ok)
}

func TestTrainTasks_Cancel(t *testing.T) {
	started := make(chan struct{})
	tasks := NewTrainTasks(func(ctx context.Context, trigger string) (model.TrainResponse, error) {
		close(started)
		<-ctx.Done()
		return model.TrainResponse{}, ctx.Err()
	}, time.Minute, 0, logger.Discard())

	st, _ := tasks.Create(TriggerManual, "")
	<-started
	canceled, ok := tasks.Cancel(st.TaskID)
	require.True(t, ok)
	assert.Equal(t, TaskCanceled, canceled.Status)
	tasks.Wait()

	got, _ := tasks.Get(st.TaskID)
	assert.Equal(t, TaskCanceled, got.Status)
	assert.Nil(t, got.Result)

	// 已结束的任务不变
	again, ok := tasks.Cancel(st.TaskID)
	require.True(t, ok)
	assert.Equal(t, TaskCanceled, again.Status)

	_, ok = tasks.Cancel("missing")
	assert.False(t, ok)
}

func TestTrainTasks_CancelHoldsSlotUntilTrainReturns(t *testing.T) {
	started := make(chan struct{}, 2)
	exit := make(chan struct{})
	var running atomic.Int32
	tasks := NewTrainTasks(func(ctx context.Context, trigger string) (model.TrainResponse, error) {
		if running.Add(1) > 1 {
			running.Add(-1)
			return model.TrainResponse{}, ErrTrainingBusy
		}
		defer running.Add(-1)
		started <- struct{}{}
		<-ctx.Done()
		<-exit
		return model.TrainResponse{}, ctx.Err()
	}, time.Minute, 0, logger.Discard())

	first, _ := tasks.Create(TriggerManual, "")
	<-started
	_, ok := tasks.Cancel(first.TaskID)
	require.True(t, ok)

	// 训练函数尚未退出，新请求复用已取消的任务而不是立即失败
	again, created := tasks.Create(TriggerManual, "")
	assert.False(t, created)
	assert.Equal(t, first.TaskID, again.TaskID)
	assert.Equal(t, TaskCanceled, again.Status)

	close(exit)
	tasks.Wait()

	next, created := tasks.Create(TriggerManual, "")
	require.True(t, created)
	<-started
	got, _ := tasks.Get(next.TaskID)
	assert.Equal(t, TaskRunning, got.Status)
	tasks.Cancel(next.TaskID)
	tasks.Wait()
	got, _ = tasks.Get(next.TaskID)
	assert.Equal(t, TaskCanceled, got.Status)
	assert.Nil(t, got.Result)
}

func TestTrainTasks_FailureAndTimeout(t *testing.T) {
	tasks := NewTrainTasks(func(ctx context.Context, trigger string) (model.TrainResponse, error) {
		<-ctx.Done()
		return model.TrainResponse{}, ctx.Err()
	}, time.Minute, 20*time.Millisecond, logger.Discard())

	st, _ := tasks.Create(TriggerManual, "")
	tasks.Wait()
	got, _ := tasks.Get(st.TaskID)
	assert.Equal(t, TaskFailed, got.Status)
	assert.Equal(t, "训练超时", got.Error)
}

func TestTrainTasks_Expiry(t *testing.T) {
	tasks := NewTrainTasks(func(ctx context.Context, trigger string) (model.TrainResponse, error) {
		return model.TrainResponse{}, nil
	}, 10*time.Millisecond, 0, logger.Discard())

	st, _ := tasks.Create(TriggerManual, "req")
	tasks.Wait()
	time.Sleep(30 * time.Millisecond)
	_, ok := tasks.Get(st.TaskID)
	assert.False(t, ok)

	// 过期后同一 requestID 可以重新创建
	_, created := tasks.Create(TriggerManual, "req")
	assert.True(t, created)
	tasks.Wait()
}
