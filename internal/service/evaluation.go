package service

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"credit-risk-backend/internal/cache"
	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/metrics"
	"credit-risk-backend/internal/model"
	"credit-risk-backend/internal/ratio"
	"credit-risk-backend/internal/risk"
	"credit-risk-backend/internal/statement"
)

// 评估来源
const (
	SourceUpload = "upload"
	SourceJSON   = "json"
)

// Predictor 评分器，*ensemble.Scorer 实现
type Predictor interface {
	Predict(features [model.RatioCount]model.Amount) (model.Predictions, error)
	TrainedAt() time.Time
}

// EvaluationService 报表 -> 指标 -> 违约概率 -> 风险等级
type EvaluationService struct {
	predictor Predictor
	aliases   statement.AliasSet
	cache     cache.Provider
	cacheTTL  time.Duration
	log       *logrus.Entry
}

// NewEvaluationService provider 为 nil 时不缓存
func NewEvaluationService(p Predictor, aliases statement.AliasSet, provider cache.Provider, ttl time.Duration, log logrus.FieldLogger) *EvaluationService {
	return &EvaluationService{
		predictor: p,
		aliases:   aliases,
		cache:     provider,
		cacheTTL:  ttl,
		log:       logger.Component(log, "evaluation"),
	}
}

// EvaluateWorkbook 解析上传的 Excel 并评估
func (s *EvaluationService) EvaluateWorkbook(r io.Reader, company string) (model.Evaluation, error) {
	st, err := statement.LoadWorkbook(r)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error", SourceUpload).Inc()
		return model.Evaluation{}, err
	}
	return s.Evaluate(st, company, SourceUpload)
}

// Evaluate 评估三张报表
func (s *EvaluationService) Evaluate(st model.Statements, company, source string) (ev model.Evaluation, err error) {
	start := time.Now()
	defer func() {
		metrics.EvaluationsTotal.WithLabelValues(metrics.Result(err), source).Inc()
		metrics.Since(metrics.EvaluationDuration, start)
	}()

	key := s.cacheKey(st, company)
	if s.cache != nil && key != "" {
		var cached model.Evaluation
		if cerr := s.cache.Get(key, &cached); cerr == nil {
			metrics.CacheTotal.WithLabelValues("hit").Inc()
			cached.ID = uuid.NewString()
			cached.CreatedAt = time.Now()
			return cached, nil
		} else if !errors.Is(cerr, cache.ErrMiss) {
			s.log.WithError(cerr).Warn("读取评估缓存失败")
		}
		metrics.CacheTotal.WithLabelValues("miss").Inc()
	}

	vec, items, err := ratio.FromStatements(st, s.aliases)
	if err != nil {
		return ev, err
	}
	preds, err := s.predictor.Predict(vec.Features())
	if err != nil {
		return ev, err
	}
	band := risk.Classify(preds.Final())
	metrics.RiskBandTotal.WithLabelValues(band.Classification).Inc()

	ev = model.Evaluation{
		ID:             uuid.NewString(),
		CompanyName:    company,
		Ratios:         vec.Named(),
		Features:       vec.Positional(),
		Predictions:    preds,
		Classification: band,
		Resolved:       items,
		CreatedAt:      time.Now(),
	}

	s.log.WithFields(logrus.Fields{
		"evaluation_id": ev.ID,
		"company":       company,
		"pd":            preds.Final().Or(-1),
		"band":          band.Classification,
	}).Info("评估完成")

	if s.cache != nil && key != "" {
		if cerr := s.cache.Set(key, ev, s.cacheTTL); cerr != nil {
			s.log.WithError(cerr).Warn("写入评估缓存失败")
		}
	}
	return ev, nil
}

// cacheKey 报表内容 + 公司名 + 别名表版本 + 模型训练时间，模型更新后旧结果失效
func (s *EvaluationService) cacheKey(st model.Statements, company string) string {
	b, err := json.Marshal(st)
	if err != nil {
		return ""
	}
	h := sha256.New()
	h.Write(b)
	fmt.Fprintf(h, "|%s|%s|%d", company, s.aliases.Version, s.predictor.TrainedAt().UnixNano())
	return "eval:" + hex.EncodeToString(h.Sum(nil))
}
