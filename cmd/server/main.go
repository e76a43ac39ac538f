package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"credit-risk-backend/internal/app"
	"credit-risk-backend/internal/config"
	"credit-risk-backend/internal/ensemble"
	"credit-risk-backend/internal/handler"
	"credit-risk-backend/internal/logger"
	"credit-risk-backend/internal/mail"
	"credit-risk-backend/internal/scheduler"
	"credit-risk-backend/internal/service"
	"credit-risk-backend/internal/statement"
)

func main() {
	loaded := config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("配置错误: %v", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if len(loaded) == 0 {
		log.Info("未找到 .env 文件，使用系统环境变量")
	} else {
		log.WithField("files", loaded).Info("已加载环境变量文件")
	}

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("服务异常退出")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := app.NewResources(cfg)
	defer res.Close()

	modelStore, err := res.ModelStore(ctx)
	if err != nil {
		return err
	}
	loader, err := res.DatasetLoader()
	if err != nil {
		return err
	}
	evalCache, err := res.EvalCache(ctx)
	if err != nil {
		return err
	}

	scorer := ensemble.New(app.ScorerOptions(cfg))
	models := service.NewModelService(scorer, modelStore, loader, log)
	if cfg.MailEnabled() {
		models.SetNotifier(mail.NewSender(mail.Options{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			User:     cfg.Mail.User,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			To:       cfg.Mail.To,
		}, log))
	}

	// 模型加载失败不阻止启动，评估接口返回503直到训练成功
	if err := bootstrap(ctx, models, cfg.Training.Timeout); err != nil {
		log.WithError(err).Error("模型初始化失败")
	}

	evaluator := service.NewEvaluationService(scorer, statement.DefaultAliases(), evalCache, cfg.EvalCache.TTL, log)
	tasks := service.NewTrainTasks(models.Retrain, cfg.Training.TaskTTL, cfg.Training.Timeout, log)
	defer tasks.Shutdown()

	if cfg.Retrain.Enabled {
		sched := scheduler.New(models, scheduler.Options{
			Schedule:      cfg.Retrain.Schedule,
			RetryCount:    cfg.Retrain.RetryCount,
			RetryInterval: cfg.Retrain.RetryInterval,
			Timeout:       cfg.Training.Timeout,
			Trigger:       service.TriggerSchedule,
		}, log)
		if err := sched.Start(); err != nil {
			return err
		}
		defer sched.Stop()
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
	}))
	r.MaxMultipartMemory = int64(cfg.MaxUploadMB) << 20

	auth := handler.NewAuth(cfg.Auth.AdminCode, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	handler.New(models, evaluator, tasks, auth, cfg.MaxUploadMB).Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("服务启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("正在关闭服务...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	return srv.Shutdown(shutdownCtx)
}

func bootstrap(ctx context.Context, models *service.ModelService, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return models.Bootstrap(ctx)
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	l := logger.Component(log, "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("request")
	}
}
