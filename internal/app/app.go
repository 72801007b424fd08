package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"blogify/internal/config"
	"blogify/internal/events"
	"blogify/internal/handlers"
	"blogify/internal/logger"
	"blogify/internal/middleware"
	"blogify/internal/postcache"
	"blogify/internal/repository"
	"blogify/internal/routes"
	"blogify/internal/services"
	"blogify/internal/storage"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// App собирает приложение: хранилище, репозитории, сервисы и роутер.
type App struct {
	Router      *mux.Router
	Posts       *repository.PostRepository
	Users       *repository.UserRepository
	PostService *services.PostService
	AuthService *services.AuthService
	Cache       *postcache.Store

	kv        storage.KV
	publisher events.Publisher
	limiter   *middleware.IPRateLimiter
	scheduler *cron.Cron
	done      chan struct{}
}

func InitApp(ctx context.Context, cfg *config.Config) (*App, error) {
	kv, err := storage.NewKVFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	logger.Log.Info("Хранилище готово", zap.String("driver", cfg.StorageDriver))

	opts := repository.Options{
		Latency:    cfg.Latency(),
		FlushDelay: cfg.FlushDelayDuration(),
	}

	// Репозитории
	userRepo := repository.NewUserRepository(ctx, storage.NewUserStorage(kv), opts)
	postRepo := repository.NewPostRepository(ctx, storage.NewPostStorage(kv), opts)

	publisher, err := newPublisher(cfg)
	if err != nil {
		postRepo.Close()
		kv.Close()
		return nil, err
	}

	// Сервисы
	authService := services.NewAuthService(userRepo, cfg.JWTSecret, cfg.TokenTTL())
	postService := services.NewPostService(postRepo, userRepo, publisher)

	cache := postcache.NewStore(postService)
	if _, err := cache.FetchPosts(ctx); err != nil {
		logger.Log.Warn("Не удалось прогреть кэш постов", zap.Error(err))
	}

	// Хендлеры
	h := routes.Handlers{
		Auth:   handlers.NewAuthHandler(authService),
		Posts:  handlers.NewPostHandler(postService, cache),
		Health: handlers.NewHealthHandler(),
		Logs:   handlers.NewAdminLogsHandler(cfg.LogDir),
	}

	var limiter *middleware.IPRateLimiter
	if rpm, burst := cfg.RateLimit(); rpm > 0 {
		limiter = middleware.NewIPRateLimiter(rpm, burst)
	}

	// Маршруты
	router := mux.NewRouter()
	routes.InitRoutes(router, h, authService, limiter)

	a := &App{
		Router:      router,
		Posts:       postRepo,
		Users:       userRepo,
		PostService: postService,
		AuthService: authService,
		Cache:       cache,
		kv:          kv,
		publisher:   publisher,
		limiter:     limiter,
		done:        make(chan struct{}),
	}

	if cfg.DemoResetCron != "" {
		if err := a.scheduleDemoReset(cfg.DemoResetCron); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

// Start запускает фоновые задачи: чистку лимитера и расписание сброса демо-данных.
func (a *App) Start() {
	if a.limiter != nil {
		go a.limiter.RunCleanup(a.done)
	}
	if a.scheduler != nil {
		a.scheduler.Start()
	}
}

// ResetDemo возвращает посты и пользователей к начальным данным и перечитывает кэш.
func (a *App) ResetDemo(ctx context.Context) error {
	if err := a.PostService.Reset(ctx); err != nil {
		return err
	}
	if err := a.Users.Reset(ctx); err != nil {
		return err
	}
	if _, err := a.Cache.FetchPosts(ctx); err != nil {
		return fmt.Errorf("refetch posts: %w", err)
	}
	return nil
}

// Close останавливает фоновые задачи и сбрасывает несохранённые посты.
func (a *App) Close() error {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
	}
	select {
	case <-a.done:
	default:
		close(a.done)
	}
	return errors.Join(a.Posts.Close(), a.publisher.Close(), a.kv.Close())
}

func (a *App) scheduleDemoReset(spec string) error {
	l := cronLogger{log: logger.Log.Sugar()}
	a.scheduler = cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	_, err := a.scheduler.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := a.ResetDemo(ctx); err != nil {
			logger.Log.Error("Сброс демо-данных не удался", zap.Error(err))
			return
		}
		logger.Log.Info("Демо-данные сброшены по расписанию")
	})
	if err != nil {
		return fmt.Errorf("invalid DEMO_RESET_CRON %q: %w", spec, err)
	}
	logger.Log.Info("Сброс демо-данных по расписанию", zap.String("spec", spec))
	return nil
}

func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.RabbitMQURL == "" {
		return events.Noop{}, nil
	}
	p, err := events.NewRabbitMQPublisher(cfg.RabbitMQURL, events.DefaultExchange)
	if err != nil {
		return nil, fmt.Errorf("init rabbitmq: %w", err)
	}
	return p, nil
}

// cronLogger пишет события планировщика в zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
