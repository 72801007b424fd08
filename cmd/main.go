package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	_ "blogify/docs"
	"blogify/internal/app"
	"blogify/internal/config"
	"blogify/internal/logger"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title          Blogify API
// @version        1.0
// @description    Блог: посты со слагами и редиректами, регистрация и вход по JWT.

// @BasePath       /

// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Введите токен в формате: Bearer <token>
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp читает конфиг, поднимает логгер и собирает приложение. Вызывающий обязан вызвать Close.
func newApp(ctx context.Context) (*app.App, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}
	logger.InitLogger(cfg)

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		logger.Log.Warn("Конфигурация", zap.String("warning", w))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	a, err := app.InitApp(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, cfg, nil
}

var rootCmd = &cobra.Command{
	Use:          "blogify",
	Short:        "Blogify: блог-платформа с постами и аккаунтами",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP-сервер",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer logger.Log.Sync()
		a.Start()

		corsMiddleware := cors.New(cors.Options{
			AllowedOrigins:   cfg.CorsAllowedOrigins,
			AllowCredentials: true,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
		})

		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           corsMiddleware.Handler(a.Router),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Log.Info("Сервер запущен", zap.String("port", cfg.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			logger.Log.Error("Ошибка запуска сервера", zap.Error(err))
			a.Close()
			return err
		case sig := <-quit:
			logger.Log.Info("Остановка сервера", zap.String("signal", sig.String()))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Log.Error("Сервер остановлен с ошибкой", zap.Error(err))
		}
		if err := a.Close(); err != nil {
			logger.Log.Error("Ошибка при закрытии приложения", zap.Error(err))
			return err
		}
		logger.Log.Info("Сервер остановлен")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Вернуть посты и пользователей к начальным данным",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.ResetDemo(cmd.Context()); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset done: %d posts\n", len(a.Cache.IDs()))
		return nil
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Работа с постами",
}

var (
	postsLimit  int
	postsOffset int
	postsQuery  string
)

var postsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Показать ленту постов",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		page, err := a.PostService.List(cmd.Context(), postsQuery, postsLimit, postsOffset)
		if err != nil {
			return fmt.Errorf("listing posts: %w", err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSLUG\tAUTHOR\tVIEWS\tCREATED")
		for _, p := range page.Documents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", p.ID, p.Slug, p.AuthorName, p.Views, p.CreatedAt.Format(time.DateTime))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Total: %d\n", page.Total)
		return nil
	},
}

func init() {
	postsListCmd.Flags().IntVar(&postsLimit, "limit", 20, "Количество постов")
	postsListCmd.Flags().IntVar(&postsOffset, "offset", 0, "Смещение")
	postsListCmd.Flags().StringVarP(&postsQuery, "query", "q", "", "Поиск по заголовку и тексту")

	postsCmd.AddCommand(postsListCmd)
	rootCmd.AddCommand(serveCmd, resetCmd, postsCmd)
}
