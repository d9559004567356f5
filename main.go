package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abdusco/countdown/internal"
	"github.com/abdusco/countdown/internal/auth"
	"github.com/abdusco/countdown/internal/countdown"
	"github.com/abdusco/countdown/internal/db"
	"github.com/abdusco/countdown/internal/handler"
	"github.com/abdusco/countdown/internal/link"
	"github.com/abdusco/countdown/internal/logger"
	"github.com/abdusco/countdown/internal/repo"
	"github.com/abdusco/countdown/web"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

type Config struct {
	Host       string
	Port       string
	BaseURL    string
	DefaultTZ  string
	DBPath     string
	AdminCreds string `json:"-"`
	JWTSecret  string `json:"-"`
	LogLevel   string
	Debug      bool
}

func (c Config) ViewLogEnabled() bool {
	return c.DBPath != ""
}

func newConfigFromEnv() Config {
	cfg := Config{
		Host:       cmp.Or(os.Getenv("HOST"), "localhost"),
		Port:       cmp.Or(os.Getenv("PORT"), "8080"),
		BaseURL:    os.Getenv("BASE_URL"),
		DefaultTZ:  os.Getenv("DEFAULT_TZ"),
		DBPath:     os.Getenv("DB_PATH"),
		AdminCreds: os.Getenv("ADMIN_CREDENTIALS"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		LogLevel:   cmp.Or(os.Getenv("LOG_LEVEL"), "info"),
		Debug:      os.Getenv("DEBUG") == "1",
	}
	return cfg
}

// parseFlags overrides cfg with any flags given on the command line.
func parseFlags(cfg Config, args []string) (Config, error) {
	fs := pflag.NewFlagSet("countdown", pflag.ContinueOnError)
	fs.StringVar(&cfg.Host, "host", cfg.Host, "address to listen on")
	fs.StringVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "public URL used for share links")
	fs.StringVar(&cfg.DefaultTZ, "default-tz", cfg.DefaultTZ, "time zone for form input when the browser sends none")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite path for the view log, empty disables it")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "pretty logs and static files from disk")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadConfig applies flags over env, sets up logging and fills in defaults.
// Defaults are filled last so their warnings respect the configured level.
func loadConfig(env Config, args []string) (Config, error) {
	cfg, err := parseFlags(env, args)
	if err != nil {
		return cfg, err
	}

	logger.Setup(cfg.LogLevel, cfg.Debug)
	return finalizeConfig(cfg), nil
}

func finalizeConfig(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://" + net.JoinHostPort(cfg.Host, cfg.Port)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if !cfg.ViewLogEnabled() {
		return cfg
	}

	if cfg.AdminCreds == "" {
		cfg.AdminCreds = "admin:admin"
		log.Warn().Msg("using default admin credentials - set ADMIN_CREDENTIALS for production")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.AdminCreds
		log.Warn().Msg("using ADMIN_CREDENTIALS as JWT_SECRET - set JWT_SECRET for production")
	}

	return cfg
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to load .env file")
	}

	cfg, err := loadConfig(newConfigFromEnv(), os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration")
	}

	log.Info().
		Interface("config", cfg).
		Msg("current configuration")

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}

func run(ctx context.Context, cfg Config) error {
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Msg("starting application")

	e, cleanup, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info().Str("address", net.JoinHostPort(cfg.Host, cfg.Port)).Str("base_url", cfg.BaseURL).Msg("server starting")

	// Run server and handle graceful shutdown
	return runServer(ctx, e, net.JoinHostPort(cfg.Host, cfg.Port))
}

func newServer(ctx context.Context, cfg Config) (*echo.Echo, func(), error) {
	defaultLoc, err := link.LoadLocation(cfg.DefaultTZ, time.Local)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid default time zone: %w", err)
	}

	renderer, err := web.NewRenderer(handler.TemplateFuncs())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load templates: %w", err)
	}

	e := echo.New()
	cleanup := func() { e.Close() }

	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler
	e.Renderer = renderer

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())

	var views handler.ViewRecorder
	if cfg.ViewLogEnabled() {
		admin, err := auth.ParseCredentials(cfg.AdminCreds)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse admin credentials: %w", err)
		}

		dbInstance, err := db.Init(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		cleanup = func() {
			e.Close()
			dbInstance.Close()
		}

		viewsRepo := repo.NewViewsRepo(dbInstance)
		views = viewsRepo

		sessions := auth.NewSessions(admin, cfg.JWTSecret)
		authHandler := handler.NewAuthHandler(sessions)
		e.GET("/login", authHandler.ServeLoginPage)
		e.POST("/login", authHandler.Login)
		e.GET("/logout", authHandler.Logout)

		e.GET("/api/views", handler.NewViewsHandler(viewsRepo).ListViews, sessions.Require(auth.ScopeViews))

		log.Info().Str("path", cfg.DBPath).Msg("view log enabled")
	} else {
		e.GET("/api/views", func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusNotFound, internal.ErrViewLogDisabled.Error())
		})
	}

	countdownHandler := handler.NewCountdownHandler(cfg.BaseURL, defaultLoc, countdown.RealClock, views)
	e.GET("/", countdownHandler.Index)
	e.POST("/create", countdownHandler.Create)

	api := e.Group("/api")
	api.GET("/countdown", countdownHandler.Snapshot)
	api.GET("/countdown/stream", countdownHandler.Stream)

	if cfg.Debug {
		log.Info().Msg("serving static files from disk")
		e.Static("/static", "web/static")
	} else {
		log.Info().Msg("serving static files from embedded filesystem")
		e.StaticFS("/static", web.Static())
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return e, cleanup, nil
}

func runServer(ctx context.Context, e *echo.Echo, address string) error {
	// Request contexts end with ctx so open countdown streams do not hold up shutdown.
	e.Server.BaseContext = func(net.Listener) context.Context { return ctx }

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(address)
	}()

	// Wait for context cancellation (Ctrl+C or SIGTERM) or a startup failure
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	log.Info().Msg("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}

	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
	return nil
}

func customErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal server error"
	isAPICall := strings.HasPrefix(c.Path(), "/api/")

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(code)
		}
	}

	if !isAPICall && code == http.StatusUnauthorized {
		c.Redirect(http.StatusTemporaryRedirect, "/login")
		return
	}

	log.Error().
		Int("code", code).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Err(err).
		Msg("http error")

	if c.Response().Committed {
		return
	}

	c.JSON(code, map[string]any{
		"error": message,
	})
}
