package app

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	libredis "socdash/dashboard/libs/redis"
	"socdash/dashboard/services/monitor/internal/auth"
	"socdash/dashboard/services/monitor/internal/chart"
	"socdash/dashboard/services/monitor/internal/clients"
	"socdash/dashboard/services/monitor/internal/config"
	httpserver "socdash/dashboard/services/monitor/internal/http"
	"socdash/dashboard/services/monitor/internal/http/handlers"
	"socdash/dashboard/services/monitor/internal/http/middleware"
	"socdash/dashboard/services/monitor/internal/poller"
	"socdash/dashboard/services/monitor/internal/publish"
	"socdash/dashboard/services/monitor/internal/service"
	"socdash/dashboard/services/monitor/internal/session"
	"socdash/dashboard/services/monitor/internal/ws"
)

const (
	wsWriteTimeout        = 5 * time.Second
	mqttPublishWait       = 2 * time.Second
	mqttDisconnectQuiesce = 250 // ms
)

// App wires dashboard dependencies.
type App struct {
	server      *httpserver.Server
	poller      *poller.Poller
	redisClient *redis.Client
	mqttClient  mqtt.Client
	stopWS      context.CancelFunc
	logger      *zap.Logger
}

// New constructs the application graph. Redis and MQTT are optional and only dialed when
// configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}

	batteryClient := clients.NewBatteryClient(cfg.Backend.URL, clients.NewDefaultHTTPClient(cfg.HTTPTimeout()), logger)
	sess := session.New(cfg.Model.Default)
	profile := chart.NewCanvas("profile", cfg.Charts.Width, cfg.Charts.Height)
	live := chart.NewCanvas("live", cfg.Charts.Width, cfg.Charts.Height)

	livePoller := poller.New(batteryClient, sess, live, poller.SystemClock, poller.Config{
		PollInterval:      cfg.Poller.Interval,
		WatchdogInterval:  cfg.Poller.WatchdogInterval,
		DisconnectTimeout: cfg.Poller.DisconnectTimeout,
	}, logger)
	a.poller = livePoller

	wsCtx, stopWS := context.WithCancel(ctx)
	a.stopWS = stopWS
	hub := ws.NewHub()
	livePoller.AddSink(hub)
	wsServer := ws.NewServer(wsCtx, hub, livePoller, wsWriteTimeout, logger)

	if cfg.Redis.Addr != "" {
		redisClient, err := libredis.NewRedisClient(ctx, libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redisClient = redisClient
		livePoller.AddSink(publish.NewRedisPublisher(redisClient, cfg.Redis.Channel, cfg.Redis.TTL))
		logger.Info("redis snapshot publisher enabled", zap.String("channel", cfg.Redis.Channel))
	}

	if cfg.MQTT.Broker != "" {
		mqttClient, err := publish.NewMQTTClient(cfg.MQTT.Broker, cfg.MQTT.ClientID, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.mqttClient = mqttClient
		livePoller.AddSink(publish.NewAlertPublisher(mqttClient, cfg.MQTT.Topic, mqttPublishWait))
		logger.Info("mqtt alert publisher enabled", zap.String("topic", cfg.MQTT.Topic))
	}

	dashboardService := service.NewDashboardService(batteryClient, sess, profile, service.Options{
		VoltageCorrection: cfg.Model.VoltageCorrection,
	}, logger)

	operator := auth.NewOperator(
		auth.NewBcryptHasher(bcrypt.DefaultCost),
		cfg.Auth.PasswordHash,
		auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
	)
	if !operator.Enabled() {
		logger.Warn("operator password not set, dashboard actions are unauthenticated")
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Dashboard:     handlers.NewDashboardHandlers(dashboardService, livePoller, operator.Enabled(), logger),
		LoginHandler:  handlers.NewLoginHandler(operator),
		HealthHandler: handlers.NewHealthHandler(),
		WSHandler:     wsServer.HandleWS,
		ProfileCanvas: profile,
		LiveCanvas:    live,
		Logger:        logger,
	}, operator.Middleware)

	a.server = httpserver.NewServer(cfg.HTTPAddress(), router, logger,
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)
	return a, nil
}

// Run starts the live poller and the HTTP server and blocks until ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pollDone := make(chan error, 1)
	go func() {
		pollDone <- a.poller.Run(ctx)
	}()

	err := a.server.Run(ctx)
	cancel()
	<-pollDone
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.stopWS != nil {
		a.stopWS()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.mqttClient != nil {
		a.mqttClient.Disconnect(mqttDisconnectQuiesce)
	}
}
