package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/park285/kakao-minigame-bot/internal/adminhttp"
	appcfg "github.com/park285/kakao-minigame-bot/internal/config"
	"github.com/park285/kakao-minigame-bot/internal/gamebuilder"
	"github.com/park285/kakao-minigame-bot/internal/irisfast"
	"github.com/park285/kakao-minigame-bot/internal/obslog"
)

const handleTimeout = 20 * time.Second

func main() {
	// .env는 있으면 읽고, 없으면 환경변수만 쓴다
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf(".env load error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	cfg, err := appcfg.Load()
	if err != nil {
		logger.Fatal("config_error", zap.Error(err))
	}

	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(cfg.IrisHeaders))
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second)
	ws.SetHeaderProvider(cfg.IrisHeaders)
	ws.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("ws_state", zap.String("state", state.String()))
	})

	egress := irisfast.NewEgress(cfg.EgressMode, cfg.EgressDryRun, client, ws, obslog.Named("egress"))
	deps, err := gamebuilder.New(cfg, egress, obslog.Named("builder"))
	if err != nil {
		logger.Fatal("minigame_init_error", zap.Error(err))
	}

	ws.OnMessage(func(msg *irisfast.Message) {
		if msg == nil || msg.Msg == "" {
			return
		}
		// WS 읽기 루프를 막지 않는다
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
			defer cancel()
			deps.Handler.Handle(ctx, msg)
		}()
	})

	admin := adminhttp.New(deps.Engine,
		adminhttp.WithRealmForgetter(deps.Roster),
		adminhttp.WithHealthCheck(func() error {
			if !ws.Connected() {
				return errors.New("iris websocket " + ws.State().String())
			}
			return nil
		}),
	)
	admin.Start(cfg.AdminAddr)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	go runJanitor(janitorCtx, deps, cfg.JanitorInterval, cfg.SessionIdleTTL, logger)

	cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		logger.Fatal("ws_connect_error", zap.Error(err))
	}
	cancel()
	logger.Info("bot_started", zap.String("prefix", cfg.BotPrefix), zap.String("egress", cfg.EgressMode))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutdown", zap.String("signal", sig.String()))

	stopJanitor()
	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	if err := admin.Shutdown(sctx); err != nil {
		logger.Warn("admin_shutdown_error", zap.Error(err))
	}
	_ = ws.Close(sctx)
	deps.Close()
}

// runJanitor drops sessions nobody touched for idle. Zero interval or idle disables it.
func runJanitor(ctx context.Context, deps *gamebuilder.Deps, interval, idle time.Duration, logger *zap.Logger) {
	if interval <= 0 || idle <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if removed := deps.Engine.SweepIdle(idle); len(removed) > 0 {
				logger.Info("janitor_swept", zap.Int("sessions", len(removed)))
			}
		}
	}
}
