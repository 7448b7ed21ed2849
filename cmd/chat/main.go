package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"sudooom.im.client/internal/api"
	"sudooom.im.client/internal/config"
	"sudooom.im.client/internal/controller"
	"sudooom.im.client/internal/router"
	"sudooom.im.client/internal/session"
	"sudooom.im.client/internal/socket"
	"sudooom.im.client/internal/store"
	"sudooom.im.client/internal/ui"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	email := flag.String("email", os.Getenv("CHAT_EMAIL"), "登录邮箱")
	password := flag.String("password", os.Getenv("CHAT_PASSWORD"), "登录密码")
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: chat -email <email> -password <password> [-config path]")
		os.Exit(2)
	}

	// 初始化日志（界面占用终端，日志落到文件）
	logFile, err := os.OpenFile("chat.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	logger := slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化 API 客户端并登录
	client, err := api.NewClient(cfg.API, logger)
	if err != nil {
		log.Fatalf("Failed to create API client: %v", err)
	}

	user, token, err := client.Login(ctx, api.LoginRequest{Email: *email, Password: *password})
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	sess := session.New()
	sess.Establish(user, token)
	logger.Info("Logged in", "userId", user.ID, "name", user.FullName())

	// 初始化 store 与实时通道
	messages := store.NewMessageStore()
	conversations := store.NewConversationStore()
	presence := store.NewPresenceTracker()
	connections := store.NewConnectionDirectory()

	manager := socket.NewManager(cfg.Socket, client.Header, logger)

	// 变更通知：合并写入，渲染方按通知重读 store
	changes := make(chan struct{}, 1)
	notify := func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}

	var ctrl *controller.Controller
	rt := router.New(router.Options{
		Messages:      messages,
		Conversations: conversations,
		Presence:      presence,
		Channel:       manager,
		Session:       sess,
		Logger:        logger,
		ActiveConversation: func() string {
			if ctrl == nil {
				return ""
			}
			return ctrl.ActiveConversation()
		},
		FetchConversation: client.Conversation,
		OnChange:          notify,
	})
	rt.Subscribe()

	ctrl = controller.New(controller.Options{
		Backend:       client,
		Realtime:      rt,
		Messages:      messages,
		Conversations: conversations,
		Connections:   connections,
		SelfID:        sess.UserID,
		Chat:          cfg.Chat,
		Logger:        logger,
		OnChange:      notify,
	})

	// 连接状态推给界面
	connStates := make(chan socket.State, 8)
	manager.OnStateChange(func(s socket.State) {
		select {
		case connStates <- s:
		default:
		}
	})

	go func() {
		if err := manager.Connect(ctx); err != nil {
			logger.Error("Realtime channel gave up", "error", err)
		}
	}()

	// 启动界面
	app := ui.NewApp(ui.Options{
		Controller:    ctrl,
		Messages:      messages,
		Conversations: conversations,
		Presence:      presence,
		SelfID:        sess.UserID,
		Changes:       changes,
		ConnStates:    connStates,
	})

	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		logger.Error("UI terminated", "error", err)
	}

	// 优雅下线
	logger.Info("Shutting down...")
	if err := rt.Logout(); err != nil {
		logger.Warn("Failed to send logout event", "error", err)
	}
	rt.Dispose()
	cancel()
	manager.Close()

	if err := client.Logout(context.Background()); err != nil {
		logger.Warn("Logout request failed", "error", err)
	}
	sess.Clear()
	logger.Info("Stopped")
}
