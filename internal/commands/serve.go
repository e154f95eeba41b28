package commands

import (
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

	"osintdeck/internal/cache"
	"osintdeck/internal/constants"
	"osintdeck/internal/dashboard"
	"osintdeck/internal/database"
	"osintdeck/internal/enrich"
	"osintdeck/internal/graph"
	"osintdeck/internal/handlers"
	"osintdeck/internal/investigation"
	"osintdeck/internal/logger"
	"osintdeck/internal/metrics"
	"osintdeck/internal/notify"
	"osintdeck/internal/ratelimit"
	"osintdeck/internal/secrets"
	"osintdeck/internal/version"
	"osintdeck/internal/web"
	"osintdeck/internal/webconfig"

	"golang.org/x/crypto/bcrypt"
)

const (
	maxBodyBytes       = 16 << 20
	loginAttemptsLimit = 10
	graphIdleTimeout   = 2 * time.Hour
	janitorInterval    = 10 * time.Minute
	shutdownTimeout    = 10 * time.Second
)

func RunServe(args []string) int {
	cfg, err := webconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		return 1
	}

	portOverride := false
	initUser := ""
	initPass := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--port", "-p":
			if i+1 < len(args) {
				i++
				fmt.Sscanf(args[i], "%d", &cfg.Server.Port)
				portOverride = true
			}
		case "--bind", "-b":
			if i+1 < len(args) {
				i++
				cfg.Server.Bind = args[i]
			}
		case "--user", "-u":
			if i+1 < len(args) {
				i++
				initUser = args[i]
			}
		case "--password", "--pass":
			if i+1 < len(args) {
				i++
				initPass = args[i]
			}
		case "--debug":
			cfg.Log.Mode = "debug"
			cfg.Log.Level = "debug"
		}
	}

	// --port 指定的端口写回配置文件
	if portOverride {
		if err := webconfig.Save(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "⚠️  保存配置文件失败: %v\n", err)
		} else {
			fmt.Printf("✓ 端口 %d 已保存到配置文件，下次启动将自动使用\n", cfg.Server.Port)
		}
	}

	logger.Init(cfg.Log)
	logger.Log.Info().Str("version", version.Version).Msg("OSINTDeck 启动中...")

	if err := database.Init(cfg.Database, cfg.IsDebug()); err != nil {
		logger.Log.Error().Err(err).Msg("数据库初始化失败")
		return 1
	}
	defer database.Close()

	if initUser != "" && initPass != "" {
		if code := createInitialUser(initUser, initPass); code != 0 {
			return code
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	box, err := secrets.NewBox(cfg.Security.APIKeyEncryptionKey)
	if err != nil {
		logger.Config.Error().Err(err).Msg("api key 加密密钥无效")
		return 1
	}
	if !box.Enabled() {
		logger.Config.Warn().Msg("未配置 api_key_encryption_key，API 密钥将以明文存储")
	}

	limiter := buildLimiter(ctx, cfg.RateLimit)
	budgets := ratelimit.DefaultBudgets()
	for kind, b := range cfg.RateLimit.Budgets {
		if !constants.IsKind(kind) || b.Max <= 0 || b.WindowSeconds <= 0 {
			logger.Config.Warn().Str("kind", kind).Msg("忽略无效的限流配置")
			continue
		}
		budgets.Override(kind, b.Max, time.Duration(b.WindowSeconds)*time.Second)
	}

	var lookupCache *cache.Cache
	if cfg.Enrichment.CacheEnabled {
		lookupCache = cache.New(time.Now)
	}
	client := enrich.NewClient(enrich.NewDBConfigs(database.NewAPIConfigRepo(), box), cfg.Enrichment.UserAgent)
	sources := enrich.NewSources(client, lookupCache, cfg.SocialDelay())

	graphs := graph.NewStore()
	graphs.StartJanitor(ctx, janitorInterval, graphIdleTimeout)

	wsHub := web.NewWSHub(cfg.Server.CORSOrigins)
	go wsHub.Run(ctx)

	settingRepo := database.NewSettingRepo()
	notifyMgr := notify.NewManager()
	if err := notifyMgr.Reload(settingRepo); err != nil {
		logger.Notify.Warn().Err(err).Msg("通知渠道加载失败")
	}
	center := notify.NewCenter(database.NewNotificationRepo(), wsHub, notifyMgr)

	dash := dashboard.NewService(database.NewInvestigationRepo(), database.NewCaseRepo(), wsHub)
	svc := investigation.NewService(investigation.Deps{
		Sources:        sources,
		Limiter:        limiter,
		Budgets:        budgets,
		Investigations: database.NewInvestigationRepo(),
		Cases:          database.NewCaseRepo(),
		Graphs:         graphs,
		Notifier:       center,
		Refresher:      dash,
	})

	authHandler := handlers.NewAuthHandler(&cfg, graphs)
	userHandler := handlers.NewUserHandler()
	invHandler := handlers.NewInvestigationHandler(svc, wsHub)
	graphHandler := handlers.NewGraphHandler(graphs, wsHub)
	caseHandler := handlers.NewCaseHandler(dash.Refresh)
	reportHandler := handlers.NewReportHandler(svc)
	teamHandler := handlers.NewTeamHandler()
	apiConfigHandler := handlers.NewAPIConfigHandler(box)
	notificationHandler := handlers.NewNotificationHandler(center)
	notifyHandler := handlers.NewNotifyHandler(notifyMgr)
	dashHandler := handlers.NewDashboardHandler(dash)
	exportHandler := handlers.NewExportHandler(dash.Refresh)
	auditHandler := handlers.NewAuditHandler()
	healthHandler := handlers.NewHealthHandler(wsHub, graphs)

	router := web.NewRouter()
	api := router.Group("/api/v1")

	// 认证
	api.GET("/auth/needs-setup", authHandler.NeedsSetup)
	api.POST("/auth/setup", authHandler.Setup)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/me", authHandler.Me)
	api.PUT("/auth/password", authHandler.ChangePassword)

	// 用户管理（仅管理员）
	api.GET("/users", web.RequireAdmin(userHandler.List))
	api.POST("/users", web.RequireAdmin(userHandler.Create))
	api.DELETE("/users/{id}", web.RequireAdmin(userHandler.Delete))
	api.PUT("/users/{id}/active", web.RequireAdmin(userHandler.SetActive))

	// 调查
	api.GET("/investigations", invHandler.List)
	api.GET("/investigations/{key}", invHandler.Get)
	api.POST("/investigations/{key}", web.RequireWriter(invHandler.Run))

	// 关系图
	api.GET("/graph", graphHandler.Get)
	api.DELETE("/graph", graphHandler.Clear)

	// 案件
	api.GET("/cases", caseHandler.List)
	api.POST("/cases", web.RequireWriter(caseHandler.Create))
	api.POST("/cases/samples", web.RequireWriter(caseHandler.GenerateSamples))
	api.GET("/cases/{id}", caseHandler.Get)
	api.PUT("/cases/{id}", web.RequireWriter(caseHandler.Update))
	api.DELETE("/cases/{id}", web.RequireWriter(caseHandler.Delete))

	// 情报报告
	api.GET("/reports", reportHandler.List)
	api.POST("/reports", web.RequireWriter(reportHandler.Create))
	api.POST("/reports/enrich", web.RequireWriter(reportHandler.Enrich))
	api.DELETE("/reports/{id}", web.RequireWriter(reportHandler.Delete))

	// 团队
	api.GET("/teams", teamHandler.List)
	api.POST("/teams", web.RequireWriter(teamHandler.Create))
	api.DELETE("/teams/{id}", web.RequireWriter(teamHandler.Delete))
	api.GET("/teams/{id}/members", teamHandler.Members)
	api.POST("/teams/{id}/members", web.RequireWriter(teamHandler.AddMember))
	api.PUT("/teams/{id}/members/{user_id}", web.RequireWriter(teamHandler.UpdateMemberRole))
	api.DELETE("/teams/{id}/members/{user_id}", web.RequireWriter(teamHandler.RemoveMember))

	// 第三方服务配置
	api.GET("/api-configs/catalogue", apiConfigHandler.Catalogue)
	api.GET("/api-configs", web.RequireAdmin(apiConfigHandler.List))
	api.PUT("/api-configs", web.RequireAdmin(apiConfigHandler.Save))
	api.DELETE("/api-configs/{name}", web.RequireAdmin(apiConfigHandler.Delete))

	// 站内通知
	api.GET("/notifications", notificationHandler.List)
	api.GET("/notifications/unread-count", notificationHandler.UnreadCount)
	api.POST("/notifications/{id}/read", notificationHandler.MarkRead)
	api.POST("/notifications/read-all", notificationHandler.MarkAllRead)
	api.DELETE("/notifications", notificationHandler.Clear)

	// 外部通知渠道（仅管理员）
	api.GET("/notify/config", web.RequireAdmin(notifyHandler.GetConfig))
	api.PUT("/notify/config", web.RequireAdmin(notifyHandler.UpdateConfig))
	api.POST("/notify/test", web.RequireAdmin(notifyHandler.TestSend))

	// 仪表盘
	api.GET("/dashboard", dashHandler.Get)
	api.GET("/dashboard/threat-map", dashHandler.ThreatMap)

	// 导入导出
	api.GET("/export/{resource}", exportHandler.Export)
	api.POST("/import/investigations", web.RequireWriter(exportHandler.ImportInvestigations))

	// 审计日志
	api.GET("/audit-logs", web.RequireAdmin(auditHandler.List))

	api.GET("/ws", wsHub.HandleWS(cfg.Auth.JWTSecret))
	api.GET("/health", healthHandler.Get)

	router.GET("/metrics", metrics.Handler().ServeHTTP)

	auditRepo := database.NewAuditLogRepo()
	web.SetAuthAuditFunc(func(action, result, detail, ip, username string, userID uint) {
		if err := auditRepo.Create(&database.AuditLog{
			UserID:   userID,
			Username: username,
			Action:   action,
			Result:   result,
			Detail:   detail,
			IP:       ip,
		}); err != nil {
			logger.Audit.Warn().Err(err).Str("action", action).Msg("审计日志写入失败")
		}
	})

	skipAuthPaths := []string{
		"/api/v1/auth/login",
		"/api/v1/auth/setup",
		"/api/v1/auth/needs-setup",
		"/api/v1/auth/register",
		"/api/v1/health",
		"/api/v1/ws",
		"/metrics",
	}

	// 登录/注册接口限流：每 IP 每分钟最多 10 次
	rateLimitPaths := []string{"/api/v1/auth/login", "/api/v1/auth/setup", "/api/v1/auth/register"}

	handler := web.Chain(
		router,
		web.RecoveryMiddleware,
		web.SecurityHeadersMiddleware,
		web.RequestIDMiddleware,
		web.RequestLogMiddleware,
		metrics.Middleware,
		web.CORSMiddleware(cfg.Server.CORSOrigins),
		web.MaxBodySizeMiddleware(maxBodyBytes),
		web.RateLimitMiddleware(limiter, loginAttemptsLimit, time.Minute, rateLimitPaths),
		web.InputSanitizeMiddleware,
		web.AuthMiddleware(cfg.Auth.JWTSecret, skipAuthPaths),
	)

	if cfg.Server.Bind != "127.0.0.1" && cfg.Server.Bind != "localhost" {
		logger.Log.Warn().
			Str("bind", cfg.Server.Bind).
			Msg("⚠️  Web 服务绑定到非回环地址，请确保已配置防火墙规则")
	}

	addr := cfg.ListenAddr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "\n❌ 端口 %d 已被占用，无法启动服务\n\n", cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "解决方案：\n")
		fmt.Fprintf(os.Stderr, "  1. 关闭占用该端口的程序\n")
		fmt.Fprintf(os.Stderr, "  2. 使用 --port 参数指定其他端口：./osintdeck --port 18801\n\n")
		logger.Log.Error().Int("port", cfg.Server.Port).Err(err).Msg("端口被占用")
		return 1
	}

	printBanner(cfg)

	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error().Err(err).Msg("服务启动失败")
			cancel()
		}
	}()
	logger.Log.Info().Str("addr", addr).Msg("Web 服务已启动")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	logger.Log.Info().Msg("正在关闭服务...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warn().Err(err).Msg("服务关闭超时")
	}
	cancel()

	logger.Log.Info().Msg("服务已停止")
	return 0
}

// buildLimiter returns the redis limiter when configured and reachable, the in-memory one otherwise.
func buildLimiter(ctx context.Context, cfg webconfig.RateLimitConfig) ratelimit.Limiter {
	if cfg.Backend == "redis" {
		rl, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Now)
		if err == nil {
			pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
			err = rl.Ping(pingCtx)
			pingCancel()
		}
		if err == nil {
			logger.RateLimit.Info().Str("addr", cfg.RedisAddr).Msg("使用 Redis 限流")
			go func() {
				<-ctx.Done()
				rl.Close()
			}()
			return rl
		}
		logger.RateLimit.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis 不可用，回退到内存限流")
	}
	mem := ratelimit.NewMemoryLimiter(time.Now)
	mem.StartCleanup(ctx, time.Minute)
	return mem
}

func createInitialUser(username, password string) int {
	userRepo := database.NewUserRepo()
	count, _ := userRepo.Count()
	if count > 0 {
		fmt.Printf("ℹ️  已存在 %d 个用户，跳过初始用户创建\n", count)
		return 0
	}
	if len(password) < constants.MinPasswordLen {
		fmt.Fprintf(os.Stderr, "⚠️  密码至少 %d 位\n", constants.MinPasswordLen)
		return 1
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  密码加密失败: %v\n", err)
		return 1
	}
	if err := userRepo.Create(&database.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         constants.RoleAdmin,
		IsActive:     true,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "⚠️  创建初始用户失败: %v\n", err)
		return 1
	}
	fmt.Printf("✓ 初始管理员用户 '%s' 已创建\n", username)
	return 0
}

const boxWidth = 60

// padLine 右侧补齐空格，中文字符按 2 个宽度计算
func padLine(content string) string {
	width := 0
	for _, r := range content {
		if r > 127 {
			width += 2
		} else {
			width++
		}
	}
	if width >= boxWidth {
		return content
	}
	return content + strings.Repeat(" ", boxWidth-width)
}

func printBanner(cfg webconfig.Config) {
	line := func(s string) { fmt.Printf("  ║  %s║\n", padLine(s)) }
	sep := "  ╠════════════════════════════════════════════════════════════╣\n"

	fmt.Printf("\n  ╔════════════════════════════════════════════════════════════╗\n")
	line(fmt.Sprintf("OSINTDeck %s", version.Version))

	// 首次启动：自动创建默认管理员用户
	userRepo := database.NewUserRepo()
	var generatedPassword string
	if count, _ := userRepo.Count(); count == 0 {
		generatedPassword = generateRandomPassword(8)
		hash, err := bcrypt.GenerateFromPassword([]byte(generatedPassword), bcrypt.DefaultCost)
		if err == nil {
			err = userRepo.Create(&database.User{
				Username:     "admin",
				PasswordHash: string(hash),
				Role:         constants.RoleAdmin,
				IsActive:     true,
			})
		}
		if err != nil {
			logger.Log.Error().Err(err).Msg("默认管理员创建失败")
			generatedPassword = ""
		} else {
			logger.Log.Info().Msg("首次启动：已自动创建管理员账户 admin")
		}
	}

	openBind := cfg.Server.Bind == "0.0.0.0" || cfg.Server.Bind == ""
	if openBind {
		fmt.Print(sep)
		line("⚠️  访问风险提示 / Access Risk Warning")
		line("当前绑定 0.0.0.0，局域网内任何设备均可访问")
		line("Binding 0.0.0.0 - accessible from any device on LAN")
	}

	if generatedPassword != "" {
		fmt.Print(sep)
		line("🔐 首次启动已自动创建管理员账户")
		line("   First-time setup: admin account created")
		line("")
		line("   用户名 / Username: admin")
		line(fmt.Sprintf("   密码 / Password:   %s", generatedPassword))
		line("")
		line("⚠️  请登录后立即修改密码！")
		line("   Please change the password after login!")
	}

	fmt.Print(sep)
	if openBind {
		line("可通过以下地址访问 / Access URLs:")
		fmt.Printf("  ╟────────────────────────────────────────────────────────────╢\n")
		line(fmt.Sprintf("➜ http://localhost:%d", cfg.Server.Port))
		line(fmt.Sprintf("➜ http://127.0.0.1:%d", cfg.Server.Port))
		if addrs, err := net.InterfaceAddrs(); err == nil {
			for _, a := range addrs {
				if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
					line(fmt.Sprintf("➜ http://%s:%d", ipnet.IP.String(), cfg.Server.Port))
				}
			}
		}
	} else {
		line(fmt.Sprintf("➜ http://%s:%d", cfg.Server.Bind, cfg.Server.Port))
	}
	fmt.Printf("  ╚════════════════════════════════════════════════════════════╝\n\n")
}
