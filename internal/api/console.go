package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/annel0/meadow-world/internal/auth"
	"github.com/annel0/meadow-world/internal/eventbus"
	"github.com/annel0/meadow-world/internal/layers"
	"github.com/annel0/meadow-world/internal/logging"
	"github.com/annel0/meadow-world/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Console отладочная REST-консоль менеджера миров
type Console struct {
	router    *gin.Engine
	manager   *layers.Manager
	operators auth.OperatorRepository
	port      string
	metrics   *ServerMetrics
	server    *http.Server
	bus       eventbus.EventBus
	upgrader  websocket.Upgrader
}

// Config содержит конфигурацию консоли
type Config struct {
	Port        string                  // адрес, например ":8088"
	Manager     *layers.Manager         // менеджер миров
	Operators   auth.OperatorRepository // операторы консоли
	Bus         eventbus.EventBus       // nil = поток /api/stream недоступен
	ServiceName string                  // имя сервиса для otel и метрик
	Registerer  prometheus.Registerer   // nil = дефолтный регистр
	Gatherer    prometheus.Gatherer     // nil = дефолтный регистр
}

// NewConsole создаёт консоль и настраивает маршруты
func NewConsole(config Config) *Console {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.ServiceName == "" {
		config.ServiceName = "meadow_console"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger().Handler())

	promMw := middleware.NewPrometheusMiddleware("console", config.Registerer)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Gatherer)

	c := &Console{
		router:    router,
		manager:   config.Manager,
		operators: config.Operators,
		port:      config.Port,
		metrics:   NewServerMetrics(),
		bus:       config.Bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // консоль отладочная, доступ закрыт JWT
			},
		},
	}
	c.setupRoutes()
	return c
}

// Handler возвращает http.Handler консоли (для тестов и встраивания)
func (c *Console) Handler() http.Handler {
	return c.router
}

func (c *Console) setupRoutes() {
	api := c.router.Group("/api")

	api.POST("/auth/login", c.handleLogin)

	// Чтение доступно любому оператору
	read := api.Group("/")
	read.Use(c.jwtMiddleware())
	{
		read.GET("/layers", c.handleLayers)
		read.GET("/layers/:layer/cells/:x/:y", c.handleCell)
		read.GET("/server", c.handleServerInfo)
		read.GET("/stream", c.handleStream)
	}

	// Изменения только для авторитетных операторов
	write := api.Group("/")
	write.Use(c.jwtMiddleware(), c.authorityMiddleware())
	{
		write.POST("/worlds/:id/load", c.handleLoadWorld)
		write.POST("/layers/:layer/active", c.handleSetActive)
		write.DELETE("/layers/:layer", c.handleUnload)
		write.POST("/layers/:layer/items", c.handleSpawn)
		write.DELETE("/layers/:layer/items/:node", c.handleRemove)
		write.POST("/save", c.handleSave)
		write.POST("/observers/:id/move", c.handleMoveObserver)
	}

	c.router.GET("/health", c.handleHealth)
}

// GenericResponse общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LoginRequest запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse ответ на вход
type LoginResponse struct {
	Success       bool   `json:"success"`
	Token         string `json:"token,omitempty"`
	Message       string `json:"message"`
	Authoritative bool   `json:"authoritative,omitempty"`
}

func (c *Console) handleLogin(ctx *gin.Context) {
	var req LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, LoginResponse{Message: "Неверный формат запроса"})
		return
	}

	op, err := c.operators.ValidateCredentials(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredential) {
		ctx.JSON(http.StatusUnauthorized, LoginResponse{Message: "Неверное имя пользователя или пароль"})
		return
	}
	if err != nil {
		logging.Error("Консоль: проверка оператора %s: %v", req.Username, err)
		ctx.JSON(http.StatusInternalServerError, LoginResponse{Message: "Внутренняя ошибка сервера"})
		return
	}

	token, err := auth.GenerateJWT(op)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, LoginResponse{Message: "Ошибка создания токена"})
		return
	}

	logging.Info("🔑 Оператор %s вошёл в консоль (authoritative=%v)", op.Username, op.Authoritative)
	ctx.JSON(http.StatusOK, LoginResponse{
		Success:       true,
		Token:         token,
		Message:       "Вход выполнен",
		Authoritative: op.Authoritative,
	})
}

func (c *Console) handleServerInfo(ctx *gin.Context) {
	info := ServerInfo{
		Name:       "Meadow World Server",
		Status:     "running",
		ServerTime: time.Now().Unix(),
		Process:    c.metrics.Process(),
		Worlds:     summarizeWorlds(c.manager.Snapshot()),
	}
	if c.bus != nil {
		stats := c.bus.Metrics()
		info.Bus = &stats
	}

	ctx.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Информация о сервере",
		Data:    info,
	})
}

func (c *Console) handleHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"worlds":    len(c.manager.Layers()),
	})
}

// Start запускает HTTP-сервер (блокирующий вызов)
func (c *Console) Start() error {
	c.server = &http.Server{Addr: c.port, Handler: c.router}
	logging.Info("🖥️ Консоль миров запущена на %s", c.port)

	err := c.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop останавливает HTTP-сервер
func (c *Console) Stop(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	logging.Info("🖥️ Остановка консоли миров")
	return c.server.Shutdown(ctx)
}
