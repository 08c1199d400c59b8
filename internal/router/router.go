package router

import (
	"time"

	"github.com/Ambrosio03/TFG/internal/config"
	"github.com/Ambrosio03/TFG/internal/handler"
	"github.com/Ambrosio03/TFG/internal/middleware"
	"github.com/Ambrosio03/TFG/internal/model"
	"github.com/Ambrosio03/TFG/internal/realtime"
	"github.com/Ambrosio03/TFG/internal/repository"
	"github.com/Ambrosio03/TFG/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the infrastructure handles built by the composition root.
// Redis, Hub and Notificador may be nil; the features behind them are skipped.
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Hub         *realtime.Hub
	Images      service.ImageStorage
	Notificador service.Notificador
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	metrics := middleware.NewMetrics("api")

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(metrics.Middleware())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	cacheTTL := time.Duration(cfg.CatalogCacheTTLMinutes) * time.Minute

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(deps.DB)
	productoRepo := repository.NewProductoRepository(deps.DB)
	carritoRepo := repository.NewCarritoRepository(deps.DB)
	pedidoRepo := repository.NewPedidoRepository(deps.DB)
	movimientoRepo := repository.NewMovimientoStockRepository(deps.DB)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)
	productoSvc := service.NewProductoService(productoRepo, movimientoRepo, deps.Images, deps.Redis, cacheTTL)
	carritoSvc := service.NewCarritoService(carritoRepo, productoRepo, usuarioRepo)
	opts := service.PedidoOptions{
		StrictTransitions: cfg.OrderStrictTransitions,
		Notificador:       deps.Notificador,
		Redis:             deps.Redis,
		CacheTTL:          cacheTTL,
	}
	if deps.Hub != nil {
		opts.Eventos = deps.Hub
	}
	pedidoSvc := service.NewPedidoService(pedidoRepo, carritoRepo, productoRepo, usuarioRepo, movimientoRepo, opts)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usuariosH := handler.NewUsuariosHandler(authSvc)
	productosH := handler.NewProductosHandler(productoSvc)
	carritoH := handler.NewCarritoHandler(carritoSvc)
	pedidosH := handler.NewPedidosHandler(pedidoSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(deps.DB, deps.Redis))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	r.Static("/images/products", cfg.ImageStoragePath)

	r.POST("/login", middleware.LoginRateLimiter(5), authH.Login)
	r.POST("/register", middleware.LoginRateLimiter(5), authH.Register)

	r.GET("/product", productosH.ListarVisibles)
	r.GET("/product/:id", productosH.ObtenerPorID)
	r.GET("/product/:id/check-stock", productosH.CheckStock)

	// Authenticated (cliente or admin); ownership is checked per handler
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	authed := r.Group("", jwtMW)
	{
		authed.GET("/user/me", authH.Me)

		authed.GET("/cart/:userId", carritoH.Obtener)
		authed.POST("/cart/add", carritoH.Agregar)
		authed.PUT("/cart/update/:itemId", carritoH.ActualizarCantidad)
		authed.DELETE("/cart/remove/:itemId", carritoH.EliminarItem)

		authed.POST("/pedidos/crear", pedidosH.Crear)
		authed.GET("/pedidos/:id", pedidosH.ObtenerPorID)
		authed.GET("/pedidos/:id/comprobante", pedidosH.Comprobante)
		authed.GET("/pedidos/usuario/:userId", pedidosH.ListarPorUsuario)
		authed.GET("/pedidos/mis-pedidos/:userId", pedidosH.MisPedidos)
		authed.GET("/pedidos/items/:pedidoId", pedidosH.Items)
	}

	// Administration: ROLE_ADMIN only
	admin := r.Group("", jwtMW, middleware.RequireRole(string(model.RolAdmin)))
	{
		admin.GET("/product/all", productosH.ListarTodos)
		admin.POST("/product", productosH.Crear)
		admin.PUT("/product/:id", productosH.Actualizar)
		admin.PATCH("/product/:id", productosH.Actualizar)
		admin.DELETE("/product/:id", productosH.Eliminar)
		admin.PATCH("/product/:id/stock", productosH.AjustarStock)
		admin.GET("/product/:id/movimientos", productosH.Movimientos)
		admin.POST("/product/import-csv", productosH.ImportarCSV)
		admin.POST("/product/import-xlsx", productosH.ImportarExcel)
		admin.GET("/product/export-xlsx", productosH.ExportarExcel)

		admin.GET("/pedidos", pedidosH.Listar)
		admin.GET("/pedidos/items", pedidosH.ItemsTodos)
		admin.PATCH("/pedidos/:id/estado", pedidosH.ActualizarEstado)

		admin.GET("/user", usuariosH.Listar)
		admin.POST("/user", usuariosH.Crear)
		admin.GET("/users", usuariosH.Listar)
		admin.PUT("/users/:id/role", usuariosH.CambiarRol)
		admin.PATCH("/users/:id/role", usuariosH.CambiarRol)
		admin.PUT("/users/:id/block", usuariosH.CambiarBloqueo)
		admin.PATCH("/users/:id/block", usuariosH.CambiarBloqueo)
	}

	// Browsers cannot set headers on a websocket handshake: token goes in the query.
	if deps.Hub != nil {
		r.GET("/ws/pedidos",
			middleware.JWTAuthQuery(cfg.JWTSecret),
			middleware.RequireRole(string(model.RolAdmin)),
			handler.PedidosWS(deps.Hub),
		)
	}

	// Swagger UI, only enabled outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
