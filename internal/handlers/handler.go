package handlers

import (
	"atmeex_cloud/internal/logger"
	"atmeex_cloud/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	gatherer prometheus.Gatherer
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
// A nil gatherer serves an empty registry on /metrics.
func NewHandler(services *service.Service, gatherer prometheus.Gatherer, log *logger.Logger) *Handler {
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	return &Handler{services: services, gatherer: gatherer, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	router.GET("/metrics", h.metrics())

	h.registerAuthRoutes(router)
	h.registerAPIRoutes(router)

	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerFlowRoutes(api)
		h.registerEntryRoutes(api)
		h.registerClimateRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerFlowRoutes(api *gin.RouterGroup) {
	flows := api.Group("/flows")
	{
		flows.GET("/user", h.showUserForm)
		// Body example: {"email":"me@example.com","password":"secret"}
		flows.POST("/user", h.submitUserStep)
	}
}

func (h *Handler) registerEntryRoutes(api *gin.RouterGroup) {
	entries := api.Group("/entries")
	{
		entries.GET("", h.listEntries)
		entries.DELETE("/:id", h.deleteEntry)
	}
}

func (h *Handler) registerClimateRoutes(api *gin.RouterGroup) {
	climate := api.Group("/climate")
	{
		climate.GET("", h.listClimates)
		climate.GET("/:entity_id", h.getClimate)
		climate.POST("/:entity_id/hvac_mode", h.setHVACMode)
		climate.POST("/:entity_id/fan_mode", h.setFanMode)
		climate.POST("/:entity_id/temperature", h.setTemperature)
		climate.POST("/:entity_id/turn_on", h.turnOn)
		climate.POST("/:entity_id/turn_off", h.turnOff)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
