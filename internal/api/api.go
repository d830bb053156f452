package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/autoreorder/internal/api/handlers"
	"github.com/andresuchdata/autoreorder/internal/api/middleware"
	"github.com/andresuchdata/autoreorder/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Services struct {
	Cycles    *service.CycleService
	Orders    *service.OrderService
	Rules     *service.RuleService
	Inventory *service.InventoryService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID(), middleware.Logger(), middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")
	if services == nil {
		return router
	}

	if services.Cycles != nil {
		cycleHandler := handlers.NewCycleHandler(services.Cycles)
		cycleGroup := apiGroup.Group("/cycles")
		{
			cycleGroup.POST("", cycleHandler.RunUpload)
			cycleGroup.GET("/runs", cycleHandler.RecentRuns)
		}
	}

	if services.Orders != nil {
		orderHandler := handlers.NewOrderHandler(services.Orders)
		orderGroup := apiGroup.Group("/orders")
		{
			orderGroup.GET("", orderHandler.ListOrders)
			orderGroup.GET("/:id", orderHandler.GetOrder)
			orderGroup.POST("/:id/transition", orderHandler.Transition)
		}
	}

	if services.Rules != nil {
		ruleHandler := handlers.NewRuleHandler(services.Rules)
		apiGroup.GET("/rules", ruleHandler.ListRules)
		apiGroup.PUT("/rules", ruleHandler.RegisterRules)
	}

	if services.Inventory != nil && services.Cycles != nil {
		inventoryHandler := handlers.NewInventoryHandler(services.Inventory, services.Cycles)
		apiGroup.GET("/alerts/state", inventoryHandler.GetAlertState)
		inventoryGroup := apiGroup.Group("/inventory")
		{
			inventoryGroup.GET("", inventoryHandler.ListMaterials)
			inventoryGroup.GET("/:material/summary", inventoryHandler.GetSummary)
			inventoryGroup.GET("/:material/periods", inventoryHandler.GetPeriods)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
