package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trekvista/booking/cache"
	"github.com/trekvista/booking/config"
	"github.com/trekvista/booking/config/db"
	redisdb "github.com/trekvista/booking/config/redis"
	"github.com/trekvista/booking/logger"
	"github.com/trekvista/booking/middlewares/cors"
	"github.com/trekvista/booking/reservation"
	"github.com/trekvista/booking/reservation/store"
	"github.com/trekvista/booking/routes"
)

func init() {
	logger.InitLoggers()
	config.LoadEnv()
}

func main() {
	db.Connect()
	defer db.Close()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	pg := store.NewPostgres(db.DB)

	opts := []reservation.Option{}
	if rdb, err := redisdb.GetRedisClient(context.Background()); err != nil {
		logger.WarnLogger.Warnf("Redis unavailable, availability served from database only: %v", err)
	} else {
		opts = append(opts, reservation.WithCache(cache.NewAvailability(rdb)))
		defer redisdb.CloseRedis()
	}

	coordinator := reservation.NewCoordinator(pg, opts...)

	sweeper := reservation.NewSweeper(coordinator, pg)
	sweeper.Start()
	defer sweeper.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.CorsMiddleware())

	routes.RegisterTrekRoutes(r)
	routes.RegisterSlotRoutes(r, coordinator)
	routes.RegisterBookingRoutes(r, coordinator)
	routes.RegisterVoucherRoutes(r, coordinator)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "ok from booking service"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		fmt.Printf("Go Server listening on :%s\n", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Server failed to listen: %v\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	fmt.Println("Shutting down Go server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		fmt.Printf("Go Server forced to shutdown: %v\n", err)
	}

	fmt.Println("Go Server exited gracefully.")
}
