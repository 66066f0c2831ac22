package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/pulsemetrics/engage-engine/internal/app"
	"github.com/pulsemetrics/engage-engine/internal/metrics"
	"github.com/pulsemetrics/engage-engine/internal/router"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	// Version is the binary version (tag) + build number (CI pipeline)
	Version string
	// BuildDate is the date of build
	BuildDate string
)

func main() {
	app.InitConfiguration()
	app.InitLogger()

	zap.L().Info("Starting Engage-Engine", zap.String("version", Version), zap.String("build_date", BuildDate))

	metrics.InitMetricLabels(viper.GetString("INSTANCE_NAME"))
	metrics.RegisterAll()

	app.Init()
	defer app.Stop()

	apiEnableCORS := viper.GetBool("API_ENABLE_CORS")
	serverPort := viper.GetInt("SERVER_PORT")

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", serverPort),
		Handler:      router.NewChiRouter(apiEnableCORS),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("Server listen", zap.Error(err))
		}
	}()
	zap.L().Info("Server Started", zap.String("addr", srv.Addr))

	<-done

	ctxShutDown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctxShutDown); err != nil {
		zap.L().Fatal("Server shutdown failed", zap.Error(err))
	}
	zap.L().Info("Server shutdown")
}
