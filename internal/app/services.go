package app

import (
	"github.com/pulsemetrics/engage-engine/internal/evaluator"
	"github.com/pulsemetrics/engage-engine/internal/executor"
	"github.com/pulsemetrics/engage-engine/internal/interaction"
	"github.com/pulsemetrics/engage-engine/internal/rule"
	"github.com/pulsemetrics/engage-engine/internal/scheduler"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func initRepositories() {
	rule.ReplaceGlobals(rule.NewPostgresRepository(DB()))
	interaction.ReplaceGlobals(interaction.NewPostgresRepository(DB()))
}

func initServices() {
	initExecutor()
	initScheduler()
}

func stopServices() {
	executor.E().StopBatchProcessor()
	scheduler.S().C.Stop()
}

func initExecutor() {
	gatewayTimeout := viper.GetDuration("GATEWAY_TIMEOUT")
	platform := executor.NewHTTPPlatformClient(
		viper.GetString("PLATFORM_GATEWAY_URL"),
		viper.GetString("PLATFORM_GATEWAY_API_KEY"),
		gatewayTimeout,
	)
	responder := executor.NewHTTPResponder(
		viper.GetString("AI_GATEWAY_URL"),
		viper.GetString("AI_GATEWAY_API_KEY"),
		gatewayTimeout,
	)
	executor.ReplaceGlobals(executor.NewExecutor(platform, responder))
	executor.E().StartBatchProcessor()
}

func initScheduler() {
	conditionEvaluator := evaluator.NewHTTPConditionEvaluator(
		viper.GetString("AI_GATEWAY_URL"),
		viper.GetString("AI_GATEWAY_API_KEY"),
		viper.GetDuration("GATEWAY_TIMEOUT"),
	)
	prefetcher := executor.NewHTTPPlatformClient(
		viper.GetString("PLATFORM_GATEWAY_URL"),
		viper.GetString("PLATFORM_GATEWAY_API_KEY"),
		viper.GetDuration("GATEWAY_TIMEOUT"),
	)

	scheduler.ReplaceGlobals(scheduler.NewScheduler(
		scheduler.ConfigFromViper(),
		interaction.R(),
		conditionEvaluator,
		executor.E(),
		prefetcher,
	))

	job := scheduler.DispatchJob{
		Scope:     viper.GetString("DISPATCH_SCOPE"),
		BatchSize: viper.GetInt("DISPATCH_BATCH_SIZE"),
	}
	if _, err := scheduler.S().C.AddJob(viper.GetString("DISPATCH_CRON"), job); err != nil {
		zap.L().Error("Couldn't register the dispatch cron job", zap.Error(err))
		return
	}
	if viper.GetBool("ENABLE_CRONS_ON_START") {
		scheduler.S().C.Start()
	}
}
