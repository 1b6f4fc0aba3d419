package main

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expenses/internal/amqp"
	"expenses/internal/cli"
	"expenses/internal/client"
	"expenses/internal/config"
	applog "expenses/internal/log"
	"expenses/internal/sheets/google"
	"expenses/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := config.Load()
	logger := applog.Setup(cfg.LogLevel, applog.ComponentWorker)
	cfg = cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, stop := cli.SignalContext()
	defer stop()

	logger.Info("Starting expenses-worker", applog.FieldOperation, applog.OpStartup)

	mirror, err := google.New(ctx, google.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets mirror", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Google Sheets mirror ready", "sheet", mirror.Sheet())

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	syncWorker := worker.NewSyncWorker(mirror)
	reconciler := worker.NewReconciler(
		client.New(cfg.APIURL, client.WithTimeout(cfg.ClientTimeout)),
		mirror,
		worker.ReconcilerConfig{Interval: cfg.ReconcileInterval},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeExpenseEvents(gctx, syncWorker.HandleEvent)
	})
	g.Go(func() error {
		if err := reconciler.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return reconciler.Stop(stopCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		logger.Error("Worker stopped with error", applog.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}
