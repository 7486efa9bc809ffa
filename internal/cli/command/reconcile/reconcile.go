package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/Tomas-vilte/MateDataset/internal/config"
	"github.com/Tomas-vilte/MateDataset/internal/i18n"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/queue"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/storage"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
	"github.com/Tomas-vilte/MateDataset/internal/services"
	"github.com/urfave/cli/v3"
)

// ReconcileCommandFactory arma el comando que drena la dead-letter y marca
// como fallados los pedidos cuyos mensajes agotaron sus entregas.
type ReconcileCommandFactory struct{}

func NewReconcileCommandFactory() *ReconcileCommandFactory {
	return &ReconcileCommandFactory{}
}

func (f *ReconcileCommandFactory) CreateCommand(t *i18n.Translations, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:    "reconcile",
		Aliases: []string{"r"},
		Usage:   t.GetMessage("reconcile_command_usage", 0, nil),
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   int64(cfg.DrainTimeoutSecs),
				Usage:   t.GetMessage("drain_timeout_flag_usage", 0, nil),
			},
		},
		Action: f.createAction(cfg),
	}
}

func (f *ReconcileCommandFactory) createAction(cfg *config.Config) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		if cfg.IsLocalMode() {
			return fmt.Errorf("el comando reconcile necesita Pub/Sub configurado; en modo local el reconciliador corre adentro de 'serve'")
		}

		db, err := storage.Init(cfg.DatabasePath)
		if err != nil {
			return err
		}
		requests := storage.NewRequestRepository(db)

		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		deadLetter := queue.NewPubSubConsumer(client, cfg.DeadLetterSubscription, cfg.MaxMessages)
		reconciler := services.NewReconcilerService(requests, deadLetter)

		drain := time.Duration(command.Int("timeout")) * time.Second
		runCtx, cancel := context.WithTimeout(ctx, drain)
		defer cancel()

		logger.Info(ctx, "reconciliador arrancando", "subscription", cfg.DeadLetterSubscription)
		err = reconciler.Run(runCtx)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info(ctx, "reconciliador terminado")
		return nil
	}
}
