package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/Tomas-vilte/MateDataset/internal/config"
	"github.com/Tomas-vilte/MateDataset/internal/i18n"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/git"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/queue"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/secrets"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/storage"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/vcs/github"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
	"github.com/Tomas-vilte/MateDataset/internal/services"
	"github.com/urfave/cli/v3"
)

// WorkerCommandFactory arma el comando del job batch: levanta un lote de
// mensajes de la suscripción, corre el pipeline por cada uno y termina.
type WorkerCommandFactory struct{}

func NewWorkerCommandFactory() *WorkerCommandFactory {
	return &WorkerCommandFactory{}
}

func (f *WorkerCommandFactory) CreateCommand(t *i18n.Translations, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Aliases: []string{"w"},
		Usage:   t.GetMessage("worker_command_usage", 0, nil),
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

func (f *WorkerCommandFactory) createAction(cfg *config.Config) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		if cfg.IsLocalMode() {
			return fmt.Errorf("el comando worker necesita Pub/Sub configurado; en modo local el worker corre adentro de 'serve'")
		}

		db, err := storage.Init(cfg.DatabasePath)
		if err != nil {
			return err
		}
		requests := storage.NewRequestRepository(db)

		creds, err := secrets.NewSecretManagerSource(ctx, cfg.ProjectID, cfg.GitHubConfig.TokenSecretName, cfg.GitHubConfig.Token)
		if err != nil {
			return err
		}
		token, err := creds.GitHubToken(ctx)
		if err != nil {
			return err
		}

		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return err
		}
		defer func() {
			_ = client.Close()
		}()

		gitSvc := git.NewGitService(cfg.GitHubConfig.RepoURL, cfg.GitHubConfig.CommitAuthor, cfg.GitHubConfig.CommitEmail)
		vcsClient := github.NewGitHubClient(cfg.GitHubConfig.Owner, cfg.GitHubConfig.Repo, token)
		consumer := queue.NewPubSubConsumer(client, cfg.Subscription, cfg.MaxMessages)

		workerSvc := services.NewWorkerService(requests, consumer, gitSvc, vcsClient, creds, cfg.TerraformDir)

		// El batch corre hasta vaciar la ventana de drenado; cortar por
		// timeout es el final normal del job, no un error.
		drain := time.Duration(command.Int("timeout")) * time.Second
		runCtx, cancel := context.WithTimeout(ctx, drain)
		defer cancel()

		logger.Info(ctx, "worker arrancando", "subscription", cfg.Subscription, "drain_timeout", drain)
		err = workerSvc.Run(runCtx)
		if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
			return err
		}
		logger.Info(ctx, "worker terminado")
		return nil
	}
}
