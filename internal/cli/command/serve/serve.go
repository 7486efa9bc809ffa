package serve

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/Tomas-vilte/MateDataset/internal/config"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/Tomas-vilte/MateDataset/internal/i18n"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/ai/gemini"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/git"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/queue"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/secrets"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/storage"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/trigger"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/vcs/github"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
	"github.com/Tomas-vilte/MateDataset/internal/server"
	"github.com/Tomas-vilte/MateDataset/internal/services"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

type ServeCommandFactory struct{}

func NewServeCommandFactory() *ServeCommandFactory {
	return &ServeCommandFactory{}
}

func (f *ServeCommandFactory) CreateCommand(t *i18n.Translations, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   t.GetMessage("serve_command_usage", 0, nil),
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   int64(cfg.Port),
				Usage:   t.GetMessage("serve_port_flag_usage", 0, nil),
			},
		},
		Action: f.createAction(cfg, t),
	}
}

func (f *ServeCommandFactory) createAction(cfg *config.Config, t *i18n.Translations) cli.ActionFunc {
	return func(ctx context.Context, command *cli.Command) error {
		cfg.Port = int(command.Int("port"))

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		db, err := storage.Init(cfg.DatabasePath)
		if err != nil {
			return err
		}
		conversations := storage.NewConversationRepository(db)
		requests := storage.NewRequestRepository(db)

		extractor, err := gemini.NewExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		defer func() {
			if err := extractor.Close(); err != nil {
				logger.Warn(ctx, "error al cerrar el cliente de Gemini", "error", err)
			}
		}()

		group, groupCtx := errgroup.WithContext(ctx)

		var publisher ports.Publisher
		var jobTrigger ports.JobTrigger
		if cfg.IsLocalMode() {
			// En modo local todo corre en el mismo proceso: la cola es en
			// memoria y el worker y el reconciliador consumen acá mismo.
			logger.Info(ctx, "modo local: cola en memoria y worker en proceso")
			memQueue := queue.NewMemoryQueue(
				time.Duration(cfg.AckDeadlineSecs)*time.Second,
				cfg.MaxDeliveryCount,
				cfg.MaxMessages,
			)
			publisher = memQueue
			jobTrigger = trigger.NoopTrigger{}

			workerSvc, err := buildLocalWorker(ctx, cfg, requests, memQueue)
			if err != nil {
				return err
			}
			group.Go(func() error { return workerSvc.Run(groupCtx) })

			reconciler := services.NewReconcilerService(requests, memQueue.DeadLetter())
			group.Go(func() error { return reconciler.Run(groupCtx) })
		} else {
			client, err := pubsub.NewClient(ctx, cfg.ProjectID)
			if err != nil {
				return err
			}
			defer func() {
				_ = client.Close()
			}()
			publisher = queue.NewPubSubPublisher(client, cfg.Topic)

			jobTrigger, err = trigger.NewCloudRunTrigger(ctx, cfg.ProjectID, cfg.Region, cfg.WorkerJobName)
			if err != nil {
				return err
			}
		}

		callTimeout := time.Duration(cfg.ExternalTimeoutSecs) * time.Second
		dispatcher := services.NewDispatcherService(requests, publisher, jobTrigger, callTimeout)
		chat := services.NewConversationService(conversations, extractor, dispatcher, t, callTimeout)
		watcher := services.NewStatusService(requests, time.Duration(cfg.WatchIntervalSecs)*time.Second)

		srv := server.New(cfg.Port, chat, requests, watcher,
			time.Duration(cfg.PollIntervalSecs)*time.Second, cfg.PollMaxAttempts)
		group.Go(func() error { return srv.Start(groupCtx) })

		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func buildLocalWorker(ctx context.Context, cfg *config.Config, requests ports.RequestStore, consumer ports.Consumer) (*services.WorkerService, error) {
	creds, err := secrets.NewSecretManagerSource(ctx, cfg.ProjectID, cfg.GitHubConfig.TokenSecretName, cfg.GitHubConfig.Token)
	if err != nil {
		return nil, err
	}
	token, err := creds.GitHubToken(ctx)
	if err != nil {
		return nil, err
	}

	gitSvc := git.NewGitService(cfg.GitHubConfig.RepoURL, cfg.GitHubConfig.CommitAuthor, cfg.GitHubConfig.CommitEmail)
	vcsClient := github.NewGitHubClient(cfg.GitHubConfig.Owner, cfg.GitHubConfig.Repo, token)

	return services.NewWorkerService(requests, consumer, gitSvc, vcsClient, creds, cfg.TerraformDir), nil
}
