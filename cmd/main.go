package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Tomas-vilte/MateDataset/internal/cli/command/reconcile"
	"github.com/Tomas-vilte/MateDataset/internal/cli/command/serve"
	"github.com/Tomas-vilte/MateDataset/internal/cli/command/worker"
	"github.com/Tomas-vilte/MateDataset/internal/cli/registry"
	cfg "github.com/Tomas-vilte/MateDataset/internal/config"
	"github.com/Tomas-vilte/MateDataset/internal/i18n"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Error iniciando la cli: %v", err)
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func initializeApp() (*cli.Command, error) {
	// el .env es opcional, en despliegue todo llega por variables de entorno
	_ = godotenv.Load()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("no se pudo obtener el directorio del usuario: %w", err)
	}

	cfgApp, err := cfg.LoadConfig(homeDir)
	if err != nil {
		return nil, err
	}

	translations, err := i18n.NewTranslations(cfgApp.Language, "")
	if err != nil {
		return nil, fmt.Errorf("error al cargar las traducciones: %w", err)
	}

	if err := cfg.SaveConfig(cfgApp); err != nil {
		return nil, err
	}

	logger.Initialize(os.Getenv("DEBUG") != "", false)

	registerCommand := registry.NewRegistry(cfgApp, translations)

	if err := registerCommand.Register("serve", serve.NewServeCommandFactory()); err != nil {
		return nil, fmt.Errorf("error al registrar el comando 'serve': %w", err)
	}
	if err := registerCommand.Register("worker", worker.NewWorkerCommandFactory()); err != nil {
		return nil, fmt.Errorf("error al registrar el comando 'worker': %w", err)
	}
	if err := registerCommand.Register("reconcile", reconcile.NewReconcileCommandFactory()); err != nil {
		return nil, fmt.Errorf("error al registrar el comando 'reconcile': %w", err)
	}

	app := &cli.Command{
		Name:     "matedataset",
		Usage:    translations.GetMessage("app_usage", 0, nil),
		Commands: registerCommand.CreateCommands(),
	}
	return app, nil
}
