package trigger

import (
	"context"
	"fmt"

	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	run "google.golang.org/api/run/v2"
)

var _ ports.JobTrigger = (*CloudRunTrigger)(nil)

// CloudRunTrigger dispara una ejecución inmediata del job del worker. Es
// solo una optimización de latencia: si falla, el scheduler igual va a
// levantar el mensaje en la próxima corrida.
type CloudRunTrigger struct {
	jobName string
	service *run.Service
}

func NewCloudRunTrigger(ctx context.Context, projectID, region, jobID string) (*CloudRunTrigger, error) {
	service, err := run.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("error al crear el cliente de Cloud Run: %w", err)
	}
	return &CloudRunTrigger{
		jobName: fmt.Sprintf("projects/%s/locations/%s/jobs/%s", projectID, region, jobID),
		service: service,
	}, nil
}

func (t *CloudRunTrigger) TriggerNow(ctx context.Context) error {
	_, err := t.service.Projects.Locations.Jobs.
		Run(t.jobName, &run.GoogleCloudRunV2RunJobRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("error al disparar el job %s: %w", t.jobName, err)
	}
	return nil
}

// NoopTrigger se usa en modo local, donde el consumidor corre en el mismo
// proceso y no hay nada que disparar.
type NoopTrigger struct{}

var _ ports.JobTrigger = (*NoopTrigger)(nil)

func (NoopTrigger) TriggerNow(context.Context) error { return nil }
