package ports

import (
	"context"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
)

// EntityExtractor mapea texto libre a un set parcial de campos
// estructurados. La salida ya viene validada al récord estricto de campos
// opcionales: campos desconocidos o mal tipados se rechazan en el borde,
// no se dejan pasar.
type EntityExtractor interface {
	Extract(ctx context.Context, message string, history []models.ChatMessage) (models.Extraction, error)
}
