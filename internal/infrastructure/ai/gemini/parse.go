package gemini

import (
	"fmt"

	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/google/generative-ai-go/genai"
)

// parseResponse busca la function call en la respuesta del modelo y valida
// sus argumentos al récord estricto de campos opcionales.
func parseResponse(resp *genai.GenerateContentResponse) (models.Extraction, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return models.Extraction{}, domainerrors.NewExternalServiceError(
			"gemini", "parse_response", fmt.Errorf("el modelo no devolvió candidatos"))
	}

	content := resp.Candidates[0].Content
	if content == nil {
		return models.Extraction{}, domainerrors.NewExternalServiceError(
			"gemini", "parse_response", fmt.Errorf("el candidato no tiene contenido"))
	}

	for _, part := range content.Parts {
		call, ok := part.(genai.FunctionCall)
		if !ok || call.Name != extractFunctionName {
			continue
		}
		return validateArgs(call.Args)
	}

	// El modelo contestó texto en vez de usar la función: no hay entidades,
	// el caller repregunta.
	return models.Extraction{}, domainerrors.NewExternalServiceError(
		"gemini", "parse_response", fmt.Errorf("el modelo no usó function calling"))
}

// validateArgs convierte el blob sin tipar de la function call en una
// Extraction. Campos desconocidos o con un tipo que no sea string se
// rechazan acá, en el borde, en vez de dejarlos pasar al estado.
func validateArgs(args map[string]any) (models.Extraction, error) {
	var out models.Extraction
	for key, raw := range args {
		value, ok := raw.(string)
		if !ok {
			return models.Extraction{}, domainerrors.NewValidationError(
				key, fmt.Sprintf("tipo inesperado %T, se esperaba string", raw))
		}
		switch key {
		case models.FieldDatasetName:
			out.DatasetName = value
		case models.FieldLocation:
			out.Location = value
		case models.FieldLabels:
			out.Labels = value
		case models.FieldServiceAccount:
			out.ServiceAccount = value
		default:
			return models.Extraction{}, domainerrors.NewValidationError(
				key, "campo desconocido en la extracción")
		}
	}
	return out, nil
}
