package gemini

import (
	"context"
	"fmt"
	"strings"

	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

var _ ports.EntityExtractor = (*Extractor)(nil)

const extractFunctionName = "extract_dataset_info"

// Extractor saca los parámetros de creación del dataset de un mensaje en
// lenguaje natural usando function calling de Gemini. Temperatura baja para
// que la extracción sea lo más determinística posible.
type Extractor struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewExtractor(ctx context.Context, apiKey, modelName string) (*Extractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("falta la API key de Gemini")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("error al crear el cliente de Gemini: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.Tools = []*genai.Tool{extractionTool()}
	model.SetTemperature(0.1)
	model.SetTopP(0.95)
	model.SetTopK(20)
	model.SetMaxOutputTokens(1024)

	return &Extractor{client: client, model: model}, nil
}

func extractionTool() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        extractFunctionName,
				Description: "Extract BigQuery dataset creation parameters from user message",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						models.FieldDatasetName: {
							Type:        genai.TypeString,
							Description: "The name/identifier for the BigQuery dataset. Must contain only lowercase letters, numbers, and underscores.",
						},
						models.FieldLocation: {
							Type:        genai.TypeString,
							Description: "The GCP region or multi-region for the dataset (e.g., us-central1, EU, asia-northeast1)",
						},
						models.FieldLabels: {
							Type:        genai.TypeString,
							Description: "Comma-separated key-value pairs for labeling the dataset (e.g., 'env:prod,team:marketing')",
						},
						models.FieldServiceAccount: {
							Type:        genai.TypeString,
							Description: "The service account email that will own the dataset (e.g., sa-name@project.iam.gserviceaccount.com)",
						},
					},
				},
			},
		},
	}
}

func (e *Extractor) Extract(ctx context.Context, message string, history []models.ChatMessage) (models.Extraction, error) {
	prompt := buildPrompt(message, history)

	resp, err := e.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return models.Extraction{}, domainerrors.NewExternalServiceError("gemini", "generate_content", err)
	}

	return parseResponse(resp)
}

func (e *Extractor) Close() error {
	return e.client.Close()
}

func buildPrompt(message string, history []models.ChatMessage) string {
	var b strings.Builder
	b.WriteString(`You are a helpful assistant that extracts BigQuery dataset creation parameters from user messages.

Extract the following information:
1. dataset_name: The name of the dataset (lowercase letters, numbers, underscores only)
2. location: GCP region (e.g., us-central1, EU, asia-northeast1)
3. labels: Key-value pairs for labeling (format: "key:value" or "key=value")
4. service_account: Service account email for dataset ownership

Only extract fields that are explicitly mentioned. Leave fields empty if not provided.

`)

	if len(history) > 0 {
		b.WriteString("**Previous conversation:**\n")
		start := 0
		if len(history) > 5 {
			start = len(history) - 5
		}
		for _, msg := range history[start:] {
			b.WriteString(strings.ToUpper(msg.Role))
			b.WriteString(": ")
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("**Current user message:**\n")
	b.WriteString(message)
	b.WriteString("\n\nExtract all available dataset parameters from the conversation.")
	return b.String()
}
