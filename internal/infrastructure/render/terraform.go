package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"text/template"

	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
)

// Los identificadores se validan contra estos sets de caracteres ANTES de
// pasar por el template, para que nada inyecte HCL en el archivo generado.
var (
	datasetNameRe    = regexp.MustCompile(`^[a-z0-9_]+$`)
	locationRe       = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	labelKeyRe       = regexp.MustCompile(`^[a-z0-9_-]+$`)
	labelValueRe     = regexp.MustCompile(`^[a-z0-9_-]*$`)
	serviceAccountRe = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
)

const datasetTemplate = `resource "google_bigquery_dataset" "{{ .DatasetName }}" {
  dataset_id = "{{ .DatasetName }}"
  location   = "{{ .Location }}"

  labels = {
{{- range .Labels }}
    {{ .Key }} = "{{ .Value }}"
{{- end }}
  }

  access {
    role          = "OWNER"
    user_by_email = "{{ .ServiceAccount }}"
  }
}
`

var tmpl = template.Must(template.New("bigquery_dataset").Parse(datasetTemplate))

type labelPair struct {
	Key   string
	Value string
}

type templateData struct {
	DatasetName    string
	Location       string
	Labels         []labelPair
	ServiceAccount string
}

// SanitizeDatasetName normaliza el nombre como lo hace el extractor del
// lado del chat: minúsculas y guiones/espacios a guión bajo.
func SanitizeDatasetName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return name
}

// ValidatePayload chequea los cuatro campos contra los sets de caracteres
// permitidos. Devuelve ValidationError en el primer campo inválido.
func ValidatePayload(payload models.RequestPayload) error {
	if !datasetNameRe.MatchString(payload.DatasetName) {
		return domainerrors.NewValidationError(models.FieldDatasetName,
			fmt.Sprintf("'%s' inválido: solo minúsculas, números y guión bajo", payload.DatasetName))
	}
	if !locationRe.MatchString(payload.Location) {
		return domainerrors.NewValidationError(models.FieldLocation,
			fmt.Sprintf("'%s' inválido: solo letras, números y guiones", payload.Location))
	}
	for key, value := range payload.Labels {
		if !labelKeyRe.MatchString(key) {
			return domainerrors.NewValidationError(models.FieldLabels,
				fmt.Sprintf("clave de label '%s' inválida", key))
		}
		if !labelValueRe.MatchString(value) {
			return domainerrors.NewValidationError(models.FieldLabels,
				fmt.Sprintf("valor de label '%s' inválido", value))
		}
	}
	if !serviceAccountRe.MatchString(payload.ServiceAccount) {
		return domainerrors.NewValidationError(models.FieldServiceAccount,
			fmt.Sprintf("'%s' no parece un email de service account", payload.ServiceAccount))
	}
	return nil
}

// Dataset genera el bloque de recurso Terraform para el payload ya
// validado. Los labels salen ordenados por clave para que el contenido sea
// determinístico entre corridas (la comparación de idempotencia depende de
// eso).
func Dataset(payload models.RequestPayload) (string, error) {
	if err := ValidatePayload(payload); err != nil {
		return "", err
	}

	keys := make([]string, 0, len(payload.Labels))
	for key := range payload.Labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	labels := make([]labelPair, 0, len(keys))
	for _, key := range keys {
		labels = append(labels, labelPair{Key: key, Value: payload.Labels[key]})
	}

	var b strings.Builder
	err := tmpl.Execute(&b, templateData{
		DatasetName:    payload.DatasetName,
		Location:       payload.Location,
		Labels:         labels,
		ServiceAccount: payload.ServiceAccount,
	})
	if err != nil {
		return "", fmt.Errorf("error al renderizar el template: %w", err)
	}
	return b.String(), nil
}

// Filename deriva el nombre de archivo determinísticamente del dataset.
func Filename(datasetName string) string {
	return datasetName + ".tf"
}
