package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	secretmanager "google.golang.org/api/secretmanager/v1"
)

var _ ports.CredentialSource = (*SecretManagerSource)(nil)

// SecretManagerSource resuelve el token de GitHub desde Secret Manager. Si
// hay un token estático configurado (entorno local) lo devuelve directo sin
// tocar la API.
type SecretManagerSource struct {
	projectID   string
	secretName  string
	staticToken string
	service     *secretmanager.Service
}

func NewSecretManagerSource(ctx context.Context, projectID, secretName, staticToken string) (*SecretManagerSource, error) {
	src := &SecretManagerSource{
		projectID:   projectID,
		secretName:  secretName,
		staticToken: staticToken,
	}
	if staticToken != "" {
		return src, nil
	}
	if projectID == "" || secretName == "" {
		return nil, fmt.Errorf("sin token estático hace falta project_id y token_secret_name")
	}

	service, err := secretmanager.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("error al crear el cliente de Secret Manager: %w", err)
	}
	src.service = service
	return src, nil
}

func (s *SecretManagerSource) GitHubToken(ctx context.Context) (string, error) {
	if s.staticToken != "" {
		return s.staticToken, nil
	}

	name := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", s.projectID, s.secretName)
	resp, err := s.service.Projects.Secrets.Versions.Access(name).Context(ctx).Do()
	if err != nil {
		return "", domainerrors.NewAuthError("secretmanager", err)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", domainerrors.NewAuthError("secretmanager", fmt.Errorf("payload ilegible: %w", err))
	}

	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", domainerrors.NewAuthError("secretmanager", fmt.Errorf("el secreto '%s' está vacío", s.secretName))
	}
	return token, nil
}
