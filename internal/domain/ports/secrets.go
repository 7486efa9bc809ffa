package ports

import "context"

// CredentialSource resuelve la credencial de git/hosting al arrancar una
// corrida. Una falla acá es AuthError: fatal para el job, no redeliverable.
type CredentialSource interface {
	GitHubToken(ctx context.Context) (string, error)
}
