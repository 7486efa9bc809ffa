package ports

import "context"

// PullRequestInfo es lo mínimo que el pipeline necesita de un PR abierto.
type PullRequestInfo struct {
	Number int
	URL    string
}

// VCSClient habla con la API del hosting del repositorio.
type VCSClient interface {
	// CreatePullRequest abre un PR y devuelve su URL. Si el hosting
	// responde que ya existe un PR para esa branch, devuelve
	// ConflictError.
	CreatePullRequest(ctx context.Context, title, body, head, base string) (string, error)
	// FindOpenPullRequest busca entre los PRs abiertos uno cuyo cuerpo
	// contenga el marcador dado (el "Request ID" del pedido). Devuelve nil
	// si no hay ninguno.
	FindOpenPullRequest(ctx context.Context, marker string) (*PullRequestInfo, error)
	DefaultBranch(ctx context.Context) (string, error)
}
