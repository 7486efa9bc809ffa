package ports

import (
	"context"
	"errors"
)

// ErrBranchCollision indica que el remoto ya tiene una branch con ese
// nombre apuntando a otra punta. El pipeline reintenta con un nombre de
// branch regenerado.
var ErrBranchCollision = errors.New("la branch ya existe en el remoto con otro contenido")

// GitService opera sobre un working tree efímero, scoped a una corrida del
// pipeline. El directorio lo crea y lo descarta el caller; acá solo se
// clona, se branchea, se commitea y se pushea.
type GitService interface {
	Clone(ctx context.Context, dir, token string) error
	// CreateBranch crea y hace checkout de la branch desde el HEAD actual.
	CreateBranch(dir, branch string) error
	// CommitFile stagea el archivo y commitea. Devuelve false si el
	// working tree ya estaba limpio (el contenido ya está commiteado).
	CommitFile(dir, relPath, message string) (bool, error)
	// Push publica la branch en el remoto. Si el remoto rechaza el push
	// porque ya existe una branch con ese nombre y otra punta, devuelve
	// ErrBranchCollision.
	Push(ctx context.Context, dir, branch, token string) error
	// RemoteBranchExists consulta el remoto sin necesidad de clone.
	RemoteBranchExists(ctx context.Context, branch, token string) (bool, error)
}
