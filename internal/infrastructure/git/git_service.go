package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
)

var _ ports.GitService = (*GitService)(nil)

// GitService opera contra el repositorio de hosting usando go-git puro, sin
// binario git en el container del worker.
type GitService struct {
	repoURL     string
	authorName  string
	authorEmail string
	now         func() time.Time
}

func NewGitService(repoURL, authorName, authorEmail string) *GitService {
	return &GitService{
		repoURL:     repoURL,
		authorName:  authorName,
		authorEmail: authorEmail,
		now:         time.Now,
	}
}

func (s *GitService) auth(token string) *githttp.BasicAuth {
	if token == "" {
		return nil
	}
	// Para GitHub el username es decorativo, el PAT va de password.
	return &githttp.BasicAuth{Username: "x-access-token", Password: token}
}

func (s *GitService) Clone(ctx context.Context, dir, token string) error {
	_, err := gogit.PlainCloneContext(ctx, dir, false, &gogit.CloneOptions{
		URL:   s.repoURL,
		Auth:  s.auth(token),
		Depth: 1,
	})
	if err != nil {
		return fmt.Errorf("error al clonar %s: %w", s.repoURL, err)
	}
	return nil
}

func (s *GitService) CreateBranch(dir, branch string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("error al abrir el repositorio: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("error al obtener el worktree: %w", err)
	}
	err = wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
		Keep:   true,
	})
	if err != nil {
		return fmt.Errorf("error al crear la branch '%s': %w", branch, err)
	}
	return nil
}

// CommitFile stagea el archivo y commitea. Si el working tree ya estaba
// limpio (redelivery con el contenido ya commiteado en la base) devuelve
// false sin error.
func (s *GitService) CommitFile(dir, relPath, message string) (bool, error) {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return false, fmt.Errorf("error al abrir el repositorio: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("error al obtener el worktree: %w", err)
	}

	if _, err := wt.Add(relPath); err != nil {
		return false, fmt.Errorf("error al agregar '%s': %w", relPath, err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("error al leer el estado del worktree: %w", err)
	}
	if status.IsClean() {
		return false, nil
	}

	_, err = wt.Commit(message, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  s.authorName,
			Email: s.authorEmail,
			When:  s.now(),
		},
	})
	if err != nil {
		return false, fmt.Errorf("error al commitear '%s': %w", relPath, err)
	}
	return true, nil
}

func (s *GitService) Push(ctx context.Context, dir, branch, token string) error {
	repo, err := gogit.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("error al abrir el repositorio: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       s.auth(token),
	})
	if err != nil {
		if errors.Is(err, gogit.NoErrAlreadyUpToDate) {
			return nil
		}
		if strings.Contains(err.Error(), "non-fast-forward") {
			return ports.ErrBranchCollision
		}
		return fmt.Errorf("error al pushear la branch '%s': %w", branch, err)
	}
	return nil
}

// RemoteBranchExists lista las referencias del remoto sin clonar.
func (s *GitService) RemoteBranchExists(ctx context.Context, branch, token string) (bool, error) {
	remote := gogit.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{s.repoURL},
	})

	refs, err := remote.ListContext(ctx, &gogit.ListOptions{Auth: s.auth(token)})
	if err != nil {
		return false, fmt.Errorf("error al listar referencias remotas: %w", err)
	}

	want := plumbing.NewBranchReferenceName(branch)
	for _, ref := range refs {
		if ref.Name() == want {
			return true, nil
		}
	}
	return false, nil
}
