package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

var _ ports.VCSClient = (*GitHubClient)(nil)

// PullRequestsService es el subset de la API de PRs que usamos, para poder
// mockearlo en los tests.
type PullRequestsService interface {
	Create(ctx context.Context, owner, repo string, pull *github.NewPullRequest) (*github.PullRequest, *github.Response, error)
	List(ctx context.Context, owner, repo string, opts *github.PullRequestListOptions) ([]*github.PullRequest, *github.Response, error)
}

type RepositoriesService interface {
	Get(ctx context.Context, owner, repo string) (*github.Repository, *github.Response, error)
}

type GitHubClient struct {
	prService   PullRequestsService
	repoService RepositoriesService
	owner       string
	repo        string
}

func NewGitHubClient(owner, repo, token string) *GitHubClient {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	client := github.NewClient(httpClient)
	return &GitHubClient{
		prService:   client.PullRequests,
		repoService: client.Repositories,
		owner:       owner,
		repo:        repo,
	}
}

func NewGitHubClientWithServices(prService PullRequestsService, repoService RepositoriesService, owner, repo string) *GitHubClient {
	return &GitHubClient{
		prService:   prService,
		repoService: repoService,
		owner:       owner,
		repo:        repo,
	}
}

// CreatePullRequest abre el PR y devuelve su URL. Un 422 del hosting
// significa que ya hay un PR para esa branch: se devuelve ConflictError y
// el caller lo resuelve buscando el PR existente.
func (ghc *GitHubClient) CreatePullRequest(ctx context.Context, title, body, head, base string) (string, error) {
	pr, resp, err := ghc.prService.Create(ctx, ghc.owner, ghc.repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		if resp != nil {
			switch resp.StatusCode {
			case http.StatusUnprocessableEntity:
				return "", domainerrors.NewConflictError("pull_request", head)
			case http.StatusUnauthorized, http.StatusForbidden:
				return "", domainerrors.NewAuthError("github", err)
			}
		}
		return "", domainerrors.NewExternalServiceError("github", "create_pull_request", err)
	}
	return pr.GetHTMLURL(), nil
}

// FindOpenPullRequest recorre los PRs abiertos buscando el marcador del
// pedido en el cuerpo. Es la clave del lookup idempotente bajo redelivery.
func (ghc *GitHubClient) FindOpenPullRequest(ctx context.Context, marker string) (*ports.PullRequestInfo, error) {
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		prs, resp, err := ghc.prService.List(ctx, ghc.owner, ghc.repo, opts)
		if err != nil {
			return nil, domainerrors.NewExternalServiceError("github", "list_pull_requests", err)
		}
		for _, pr := range prs {
			if strings.Contains(pr.GetBody(), marker) {
				return &ports.PullRequestInfo{
					Number: pr.GetNumber(),
					URL:    pr.GetHTMLURL(),
				}, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

func (ghc *GitHubClient) DefaultBranch(ctx context.Context) (string, error) {
	repo, _, err := ghc.repoService.Get(ctx, ghc.owner, ghc.repo)
	if err != nil {
		return "", domainerrors.NewExternalServiceError("github", "get_repository", err)
	}
	if repo.GetDefaultBranch() == "" {
		return "", fmt.Errorf("el repositorio %s/%s no informa default branch", ghc.owner, ghc.repo)
	}
	return repo.GetDefaultBranch(), nil
}
