package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	domainerrors "github.com/Tomas-vilte/MateDataset/internal/domain/errors"
	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/Tomas-vilte/MateDataset/internal/infrastructure/render"
	"github.com/Tomas-vilte/MateDataset/internal/logger"
)

// requestIDMarker es el prefijo del trailer que liga commits y PRs con el
// pedido que los originó. El lookup idempotente bajo redelivery depende de
// que este texto aparezca en el cuerpo del PR.
const requestIDMarker = "Request ID: "

// maxPushRetries acota los reintentos ante colisión de nombre de branch.
const maxPushRetries = 3

// WorkerService consume la cola de pedidos y corre el pipeline por mensaje:
// clone, branch, render del Terraform, commit, push y PR. Cada paso tolera
// que un intento anterior ya lo haya hecho, así que una redelivery nunca
// duplica el resultado.
type WorkerService struct {
	requests     ports.RequestStore
	consumer     ports.Consumer
	git          ports.GitService
	vcs          ports.VCSClient
	creds        ports.CredentialSource
	terraformDir string
	now          func() time.Time
	// sleep separa los reintentos de colisión para que el timestamp del
	// nombre de branch cambie. Inyectable en tests.
	sleep func(time.Duration)
}

func NewWorkerService(requests ports.RequestStore, consumer ports.Consumer, git ports.GitService, vcs ports.VCSClient, creds ports.CredentialSource, terraformDir string) *WorkerService {
	return &WorkerService{
		requests:     requests,
		consumer:     consumer,
		git:          git,
		vcs:          vcs,
		creds:        creds,
		terraformDir: terraformDir,
		now:          time.Now,
		sleep:        time.Sleep,
	}
}

// Run valida las credenciales y consume mensajes hasta que el contexto se
// cancele. Un error acá es de setup y el proceso tiene que salir con código
// distinto de cero.
func (w *WorkerService) Run(ctx context.Context) error {
	if _, err := w.creds.GitHubToken(ctx); err != nil {
		return fmt.Errorf("no se pudo resolver el token de GitHub: %w", err)
	}
	return w.consumer.Receive(ctx, w.HandleDelivery)
}

// HandleDelivery procesa una entrega y decide su destino: ack cuando el
// pedido quedó en estado terminal (éxito o falla de validación), nack en
// fallas transitorias para forzar la redelivery, y sin ack ni nack ante un
// error de credenciales, que no se arregla reintentando ya.
func (w *WorkerService) HandleDelivery(ctx context.Context, d ports.Delivery) {
	var msg models.QueueMessage
	if err := json.Unmarshal(d.Body(), &msg); err != nil {
		logger.Error(ctx, "mensaje ilegible en la cola, se descarta", err)
		d.Ack()
		return
	}
	ctx = logger.With(ctx, "request_id", msg.RequestID, "attempt", d.Attempt())

	err := w.Process(ctx, msg)
	switch {
	case err == nil:
		d.Ack()
	case domainerrors.IsValidation(err):
		// El payload nunca va a validar por más que se reintente: estado
		// terminal primero, ack después.
		logger.Warn(ctx, "pedido inválido, se marca como fallado", "error", err)
		if markErr := w.markFailed(ctx, msg.RequestID, err); markErr != nil {
			logger.Error(ctx, "no se pudo marcar el pedido como fallado", markErr)
			d.Nack()
			return
		}
		d.Ack()
	case domainerrors.IsAuth(err):
		logger.Error(ctx, "credenciales inválidas, se aborta la corrida", err)
	default:
		logger.Warn(ctx, "falla transitoria, el mensaje se vuelve a entregar", "error", err)
		d.Nack()
	}
}

func (w *WorkerService) markFailed(ctx context.Context, requestID string, cause error) error {
	if requestID == "" {
		return nil
	}
	err := w.requests.SetStatus(ctx, requestID, models.RequestFailed, "", cause.Error())
	if errors.Is(err, ports.ErrRequestNotFound) {
		return nil
	}
	return err
}

// Process corre el pipeline completo para un mensaje. Es seguro de correr
// dos veces con el mismo mensaje: los duplicados cortan temprano por el
// estado terminal del registro o por el PR abierto con el marcador.
func (w *WorkerService) Process(ctx context.Context, msg models.QueueMessage) error {
	if msg.RequestID == "" {
		return domainerrors.NewValidationError("request_id", "el mensaje no trae request_id")
	}

	req, err := w.requests.Get(ctx, msg.RequestID)
	if err != nil {
		if errors.Is(err, ports.ErrRequestNotFound) {
			return domainerrors.NewValidationError("request_id",
				fmt.Sprintf("no existe un pedido con id '%s'", msg.RequestID))
		}
		return err
	}
	if req.Status.IsTerminal() {
		logger.Info(ctx, "el pedido ya está en estado terminal, se ignora el duplicado",
			"status", string(req.Status))
		return nil
	}

	payload := msg.ToPayload()
	payload.DatasetName = render.SanitizeDatasetName(payload.DatasetName)

	content, err := render.Dataset(payload)
	if err != nil {
		return err
	}

	token, err := w.creds.GitHubToken(ctx)
	if err != nil {
		return err
	}

	// Chequeo temprano de idempotencia: si una entrega anterior ya dejó el
	// PR abierto, solo falta cerrar el estado.
	marker := requestIDMarker + msg.RequestID
	if existing, err := w.vcs.FindOpenPullRequest(ctx, marker); err != nil {
		return err
	} else if existing != nil {
		logger.Info(ctx, "ya hay un PR abierto para el pedido", "pr_url", existing.URL)
		return w.complete(ctx, msg.RequestID, existing.URL)
	}

	if err := w.requests.SetStatus(ctx, msg.RequestID, models.RequestProcessing, "", ""); err != nil {
		return err
	}

	base, err := w.vcs.DefaultBranch(ctx)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "matedataset-*")
	if err != nil {
		return fmt.Errorf("error al crear el directorio temporal: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := w.git.Clone(ctx, dir, token); err != nil {
		return err
	}

	branch, err := w.publishBranch(ctx, dir, token, payload, content, msg.RequestID)
	if err != nil {
		return err
	}

	prURL, err := w.openPullRequest(ctx, marker, payload, branch, base, msg.RequestID)
	if err != nil {
		return err
	}

	// El estado terminal se escribe ANTES del ack del mensaje: si esto
	// falla, la redelivery encuentra el PR por el marcador y lo reintenta.
	return w.complete(ctx, msg.RequestID, prURL)
}

func (w *WorkerService) complete(ctx context.Context, requestID, prURL string) error {
	if err := w.requests.SetStatus(ctx, requestID, models.RequestCompleted, prURL, ""); err != nil {
		return err
	}
	logger.Info(ctx, "pedido completado", "pr_url", prURL)
	return nil
}

// publishBranch escribe el archivo, commitea y pushea sobre una branch con
// sufijo de timestamp. Si el remoto ya tiene una branch homónima con otra
// punta, regenera el nombre y reintenta.
func (w *WorkerService) publishBranch(ctx context.Context, dir, token string, payload models.RequestPayload, content, requestID string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxPushRetries; attempt++ {
		if attempt > 0 {
			// Un segundo alcanza para que el sufijo cambie.
			w.sleep(time.Second)
		}
		branch := fmt.Sprintf("dataset/%s-%d", payload.DatasetName, w.now().Unix())

		exists, err := w.git.RemoteBranchExists(ctx, branch, token)
		if err != nil {
			return "", err
		}
		if exists {
			lastErr = ports.ErrBranchCollision
			continue
		}

		if err := w.git.CreateBranch(dir, branch); err != nil {
			return "", err
		}
		if err := w.writeTerraform(dir, payload.DatasetName, content); err != nil {
			return "", err
		}

		relPath := filepath.Join(w.terraformDir, render.Filename(payload.DatasetName))
		committed, err := w.git.CommitFile(dir, relPath, commitMessage(payload, requestID))
		if err != nil {
			return "", err
		}
		if !committed {
			logger.Debug(ctx, "el working tree ya estaba limpio, no hay commit nuevo")
		}

		err = w.git.Push(ctx, dir, branch, token)
		if err == nil {
			return branch, nil
		}
		if errors.Is(err, ports.ErrBranchCollision) {
			logger.Warn(ctx, "colisión de branch en el push, se regenera el nombre", "branch", branch)
			lastErr = err
			continue
		}
		return "", err
	}
	return "", domainerrors.NewExternalServiceError("git", "push",
		fmt.Errorf("se agotaron los reintentos de colisión de branch: %w", lastErr))
}

// writeTerraform materializa el archivo generado dentro del working tree. Si
// el archivo ya existe con el mismo contenido no toca nada, así el commit
// posterior detecta el working tree limpio.
func (w *WorkerService) writeTerraform(dir, datasetName, content string) error {
	targetDir := filepath.Join(dir, w.terraformDir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("error al crear el directorio de terraform: %w", err)
	}

	target := filepath.Join(targetDir, render.Filename(datasetName))
	if existing, err := os.ReadFile(target); err == nil && string(existing) == content {
		return nil
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return fmt.Errorf("error al escribir '%s': %w", target, err)
	}
	return nil
}

// openPullRequest abre el PR del pedido. Un conflicto del hosting significa
// que otra entrega ganó la carrera: se resuelve buscando el PR existente por
// el marcador.
func (w *WorkerService) openPullRequest(ctx context.Context, marker string, payload models.RequestPayload, branch, base, requestID string) (string, error) {
	title := fmt.Sprintf("Add BigQuery Dataset: %s", payload.DatasetName)
	prURL, err := w.vcs.CreatePullRequest(ctx, title, prBody(payload, requestID), branch, base)
	if err == nil {
		return prURL, nil
	}
	if !domainerrors.IsConflict(err) {
		return "", err
	}

	existing, findErr := w.vcs.FindOpenPullRequest(ctx, marker)
	if findErr != nil {
		return "", findErr
	}
	if existing == nil {
		return "", domainerrors.NewExternalServiceError("github", "create_pull_request",
			fmt.Errorf("el hosting reportó conflicto pero no se encontró el PR: %w", err))
	}
	return existing.URL, nil
}

func sortedLabels(labels map[string]string) []string {
	pairs := make([]string, 0, len(labels))
	for key, value := range labels {
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)
	return pairs
}

func commitMessage(payload models.RequestPayload, requestID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "feat: add BigQuery dataset %s\n\n", payload.DatasetName)
	fmt.Fprintf(&b, "- Location: %s\n", payload.Location)
	fmt.Fprintf(&b, "- Labels: %s\n", strings.Join(sortedLabels(payload.Labels), ", "))
	fmt.Fprintf(&b, "- Owner: %s\n\n", payload.ServiceAccount)
	b.WriteString(requestIDMarker + requestID)
	return b.String()
}

func prBody(payload models.RequestPayload, requestID string) string {
	var b strings.Builder
	b.WriteString("## New BigQuery Dataset\n\n")
	fmt.Fprintf(&b, "| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Dataset | `%s` |\n", payload.DatasetName)
	fmt.Fprintf(&b, "| Location | `%s` |\n", payload.Location)
	fmt.Fprintf(&b, "| Labels | `%s` |\n", strings.Join(sortedLabels(payload.Labels), ", "))
	fmt.Fprintf(&b, "| Owner | `%s` |\n\n", payload.ServiceAccount)
	b.WriteString(requestIDMarker + requestID + "\n")
	return b.String()
}
