package services

import (
	"context"
	"time"

	"github.com/Tomas-vilte/MateDataset/internal/domain/models"
	"github.com/Tomas-vilte/MateDataset/internal/domain/ports"
	"github.com/stretchr/testify/mock"
)

// MockConversationStore es un mock de ports.ConversationStore.
type MockConversationStore struct {
	mock.Mock
}

func (m *MockConversationStore) Get(ctx context.Context, sessionID string) (*models.ConversationState, error) {
	args := m.Called(ctx, sessionID)
	if state, ok := args.Get(0).(*models.ConversationState); ok {
		return state, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockConversationStore) Save(ctx context.Context, state *models.ConversationState) error {
	args := m.Called(ctx, state)
	return args.Error(0)
}

// MockRequestStore es un mock de ports.RequestStore.
type MockRequestStore struct {
	mock.Mock
}

func (m *MockRequestStore) Create(ctx context.Context, req *models.DatasetRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

func (m *MockRequestStore) Get(ctx context.Context, requestID string) (*models.DatasetRequest, error) {
	args := m.Called(ctx, requestID)
	if req, ok := args.Get(0).(*models.DatasetRequest); ok {
		return req, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRequestStore) SetStatus(ctx context.Context, requestID string, status models.RequestStatus, prURL, errMsg string) error {
	args := m.Called(ctx, requestID, status, prURL, errMsg)
	return args.Error(0)
}

// MockEntityExtractor es un mock de ports.EntityExtractor.
type MockEntityExtractor struct {
	mock.Mock
}

func (m *MockEntityExtractor) Extract(ctx context.Context, message string, history []models.ChatMessage) (models.Extraction, error) {
	args := m.Called(ctx, message, history)
	if extraction, ok := args.Get(0).(models.Extraction); ok {
		return extraction, args.Error(1)
	}
	return models.Extraction{}, args.Error(1)
}

// MockPublisher es un mock de ports.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg models.QueueMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// MockJobTrigger es un mock de ports.JobTrigger.
type MockJobTrigger struct {
	mock.Mock
}

func (m *MockJobTrigger) TriggerNow(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockGitService es un mock de ports.GitService.
type MockGitService struct {
	mock.Mock
}

func (m *MockGitService) Clone(ctx context.Context, dir, token string) error {
	args := m.Called(ctx, dir, token)
	return args.Error(0)
}

func (m *MockGitService) CreateBranch(dir, branch string) error {
	args := m.Called(dir, branch)
	return args.Error(0)
}

func (m *MockGitService) CommitFile(dir, relPath, message string) (bool, error) {
	args := m.Called(dir, relPath, message)
	return args.Bool(0), args.Error(1)
}

func (m *MockGitService) Push(ctx context.Context, dir, branch, token string) error {
	args := m.Called(ctx, dir, branch, token)
	return args.Error(0)
}

func (m *MockGitService) RemoteBranchExists(ctx context.Context, branch, token string) (bool, error) {
	args := m.Called(ctx, branch, token)
	return args.Bool(0), args.Error(1)
}

// MockVCSClient es un mock de ports.VCSClient.
type MockVCSClient struct {
	mock.Mock
}

func (m *MockVCSClient) CreatePullRequest(ctx context.Context, title, body, head, base string) (string, error) {
	args := m.Called(ctx, title, body, head, base)
	return args.String(0), args.Error(1)
}

func (m *MockVCSClient) FindOpenPullRequest(ctx context.Context, marker string) (*ports.PullRequestInfo, error) {
	args := m.Called(ctx, marker)
	if info, ok := args.Get(0).(*ports.PullRequestInfo); ok {
		return info, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockVCSClient) DefaultBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockCredentialSource es un mock de ports.CredentialSource.
type MockCredentialSource struct {
	mock.Mock
}

func (m *MockCredentialSource) GitHubToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// MockConsumer es un mock de ports.Consumer.
type MockConsumer struct {
	mock.Mock
}

func (m *MockConsumer) Receive(ctx context.Context, handler func(ctx context.Context, d ports.Delivery)) error {
	args := m.Called(ctx, handler)
	return args.Error(0)
}

// MockDelivery es un mock de ports.Delivery.
type MockDelivery struct {
	mock.Mock
}

func (m *MockDelivery) Body() []byte {
	args := m.Called()
	if body, ok := args.Get(0).([]byte); ok {
		return body
	}
	return nil
}

func (m *MockDelivery) Attempt() int {
	args := m.Called()
	return args.Int(0)
}

func (m *MockDelivery) Ack() {
	m.Called()
}

func (m *MockDelivery) Nack() {
	m.Called()
}

// MockStatusWatcher es un mock de ports.StatusWatcher.
type MockStatusWatcher struct {
	mock.Mock
}

func (m *MockStatusWatcher) Subscribe(id string, onUpdate func(models.DatasetRequest)) (ports.CancelHandle, error) {
	args := m.Called(id, onUpdate)
	if handle, ok := args.Get(0).(ports.CancelHandle); ok {
		return handle, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStatusWatcher) Poll(ctx context.Context, id string, interval time.Duration, maxAttempts int) (*models.DatasetRequest, error) {
	args := m.Called(ctx, id, interval, maxAttempts)
	if req, ok := args.Get(0).(*models.DatasetRequest); ok {
		return req, args.Error(1)
	}
	return nil, args.Error(1)
}
