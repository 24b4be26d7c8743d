package tooladapter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"browserctl/internal/controlplane"
	"browserctl/pkg/apierrors"
	"browserctl/pkg/models"
)

// fakeService is a minimal controlplane.Service double: each method
// records its last request and returns whatever the test pre-loads.
type fakeService struct {
	lastCreateSession controlplane.CreateSessionRequest
	session           *models.Session
	sessionErr        error

	lastDeletedSessionID string
	deleteErr            error

	lastCreateContext controlplane.CreateContextRequest
	browserCtx        *models.Context

	lastCreatePage controlplane.CreatePageRequest
	page           *models.Page

	lastExecute controlplane.ExecuteRequest
	results     []models.ActionResult
	executeErr  error
}

func (f *fakeService) CreateSession(ctx context.Context, req controlplane.CreateSessionRequest) (*models.Session, error) {
	f.lastCreateSession = req
	return f.session, f.sessionErr
}
func (f *fakeService) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return f.session, f.sessionErr
}
func (f *fakeService) ListSessions(ctx context.Context, filter models.SessionFilter) ([]*models.Session, error) {
	if f.session == nil {
		return nil, nil
	}
	return []*models.Session{f.session}, nil
}
func (f *fakeService) DeleteSession(ctx context.Context, id string) error {
	f.lastDeletedSessionID = id
	return f.deleteErr
}
func (f *fakeService) CreateContext(ctx context.Context, req controlplane.CreateContextRequest) (*models.Context, error) {
	f.lastCreateContext = req
	return f.browserCtx, nil
}
func (f *fakeService) GetContext(ctx context.Context, sessionID, id string) (*models.Context, error) {
	return f.browserCtx, nil
}
func (f *fakeService) DeleteContext(ctx context.Context, sessionID, id string) error { return nil }
func (f *fakeService) CreatePage(ctx context.Context, req controlplane.CreatePageRequest) (*models.Page, error) {
	f.lastCreatePage = req
	return f.page, nil
}
func (f *fakeService) GetPage(ctx context.Context, contextID, id string) (*models.Page, error) {
	return f.page, nil
}
func (f *fakeService) DeletePage(ctx context.Context, contextID, id string) error { return nil }
func (f *fakeService) Execute(ctx context.Context, req controlplane.ExecuteRequest) ([]models.ActionResult, error) {
	f.lastExecute = req
	return f.results, f.executeErr
}
func (f *fakeService) StreamEvents(ctx context.Context, filter controlplane.EventFilter) (<-chan models.SessionEvent, func(), error) {
	ch := make(chan models.SessionEvent)
	close(ch)
	return ch, func() {}, nil
}

const testDefaultTTL = 30 * time.Minute

func newTestRegistry(t *testing.T, svc *fakeService) *Registry {
	t.Helper()
	r := NewRegistry()
	require.NoError(t, RegisterControlPlaneTools(r, svc, testDefaultTTL))
	return r
}

func TestRegistryListIsSortedAndComplete(t *testing.T) {
	r := newTestRegistry(t, &fakeService{})
	defs := r.List()

	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	assert.ElementsMatch(t, []string{
		"create_session", "get_session", "list_sessions", "delete_session",
		"create_context", "get_context", "delete_context",
		"create_page", "get_page", "delete_page",
		"execute_actions",
	}, names)

	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i], "List must be sorted by name")
	}
}

func TestCallUnknownToolIsError(t *testing.T) {
	r := newTestRegistry(t, &fakeService{})
	result := r.Call(context.Background(), "does_not_exist", nil)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "not found")
}

func TestCreateSessionRequiresUserID(t *testing.T) {
	r := newTestRegistry(t, &fakeService{})
	result := r.Call(context.Background(), "create_session", json.RawMessage(`{}`))
	assert.True(t, result.IsError)
}

func TestCreateSessionAppliesDefaultTTL(t *testing.T) {
	svc := &fakeService{session: &models.Session{ID: "sess-1", UserID: "u1"}}
	r := newTestRegistry(t, svc)

	result := r.Call(context.Background(), "create_session", json.RawMessage(`{"userId":"u1"}`))
	require.False(t, result.IsError)
	assert.Equal(t, testDefaultTTL, svc.lastCreateSession.TTL)
	assert.Contains(t, result.Content[0].Text, "sess-1")
}

func TestCreateSessionHonorsExplicitTTL(t *testing.T) {
	svc := &fakeService{session: &models.Session{ID: "sess-2", UserID: "u1"}}
	r := newTestRegistry(t, svc)

	result := r.Call(context.Background(), "create_session", json.RawMessage(`{"userId":"u1","ttlSecs":120}`))
	require.False(t, result.IsError)
	assert.Equal(t, 120*time.Second, svc.lastCreateSession.TTL)
}

func TestGetSessionPropagatesServiceError(t *testing.T) {
	svc := &fakeService{sessionErr: apierrors.NotFound("session", "missing")}
	r := newTestRegistry(t, svc)

	result := r.Call(context.Background(), "get_session", json.RawMessage(`{"sessionId":"missing"}`))
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "session not found")
}

func TestExecuteActionsRejectsEmptyBatch(t *testing.T) {
	r := newTestRegistry(t, &fakeService{})
	result := r.Call(context.Background(), "execute_actions", json.RawMessage(`{"sessionId":"s1","pageId":"p1","actions":[]}`))
	assert.True(t, result.IsError)
}

func TestExecuteActionsDelegatesToService(t *testing.T) {
	svc := &fakeService{results: []models.ActionResult{{Success: true, ActionType: models.ActionNavigate}}}
	r := newTestRegistry(t, svc)

	result := r.Call(context.Background(), "execute_actions", json.RawMessage(`{"sessionId":"s1","pageId":"p1","actions":[{"type":"navigate","url":"https://example.com"}]}`))
	require.False(t, result.IsError)
	assert.Equal(t, "p1", svc.lastExecute.PageID)
	assert.Equal(t, "s1", svc.lastExecute.SessionID)
	assert.Contains(t, result.Content[0].Text, "true")
}

func TestDoubleRegisterFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("x", "", map[string]any{}, func(ctx context.Context, args json.RawMessage) (*Result, error) {
		return textResult("ok"), nil
	}))
	err := r.Register("x", "", map[string]any{}, func(ctx context.Context, args json.RawMessage) (*Result, error) {
		return textResult("ok"), nil
	})
	assert.Error(t, err)
}
