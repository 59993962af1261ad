package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/client/internal/api"
	"github.com/gatherly/client/internal/models"
	"github.com/gatherly/client/internal/session"
)

// fakeGateway scripts the auth endpoints and counts calls.
type fakeGateway struct {
	mu         sync.Mutex
	loginToken string
	loginErr   error
	logoutErr  error
	meUser     *models.User
	meErr      error
	meCalls    int
	// clearOnMeErr mimics the real gateway clearing the session store on a
	// 401 identity fetch.
	sessions session.Store
}

func (g *fakeGateway) Login(ctx context.Context, creds api.Credentials) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loginToken, g.loginErr
}

func (g *fakeGateway) Logout(ctx context.Context) error {
	return g.logoutErr
}

func (g *fakeGateway) Me(ctx context.Context) (*models.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.meCalls++
	if g.meErr != nil {
		if g.sessions != nil {
			if apiErr, ok := api.AsAPIError(g.meErr); ok && apiErr.IsAuth() {
				g.sessions.Clear()
			}
		}
		return nil, g.meErr
	}
	return g.meUser, nil
}

func (g *fakeGateway) meCallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.meCalls
}

func authError() error {
	return &api.APIError{StatusCode: http.StatusUnauthorized, Code: api.ErrCodeUnauthorized, Body: "session expired"}
}

func TestInitialize_NoPersistedTokenSkipsIdentityFetch(t *testing.T) {
	sessions := session.NewMemoryStore()
	gw := &fakeGateway{}
	m := NewMachine(gw, sessions)

	m.Initialize(context.Background())

	assert.Equal(t, StateUnauthenticated, m.State())
	assert.Zero(t, gw.meCallCount(), "no identity call without a token")
}

func TestInitialize_ValidTokenAuthenticates(t *testing.T) {
	sessions := session.NewMemoryStore()
	require.NoError(t, sessions.SetToken("tok-1"))

	gw := &fakeGateway{meUser: &models.User{ID: "u1", Name: "Ada", Role: models.RoleHost}}
	m := NewMachine(gw, sessions)

	m.Initialize(context.Background())

	assert.Equal(t, StateAuthenticated, m.State())
	require.NotNil(t, m.User())
	assert.Equal(t, "Ada", m.User().Name)
}

func TestInitialize_RejectedTokenIsClearedAndSwallowed(t *testing.T) {
	sessions := session.NewMemoryStore()
	require.NoError(t, sessions.SetToken("stale"))

	gw := &fakeGateway{meErr: authError(), sessions: sessions}
	m := NewMachine(gw, sessions)

	m.Initialize(context.Background())

	assert.Equal(t, StateUnauthenticated, m.State())
	_, ok := sessions.Token()
	assert.False(t, ok, "stale token must be cleared")
	assert.Nil(t, m.User())
}

func TestInitialize_DuplicateCallsRunOnce(t *testing.T) {
	sessions := session.NewMemoryStore()
	require.NoError(t, sessions.SetToken("tok-1"))

	gw := &fakeGateway{meUser: &models.User{ID: "u1"}}
	m := NewMachine(gw, sessions)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Initialize(context.Background())
		}()
	}
	wg.Wait()
	m.Initialize(context.Background())

	assert.Equal(t, 1, gw.meCallCount(), "initialization must run at most once")
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestLogin_PersistsTokenThenFetchesIdentity(t *testing.T) {
	sessions := session.NewMemoryStore()
	gw := &fakeGateway{
		loginToken: "tok-9",
		meUser:     &models.User{ID: "u1", Name: "Ada", Role: models.RoleGuest},
	}
	m := NewMachine(gw, sessions)

	user, err := m.Login(context.Background(), api.Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)

	token, ok := sessions.Token()
	require.True(t, ok)
	assert.Equal(t, "tok-9", token)
	assert.Equal(t, StateAuthenticated, m.State())
}

func TestLogin_IdentityFetchFailureRollsBackToken(t *testing.T) {
	sessions := session.NewMemoryStore()
	gw := &fakeGateway{
		loginToken: "tok-9",
		meErr:      errors.New("identity service unavailable"),
	}
	m := NewMachine(gw, sessions)

	_, err := m.Login(context.Background(), api.Credentials{Email: "ada@example.com", Password: "pw"})
	require.Error(t, err, "login without identity is not a login")

	_, ok := sessions.Token()
	assert.False(t, ok, "token must be rolled back")
	assert.NotEqual(t, StateAuthenticated, m.State())
}

func TestLogin_AuthFailurePropagatesTypedError(t *testing.T) {
	sessions := session.NewMemoryStore()
	gw := &fakeGateway{loginErr: &api.APIError{StatusCode: http.StatusUnauthorized, Body: "bad credentials"}}
	m := NewMachine(gw, sessions)

	_, err := m.Login(context.Background(), api.Credentials{Email: "x", Password: "y"})
	require.Error(t, err)

	apiErr, ok := api.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "bad credentials", apiErr.Body)
}

func TestLogout_RemoteFailureStillClearsLocally(t *testing.T) {
	sessions := session.NewMemoryStore()
	require.NoError(t, sessions.SetToken("tok-1"))

	gw := &fakeGateway{
		meUser:    &models.User{ID: "u1"},
		logoutErr: errors.New("backend unreachable"),
	}
	m := NewMachine(gw, sessions)
	m.Initialize(context.Background())
	require.Equal(t, StateAuthenticated, m.State())

	m.Logout(context.Background())

	assert.Equal(t, StateUnauthenticated, m.State())
	_, ok := sessions.Token()
	assert.False(t, ok)
	assert.Nil(t, m.User())
}

func TestSubscribe_ListenersObserveTransitions(t *testing.T) {
	sessions := session.NewMemoryStore()
	gw := &fakeGateway{}
	m := NewMachine(gw, sessions)

	var seen []State
	unsubscribe := m.Subscribe(func(s State) {
		seen = append(seen, s)
	})

	m.Initialize(context.Background())
	assert.Equal(t, []State{StateInitializing, StateUnauthenticated}, seen)

	unsubscribe()
	gw.mu.Lock()
	gw.loginToken = "tok"
	gw.meUser = &models.User{ID: "u1"}
	gw.mu.Unlock()
	_, err := m.Login(context.Background(), api.Credentials{})
	require.NoError(t, err)

	assert.Len(t, seen, 2, "removed listener must not fire")
}

func TestSessionExpired_OnlyDropsAuthenticatedState(t *testing.T) {
	sessions := session.NewMemoryStore()
	require.NoError(t, sessions.SetToken("tok-1"))
	gw := &fakeGateway{meUser: &models.User{ID: "u1"}}
	m := NewMachine(gw, sessions)

	m.SessionExpired()
	assert.Equal(t, StateUninitialized, m.State(), "no-op before authentication")

	m.Initialize(context.Background())
	require.Equal(t, StateAuthenticated, m.State())

	m.SessionExpired()
	assert.Equal(t, StateUnauthenticated, m.State())
	assert.Nil(t, m.User())
}
