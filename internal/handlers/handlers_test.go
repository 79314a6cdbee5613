package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"timemate/internal/mocks"
	"timemate/internal/models"
	"timemate/internal/services"
	"timemate/internal/supabase"
	"timemate/internal/telemetry"
)

type tokens map[string]string

func (v tokens) ValidateToken(_ context.Context, token string) (string, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

type harness struct {
	router   *gin.Engine
	sessions *mocks.SessionRepositoryMock
	members  *mocks.MembershipRepositoryMock
	profiles *mocks.ProfileRepositoryMock
	auth     *mocks.AuthProviderMock
	audit    *mocks.PublisherMock
}

func newHarness() *harness {
	gin.SetMode(gin.TestMode)
	h := &harness{
		sessions: &mocks.SessionRepositoryMock{},
		members:  &mocks.MembershipRepositoryMock{},
		profiles: &mocks.ProfileRepositoryMock{},
		auth:     &mocks.AuthProviderMock{},
		audit:    &mocks.PublisherMock{},
	}
	h.audit.On("Publish", mock.Anything, "audit.logs", mock.Anything).Return(nil).Maybe()
	emitter := telemetry.NewAuditEmitter(h.audit, "audit.logs", "timemate", "test")

	sessionSvc := services.NewSessionService(h.sessions, h.members, services.SessionConfig{})
	accountSvc := services.NewAccountService(h.auth, h.profiles, "")

	h.router = gin.New()
	RegisterRoutes(h.router,
		NewSessionHandler(sessionSvc, emitter),
		NewAuthHandler(accountSvc, emitter),
		tokens{"tok-u1": "u1", "tok-host": "host"},
		nil,
	)
	return h
}

func (h *harness) load(list []models.Session, ms []models.Membership) {
	h.sessions.On("ListOpenSessions", mock.Anything, mock.Anything, services.DefaultPageSize).Return(list, nil)
	h.members.On("ListMemberships", mock.Anything).Return(ms, nil)
}

func (h *harness) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func upcoming(id, host, purpose string, startIn time.Duration, capacity int) models.Session {
	start := time.Now().Add(startIn).UTC()
	return models.Session{
		ID: id, HostID: host, Title: "t-" + id, Purpose: purpose, PlaceText: "cafe",
		StartAt: start, EndAt: start.Add(time.Hour), Capacity: capacity,
		Status: models.StatusOpen, CreatedAt: time.Now().UTC(),
	}
}

type feedBody struct {
	Viewer   string                  `json:"viewer"`
	Sessions []models.VisibleSession `json:"sessions"`
	Purposes []string                `json:"purposes"`
	Error    string                  `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) feedBody {
	t.Helper()
	var body feedBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestListSessionsAnonymous(t *testing.T) {
	h := newHarness()
	h.load(
		[]models.Session{upcoming("s1", "host", "study", 2*time.Hour, 3), upcoming("s2", "host", "walk", time.Hour, 3)},
		[]models.Membership{{SessionID: "s1", UserID: "host", Role: models.RoleHost}},
	)

	rec := h.do(http.MethodGet, "/sessions", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Len(t, body.Sessions, 2)
	assert.Equal(t, "s2", body.Sessions[0].ID)
	assert.Equal(t, 1, body.Sessions[1].MemberCount)
	assert.False(t, body.Sessions[1].Joined)
	assert.Equal(t, models.AnonymousName, body.Sessions[1].Members[0].DisplayName)
	assert.Equal(t, []string{"study", "walk"}, body.Purposes)
}

func TestListSessionsFilters(t *testing.T) {
	h := newHarness()
	h.load(
		[]models.Session{upcoming("s1", "host", "study", 2*time.Hour, 3), upcoming("s2", "host", "walk", time.Hour, 3), upcoming("s3", "host", "study", 3*time.Hour, 3)},
		[]models.Membership{{SessionID: "s1", UserID: "u1", Role: models.RoleMember}, {SessionID: "s3", UserID: "u1", Role: models.RoleMember}},
	)

	rec := h.do(http.MethodGet, "/sessions?mine=true&purpose=study&sort=late", "tok-u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "u1", body.Viewer)
	require.Len(t, body.Sessions, 2)
	assert.Equal(t, "s3", body.Sessions[0].ID)
	assert.Equal(t, "s1", body.Sessions[1].ID)
	assert.True(t, body.Sessions[0].Joined)
}

func TestListSessionsBadQuery(t *testing.T) {
	h := newHarness()

	rec := h.do(http.MethodGet, "/sessions?sort=random", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/sessions?mine=maybe", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/sessions", "forged", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	h.sessions.AssertNotCalled(t, "ListOpenSessions", mock.Anything, mock.Anything, mock.Anything)
}

func TestListSessionsRemoteError(t *testing.T) {
	h := newHarness()
	h.sessions.On("ListOpenSessions", mock.Anything, mock.Anything, services.DefaultPageSize).
		Return(nil, &supabase.APIError{StatusCode: 503, Message: "upstream timeout"})

	rec := h.do(http.MethodGet, "/sessions", "", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "upstream timeout", decode(t, rec).Error)
}

func TestMutationsRequireAuth(t *testing.T) {
	h := newHarness()
	for _, tc := range []struct{ method, path string }{
		{http.MethodPost, "/sessions"},
		{http.MethodPost, "/sessions/s1/join"},
		{http.MethodDelete, "/sessions/s1/members/me"},
		{http.MethodPost, "/sessions/s1/close"},
		{http.MethodPost, "/auth/signout"},
		{http.MethodPut, "/auth/password"},
	} {
		rec := h.do(tc.method, tc.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.path)
	}
}

func TestJoinStatusMapping(t *testing.T) {
	h := newHarness()
	h.load(
		[]models.Session{upcoming("full", "host", "study", time.Hour, 2), upcoming("mine", "host", "study", time.Hour, 4)},
		[]models.Membership{
			{SessionID: "full", UserID: "host", Role: models.RoleHost},
			{SessionID: "full", UserID: "x", Role: models.RoleMember},
			{SessionID: "mine", UserID: "u1", Role: models.RoleMember},
		},
	)

	rec := h.do(http.MethodPost, "/sessions/full/join", "tok-u1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "capacity full", decode(t, rec).Error)

	rec = h.do(http.MethodPost, "/sessions/mine/join", "tok-u1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already joined", decode(t, rec).Error)

	rec = h.do(http.MethodPost, "/sessions/nope/join", "tok-u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJoinSuccess(t *testing.T) {
	h := newHarness()
	s1 := upcoming("s1", "host", "study", time.Hour, 3)
	h.sessions.On("ListOpenSessions", mock.Anything, mock.Anything, services.DefaultPageSize).Return([]models.Session{s1}, nil)
	h.members.On("ListMemberships", mock.Anything).Return([]models.Membership{}, nil).Once()
	h.members.On("AddMembership", mock.MatchedBy(func(ctx context.Context) bool {
		return supabase.AccessTokenFromContext(ctx) == "tok-u1"
	}), "s1", "u1", models.RoleMember).Return(nil).Once()
	h.members.On("ListMemberships", mock.Anything).Return([]models.Membership{{SessionID: "s1", UserID: "u1", Role: models.RoleMember}}, nil).Once()

	rec := h.do(http.MethodPost, "/sessions/s1/join", "tok-u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	require.Len(t, body.Sessions, 1)
	assert.True(t, body.Sessions[0].Joined)
	assert.Equal(t, 1, body.Sessions[0].MemberCount)
	h.members.AssertExpectations(t)
	h.audit.AssertCalled(t, "Publish", mock.Anything, "audit.logs", mock.Anything)
}

func TestCloseByNonHostIsForbidden(t *testing.T) {
	h := newHarness()
	h.load([]models.Session{upcoming("s1", "host", "study", time.Hour, 3)}, nil)

	rec := h.do(http.MethodPost, "/sessions/s1/close", "tok-u1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	h.sessions.AssertNotCalled(t, "CloseSession", mock.Anything, mock.Anything, mock.Anything)
}

func TestLeaveSession(t *testing.T) {
	h := newHarness()
	h.load([]models.Session{upcoming("s1", "host", "study", time.Hour, 3)}, nil)
	h.members.On("RemoveMembership", mock.Anything, "s1", "u1").Return(nil).Once()

	rec := h.do(http.MethodDelete, "/sessions/s1/members/me", "tok-u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	h.members.AssertExpectations(t)
}

func TestCreateSessionValidation(t *testing.T) {
	h := newHarness()
	h.load(nil, nil)

	rec := h.do(http.MethodPost, "/sessions", "tok-host", `{"title":"x","purpose":"study","place_text":"cafe","start_at":"2026-10-14T10:00","end_at":"2026-10-14T09:00","capacity":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.ErrEndBeforeStart.Error(), decode(t, rec).Error)

	rec = h.do(http.MethodPost, "/sessions", "tok-host", `{"capacity":"many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateSessionRejectsFormWithoutFetching(t *testing.T) {
	h := newHarness()

	rec := h.do(http.MethodPost, "/sessions", "tok-host", `{"title":"","purpose":"study","place_text":"cafe","start_at":"2026-10-14T10:00","end_at":"2026-10-14T11:00","capacity":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, services.ErrTitleRequired.Error(), decode(t, rec).Error)
	h.sessions.AssertNotCalled(t, "ListOpenSessions", mock.Anything, mock.Anything, mock.Anything)
	h.members.AssertNotCalled(t, "ListMemberships", mock.Anything)
	h.sessions.AssertNotCalled(t, "CreateSession", mock.Anything, mock.Anything)
}

func TestCreateSessionPartialWarning(t *testing.T) {
	h := newHarness()
	created := upcoming("s-new", "host", "study", time.Hour, 3)
	h.load([]models.Session{created}, nil)
	h.sessions.On("CreateSession", mock.Anything, mock.Anything).Return(created, nil).Once()
	h.members.On("AddMembership", mock.Anything, "s-new", "host", models.RoleHost).Return(errors.New("rls denied")).Once()

	start := time.Now().Add(time.Hour).UTC()
	body := `{"title":"x","purpose":"study","place_text":"cafe","start_at":"` + start.Format(time.RFC3339) +
		`","end_at":"` + start.Add(time.Hour).Format(time.RFC3339) + `","capacity":3}`
	rec := h.do(http.MethodPost, "/sessions", "tok-host", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s-new", resp["session_id"])
	assert.Contains(t, resp["warning"], "rls denied")
}

func TestSignInAndSession(t *testing.T) {
	h := newHarness()
	h.auth.On("SignInWithPassword", mock.Anything, "a@b.c", "secret").
		Return(&models.AuthSession{AccessToken: "tok-u1", User: models.User{ID: "u1"}}, nil)
	h.auth.On("GetUser", mock.Anything, "tok-u1").Return(&models.User{ID: "u1", Email: "a@b.c"}, nil)

	rec := h.do(http.MethodPost, "/auth/signin", "", `{"email":"a@b.c","password":"secret"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, RedirectSignedIn, resp["redirect"])

	rec = h.do(http.MethodGet, "/auth/session", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null,"redirect":"/"}`, rec.Body.String())

	rec = h.do(http.MethodGet, "/auth/session", "tok-u1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":{"id":"u1","email":"a@b.c"},"redirect":"/sessions"}`, rec.Body.String())
}

func TestSignInRemoteErrorMessage(t *testing.T) {
	h := newHarness()
	h.auth.On("SignInWithPassword", mock.Anything, "a@b.c", "bad").
		Return(nil, &supabase.APIError{StatusCode: 400, Message: "Invalid login credentials"})

	rec := h.do(http.MethodPost, "/auth/signin", "", `{"email":"a@b.c","password":"bad"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"Invalid login credentials"}`, rec.Body.String())
}

func TestSignUpProfileWarning(t *testing.T) {
	h := newHarness()
	h.auth.On("SignUp", mock.Anything, "a@b.c", "secret").Return(&models.SignUpResult{User: models.User{ID: "u9"}}, nil)
	h.profiles.On("UpsertProfile", mock.Anything, "u9", "mina").Return(errors.New("denied"))

	rec := h.do(http.MethodPost, "/auth/signup", "", `{"email":"a@b.c","password":"secret","nickname":"mina"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, services.ErrProfileNotSaved.Error(), resp["warning"])
	assert.Equal(t, true, resp["confirmation_required"])
	assert.Equal(t, RedirectSignedOut, resp["redirect"])

	rec = h.do(http.MethodPost, "/auth/signup", "", `{"email":"a@b.c","password":"secret"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordFlows(t *testing.T) {
	h := newHarness()
	h.auth.On("ResetPasswordForEmail", mock.Anything, "a@b.c", "").Return(nil)

	rec := h.do(http.MethodPost, "/auth/recover", "", `{"email":"a@b.c"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPut, "/auth/password", "tok-u1", `{"password":"123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	h.auth.AssertNotCalled(t, "UpdatePassword", mock.Anything, mock.Anything, mock.Anything)

	h.auth.On("SignOut", mock.Anything, "tok-u1").Return(nil)
	rec = h.do(http.MethodPost, "/auth/signout", "tok-u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"redirect":"/"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, statusFor(services.ErrNotSignedIn))
	assert.Equal(t, http.StatusBadRequest, statusFor(services.ErrCapacityRange))
	assert.Equal(t, http.StatusBadGateway, statusFor(&services.RemoteError{Op: "x", Err: errors.New("boom")}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("other")))
}

func TestDebugRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pub := &mocks.PublisherMock{}
	pub.On("Publish", mock.Anything, "audit.logs", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Text == "debug feed snapshot" && env.RequestID == "req-1"
	})).Return(nil).Once()

	sessions := &mocks.SessionRepositoryMock{}
	members := &mocks.MembershipRepositoryMock{}
	sessions.On("ListOpenSessions", mock.Anything, mock.Anything, services.DefaultPageSize).Return([]models.Session{
		upcoming("s1", "host", "study", time.Hour, 3),
		upcoming("s2", "host", "gym", 2*time.Hour, 3),
		upcoming("s3", "u1", "study", 3*time.Hour, 3),
	}, nil)
	members.On("ListMemberships", mock.Anything).Return([]models.Membership{
		{SessionID: "s1", UserID: "host", Role: models.RoleHost},
		{SessionID: "s1", UserID: "u1", Role: models.RoleMember},
	}, nil)
	svc := services.NewSessionService(sessions, members, services.SessionConfig{})

	r := gin.New()
	RegisterDebugRoutes(r, svc, telemetry.NewAuditEmitter(pub, "audit.logs", "timemate", "test"), true)
	req := httptest.NewRequest(http.MethodGet, "/debug/feed", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		RequestID     string   `json:"request_id"`
		OpenSessions  int      `json:"open_sessions"`
		Memberships   int      `json:"memberships"`
		DistinctHosts int      `json:"distinct_hosts"`
		Purposes      []string `json:"purposes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "req-1", body.RequestID)
	assert.Equal(t, 3, body.OpenSessions)
	assert.Equal(t, 2, body.Memberships)
	assert.Equal(t, 2, body.DistinctHosts)
	assert.ElementsMatch(t, []string{"study", "gym"}, body.Purposes)
	pub.AssertExpectations(t)

	disabled := gin.New()
	RegisterDebugRoutes(disabled, svc, nil, false)
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/feed", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDebugFeedStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	sessions := &mocks.SessionRepositoryMock{}
	sessions.On("ListOpenSessions", mock.Anything, mock.Anything, services.DefaultPageSize).
		Return(nil, &supabase.APIError{StatusCode: 503, Message: "upstream timeout"})
	svc := services.NewSessionService(sessions, &mocks.MembershipRepositoryMock{}, services.SessionConfig{})

	r := gin.New()
	RegisterDebugRoutes(r, svc, nil, true)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/feed", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "upstream timeout")
}
