package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"timemate/internal/models"
)

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) ListOpenSessions(ctx context.Context, now time.Time, limit int) ([]models.Session, error) {
	args := m.Called(ctx, now, limit)
	var list []models.Session
	if val := args.Get(0); val != nil {
		list = val.([]models.Session)
	}
	return list, args.Error(1)
}

func (m *SessionRepositoryMock) CreateSession(ctx context.Context, s models.NewSession) (models.Session, error) {
	args := m.Called(ctx, s)
	var sess models.Session
	if val := args.Get(0); val != nil {
		sess = val.(models.Session)
	}
	return sess, args.Error(1)
}

func (m *SessionRepositoryMock) CloseSession(ctx context.Context, sessionID, hostID string) (int64, error) {
	args := m.Called(ctx, sessionID, hostID)
	return args.Get(0).(int64), args.Error(1)
}

type MembershipRepositoryMock struct {
	mock.Mock
}

func (m *MembershipRepositoryMock) ListMemberships(ctx context.Context) ([]models.Membership, error) {
	args := m.Called(ctx)
	var list []models.Membership
	if val := args.Get(0); val != nil {
		list = val.([]models.Membership)
	}
	return list, args.Error(1)
}

func (m *MembershipRepositoryMock) AddMembership(ctx context.Context, sessionID, userID string, role models.Role) error {
	args := m.Called(ctx, sessionID, userID, role)
	return args.Error(0)
}

func (m *MembershipRepositoryMock) RemoveMembership(ctx context.Context, sessionID, userID string) error {
	args := m.Called(ctx, sessionID, userID)
	return args.Error(0)
}

type ProfileRepositoryMock struct {
	mock.Mock
}

func (m *ProfileRepositoryMock) UpsertProfile(ctx context.Context, userID, nickname string) error {
	args := m.Called(ctx, userID, nickname)
	return args.Error(0)
}

type AuthProviderMock struct {
	mock.Mock
}

func (m *AuthProviderMock) GetUser(ctx context.Context, accessToken string) (*models.User, error) {
	args := m.Called(ctx, accessToken)
	var user *models.User
	if val := args.Get(0); val != nil {
		user = val.(*models.User)
	}
	return user, args.Error(1)
}

func (m *AuthProviderMock) SignInWithPassword(ctx context.Context, email, password string) (*models.AuthSession, error) {
	args := m.Called(ctx, email, password)
	var sess *models.AuthSession
	if val := args.Get(0); val != nil {
		sess = val.(*models.AuthSession)
	}
	return sess, args.Error(1)
}

func (m *AuthProviderMock) SignUp(ctx context.Context, email, password string) (*models.SignUpResult, error) {
	args := m.Called(ctx, email, password)
	var res *models.SignUpResult
	if val := args.Get(0); val != nil {
		res = val.(*models.SignUpResult)
	}
	return res, args.Error(1)
}

func (m *AuthProviderMock) SignOut(ctx context.Context, accessToken string) error {
	args := m.Called(ctx, accessToken)
	return args.Error(0)
}

func (m *AuthProviderMock) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	args := m.Called(ctx, email, redirectTo)
	return args.Error(0)
}

func (m *AuthProviderMock) UpdatePassword(ctx context.Context, accessToken, password string) (*models.User, error) {
	args := m.Called(ctx, accessToken, password)
	var user *models.User
	if val := args.Get(0); val != nil {
		user = val.(*models.User)
	}
	return user, args.Error(1)
}
