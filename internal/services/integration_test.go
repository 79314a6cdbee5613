package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timemate/internal/db"
	"timemate/internal/models"
	"timemate/internal/repositories"
	"timemate/internal/roster"
)

func newSQLiteService(t *testing.T) (*SessionService, *repositories.SessionRepo) {
	t.Helper()
	ctx := context.Background()
	database, err := db.Connect(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.Migrate(ctx, database))

	sessions := repositories.NewSessionRepo(database)
	svc := NewSessionService(sessions, repositories.NewMembershipRepo(database), SessionConfig{})
	return svc, sessions
}

func seedSession(t *testing.T, repo *repositories.SessionRepo, host string, capacity int) models.Session {
	t.Helper()
	start := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	sess, err := repo.CreateSession(context.Background(), models.NewSession{
		HostID: host, Title: "study", Purpose: "study", PlaceText: "library",
		StartAt: start, EndAt: start.Add(time.Hour), Capacity: capacity, Status: models.StatusOpen,
	})
	require.NoError(t, err)
	return sess
}

func TestCapacityTwoAcceptsTwoJoinsThenFull(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)
	sess := seedSession(t, repo, "host", 2)

	snap, err := svc.Load(ctx, "a")
	require.NoError(t, err)
	snap, err = svc.Join(ctx, snap, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.MemberCount(sess.ID))

	snap, err = svc.Join(ctx, snap.WithViewer("b"), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.MemberCount(sess.ID))

	_, err = svc.Join(ctx, snap.WithViewer("c"), sess.ID)
	assert.ErrorIs(t, err, ErrSessionFull)

	snap, err = svc.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.MemberCount(sess.ID))
	assert.True(t, snap.IsJoined(sess.ID))
}

func TestCreatedSessionCountsHost(t *testing.T) {
	ctx := context.Background()
	svc, _ := newSQLiteService(t)
	start := time.Now().Add(time.Hour).UTC()

	created, snap, err := svc.Create(ctx, mustLoad(t, svc, "host"), CreateInput{
		Title: "pair programming", Purpose: "study", PlaceText: "cafe",
		StartAt: start.Format(time.RFC3339), EndAt: start.Add(time.Hour).Format(time.RFC3339), Capacity: 2,
	})
	require.NoError(t, err)
	entries := snap.Roster(created.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, models.RoleHost, entries[0].Role)
	assert.Equal(t, models.AnonymousName, entries[0].DisplayName)

	snap, err = svc.Join(ctx, snap.WithViewer("a"), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.MemberCount(created.ID))

	_, err = svc.Join(ctx, snap.WithViewer("b"), created.ID)
	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestStaleSnapshotsCanOverfill(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)
	sess := seedSession(t, repo, "host", 2)
	_, err := svc.Join(ctx, mustLoad(t, svc, "a"), sess.ID)
	require.NoError(t, err)

	stale := mustLoad(t, svc, "")
	require.Equal(t, 1, stale.MemberCount(sess.ID))

	_, err = svc.Join(ctx, stale.WithViewer("b"), sess.ID)
	require.NoError(t, err)
	_, err = svc.Join(ctx, stale.WithViewer("c"), sess.ID)
	require.NoError(t, err)

	fresh := mustLoad(t, svc, "")
	assert.Equal(t, 3, fresh.MemberCount(sess.ID))
}

func TestCloseByNonHostLeavesSessionOpen(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)
	sess := seedSession(t, repo, "host", 3)

	_, err := svc.Close(ctx, mustLoad(t, svc, "intruder"), sess.ID)
	assert.ErrorIs(t, err, ErrNotHost)
	_, ok := mustLoad(t, svc, "").Session(sess.ID)
	assert.True(t, ok)

	snap, err := svc.Close(ctx, mustLoad(t, svc, "host"), sess.ID)
	require.NoError(t, err)
	_, ok = snap.Session(sess.ID)
	assert.False(t, ok)
}

func TestLeaveThenRejoin(t *testing.T) {
	ctx := context.Background()
	svc, repo := newSQLiteService(t)
	sess := seedSession(t, repo, "host", 2)

	snap, err := svc.Join(ctx, mustLoad(t, svc, "a"), sess.ID)
	require.NoError(t, err)
	snap, err = svc.Leave(ctx, snap, sess.ID)
	require.NoError(t, err)
	assert.False(t, snap.IsJoined(sess.ID))

	snap, err = svc.Leave(ctx, snap, sess.ID)
	require.NoError(t, err)

	snap, err = svc.Join(ctx, snap, sess.ID)
	require.NoError(t, err)
	assert.True(t, snap.IsJoined(sess.ID))
}

func mustLoad(t *testing.T, svc *SessionService, viewer string) roster.Snapshot {
	t.Helper()
	snap, err := svc.Load(context.Background(), viewer)
	require.NoError(t, err)
	return snap
}
