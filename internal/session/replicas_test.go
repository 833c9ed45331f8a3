package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/ngo-hub/internal/auth"
	"github.com/sakif/ngo-hub/internal/identity"
	"github.com/sakif/ngo-hub/internal/model"
	"github.com/sakif/ngo-hub/internal/repository"
	sqliteRepo "github.com/sakif/ngo-hub/internal/repository/sqlite"
	"github.com/sakif/ngo-hub/internal/store"
)

// sharedFeed is an in-process identity.ChangeFeed standing in for Redis
// pub/sub between replicas.
type sharedFeed struct {
	mu   sync.Mutex
	subs []func(identity.RemoteChange)
}

func (f *sharedFeed) Publish(_ context.Context, c identity.RemoteChange) error {
	f.mu.Lock()
	subs := append(([]func(identity.RemoteChange))(nil), f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
	return nil
}

func (f *sharedFeed) Subscribe(_ context.Context, fn func(identity.RemoteChange)) (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
	return func() error { return nil }, nil
}

// TestManager_SignOutOnOneReplica signs an instance in and out through one
// replica while the instance is also being served by another.
func TestManager_SignOutOnOneReplica(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqliteRepo.New(ctx, ":memory:", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bindings := identity.NewMemoryBindings()
	feed := &sharedFeed{}
	roles := repository.NewDocuments(store.NewMemory())

	newReplica := func() (*identity.Service, *Manager) {
		svc := identity.NewService(db, bindings, auth.NewPasswordServiceForTest(4), nil, logger)
		_, err := svc.UseFeed(ctx, feed)
		require.NoError(t, err)
		m := NewManager(svc, roles, logger)
		t.Cleanup(m.Close)
		return svc, m
	}
	idpA, replicaA := newReplica()
	_, replicaB := newReplica()

	waitFor(t, replicaA, "inst-1")
	waitFor(t, replicaB, "inst-1")

	id, err := idpA.CreateCredential(ctx, "inst-1", "rina@example.org", "secret1")
	require.NoError(t, err)
	require.NoError(t, roles.PutRole(ctx, &model.RoleRecord{ID: id.ID, Role: model.RoleVolunteer}))
	replicaA.Refresh("inst-1")
	replicaB.Refresh("inst-1")

	assert.Equal(t, StatusAuthenticated, waitFor(t, replicaA, "inst-1").Status)
	assert.Equal(t, StatusAuthenticated, waitFor(t, replicaB, "inst-1").Status)

	require.NoError(t, idpA.SignOut(ctx, "inst-1"))

	assert.Equal(t, StatusAnonymous, waitFor(t, replicaA, "inst-1").Status)
	assert.Equal(t, StatusAnonymous, waitFor(t, replicaB, "inst-1").Status,
		"the other replica must not keep the signed-out instance authenticated")
}
