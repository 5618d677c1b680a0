package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreInsertAndSnapshot(t *testing.T) {
	store := NewStore()
	sess := NewSession(42, "a quiet courtyard", 120.15, 30.27)
	store.Insert(sess)

	assert.Equal(t, 1, store.Len())

	snap, err := store.Snapshot(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), snap.UserID)
	assert.Equal(t, StatusActive, snap.Status)
	assert.Equal(t, "a quiet courtyard", snap.SceneContext)
}

func TestStoreSnapshotCopiesTranscript(t *testing.T) {
	store := NewStore()
	sess := NewSession(1, "", 0, 0)
	sess.Transcript = []Message{{Role: RoleUser, Content: "hello"}}
	store.Insert(sess)

	snap, err := store.Snapshot(sess.ID)
	require.NoError(t, err)
	snap.Transcript[0].Content = "mutated"

	fresh, err := store.Snapshot(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", fresh.Transcript[0].Content)
}

func TestStoreWithLockNotFound(t *testing.T) {
	store := NewStore()
	err := store.WithLock("no-such-id", func(sess *ChatSession) error {
		t.Fatal("callback should not run")
		return nil
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStoreWithLockObservesRemoval(t *testing.T) {
	store := NewStore()
	sess := NewSession(1, "", 0, 0)
	store.Insert(sess)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithLock(sess.ID, func(s *ChatSession) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	waiterErr := make(chan error, 1)
	go func() {
		waiterErr <- store.WithLock(sess.ID, func(s *ChatSession) error {
			return nil
		})
	}()

	// Let the waiter block on the session lock, then remove the session
	// before the holder releases it.
	time.Sleep(20 * time.Millisecond)
	store.Remove(sess.ID)
	close(release)

	select {
	case err := <-waiterErr:
		assert.ErrorIs(t, err, ErrSessionNotFound)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never returned")
	}
}

func TestStoreTryWithLockBusy(t *testing.T) {
	store := NewStore()
	sess := NewSession(1, "", 0, 0)
	store.Insert(sess)

	holding := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.WithLock(sess.ID, func(s *ChatSession) error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	locked, err := store.TryWithLock(sess.ID, func(s *ChatSession) error {
		t.Fatal("callback should not run while session is busy")
		return nil
	})
	assert.False(t, locked)
	assert.NoError(t, err)
	close(release)
}

func TestStoreConcurrentMutationsSerialize(t *testing.T) {
	store := NewStore()
	sess := NewSession(1, "", 0, 0)
	store.Insert(sess)

	const workers = 20
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_ = store.WithLock(sess.ID, func(s *ChatSession) error {
				s.TurnCount++
				return nil
			})
		}()
	}
	wg.Wait()

	snap, err := store.Snapshot(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, snap.TurnCount)
}

func TestStoreIDs(t *testing.T) {
	store := NewStore()
	a := NewSession(1, "", 0, 0)
	b := NewSession(2, "", 0, 0)
	store.Insert(a)
	store.Insert(b)

	assert.ElementsMatch(t, []string{a.ID, b.ID}, store.IDs())

	store.Remove(a.ID)
	assert.Equal(t, []string{b.ID}, store.IDs())
}
