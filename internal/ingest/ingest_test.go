package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shift-code-redeemer/internal/feed"
	"shift-code-redeemer/internal/model"
)

type fakeCodeStore struct {
	stored []*model.Code
	seen   map[string]bool
	err    error
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{seen: make(map[string]bool)}
}

func (f *fakeCodeStore) Upsert(_ context.Context, c *model.Code) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	key := c.Game + "|" + c.Code
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	f.stored = append(f.stored, c)
	return true, nil
}

type fakeArchive struct {
	entries []feed.ArchiveEntry
	err     error
}

func (f *fakeArchive) Fetch(_ context.Context) ([]feed.ArchiveEntry, error) {
	return f.entries, f.err
}

type fakeTimeline struct {
	posts []string
	err   error
}

func (f *fakeTimeline) FetchPosts(_ context.Context) ([]string, error) {
	return f.posts, f.err
}

func fixedNow() time.Time {
	return time.Date(2022, time.July, 1, 12, 0, 0, 0, time.UTC)
}

func newTestService(store *fakeCodeStore, archive *fakeArchive, timeline Timeline) *Service {
	s := NewService(store, archive, timeline)
	s.now = fixedNow
	return s
}

func TestRunOnceStoresArchiveEntries(t *testing.T) {
	store := newFakeCodeStore()
	archive := &fakeArchive{entries: []feed.ArchiveEntry{
		{
			Game:    "Borderlands 3",
			Code:    "3BRTJ-5K659-K5355-BTB3T-633F3",
			Type:    "shift",
			Reward:  "1 Golden Key",
			Expires: "9 Jun 05:00 UTC",
		},
		{
			Game: "Borderlands 3", // no code token, dropped
			Type: "shift",
		},
	}}

	added, err := newTestService(store, archive, nil).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, added)
	require.Len(t, store.stored, 1)
	assert.Equal(t, "3BRTJ-5K659-K5355-BTB3T-633F3", store.stored[0].Code)
	assert.Equal(t, model.PlatformUniversal, store.stored[0].Platform)
}

func TestRunOnceStoresTimelinePosts(t *testing.T) {
	store := newFakeCodeStore()
	timeline := &fakeTimeline{posts: []string{
		"Reward: 3 Skeleton Keys\nGame: WONDERLANDS\nT9XB3-9JWF9-5W66W-3TJJ3-FS69Z\nExpires: 9 Jun 05:00 UTC",
		"just chatting, no code here",
	}}

	added, err := newTestService(store, &fakeArchive{}, timeline).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, added)
	require.Len(t, store.stored, 1)
	assert.Equal(t, "Wonderlands", store.stored[0].Game)
	assert.Equal(t, "3 Skeleton Keys", store.stored[0].Reward)
}

func TestRunOnceCountsOnlyNewCodes(t *testing.T) {
	store := newFakeCodeStore()
	entry := feed.ArchiveEntry{
		Game: "Borderlands 3",
		Code: "TBRJJ-TW659-W5B5C-T3B3J-3BTBK",
		Type: "shift",
	}
	archive := &fakeArchive{entries: []feed.ArchiveEntry{entry, entry}}

	added, err := newTestService(store, archive, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	// A second sweep over the same archive adds nothing.
	added, err = newTestService(store, archive, nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestRunOnceArchiveFailure(t *testing.T) {
	store := newFakeCodeStore()
	archive := &fakeArchive{err: errors.New("endpoint unreachable")}

	_, err := newTestService(store, archive, nil).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Empty(t, store.stored)
}

func TestRunOnceTimelineFailureKeepsArchiveCodes(t *testing.T) {
	store := newFakeCodeStore()
	archive := &fakeArchive{entries: []feed.ArchiveEntry{{
		Game: "Borderlands 3",
		Code: "C35TB-WS6ST-TXBRK-TTTJT-JJH6H",
		Type: "shift",
	}}}
	timeline := &fakeTimeline{err: errors.New("rate limited")}

	added, err := newTestService(store, archive, timeline).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 1, added)
}

func TestStartStopsOnCancel(t *testing.T) {
	store := newFakeCodeStore()
	svc := newTestService(store, &fakeArchive{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Start(ctx, time.Hour) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ingestion loop did not stop after cancellation")
	}
}
