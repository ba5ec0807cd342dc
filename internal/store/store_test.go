package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUserRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, User{ID: "u1", Email: "u1@example.com"}))

	u, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "u1@example.com", u.Email)
	assert.NotNil(t, u.BaselineScores)

	require.NoError(t, s.UpdateBaselines(ctx, "u1", map[string]float64{"empathy": 0.8}))
	u, err = s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0.8, u.BaselineScores["empathy"])
}

func TestGetUserMissing(t *testing.T) {
	s := newTestStore(t)

	u, err := s.GetUser(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestSessionMessageCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, Session{ID: "s1", UserID: "u1", Name: "first"}))

	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendMessage(ctx, Message{
			ID:        fmt.Sprintf("m%d", i),
			SessionID: "s1",
			UserID:    "u1",
			Role:      "user",
			Content:   "hello",
		}))
	}

	sess, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 3, sess.MessageCount)

	msgs, err := s.SessionMessages(ctx, "s1", 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 3)
}

func TestRecentMessagesWindow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	old := Message{ID: "old", SessionID: "s1", UserID: "u1", Role: "user",
		Content: "stale", Timestamp: now.AddDate(0, 0, -40)}
	fresh := Message{ID: "fresh", SessionID: "s1", UserID: "u1", Role: "user",
		Content: "recent", Timestamp: now.AddDate(0, 0, -2)}

	require.NoError(t, s.AppendMessage(ctx, old))
	require.NoError(t, s.AppendMessage(ctx, fresh))

	msgs, err := s.RecentMessages(ctx, "u1", 30, 100)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "fresh", msgs[0].ID)
}

func TestMoodSeriesChronological(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	values := []float64{80, 75, 70}
	for i, v := range values {
		require.NoError(t, s.AppendMessage(ctx, Message{
			ID:        fmt.Sprintf("m%d", i),
			SessionID: "s1",
			UserID:    "u1",
			Role:      "user",
			Content:   "entry",
			Metadata:  map[string]any{"mood_index": v},
			Timestamp: now.AddDate(0, 0, -3+i),
		}))
	}
	// A message without mood_index is skipped, not zero-filled.
	require.NoError(t, s.AppendMessage(ctx, Message{
		ID: "noidx", SessionID: "s1", UserID: "u1", Role: "assistant",
		Content: "reply", Timestamp: now,
	}))

	series, err := s.MoodSeries(ctx, "u1", 30, 100)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, 80.0, series[0].Index)
	assert.Equal(t, 70.0, series[2].Index)
	assert.True(t, series[0].Timestamp.Before(series[1].Timestamp))
}

func TestDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddDocument(ctx, Document{
		ID: "d1", UserID: "u1", Title: "Managing Stress",
		SourceType: "url", Source: "https://example.com/stress", ChunkCount: 12,
	}))

	docs, err := s.ListDocuments(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Managing Stress", docs[0].Title)
	assert.Equal(t, 12, docs[0].ChunkCount)
}
