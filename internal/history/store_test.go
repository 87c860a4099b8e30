package history

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cankoe/request-tester/internal/database"
	"github.com/cankoe/request-tester/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// stepClock makes every insert one second newer than the previous one.
func stepClock(t *testing.T) {
	t.Helper()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	prev := now
	now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	t.Cleanup(func() { now = prev })
}

// freezeClock makes every insert share one timestamp with sub-millisecond digits.
func freezeClock(t *testing.T) time.Time {
	t.Helper()
	at := time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.UTC)
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
	return at
}

func newSQLiteStore(t *testing.T) Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, database.MemoryPath)
	require.NoError(t, err)
	s, err := NewSQLiteStore(ctx, db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(ctx) })
	return s
}

func newRedisStore(t *testing.T) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStore(client)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func newMongoStore(t *testing.T) Store {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := database.NewMongoClient(ctx, uri)
	require.NoError(t, err)

	db := client.Database(fmt.Sprintf("request_tester_test_%d", time.Now().UnixNano()))
	s, err := NewMongoStore(ctx, client, db)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestSQLiteStore(t *testing.T) { runStoreSuite(t, newSQLiteStore) }
func TestRedisStore(t *testing.T)  { runStoreSuite(t, newRedisStore) }
func TestMongoStore(t *testing.T)  { runStoreSuite(t, newMongoStore) }

func runStoreSuite(t *testing.T, newStore func(*testing.T) Store) {
	t.Run("insert assigns increasing ids", func(t *testing.T) {
		stepClock(t)
		s := newStore(t)
		ctx := context.Background()

		rec1 := &models.HistoryRecord{Method: "GET", URL: "http://example.com", StatusCode: 200}
		id1, err := s.Insert(ctx, rec1)
		require.NoError(t, err)
		assert.Equal(t, id1, rec1.ID)
		assert.False(t, rec1.Timestamp.IsZero())

		id2, err := s.Insert(ctx, &models.HistoryRecord{Method: "POST", URL: "http://example.com"})
		require.NoError(t, err)
		assert.Greater(t, id2, id1)
	})

	t.Run("get returns the stored fields", func(t *testing.T) {
		stepClock(t)
		s := newStore(t)
		ctx := context.Background()

		in := &models.HistoryRecord{
			Method:          "POST",
			URL:             "https://api.example.com/users",
			RequestHeaders:  strPtr(`{"X-Trace":"1"}`),
			RequestBody:     strPtr(`{"name":"test"}`),
			StatusCode:      201,
			ResponseHeaders: strPtr(`{"Content-Type":"application/json"}`),
			ResponseBody:    strPtr(`{"id":1}`),
			DurationMs:      42,
		}
		id, err := s.Insert(ctx, in)
		require.NoError(t, err)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "POST", got.Method)
		assert.Equal(t, in.URL, got.URL)
		assert.Equal(t, in.RequestHeaders, got.RequestHeaders)
		assert.Equal(t, in.RequestBody, got.RequestBody)
		assert.Equal(t, 201, got.StatusCode)
		assert.Equal(t, in.ResponseHeaders, got.ResponseHeaders)
		assert.Equal(t, in.ResponseBody, got.ResponseBody)
		assert.Nil(t, got.Error)
		assert.Equal(t, int64(42), got.DurationMs)
		assert.True(t, in.Timestamp.Equal(got.Timestamp))

		again, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	})

	t.Run("failed call keeps optional fields empty", func(t *testing.T) {
		stepClock(t)
		s := newStore(t)
		ctx := context.Background()

		id, err := s.Insert(ctx, &models.HistoryRecord{
			Method:     "GET",
			URL:        "http://unreachable.invalid",
			Error:      strPtr("dial tcp: lookup unreachable.invalid: no such host"),
			DurationMs: 3,
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 0, got.StatusCode)
		require.NotNil(t, got.Error)
		assert.Nil(t, got.ResponseBody)
		assert.Nil(t, got.ResponseHeaders)
		assert.True(t, got.Failed())
	})

	t.Run("get missing id", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(context.Background(), 999)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("list paginates newest first", func(t *testing.T) {
		stepClock(t)
		s := newStore(t)
		ctx := context.Background()

		var ids []int64
		for i := 0; i < 7; i++ {
			id, err := s.Insert(ctx, &models.HistoryRecord{Method: "GET", URL: fmt.Sprintf("http://example.com/%d", i)})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		all, err := s.List(ctx, 50, 0)
		require.NoError(t, err)
		require.Len(t, all, 7)
		for i, rec := range all {
			assert.Equal(t, ids[len(ids)-1-i], rec.ID)
		}

		page, err := s.List(ctx, 3, 2)
		require.NoError(t, err)
		require.Len(t, page, 3)
		assert.Equal(t, []int64{all[2].ID, all[3].ID, all[4].ID},
			[]int64{page[0].ID, page[1].ID, page[2].ID})

		tail, err := s.List(ctx, 10, 5)
		require.NoError(t, err)
		assert.Len(t, tail, 2)

		past, err := s.List(ctx, 10, 20)
		require.NoError(t, err)
		assert.Empty(t, past)
	})

	t.Run("delete removes one record", func(t *testing.T) {
		stepClock(t)
		s := newStore(t)
		ctx := context.Background()

		id1, err := s.Insert(ctx, &models.HistoryRecord{Method: "GET", URL: "http://a"})
		require.NoError(t, err)
		id2, err := s.Insert(ctx, &models.HistoryRecord{Method: "GET", URL: "http://b"})
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, id1))

		_, err = s.Get(ctx, id1)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, id1), ErrNotFound)

		left, err := s.List(ctx, 50, 0)
		require.NoError(t, err)
		require.Len(t, left, 1)
		assert.Equal(t, id2, left[0].ID)
	})

	t.Run("delete all empties the store and keeps ids increasing", func(t *testing.T) {
		stepClock(t)
		s := newStore(t)
		ctx := context.Background()

		var last int64
		for i := 0; i < 3; i++ {
			id, err := s.Insert(ctx, &models.HistoryRecord{Method: "GET", URL: "http://a"})
			require.NoError(t, err)
			last = id
		}

		require.NoError(t, s.DeleteAll(ctx))
		require.NoError(t, s.DeleteAll(ctx))

		left, err := s.List(ctx, 50, 0)
		require.NoError(t, err)
		assert.Empty(t, left)

		next, err := s.Insert(ctx, &models.HistoryRecord{Method: "GET", URL: "http://a"})
		require.NoError(t, err)
		assert.Greater(t, next, last)
	})

	t.Run("equal timestamps list by id descending", func(t *testing.T) {
		freezeClock(t)
		s := newStore(t)
		ctx := context.Background()

		var ids []int64
		for i := 0; i < 12; i++ {
			id, err := s.Insert(ctx, &models.HistoryRecord{Method: "GET", URL: "http://a"})
			require.NoError(t, err)
			ids = append(ids, id)
		}

		first, err := s.List(ctx, 3, 0)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[11], ids[10], ids[9]}, recordIDs(first))

		last, err := s.List(ctx, 3, 9)
		require.NoError(t, err)
		assert.Equal(t, []int64{ids[2], ids[1], ids[0]}, recordIDs(last))
	})

	t.Run("unbounded limit with offset", func(t *testing.T) {
		stepClock(t)
		s := newStore(t)
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			_, err := s.Insert(ctx, &models.HistoryRecord{Method: "GET", URL: "http://a"})
			require.NoError(t, err)
		}

		page, err := s.List(ctx, math.MaxInt, 2)
		require.NoError(t, err)
		assert.Len(t, page, 2)
	})

	t.Run("inserted timestamp matches the stored one", func(t *testing.T) {
		freezeClock(t)
		s := newStore(t)
		ctx := context.Background()

		rec := &models.HistoryRecord{Method: "GET", URL: "http://a"}
		id, err := s.Insert(ctx, rec)
		require.NoError(t, err)

		got, err := s.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, rec.Timestamp.Equal(got.Timestamp), "%s != %s", rec.Timestamp, got.Timestamp)
	})

	t.Run("delete all racing inserts leaves no hidden records", func(t *testing.T) {
		stepClock(t)
		s := newStore(t)
		ctx := context.Background()

		var (
			mu       sync.Mutex
			inserted []int64
			wg       sync.WaitGroup
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				id, err := s.Insert(ctx, &models.HistoryRecord{Method: "GET", URL: "http://a"})
				if assert.NoError(t, err) {
					mu.Lock()
					inserted = append(inserted, id)
					mu.Unlock()
				}
			}
		}()
		for i := 0; i < 10; i++ {
			require.NoError(t, s.DeleteAll(ctx))
		}
		wg.Wait()

		listed, err := s.List(ctx, 1000, 0)
		require.NoError(t, err)
		visible := make(map[int64]bool, len(listed))
		for _, rec := range listed {
			visible[rec.ID] = true
		}

		for _, id := range inserted {
			_, err := s.Get(ctx, id)
			if err == nil {
				assert.True(t, visible[id], "record %d is stored but not listed", id)
			} else {
				assert.ErrorIs(t, err, ErrNotFound)
			}
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func recordIDs(recs []models.HistoryRecord) []int64 {
	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		ids = append(ids, rec.ID)
	}
	return ids
}
