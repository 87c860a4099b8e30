package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/cankoe/request-tester/internal/models"

	"github.com/go-redis/redis/v8"
)

const (
	redisSeqKey    = "history:seq"
	redisIndexKey  = "history:index"
	redisRecordKey = "history:record:"

	clearMaxRetries = 100
)

// RedisStore keeps each record as a JSON string and orders them through a
// sorted set scored by insert time in microseconds. Index members are
// zero-padded ids so equal scores still sort by id.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func recordKey(id int64) string {
	return redisRecordKey + strconv.FormatInt(id, 10)
}

func indexMember(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func memberKey(member string) (string, error) {
	id, err := strconv.ParseInt(member, 10, 64)
	if err != nil {
		return "", fmt.Errorf("bad history index member %q: %w", member, err)
	}
	return recordKey(id), nil
}

func (s *RedisStore) Insert(ctx context.Context, rec *models.HistoryRecord) (int64, error) {
	id, err := s.client.Incr(ctx, redisSeqKey).Result()
	if err != nil {
		return 0, fmt.Errorf("allocating history id: %w", err)
	}

	doc := *rec
	doc.ID = id
	doc.Timestamp = now()
	payload, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encoding history %d: %w", id, err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, recordKey(id), payload, 0)
		pipe.ZAdd(ctx, redisIndexKey, &redis.Z{
			Score:  float64(doc.Timestamp.UnixMicro()),
			Member: indexMember(id),
		})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("inserting history: %w", err)
	}

	rec.ID = doc.ID
	rec.Timestamp = doc.Timestamp
	return id, nil
}

func (s *RedisStore) List(ctx context.Context, limit, offset int) ([]models.HistoryRecord, error) {
	records := make([]models.HistoryRecord, 0)
	if limit <= 0 {
		return records, nil
	}
	if offset < 0 {
		offset = 0
	}

	stop := int64(-1)
	if limit <= math.MaxInt-offset {
		stop = int64(offset + limit - 1)
	}
	ids, err := s.client.ZRevRange(ctx, redisIndexKey, int64(offset), stop).Result()
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		if keys[i], err = memberKey(id); err != nil {
			return nil, err
		}
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching history records: %w", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry outlived its record
			continue
		}
		var rec models.HistoryRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("decoding history %s: %w", ids[i], err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RedisStore) Get(ctx context.Context, id int64) (*models.HistoryRecord, error) {
	raw, err := s.client.Get(ctx, recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching history %d: %w", id, err)
	}

	var rec models.HistoryRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decoding history %d: %w", id, err)
	}
	return &rec, nil
}

func (s *RedisStore) Delete(ctx context.Context, id int64) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, recordKey(id))
		pipe.ZRem(ctx, redisIndexKey, indexMember(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("deleting history %d: %w", id, err)
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll drops every indexed record and the index in one transaction.
// An insert that lands between reading the index and deleting it aborts the
// transaction and the clear is retried.
func (s *RedisStore) DeleteAll(ctx context.Context) error {
	clearIndexed := func(tx *redis.Tx) error {
		members, err := tx.ZRange(ctx, redisIndexKey, 0, -1).Result()
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(members)+1)
		for _, member := range members {
			key, err := memberKey(member)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		keys = append(keys, redisIndexKey)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, keys...)
			return nil
		})
		return err
	}

	for i := 0; i < clearMaxRetries; i++ {
		err := s.client.Watch(ctx, clearIndexed, redisIndexKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("clearing history: %w", err)
		}
		return nil
	}
	return fmt.Errorf("clearing history: %w", redis.TxFailedErr)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close(context.Context) error {
	return s.client.Close()
}
