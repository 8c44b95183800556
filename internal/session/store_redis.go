package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore 会话状态存 Redis，JSON 单键。
// key 约定：session:{userID}
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func sessionKey(userID string) string {
	return fmt.Sprintf("session:%s", userID)
}

func (r *redisStore) Load(ctx context.Context, userID string) (State, error) {
	var st State
	val, err := r.rdb.Get(ctx, sessionKey(userID)).Result()
	if err == redis.Nil {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal([]byte(val), &st); err != nil {
		// 脏数据当作不存在处理，重建比报错更安全
		return State{}, nil
	}
	return st, nil
}

func (r *redisStore) Save(ctx context.Context, userID string, st State) error {
	if st.Empty() {
		return r.Clear(ctx, userID)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, sessionKey(userID), data, 0).Err()
}

func (r *redisStore) Clear(ctx context.Context, userID string) error {
	return r.rdb.Del(ctx, sessionKey(userID)).Err()
}
