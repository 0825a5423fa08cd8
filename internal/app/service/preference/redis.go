package preference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const updateRetries = 5

var ErrContended = errors.New("preference: update contended")

func prefsKey(scope string) string      { return "prefs:" + scope }
func changesChannel(scope string) string { return "prefs:changes:" + scope }

// RedisBackend keeps one hash per scope and publishes changes on a per-scope
// channel.
type RedisBackend struct {
	rdb *redis.Client
}

func NewRedisBackend(rdb *redis.Client) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (b *RedisBackend) Get(ctx context.Context, scope, key string) (string, bool, error) {
	v, err := b.rdb.HGet(ctx, prefsKey(scope), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read preference: %w", err)
	}
	return v, true, nil
}

func (b *RedisBackend) GetAll(ctx context.Context, scope string) (map[string]string, error) {
	all, err := b.rdb.HGetAll(ctx, prefsKey(scope)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	return all, nil
}

func (b *RedisBackend) Set(ctx context.Context, scope, key, value string) error {
	if err := b.rdb.HSet(ctx, prefsKey(scope), key, value).Err(); err != nil {
		return fmt.Errorf("failed to write preference: %w", err)
	}
	return nil
}

// Update runs fn under WATCH and retries when another writer got in first.
func (b *RedisBackend) Update(ctx context.Context, scope, key string, fn UpdateFunc) (string, error) {
	hkey := prefsKey(scope)
	var next string
	txf := func(tx *redis.Tx) error {
		cur, err := tx.HGet(ctx, hkey, key).Result()
		ok := true
		if errors.Is(err, redis.Nil) {
			ok, err = false, nil
		}
		if err != nil {
			return err
		}
		next, err = fn(cur, ok)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, hkey, key, next)
			return nil
		})
		return err
	}
	for i := 0; i < updateRetries; i++ {
		err := b.rdb.Watch(ctx, txf, hkey)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return "", err
		}
	}
	return "", ErrContended
}

func (b *RedisBackend) Delete(ctx context.Context, scope, key string) error {
	if err := b.rdb.HDel(ctx, prefsKey(scope), key).Err(); err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	return nil
}

func (b *RedisBackend) Publish(ctx context.Context, scope string, c *Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, changesChannel(scope), payload).Err()
}

func (b *RedisBackend) Subscribe(ctx context.Context, scope string) (<-chan *Change, func(), error) {
	sub := b.rdb.Subscribe(ctx, changesChannel(scope))
	// wait for the subscription confirmation so no change is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to preference changes: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan *Change, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					continue
				}
				select {
				case out <- &c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, cancel, nil
}
