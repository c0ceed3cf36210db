package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/predictor"
	"github.com/KNICEX/trading-monitor/internal/service/signals"
	"github.com/go-redis/redis/v8"
)

// casScript 版本号一致才写入, 不存在视为版本 0
// ARGV: expected, action, confidence, ts_ms
var casScript = redis.NewScript(`
local version = tonumber(redis.call('HGET', KEYS[1], 'version') or '0')
if version ~= tonumber(ARGV[1]) then
    return -1
end
version = version + 1
redis.call('HSET', KEYS[1], 'action', ARGV[2], 'confidence', ARGV[3], 'ts', ARGV[4], 'version', version)
return version
`)

type SignalStateStore struct {
	client redis.UniversalClient
	prefix string
}

func NewSignalStateStore(client redis.UniversalClient, prefix string) signals.StateStore {
	return &SignalStateStore{
		client: client,
		prefix: prefix,
	}
}

func (s *SignalStateStore) key(key signals.Key) string {
	return fmt.Sprintf("%ssignal:state:%s:%s", s.prefix, key.Pair, key.Timeframe)
}

func (s *SignalStateStore) Get(ctx context.Context, key signals.Key) (signals.State, bool, error) {
	vals, err := s.client.HGetAll(ctx, s.key(key)).Result()
	if err != nil {
		return signals.State{}, false, fmt.Errorf("get signal state %s: %w", key, err)
	}
	if len(vals) == 0 {
		return signals.State{}, false, nil
	}

	version, err := strconv.ParseInt(vals["version"], 10, 64)
	if err != nil {
		return signals.State{}, false, fmt.Errorf("corrupted signal state %s: %w", key, err)
	}
	confidence, _ := strconv.ParseFloat(vals["confidence"], 64)
	ts, _ := strconv.ParseInt(vals["ts"], 10, 64)
	return signals.State{
		Action:     predictor.Action(vals["action"]),
		Confidence: confidence,
		Timestamp:  time.UnixMilli(ts),
		Version:    version,
	}, true, nil
}

func (s *SignalStateStore) CompareAndSwap(ctx context.Context, key signals.Key, expected int64, next signals.State) (signals.State, error) {
	version, err := casScript.Run(ctx, s.client, []string{s.key(key)},
		expected, string(next.Action), strconv.FormatFloat(next.Confidence, 'f', -1, 64), next.Timestamp.UnixMilli(),
	).Int64()
	if err != nil {
		return signals.State{}, fmt.Errorf("update signal state %s: %w", key, err)
	}
	if version < 0 {
		return signals.State{}, signals.ErrVersionConflict
	}
	next.Version = version
	return next, nil
}
