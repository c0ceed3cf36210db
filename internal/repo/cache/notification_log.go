package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/notification"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	logKeyTTL     = 7 * 24 * time.Hour
	counterKeyTTL = 48 * time.Hour
)

// claimScript 冷却 + 每日上限检查与预留在一个脚本内完成
// KEYS[1] 冷却 hash {last, token}  KEYS[2] 计数 hash {day, count}
// ARGV: now_ms, cooldown_ms, day_start_ms, max_per_day, token, log_ttl_s, counter_ttl_s
var claimScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local last = redis.call('HGET', KEYS[1], 'last')
if last and (now - tonumber(last)) < tonumber(ARGV[2]) then
    return {-1, 0}
end

local count = 0
local counter = redis.call('HMGET', KEYS[2], 'day', 'count')
if counter[1] == ARGV[3] then
    count = tonumber(counter[2]) or 0
end
local max = tonumber(ARGV[4])
if max > 0 and count >= max then
    return {-2, 0}
end

redis.call('HSET', KEYS[1], 'last', ARGV[1], 'token', ARGV[5])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[6]))
redis.call('HSET', KEYS[2], 'day', ARGV[3], 'count', count + 1)
redis.call('EXPIRE', KEYS[2], tonumber(ARGV[7]))
return {1, tonumber(last or '0')}
`)

var commitScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'token') ~= ARGV[1] then
    return 0
end
redis.call('HDEL', KEYS[1], 'token')
return 1
`)

// releaseScript ARGV: token, prev_last_ms, day_start_ms
var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'token') ~= ARGV[1] then
    return 0
end
if ARGV[2] == '0' then
    redis.call('DEL', KEYS[1])
else
    redis.call('HSET', KEYS[1], 'last', ARGV[2])
    redis.call('HDEL', KEYS[1], 'token')
end
local counter = redis.call('HMGET', KEYS[2], 'day', 'count')
if counter[1] == ARGV[3] and (tonumber(counter[2]) or 0) > 0 then
    redis.call('HINCRBY', KEYS[2], 'count', -1)
end
return 1
`)

var touchScript = redis.NewScript(`
local last = redis.call('HGET', KEYS[1], 'last')
if (not last) or tonumber(ARGV[1]) > tonumber(last) then
    redis.call('HSET', KEYS[1], 'last', ARGV[1])
end
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
return 1
`)

// NotificationLog 多实例部署时共享的 notification.Log
type NotificationLog struct {
	client redis.UniversalClient
	prefix string
}

func NewNotificationLog(client redis.UniversalClient, prefix string) notification.Log {
	return &NotificationLog{
		client: client,
		prefix: prefix,
	}
}

func (l *NotificationLog) logKey(key notification.LogKey) string {
	return fmt.Sprintf("%snotify:log:%s:%s:%s:%d", l.prefix, key.SubscriberId, key.Subject, key.Timeframe, key.Level)
}

func (l *NotificationLog) counterKey(subscriberId string) string {
	return fmt.Sprintf("%snotify:count:%s", l.prefix, subscriberId)
}

func (l *NotificationLog) Claim(ctx context.Context, req notification.ClaimRequest) (notification.Reservation, error) {
	token := uuid.NewString()
	res, err := claimScript.Run(ctx, l.client,
		[]string{l.logKey(req.Key), l.counterKey(req.Key.SubscriberId)},
		req.Now.UnixMilli(), req.Cooldown.Milliseconds(), req.DayStart.UnixMilli(), req.MaxPerDay, token,
		int(logKeyTTL.Seconds()), int(counterKeyTTL.Seconds()),
	).Slice()
	if err != nil {
		return notification.Reservation{}, fmt.Errorf("claim notification log: %w", err)
	}
	status, prev, ok := replyPair(res)
	if !ok {
		return notification.Reservation{}, fmt.Errorf("claim notification log: unexpected reply %v", res)
	}

	switch status {
	case -1:
		return notification.Reservation{}, notification.ErrCooldown
	case -2:
		return notification.Reservation{}, notification.ErrDailyCap
	}
	r := notification.Reservation{
		Token:     token,
		Key:       req.Key,
		ClaimedAt: req.Now,
		DayStart:  req.DayStart,
	}
	if prev > 0 {
		r.PrevLastSentAt = time.UnixMilli(prev)
	}
	return r, nil
}

func (l *NotificationLog) Commit(ctx context.Context, r notification.Reservation) error {
	ok, err := commitScript.Run(ctx, l.client, []string{l.logKey(r.Key)}, r.Token).Int()
	if err != nil {
		return fmt.Errorf("commit notification log: %w", err)
	}
	if ok == 0 {
		return notification.ErrStaleReservation
	}
	return nil
}

func (l *NotificationLog) Release(ctx context.Context, r notification.Reservation) error {
	prev := "0"
	if !r.PrevLastSentAt.IsZero() {
		prev = strconv.FormatInt(r.PrevLastSentAt.UnixMilli(), 10)
	}
	ok, err := releaseScript.Run(ctx, l.client,
		[]string{l.logKey(r.Key), l.counterKey(r.Key.SubscriberId)},
		r.Token, prev, r.DayStart.UnixMilli(),
	).Int()
	if err != nil {
		return fmt.Errorf("release notification log: %w", err)
	}
	if ok == 0 {
		return notification.ErrStaleReservation
	}
	return nil
}

func (l *NotificationLog) Touch(ctx context.Context, key notification.LogKey, at time.Time) error {
	err := touchScript.Run(ctx, l.client, []string{l.logKey(key)}, at.UnixMilli(), int(logKeyTTL.Seconds())).Err()
	if err != nil {
		return fmt.Errorf("touch notification log: %w", err)
	}
	return nil
}

func (l *NotificationLog) CountToday(ctx context.Context, subscriberId string, dayStart time.Time) (int, error) {
	vals, err := l.client.HMGet(ctx, l.counterKey(subscriberId), "day", "count").Result()
	if err != nil {
		return 0, fmt.Errorf("get notification counter: %w", err)
	}
	day, _ := vals[0].(string)
	if day != strconv.FormatInt(dayStart.UnixMilli(), 10) {
		return 0, nil
	}
	count, _ := vals[1].(string)
	n, err := strconv.Atoi(count)
	if err != nil {
		return 0, nil
	}
	return n, nil
}

func replyPair(res []interface{}) (int64, int64, bool) {
	if len(res) != 2 {
		return 0, 0, false
	}
	a, ok1 := res[0].(int64)
	b, ok2 := res[1].(int64)
	return a, b, ok1 && ok2
}
