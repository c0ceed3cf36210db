package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCooldown         = errors.New("cooldown active")
	ErrDailyCap         = errors.New("daily cap reached")
	ErrStaleReservation = errors.New("reservation no longer held")
)

// LogKey NotificationLog 的节流维度, Subject 为交易对 (持仓与信号共用, 两类事件互相节流)
type LogKey struct {
	SubscriberId string
	Subject      string
	Timeframe    string
	Level        Level
}

type ClaimRequest struct {
	Key       LogKey
	Now       time.Time
	Cooldown  time.Duration
	DayStart  time.Time // 订阅者本地零点
	MaxPerDay int       // <=0 不限制
}

// Reservation Claim 成功后的预留, Commit 确认, Release 回滚
type Reservation struct {
	Token          string
	Key            LogKey
	ClaimedAt      time.Time
	DayStart       time.Time
	PrevLastSentAt time.Time
}

// Log 两个评估器之间唯一共享的可变状态, Claim 必须是原子的 check-and-set
type Log interface {
	Claim(ctx context.Context, req ClaimRequest) (Reservation, error)
	Commit(ctx context.Context, r Reservation) error
	Release(ctx context.Context, r Reservation) error
	// Touch 紧急通知只记录发送时间, 不占用每日额度
	Touch(ctx context.Context, key LogKey, at time.Time) error
	CountToday(ctx context.Context, subscriberId string, dayStart time.Time) (int, error)
}

type logEntry struct {
	lastSentAt time.Time
	token      string
}

type dayCounter struct {
	dayStart time.Time
	count    int
}

type memoryLog struct {
	mu       sync.Mutex
	entries  map[LogKey]*logEntry
	counters map[string]*dayCounter
}

func NewMemoryLog() Log {
	return &memoryLog{
		entries:  make(map[LogKey]*logEntry),
		counters: make(map[string]*dayCounter),
	}
}

func (l *memoryLog) Claim(ctx context.Context, req ClaimRequest) (Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[req.Key]
	if ok && req.Now.Sub(entry.lastSentAt) < req.Cooldown {
		return Reservation{}, ErrCooldown
	}

	counter := l.counterLocked(req.Key.SubscriberId, req.DayStart)
	if req.MaxPerDay > 0 && counter.count >= req.MaxPerDay {
		return Reservation{}, ErrDailyCap
	}

	if !ok {
		entry = &logEntry{}
		l.entries[req.Key] = entry
	}
	r := Reservation{
		Token:          uuid.NewString(),
		Key:            req.Key,
		ClaimedAt:      req.Now,
		DayStart:       req.DayStart,
		PrevLastSentAt: entry.lastSentAt,
	}
	entry.lastSentAt = req.Now
	entry.token = r.Token
	counter.count++
	return r, nil
}

func (l *memoryLog) Commit(ctx context.Context, r Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[r.Key]
	if !ok || entry.token != r.Token {
		return ErrStaleReservation
	}
	entry.token = ""
	return nil
}

func (l *memoryLog) Release(ctx context.Context, r Reservation) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[r.Key]
	if !ok || entry.token != r.Token {
		return ErrStaleReservation
	}
	if r.PrevLastSentAt.IsZero() {
		delete(l.entries, r.Key)
	} else {
		entry.lastSentAt = r.PrevLastSentAt
		entry.token = ""
	}
	if counter, ok := l.counters[r.Key.SubscriberId]; ok && counter.dayStart.Equal(r.DayStart) && counter.count > 0 {
		counter.count--
	}
	return nil
}

func (l *memoryLog) Touch(ctx context.Context, key LogKey, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		l.entries[key] = &logEntry{lastSentAt: at}
		return nil
	}
	if at.After(entry.lastSentAt) {
		entry.lastSentAt = at
	}
	return nil
}

func (l *memoryLog) CountToday(ctx context.Context, subscriberId string, dayStart time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counter, ok := l.counters[subscriberId]
	if !ok || !counter.dayStart.Equal(dayStart) {
		return 0, nil
	}
	return counter.count, nil
}

// counterLocked 跨过本地零点时计数归零
func (l *memoryLog) counterLocked(subscriberId string, dayStart time.Time) *dayCounter {
	counter, ok := l.counters[subscriberId]
	if !ok {
		counter = &dayCounter{dayStart: dayStart}
		l.counters[subscriberId] = counter
		return counter
	}
	if !counter.dayStart.Equal(dayStart) {
		counter.dayStart = dayStart
		counter.count = 0
	}
	return counter
}

// LocalDayStart 订阅者时区的当天零点
func LocalDayStart(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
