package notification

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidMuteWindow = errors.New("invalid mute window")

// MuteWindow 一天内的分钟区间 [Start, End), Start > End 表示跨午夜
type MuteWindow struct {
	Start int
	End   int
}

func ParseMuteWindow(s string) (MuteWindow, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return MuteWindow{}, fmt.Errorf("%w: %q", ErrInvalidMuteWindow, s)
	}
	start, err := parseClock(from)
	if err != nil {
		return MuteWindow{}, fmt.Errorf("%w: %q: %v", ErrInvalidMuteWindow, s, err)
	}
	end, err := parseClock(to)
	if err != nil {
		return MuteWindow{}, fmt.Errorf("%w: %q: %v", ErrInvalidMuteWindow, s, err)
	}
	if start == end {
		return MuteWindow{}, fmt.Errorf("%w: %q is empty", ErrInvalidMuteWindow, s)
	}
	return MuteWindow{Start: start, End: end}, nil
}

// ParseMuteWindows 任一条非法即整体返回错误, 调用方回退为不静音
func ParseMuteWindows(raw []string) ([]MuteWindow, error) {
	windows := make([]MuteWindow, 0, len(raw))
	for _, s := range raw {
		if strings.TrimSpace(s) == "" {
			continue
		}
		w, err := ParseMuteWindow(s)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, nil
}

func (w MuteWindow) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	if w.Start < w.End {
		return m >= w.Start && m < w.End
	}
	return m >= w.Start || m < w.End
}

func InMuteHours(windows []MuteWindow, local time.Time) bool {
	for _, w := range windows {
		if w.Contains(local) {
			return true
		}
	}
	return false
}

// parseClock HH:MM -> 当天分钟数, 24:00 视为一天结束
func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "24:00" {
		return 24 * 60, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// ParseClock 对外暴露, 供每日摘要解析 HH:MM
func ParseClock(s string) (time.Duration, error) {
	m, err := parseClock(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(m) * time.Minute, nil
}
