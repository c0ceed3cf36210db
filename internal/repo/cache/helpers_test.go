package cache

import (
	"strconv"

	"github.com/KNICEX/trading-monitor/internal/entity"
)

func mustInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		panic(err)
	}
	return n
}

func defaultPref() entity.NotificationPreference {
	return entity.DefaultPreference("u1")
}
