package schedule

import "context"

// Task 由 Ticker 周期调度; Run 返回错误只记录日志, 下一轮照常执行
type Task interface {
	Run(ctx context.Context) error
	Name() string
}
