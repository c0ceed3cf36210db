package llm

import (
	"context"
)

type Question struct {
	Content string
}

// Answer 模型回复, token 统计用于成本排查
type Answer struct {
	Content     string
	InputToken  int
	OutputToken int
}

// Service 大模型单轮推理服务
type Service interface {
	AskOnce(ctx context.Context, q Question) (Answer, error)
}
