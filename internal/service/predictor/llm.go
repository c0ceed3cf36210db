package predictor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/KNICEX/trading-monitor/internal/entity"
	"github.com/KNICEX/trading-monitor/internal/service/exchange"
	"github.com/KNICEX/trading-monitor/internal/service/llm"
	"github.com/samber/lo"
)

type llmPredictor struct {
	llmSvc llm.Service
	market exchange.MarketService
	now    func() time.Time
}

// NewLLMPredictor 把最近的K线交给大模型, 要求其以 JSON 返回信号
func NewLLMPredictor(llmSvc llm.Service, market exchange.MarketService) Predictor {
	return &llmPredictor{
		llmSvc: llmSvc,
		market: market,
		now:    time.Now,
	}
}

type llmAnswer struct {
	Action              string  `json:"action"`
	Confidence          float64 `json:"confidence"`
	TrendDirection      string  `json:"trend_direction"`
	TrendStrength       float64 `json:"trend_strength"`
	ReversalProbability float64 `json:"reversal_probability"`
}

func (p *llmPredictor) GetSignal(ctx context.Context, pair, timeframe string) (Signal, error) {
	kLines, err := fetchClosedKlines(ctx, p.market, pair, timeframe, p.now())
	if err != nil {
		return Signal{}, err
	}

	rows := lo.Map(kLines, func(k exchange.Kline, _ int) string {
		return fmt.Sprintf("%s o=%s h=%s l=%s c=%s v=%s",
			k.OpenTime.UTC().Format(time.RFC3339), k.Open, k.High, k.Low, k.Close, k.Volume)
	})
	prompt := fmt.Sprintf("Recent %s candles for %s, oldest first:\n%s\n"+
		"Assess the current trend and the chance that it reverses soon. "+
		"Answer with JSON only, in this exact shape: "+
		`{"action": "buy|sell|hold", "confidence": 0-1, "trend_direction": "uptrend|downtrend|sideways|reversal|unknown", `+
		`"trend_strength": 0-1, "reversal_probability": 0-1}`,
		timeframe, pair, strings.Join(rows, "\n"))

	answer, err := p.llmSvc.AskOnce(ctx, llm.Question{Content: prompt})
	if err != nil {
		return Signal{}, fmt.Errorf("%w: ask llm: %v", ErrPredictionUnavailable, err)
	}

	var res llmAnswer
	if err = extractJSON(answer.Content, &res); err != nil {
		return Signal{}, fmt.Errorf("%w: %v", ErrPredictionUnavailable, err)
	}

	sig := Signal{
		Action:              Action(strings.ToLower(res.Action)),
		Confidence:          res.Confidence,
		TrendDirection:      entity.TrendDirection(strings.ToLower(res.TrendDirection)),
		TrendStrength:       res.TrendStrength,
		ReversalProbability: res.ReversalProbability,
		Timestamp:           kLines[len(kLines)-1].CloseTime,
	}
	// 越界值留给调用方截断并记录
	return sig, nil
}

// extractJSON 模型经常用 ```json 包裹答案, 只取第一个 { 到最后一个 } 之间的内容
func extractJSON(content string, v any) error {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return fmt.Errorf("invalid answer format")
	}
	return json.Unmarshal([]byte(content[start:end+1]), v)
}
