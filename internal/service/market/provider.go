package market

import (
	"context"
	"fmt"
	"time"

	"github.com/KNICEX/trading-monitor/internal/service/exchange"
	"github.com/shopspring/decimal"
)

type Quote struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// Provider 行情数据源
type Provider interface {
	GetCurrentPrice(ctx context.Context, pair string) (Quote, error)
}

type exchangeProvider struct {
	market exchange.MarketService
	now    func() time.Time
}

func NewProvider(market exchange.MarketService) Provider {
	return &exchangeProvider{
		market: market,
		now:    time.Now,
	}
}

func (p *exchangeProvider) GetCurrentPrice(ctx context.Context, pair string) (Quote, error) {
	tp := exchange.ParsePair(pair)
	if tp.IsZero() {
		return Quote{}, fmt.Errorf("invalid pair %q", pair)
	}
	price, err := p.market.Ticker(ctx, tp)
	if err != nil {
		return Quote{}, fmt.Errorf("ticker %s: %w", tp.ToSlashString(), err)
	}
	if !price.IsPositive() {
		return Quote{}, fmt.Errorf("ticker %s: non-positive price %s", tp.ToSlashString(), price)
	}
	return Quote{Price: price, Timestamp: p.now()}, nil
}
