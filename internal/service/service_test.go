package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowforge/ostiumgate/internal/model"
	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/repository"
	"github.com/flowforge/ostiumgate/internal/upstream"
)

// fakeCapability counts mutating calls so tests can assert that a
// rejected request never reached the backend.
type fakeCapability struct {
	pairs       []upstream.Pair
	price       decimal.Decimal
	priceErr    error
	tradeErr    error
	tradeHangs  bool
	tradeCalls  int
	closeCalls  int
	faucetCalls int
	delegate    string
}

func newFakeCapability() *fakeCapability {
	return &fakeCapability{
		pairs: []upstream.Pair{
			{ID: 0, From: "BTC", To: "USD", MaxLeverage: decimal.NewFromInt(50)},
			{ID: 1, From: "ETH", To: "USD", MaxLeverage: decimal.NewFromInt(50)},
			{ID: 2, From: "EUR", To: "USD", IsPaused: true, MaxLeverage: decimal.NewFromInt(100)},
		},
		price:    decimal.NewFromInt(65000),
		delegate: "0xDE1e6a7E6e5A7E30Ab1bd0e4b1fA5c1B00000001",
	}
}

func (f *fakeCapability) Ping(context.Context, string) error { return nil }

func (f *fakeCapability) ListPairs(context.Context, string) ([]upstream.Pair, error) {
	return f.pairs, nil
}

func (f *fakeCapability) GetPrice(context.Context, string, string, string) (upstream.Price, error) {
	if f.priceErr != nil {
		return upstream.Price{}, f.priceErr
	}
	open := true
	return upstream.Price{Value: f.price, IsMarketOpen: &open}, nil
}

func (f *fakeCapability) GetFundingRate(context.Context, string, int, int) (upstream.FundingRate, error) {
	return upstream.FundingRate{
		AccFundingLong:  decimal.NewFromFloat(0.01),
		AccFundingShort: decimal.NewFromFloat(-0.02),
		RatePercent:     decimal.NewFromFloat(0.5),
		TargetPercent:   decimal.NewFromFloat(0.4),
	}, nil
}

func (f *fakeCapability) GetRolloverRate(context.Context, string, int, int) (decimal.Decimal, error) {
	return decimal.NewFromFloat(0.03), nil
}

func (f *fakeCapability) GetPairDetails(context.Context, string, int) (json.RawMessage, error) {
	return json.RawMessage(`{"id":"0"}`), nil
}

func (f *fakeCapability) GetBalances(context.Context, string, string) (upstream.Balances, error) {
	return upstream.Balances{USDC: decimal.NewFromInt(1000), Native: decimal.NewFromFloat(0.5)}, nil
}

func (f *fakeCapability) GetOpenTrades(context.Context, string, string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeCapability) GetOrders(context.Context, string, string) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeCapability) GetRecentHistory(context.Context, string, string, int) (json.RawMessage, error) {
	return json.RawMessage(`[]`), nil
}

func (f *fakeCapability) GetTradeMetrics(context.Context, string, int, int, string) (json.RawMessage, error) {
	return json.RawMessage(`{"pnl":"0"}`), nil
}

func (f *fakeCapability) TrackOrder(context.Context, string, string) (json.RawMessage, error) {
	return json.RawMessage(`{"status":"pending"}`), nil
}

func (f *fakeCapability) PerformTrade(ctx context.Context, _ string, _ upstream.TradeOrder) (*upstream.Submission, error) {
	f.tradeCalls++
	if f.tradeHangs {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.tradeErr != nil {
		return nil, f.tradeErr
	}
	return &upstream.Submission{TxHash: "0xabc", Status: "submitted"}, nil
}

func (f *fakeCapability) CloseTrade(context.Context, string, upstream.CloseOrder) (*upstream.Submission, error) {
	f.closeCalls++
	return &upstream.Submission{TxHash: "0xdef", Status: "submitted"}, nil
}

func (f *fakeCapability) UpdateSL(context.Context, string, int, int, decimal.Decimal, string) (*upstream.Submission, error) {
	return &upstream.Submission{TxHash: "0x111", Status: "submitted"}, nil
}

func (f *fakeCapability) UpdateTP(context.Context, string, int, int, decimal.Decimal, string) (*upstream.Submission, error) {
	return &upstream.Submission{TxHash: "0x222", Status: "submitted"}, nil
}

func (f *fakeCapability) CancelLimitOrder(context.Context, string, int, int, string) (*upstream.Submission, error) {
	return &upstream.Submission{TxHash: "0x333", Status: "submitted"}, nil
}

func (f *fakeCapability) UpdateLimitOrder(context.Context, string, int, int, *decimal.Decimal, *decimal.Decimal, *decimal.Decimal) (*upstream.Submission, error) {
	return &upstream.Submission{TxHash: "0x444", Status: "submitted"}, nil
}

func (f *fakeCapability) RequestFaucet(context.Context, string, string) (*upstream.Submission, error) {
	f.faucetCalls++
	return &upstream.Submission{TxHash: "0x555", Status: "submitted"}, nil
}

func (f *fakeCapability) DelegateAddress() (string, bool) {
	return f.delegate, f.delegate != ""
}

func newTradingFixture(fake *fakeCapability) *TradingService {
	markets := NewMarketService(fake, nil)
	return NewTradingService(fake, markets, repository.NewMemoryIdempotencyStore())
}

func appCode(t *testing.T, err error) apperrors.Code {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	return appErr.Code
}

func TestResolvePairID(t *testing.T) {
	fake := newFakeCapability()
	markets := NewMarketService(fake, nil)
	ctx := context.Background()

	id, err := markets.ResolvePairID(ctx, "testnet", "ETH")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = markets.ResolvePairID(ctx, "testnet", "eth")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	id, err = markets.ResolvePairID(ctx, "testnet", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, id)

	_, err = markets.ResolvePairID(ctx, "testnet", "DOGE")
	assert.Equal(t, apperrors.CodeInvalidMarket, appCode(t, err))
}

func TestOpenPositionMarketOrder(t *testing.T) {
	fake := newFakeCapability()
	svc := newTradingFixture(fake)

	resp, err := svc.OpenPosition(context.Background(), &model.PositionOpenRequest{
		Network:    "testnet",
		Market:     "BTC",
		Side:       "long",
		Collateral: 100,
		Leverage:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.tradeCalls)
	assert.Equal(t, "submitted", resp["status"])
	assert.Equal(t, "market", resp["orderType"])
	assert.Equal(t, 0, resp["pairId"])
	assert.InDelta(t, 65000, resp["triggerPrice"].(float64), 0.001)
}

func TestOpenPositionLimitRequiresTrigger(t *testing.T) {
	fake := newFakeCapability()
	svc := newTradingFixture(fake)

	_, err := svc.OpenPosition(context.Background(), &model.PositionOpenRequest{
		Network:    "testnet",
		Market:     "BTC",
		Side:       "short",
		Collateral: 100,
		Leverage:   5,
		OrderType:  "limit",
	})
	assert.Equal(t, apperrors.CodeTriggerPriceRequired, appCode(t, err))
	assert.Zero(t, fake.tradeCalls)
}

func TestOpenPositionLeverageTooHigh(t *testing.T) {
	fake := newFakeCapability()
	svc := newTradingFixture(fake)

	_, err := svc.OpenPosition(context.Background(), &model.PositionOpenRequest{
		Network:    "testnet",
		Market:     "BTC",
		Side:       "long",
		Collateral: 100,
		Leverage:   75,
	})
	assert.Equal(t, apperrors.CodeLeverageTooHigh, appCode(t, err))
	assert.Zero(t, fake.tradeCalls)
}

func TestOpenPositionUnknownMarket(t *testing.T) {
	fake := newFakeCapability()
	svc := newTradingFixture(fake)

	_, err := svc.OpenPosition(context.Background(), &model.PositionOpenRequest{
		Network:    "testnet",
		Market:     "SHIB",
		Side:       "long",
		Collateral: 100,
		Leverage:   2,
	})
	assert.Equal(t, apperrors.CodeInvalidMarket, appCode(t, err))
	assert.Zero(t, fake.tradeCalls)
}

func TestOpenPositionNoDelegateNoTrader(t *testing.T) {
	fake := newFakeCapability()
	fake.delegate = ""
	svc := newTradingFixture(fake)

	_, err := svc.OpenPosition(context.Background(), &model.PositionOpenRequest{
		Network:    "testnet",
		Market:     "BTC",
		Side:       "long",
		Collateral: 100,
		Leverage:   2,
	})
	assert.Equal(t, apperrors.CodeDelegateKeyMissing, appCode(t, err))
	assert.Zero(t, fake.tradeCalls)
}

func TestOpenPositionIdempotentReplay(t *testing.T) {
	fake := newFakeCapability()
	svc := newTradingFixture(fake)
	req := &model.PositionOpenRequest{
		Network:        "testnet",
		Market:         "BTC",
		Side:           "long",
		Collateral:     100,
		Leverage:       10,
		IdempotencyKey: "open-1",
	}

	first, err := svc.OpenPosition(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.tradeCalls)
	assert.Nil(t, first["idempotentReplay"])

	second, err := svc.OpenPosition(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, fake.tradeCalls, "replay must not resubmit")
	assert.Equal(t, true, second["idempotentReplay"])
	assert.Equal(t, first["status"], second["status"])
}

func TestOpenPositionDeadlineSurfacesAsUpstreamTimeout(t *testing.T) {
	fake := newFakeCapability()
	fake.tradeHangs = true
	svc := newTradingFixture(fake)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := svc.OpenPosition(ctx, &model.PositionOpenRequest{
		Network:    "testnet",
		Market:     "BTC",
		Side:       "long",
		Collateral: 100,
		Leverage:   10,
	})
	assert.Equal(t, apperrors.CodeUpstreamTimeout, appCode(t, err))
	assert.Equal(t, 1, fake.tradeCalls)
}

func TestClosePositionDefaults(t *testing.T) {
	fake := newFakeCapability()
	svc := newTradingFixture(fake)

	resp, err := svc.ClosePosition(context.Background(), &model.PositionCloseRequest{
		Network: "testnet",
		PairID:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.closeCalls)
	assert.Equal(t, float64(100), resp["closePercentage"])
}

func TestFaucetMainnetRejected(t *testing.T) {
	fake := newFakeCapability()
	svc := NewAccountService(fake)

	_, err := svc.RequestFaucet(context.Background(), "mainnet", "0xabc")
	assert.Equal(t, apperrors.CodeFaucetUnavailable, appCode(t, err))
	assert.Zero(t, fake.faucetCalls)
}

func TestFaucetTestnetDefaultsToDelegate(t *testing.T) {
	fake := newFakeCapability()
	svc := NewAccountService(fake)

	resp, err := svc.RequestFaucet(context.Background(), "testnet", "")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.faucetCalls)
	assert.Equal(t, fake.delegate, resp["address"])
}

func TestUpdateOrderRequiresAField(t *testing.T) {
	fake := newFakeCapability()
	svc := NewOrderService(fake, nil)

	_, err := svc.UpdateOrder(context.Background(), &model.OrderUpdateRequest{
		Network: "testnet",
		PairID:  0,
	})
	assert.Equal(t, apperrors.CodeInvalidRequest, appCode(t, err))
}

func TestClassifyUpstream(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{
			name: "timeout kind",
			err:  upstream.NewError(upstream.KindTimeout, "trade", errors.New("deadline")),
			want: apperrors.CodeUpstreamTimeout,
		},
		{
			name: "unavailable kind",
			err:  upstream.NewError(upstream.KindUnavailable, "trade", errors.New("refused")),
			want: apperrors.CodeUpstreamUnavailable,
		},
		{
			name: "allowance message",
			err:  errors.New("execution reverted: sufficient allowance required"),
			want: apperrors.CodeAllowanceMissing,
		},
		{
			name: "delegation message",
			err:  errors.New("execution reverted: delegation is not active for trader"),
			want: apperrors.CodeDelegationInactive,
		},
		{
			name: "gas message",
			err:  errors.New("insufficient funds for gas * price + value"),
			want: apperrors.CodeDelegateGasLow,
		},
		{
			name: "default code",
			err:  errors.New("something odd"),
			want: apperrors.CodeUpstream,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			appErr := classifyUpstream("op", apperrors.CodeUpstream, "failed", tc.err)
			assert.Equal(t, tc.want, appErr.Code)
			assert.Equal(t, "op", appErr.Details["operation"])
		})
	}
}

func TestClassifyUpstreamPassesThroughAppError(t *testing.T) {
	orig := apperrors.New(apperrors.CodeInvalidMarket, "no such market", nil)
	got := classifyUpstream("op", apperrors.CodeUpstream, "failed", orig)
	assert.Same(t, orig, got)
}

func TestGetPriceFallsBackWithoutFeed(t *testing.T) {
	fake := newFakeCapability()
	fake.priceErr = upstream.NewError(upstream.KindUnavailable, "price", errors.New("down"))
	markets := NewMarketService(fake, nil)

	_, err := markets.GetPrice(context.Background(), "testnet", "BTC", "USD")
	assert.Equal(t, apperrors.CodeUpstreamUnavailable, appCode(t, err))
}

func TestGetBalanceShape(t *testing.T) {
	fake := newFakeCapability()
	svc := NewAccountService(fake)

	resp, err := svc.GetBalance(context.Background(), "testnet", "0xabc")
	require.NoError(t, err)
	balances := resp["balances"].(map[string]any)
	assert.InDelta(t, 1000, balances["usdc"].(float64), 0.001)
	assert.InDelta(t, 0.5, balances["native"].(float64), 0.001)
}
