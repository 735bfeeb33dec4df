// Package upstream defines the trading capability the gateway dispatches
// to. The gateway core treats it as opaque: it never interprets trading
// semantics, it only forwards operations and classifies failures.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Pair is one tradable market on the backend.
type Pair struct {
	ID          int             `json:"id"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	IsPaused    bool            `json:"isPaused"`
	MaxLeverage decimal.Decimal `json:"maxLeverage"`
}

// Price is a spot quote for a base/quote pair.
type Price struct {
	Value              decimal.Decimal
	IsMarketOpen       *bool
	IsDayTradingClosed *bool
}

type FundingRate struct {
	AccFundingLong  decimal.Decimal
	AccFundingShort decimal.Decimal
	RatePercent     decimal.Decimal
	TargetPercent   decimal.Decimal
}

type Balances struct {
	USDC   decimal.Decimal
	Native decimal.Decimal
}

// TradeOrder describes a position to open. Prices and collateral are
// already resolved by the service layer; the client only encodes and
// submits.
type TradeOrder struct {
	PairID       int
	Collateral   decimal.Decimal
	Leverage     decimal.Decimal
	Long         bool
	OrderType    string // MARKET, LIMIT or STOP
	AtPrice      decimal.Decimal
	SlippagePct  decimal.Decimal
	SL           *decimal.Decimal
	TP           *decimal.Decimal
	Trader       string // optional delegated trader address
}

type CloseOrder struct {
	PairID          int
	TradeIndex      int
	MarketPrice     decimal.Decimal
	ClosePercentage decimal.Decimal
	SlippagePct     decimal.Decimal
	Trader          string
}

// Submission is the at-most-once result of a mutating call.
type Submission struct {
	TxHash string `json:"txHash"`
	Status string `json:"status"`
}

// Capability is the full operation surface of the trading backend.
type Capability interface {
	// Ping confirms connectivity for readiness probing.
	Ping(ctx context.Context, network string) error

	ListPairs(ctx context.Context, network string) ([]Pair, error)
	GetPrice(ctx context.Context, network, base, quote string) (Price, error)
	GetFundingRate(ctx context.Context, network string, pairID, periodHours int) (FundingRate, error)
	GetRolloverRate(ctx context.Context, network string, pairID, periodHours int) (decimal.Decimal, error)
	GetPairDetails(ctx context.Context, network string, pairID int) (json.RawMessage, error)

	GetBalances(ctx context.Context, network, address string) (Balances, error)
	GetOpenTrades(ctx context.Context, network, trader string) (json.RawMessage, error)
	GetOrders(ctx context.Context, network, trader string) (json.RawMessage, error)
	GetRecentHistory(ctx context.Context, network, trader string, limit int) (json.RawMessage, error)
	GetTradeMetrics(ctx context.Context, network string, pairID, tradeIndex int, trader string) (json.RawMessage, error)
	TrackOrder(ctx context.Context, network, orderID string) (json.RawMessage, error)

	PerformTrade(ctx context.Context, network string, order TradeOrder) (*Submission, error)
	CloseTrade(ctx context.Context, network string, order CloseOrder) (*Submission, error)
	UpdateSL(ctx context.Context, network string, pairID, tradeIndex int, price decimal.Decimal, trader string) (*Submission, error)
	UpdateTP(ctx context.Context, network string, pairID, tradeIndex int, price decimal.Decimal, trader string) (*Submission, error)
	CancelLimitOrder(ctx context.Context, network string, pairID, tradeIndex int, trader string) (*Submission, error)
	UpdateLimitOrder(ctx context.Context, network string, pairID, tradeIndex int, price, sl, tp *decimal.Decimal) (*Submission, error)
	RequestFaucet(ctx context.Context, network, address string) (*Submission, error)

	// DelegateAddress reports the configured delegate wallet, if any.
	DelegateAddress() (string, bool)
}

// Failure kinds the gateway distinguishes when classifying errors.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindUnavailable
)

// Error wraps a backend failure with its transport-level kind so the
// dispatch layer can translate without inspecting raw causes.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the failure kind, defaulting to KindOther.
func KindOf(err error) Kind {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindOther
}
