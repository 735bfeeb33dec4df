package model

// Request bodies for the /v1 surface. Network is always explicit: the
// gateway serves testnet and mainnet side by side and never guesses.

type MarketsListRequest struct {
	Network string `json:"network" binding:"required,oneof=testnet mainnet"`
}

type PriceRequest struct {
	Network string `json:"network" binding:"required,oneof=testnet mainnet"`
	Base    string `json:"base" binding:"required"`
	Quote   string `json:"quote"` // defaults to USD
}

type MarketFundingRequest struct {
	Network     string `json:"network" binding:"required,oneof=testnet mainnet"`
	PairID      int    `json:"pairId" binding:"min=0"`
	PeriodHours int    `json:"periodHours"` // defaults to 24
}

type MarketDetailsRequest struct {
	Network string `json:"network" binding:"required,oneof=testnet mainnet"`
	PairID  int    `json:"pairId" binding:"min=0"`
}

type BalanceRequest struct {
	Network string `json:"network" binding:"required,oneof=testnet mainnet"`
	Address string `json:"address" binding:"required"`
}

type PositionsListRequest struct {
	Network       string `json:"network" binding:"required,oneof=testnet mainnet"`
	TraderAddress string `json:"traderAddress" binding:"required"`
}

type FaucetRequest struct {
	Network       string `json:"network" binding:"required,oneof=testnet mainnet"`
	TraderAddress string `json:"traderAddress"`
}

type PositionOpenRequest struct {
	Network        string   `json:"network" binding:"required,oneof=testnet mainnet"`
	Market         string   `json:"market" binding:"required"`
	Side           string   `json:"side" binding:"required,oneof=long short"`
	Collateral     float64  `json:"collateral" binding:"required,gt=0"`
	Leverage       float64  `json:"leverage" binding:"required,gt=0"`
	OrderType      string   `json:"orderType" binding:"omitempty,oneof=market limit stop"`
	TriggerPrice   *float64 `json:"triggerPrice"`
	Slippage       float64  `json:"slippage"` // percent, defaults to 2.0
	SLPrice        *float64 `json:"slPrice" binding:"omitempty,gt=0"`
	TPPrice        *float64 `json:"tpPrice" binding:"omitempty,gt=0"`
	TraderAddress  string   `json:"traderAddress"`
	IdempotencyKey string   `json:"idempotencyKey"`
}

type PositionCloseRequest struct {
	Network         string  `json:"network" binding:"required,oneof=testnet mainnet"`
	PairID          int     `json:"pairId" binding:"min=0"`
	TradeIndex      int     `json:"tradeIndex" binding:"min=0"`
	ClosePercentage float64 `json:"closePercentage"` // defaults to 100
	Slippage        float64 `json:"slippage"`        // percent, defaults to 2.0
	TraderAddress   string  `json:"traderAddress"`
	IdempotencyKey  string  `json:"idempotencyKey"`
}

type PositionUpdateSLRequest struct {
	Network       string  `json:"network" binding:"required,oneof=testnet mainnet"`
	PairID        int     `json:"pairId" binding:"min=0"`
	TradeIndex    int     `json:"tradeIndex" binding:"min=0"`
	SLPrice       float64 `json:"slPrice" binding:"required,gt=0"`
	TraderAddress string  `json:"traderAddress"`
}

type PositionUpdateTPRequest struct {
	Network       string  `json:"network" binding:"required,oneof=testnet mainnet"`
	PairID        int     `json:"pairId" binding:"min=0"`
	TradeIndex    int     `json:"tradeIndex" binding:"min=0"`
	TPPrice       float64 `json:"tpPrice" binding:"required,gt=0"`
	TraderAddress string  `json:"traderAddress"`
}

type PositionMetricsRequest struct {
	Network       string `json:"network" binding:"required,oneof=testnet mainnet"`
	PairID        int    `json:"pairId" binding:"min=0"`
	TradeIndex    int    `json:"tradeIndex" binding:"min=0"`
	TraderAddress string `json:"traderAddress"`
}

type OrderCancelRequest struct {
	Network        string `json:"network" binding:"required,oneof=testnet mainnet"`
	PairID         int    `json:"pairId" binding:"min=0"`
	TradeIndex     int    `json:"tradeIndex" binding:"min=0"`
	TraderAddress  string `json:"traderAddress"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// OrderUpdateRequest carries no traderAddress: the order-update contract
// call identifies the order by pair and index alone.
type OrderUpdateRequest struct {
	Network    string   `json:"network" binding:"required,oneof=testnet mainnet"`
	PairID     int      `json:"pairId" binding:"min=0"`
	TradeIndex int      `json:"tradeIndex" binding:"min=0"`
	Price      *float64 `json:"price" binding:"omitempty,gt=0"`
	SLPrice    *float64 `json:"slPrice" binding:"omitempty,gt=0"`
	TPPrice    *float64 `json:"tpPrice" binding:"omitempty,gt=0"`
}

type OrderTrackRequest struct {
	Network string `json:"network" binding:"required,oneof=testnet mainnet"`
	OrderID string `json:"orderId" binding:"required"`
}
