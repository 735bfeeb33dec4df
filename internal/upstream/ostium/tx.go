package ostium

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/flowforge/ostiumgate/internal/config"
	"github.com/flowforge/ostiumgate/internal/upstream"
)

// Subset of the Ostium trading storage ABI covering the operations the
// gateway forwards. Amounts use 6 decimals (USDC), prices 18, leverage
// and percentages two implied decimals.
const tradingABIJSON = `[
  {"type":"function","name":"openTrade","stateMutability":"nonpayable","inputs":[
    {"name":"t","type":"tuple","components":[
      {"name":"collateral","type":"uint256"},
      {"name":"openPrice","type":"uint256"},
      {"name":"tp","type":"uint256"},
      {"name":"sl","type":"uint256"},
      {"name":"trader","type":"address"},
      {"name":"leverage","type":"uint32"},
      {"name":"pairIndex","type":"uint16"},
      {"name":"index","type":"uint8"},
      {"name":"buy","type":"bool"}]},
    {"name":"orderType","type":"uint8"},
    {"name":"slippageP","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"closeTradeMarket","stateMutability":"nonpayable","inputs":[
    {"name":"pairIndex","type":"uint16"},
    {"name":"index","type":"uint8"},
    {"name":"closePercentage","type":"uint16"},
    {"name":"trader","type":"address"}],"outputs":[]},
  {"type":"function","name":"updateSl","stateMutability":"nonpayable","inputs":[
    {"name":"pairIndex","type":"uint16"},
    {"name":"index","type":"uint8"},
    {"name":"newSl","type":"uint256"},
    {"name":"trader","type":"address"}],"outputs":[]},
  {"type":"function","name":"updateTp","stateMutability":"nonpayable","inputs":[
    {"name":"pairIndex","type":"uint16"},
    {"name":"index","type":"uint8"},
    {"name":"newTp","type":"uint256"},
    {"name":"trader","type":"address"}],"outputs":[]},
  {"type":"function","name":"cancelOpenLimitOrder","stateMutability":"nonpayable","inputs":[
    {"name":"pairIndex","type":"uint16"},
    {"name":"index","type":"uint8"},
    {"name":"trader","type":"address"}],"outputs":[]},
  {"type":"function","name":"updateOpenLimitOrder","stateMutability":"nonpayable","inputs":[
    {"name":"pairIndex","type":"uint16"},
    {"name":"index","type":"uint8"},
    {"name":"price","type":"uint256"},
    {"name":"tp","type":"uint256"},
    {"name":"sl","type":"uint256"}],"outputs":[]},
  {"type":"function","name":"requestTokens","stateMutability":"nonpayable","inputs":[
    {"name":"receiver","type":"address"}],"outputs":[]},
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[
    {"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

var (
	tradingABI     abi.ABI
	tradingABIOnce sync.Once
	tradingABIErr  error

	// txMu serializes nonce fetch + send so two concurrent mutations do
	// not race for the same delegate nonce.
	txMu sync.Mutex
)

func loadABI() (abi.ABI, error) {
	tradingABIOnce.Do(func() {
		tradingABI, tradingABIErr = abi.JSON(strings.NewReader(tradingABIJSON))
	})
	return tradingABI, tradingABIErr
}

type tradeTuple struct {
	Collateral *big.Int
	OpenPrice  *big.Int
	Tp         *big.Int
	Sl         *big.Int
	Trader     common.Address
	Leverage   uint32
	PairIndex  uint16
	Index      uint8
	Buy        bool
}

func toUnits(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).Round(0).BigInt()
}

func optToUnits(d *decimal.Decimal, decimals int32) *big.Int {
	if d == nil {
		return big.NewInt(0)
	}
	return toUnits(*d, decimals)
}

func orderTypeCode(orderType string) (uint8, error) {
	switch strings.ToUpper(orderType) {
	case "", "MARKET":
		return 0, nil
	case "LIMIT":
		return 1, nil
	case "STOP":
		return 2, nil
	default:
		return 0, fmt.Errorf("unsupported order type %q", orderType)
	}
}

func (c *Client) traderOrDelegate(trader string) (common.Address, error) {
	if trader != "" {
		return common.HexToAddress(trader), nil
	}
	if c.delegateKey == nil {
		return common.Address{}, fmt.Errorf("no trader address and no delegate wallet configured")
	}
	return c.delegateAddr, nil
}

func (c *Client) PerformTrade(ctx context.Context, network string, order upstream.TradeOrder) (*upstream.Submission, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	otCode, err := orderTypeCode(order.OrderType)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "open_trade", err)
	}
	trader, err := c.traderOrDelegate(order.Trader)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "open_trade", err)
	}

	t := tradeTuple{
		Collateral: toUnits(order.Collateral, usdcDecimals),
		OpenPrice:  toUnits(order.AtPrice, priceDecimals),
		Tp:         optToUnits(order.TP, priceDecimals),
		Sl:         optToUnits(order.SL, priceDecimals),
		Trader:     trader,
		Leverage:   uint32(order.Leverage.Shift(2).Round(0).IntPart()),
		PairIndex:  uint16(order.PairID),
		Index:      0,
		Buy:        order.Long,
	}
	data, err := parsed.Pack("openTrade", t, otCode, toUnits(order.SlippagePct, 2))
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "open_trade", err)
	}
	return c.submit(ctx, network, "open_trade", data, func(ep endpointsFn) string { return ep.TradingContract })
}

func (c *Client) CloseTrade(ctx context.Context, network string, order upstream.CloseOrder) (*upstream.Submission, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	trader, err := c.traderOrDelegate(order.Trader)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "close_trade", err)
	}
	data, err := parsed.Pack("closeTradeMarket",
		uint16(order.PairID), uint8(order.TradeIndex),
		uint16(order.ClosePercentage.Shift(2).Round(0).IntPart()), trader)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "close_trade", err)
	}
	return c.submit(ctx, network, "close_trade", data, func(ep endpointsFn) string { return ep.TradingContract })
}

func (c *Client) UpdateSL(ctx context.Context, network string, pairID, tradeIndex int, price decimal.Decimal, trader string) (*upstream.Submission, error) {
	return c.updateProtection(ctx, network, "updateSl", "update_sl", pairID, tradeIndex, price, trader)
}

func (c *Client) UpdateTP(ctx context.Context, network string, pairID, tradeIndex int, price decimal.Decimal, trader string) (*upstream.Submission, error) {
	return c.updateProtection(ctx, network, "updateTp", "update_tp", pairID, tradeIndex, price, trader)
}

func (c *Client) updateProtection(ctx context.Context, network, method, op string, pairID, tradeIndex int, price decimal.Decimal, trader string) (*upstream.Submission, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	addr, err := c.traderOrDelegate(trader)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, op, err)
	}
	data, err := parsed.Pack(method, uint16(pairID), uint8(tradeIndex), toUnits(price, priceDecimals), addr)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, op, err)
	}
	return c.submit(ctx, network, op, data, func(ep endpointsFn) string { return ep.TradingContract })
}

func (c *Client) CancelLimitOrder(ctx context.Context, network string, pairID, tradeIndex int, trader string) (*upstream.Submission, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	addr, err := c.traderOrDelegate(trader)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "cancel_order", err)
	}
	data, err := parsed.Pack("cancelOpenLimitOrder", uint16(pairID), uint8(tradeIndex), addr)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "cancel_order", err)
	}
	return c.submit(ctx, network, "cancel_order", data, func(ep endpointsFn) string { return ep.TradingContract })
}

func (c *Client) UpdateLimitOrder(ctx context.Context, network string, pairID, tradeIndex int, price, sl, tp *decimal.Decimal) (*upstream.Submission, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("updateOpenLimitOrder",
		uint16(pairID), uint8(tradeIndex),
		optToUnits(price, priceDecimals), optToUnits(tp, priceDecimals), optToUnits(sl, priceDecimals))
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "update_order", err)
	}
	return c.submit(ctx, network, "update_order", data, func(ep endpointsFn) string { return ep.TradingContract })
}

func (c *Client) RequestFaucet(ctx context.Context, network, address string) (*upstream.Submission, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	receiver, err := c.traderOrDelegate(address)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "request_faucet", err)
	}
	data, err := parsed.Pack("requestTokens", receiver)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, "request_faucet", err)
	}
	return c.submit(ctx, network, "request_faucet", data, func(ep endpointsFn) string { return ep.FaucetContract })
}

type endpointsFn = config.NetworkEndpoints

// submit signs calldata with the delegate key and sends it. No retry on
// failure: a mutating call is forwarded at most once and a timeout means
// unknown outcome, to be reconciled via list/history.
func (c *Client) submit(ctx context.Context, network, op string, data []byte, contract func(endpointsFn) string) (*upstream.Submission, error) {
	if c.delegateKey == nil {
		return nil, upstream.NewError(upstream.KindOther, op, fmt.Errorf("delegate private key is not configured"))
	}

	ep, err := c.endpoints(network)
	if err != nil {
		return nil, err
	}
	target := contract(ep)
	if target == "" {
		return nil, upstream.NewError(upstream.KindOther, op, fmt.Errorf("no contract configured for %s on %s", op, network))
	}
	to := common.HexToAddress(target)

	ec, err := c.ethFor(ctx, network)
	if err != nil {
		return nil, err
	}
	chainID, err := c.chainIDFor(ctx, network)
	if err != nil {
		return nil, err
	}

	txMu.Lock()
	defer txMu.Unlock()

	nonce, err := ec.PendingNonceAt(ctx, c.delegateAddr)
	if err != nil {
		return nil, classify(op, err)
	}
	gasPrice, err := ec.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify(op, err)
	}
	gasLimit, err := ec.EstimateGas(ctx, ethereum.CallMsg{
		From: c.delegateAddr,
		To:   &to,
		Data: data,
	})
	if err != nil {
		// Estimation reverts carry the contract error message; surface
		// it as a domain failure, not a transport one.
		return nil, upstream.NewError(upstream.KindOther, op, err)
	}
	gasLimit = gasLimit + gasLimit/5

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.delegateKey)
	if err != nil {
		return nil, upstream.NewError(upstream.KindOther, op, err)
	}
	if err := ec.SendTransaction(ctx, signed); err != nil {
		return nil, classify(op, err)
	}

	return &upstream.Submission{
		TxHash: signed.Hash().Hex(),
		Status: "submitted",
	}, nil
}

func (c *Client) erc20BalanceOf(ctx context.Context, ec *ethclient.Client, token, owner common.Address) (*big.Int, error) {
	parsed, err := loadABI()
	if err != nil {
		return nil, err
	}
	data, err := parsed.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}
	out, err := ec.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, classify("usdc_balance", err)
	}
	if len(out) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(out), nil
}
