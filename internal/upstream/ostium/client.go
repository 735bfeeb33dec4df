// Package ostium implements the upstream trading capability against the
// Ostium perp DEX: subgraph for indexed state, the price publisher for
// quotes, and Arbitrum RPC for balances and trading transactions.
package ostium

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/flowforge/ostiumgate/internal/config"
	"github.com/flowforge/ostiumgate/internal/upstream"
)

const (
	usdcDecimals  = 6
	priceDecimals = 18
)

type Client struct {
	cfg        config.UpstreamConfig
	httpClient *http.Client

	delegateKey  *ecdsa.PrivateKey
	delegateAddr common.Address

	mu      sync.Mutex
	eth     map[string]*ethclient.Client
	chainID map[string]*big.Int
}

func NewClient(cfg config.UpstreamConfig) (*Client, error) {
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
			Timeout: 15 * time.Second,
		},
		eth:     make(map[string]*ethclient.Client),
		chainID: make(map[string]*big.Int),
	}

	if cfg.DelegatePrivateKey != "" {
		pk := strings.TrimPrefix(cfg.DelegatePrivateKey, "0x")
		key, err := crypto.HexToECDSA(pk)
		if err != nil {
			return nil, fmt.Errorf("invalid delegate private key: %w", err)
		}
		c.delegateKey = key
		c.delegateAddr = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

func (c *Client) DelegateAddress() (string, bool) {
	if c.delegateKey == nil {
		return "", false
	}
	return c.delegateAddr.Hex(), true
}

func (c *Client) endpoints(network string) (config.NetworkEndpoints, error) {
	switch network {
	case "testnet":
		return c.cfg.Testnet, nil
	case "mainnet":
		return c.cfg.Mainnet, nil
	default:
		return config.NetworkEndpoints{}, fmt.Errorf("unknown network %q", network)
	}
}

// ethFor dials the network RPC once and caches the client; ethclient
// multiplexes requests over a single connection safely.
func (c *Client) ethFor(ctx context.Context, network string) (*ethclient.Client, error) {
	c.mu.Lock()
	if ec, ok := c.eth[network]; ok {
		c.mu.Unlock()
		return ec, nil
	}
	c.mu.Unlock()

	ep, err := c.endpoints(network)
	if err != nil {
		return nil, err
	}
	ec, err := ethclient.DialContext(ctx, ep.RPCURL)
	if err != nil {
		return nil, classify("dial_rpc", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.eth[network]; ok {
		ec.Close()
		return existing, nil
	}
	c.eth[network] = ec
	return ec, nil
}

func (c *Client) chainIDFor(ctx context.Context, network string) (*big.Int, error) {
	c.mu.Lock()
	if id, ok := c.chainID[network]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	ec, err := c.ethFor(ctx, network)
	if err != nil {
		return nil, err
	}
	id, err := ec.ChainID(ctx)
	if err != nil {
		return nil, classify("chain_id", err)
	}

	c.mu.Lock()
	c.chainID[network] = id
	c.mu.Unlock()
	return id, nil
}

// Ping confirms RPC connectivity and, when a delegate wallet is
// configured, that it holds enough gas to submit trades.
func (c *Client) Ping(ctx context.Context, network string) error {
	ec, err := c.ethFor(ctx, network)
	if err != nil {
		return err
	}
	if _, err := ec.BlockNumber(ctx); err != nil {
		return classify("ping", err)
	}

	if c.delegateKey != nil && c.cfg.MinDelegateGasWei != "" {
		min, ok := new(big.Int).SetString(c.cfg.MinDelegateGasWei, 10)
		if ok && min.Sign() > 0 {
			bal, err := ec.BalanceAt(ctx, c.delegateAddr, nil)
			if err != nil {
				return classify("delegate_balance", err)
			}
			if bal.Cmp(min) < 0 {
				return fmt.Errorf("delegate wallet gas is low: %s wei", bal.String())
			}
		}
	}
	return nil
}

// GetBalances reads the native balance via RPC and the USDC balance via
// an ERC-20 balanceOf call.
func (c *Client) GetBalances(ctx context.Context, network, address string) (upstream.Balances, error) {
	ec, err := c.ethFor(ctx, network)
	if err != nil {
		return upstream.Balances{}, err
	}
	ep, err := c.endpoints(network)
	if err != nil {
		return upstream.Balances{}, err
	}

	addr := common.HexToAddress(address)
	native, err := ec.BalanceAt(ctx, addr, nil)
	if err != nil {
		return upstream.Balances{}, classify("native_balance", err)
	}

	usdc, err := c.erc20BalanceOf(ctx, ec, common.HexToAddress(ep.USDCContract), addr)
	if err != nil {
		return upstream.Balances{}, err
	}

	return upstream.Balances{
		USDC:   decimal.NewFromBigInt(usdc, -usdcDecimals),
		Native: decimal.NewFromBigInt(native, -18),
	}, nil
}

// classify tags transport-level failures so the dispatch layer can map
// them to timeout/unavailable without string matching.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return upstream.NewError(upstream.KindTimeout, op, err)
	case isNetError(err):
		return upstream.NewError(upstream.KindUnavailable, op, err)
	default:
		return upstream.NewError(upstream.KindOther, op, err)
	}
}

func isNetError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
