package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/upstream"
)

const defaultHistoryLimit = 20

// AccountService serves wallet reads and the testnet faucet.
type AccountService struct {
	up upstream.Capability
}

func NewAccountService(up upstream.Capability) *AccountService {
	return &AccountService{up: up}
}

func (s *AccountService) GetBalance(ctx context.Context, network, address string) (map[string]any, error) {
	balances, err := s.up.GetBalances(ctx, network, address)
	if err != nil {
		return nil, classifyUpstream("accounts/balance", apperrors.CodeUpstream,
			fmt.Sprintf("Failed to fetch balances for %s", address), err)
	}
	return map[string]any{
		"network": network,
		"address": address,
		"balances": map[string]any{
			"usdc":   balances.USDC.InexactFloat64(),
			"native": balances.Native.InexactFloat64(),
		},
	}, nil
}

func (s *AccountService) GetHistory(ctx context.Context, network, trader string) (map[string]any, error) {
	history, err := s.up.GetRecentHistory(ctx, network, trader, defaultHistoryLimit)
	if err != nil {
		return nil, classifyUpstream("accounts/history", apperrors.CodeUpstream,
			"Failed to fetch account history", err)
	}
	return map[string]any{
		"network":       network,
		"traderAddress": trader,
		"history":       json.RawMessage(history),
	}, nil
}

// RequestFaucet mints test USDC. Mainnet has no faucet contract, so the
// call is rejected before it reaches the chain.
func (s *AccountService) RequestFaucet(ctx context.Context, network, trader string) (map[string]any, error) {
	if network != "testnet" {
		return nil, apperrors.New(apperrors.CodeFaucetUnavailable,
			"Faucet is only available on testnet", nil)
	}
	if trader == "" {
		if addr, ok := s.up.DelegateAddress(); ok {
			trader = addr
		} else {
			return nil, apperrors.New(apperrors.CodeDelegateKeyMissing,
				"No traderAddress given and no delegate wallet is configured", nil)
		}
	}
	sub, err := s.up.RequestFaucet(ctx, network, trader)
	if err != nil {
		return nil, classifyUpstream("faucet/request", apperrors.CodeUpstream, "Faucet request failed", err)
	}
	return map[string]any{
		"network": network,
		"address": trader,
		"status":  sub.Status,
		"txHash":  sub.TxHash,
	}, nil
}
