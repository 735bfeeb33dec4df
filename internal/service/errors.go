package service

import (
	"errors"
	"strings"

	"github.com/flowforge/ostiumgate/internal/pkg/apperrors"
	"github.com/flowforge/ostiumgate/internal/pkg/metrics"
	"github.com/flowforge/ostiumgate/internal/upstream"
)

// classifyUpstream translates a capability failure into the stable
// gateway error shape. Raw upstream errors never cross the boundary:
// transport kinds map to timeout/unavailable, known contract failure
// messages map to actionable domain codes, everything else falls back
// to the operation's default code.
func classifyUpstream(op string, defaultCode apperrors.Code, defaultMsg string, err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	details := map[string]any{"error": err.Error(), "operation": op}

	var out *apperrors.AppError
	switch upstream.KindOf(err) {
	case upstream.KindTimeout:
		out = apperrors.New(apperrors.CodeUpstreamTimeout, "Upstream trading backend timed out", err)
	case upstream.KindUnavailable:
		out = apperrors.New(apperrors.CodeUpstreamUnavailable, "Upstream trading backend is unreachable", err)
	default:
		out = classifyMessage(op, defaultCode, defaultMsg, err)
	}
	out.Details = details
	metrics.UpstreamErrors.WithLabelValues(string(out.Code)).Inc()
	return out
}

func classifyMessage(op string, defaultCode apperrors.Code, defaultMsg string, err error) *apperrors.AppError {
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "sufficient allowance") || strings.Contains(lower, "allowance for"):
		return apperrors.New(apperrors.CodeAllowanceMissing,
			"Sufficient allowance not present. Approve the trading contract to spend USDC.", err)
	case strings.Contains(lower, "delegation is not active") || strings.Contains(lower, "delegation not active"):
		return apperrors.New(apperrors.CodeDelegationInactive,
			"Delegation is not active. Approve delegation before write actions.", err)
	case strings.Contains(lower, "delegate wallet gas is low") || strings.Contains(lower, "insufficient funds for gas"):
		return apperrors.New(apperrors.CodeDelegateGasLow,
			"Delegate wallet gas is low. Fund the delegate wallet with ETH.", err)
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "timed out"):
		return apperrors.New(apperrors.CodeUpstreamTimeout, "Upstream trading backend timed out", err)
	default:
		return apperrors.New(defaultCode, defaultMsg, err)
	}
}
