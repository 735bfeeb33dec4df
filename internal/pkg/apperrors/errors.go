package apperrors

import (
	"fmt"
	"net/http"
)

type Code string

const (
	// Gateway-decided failures, never forwarded upstream.
	CodeAuthFailed      Code = "AUTH_FAILED"
	CodeRequestStale    Code = "REQUEST_STALE"
	CodeRequestReplayed Code = "REQUEST_REPLAYED"
	CodeNotReady        Code = "SERVICE_NOT_READY"
	CodeRateLimited     Code = "RATE_LIMITED"
	CodeInvalidRequest  Code = "INVALID_REQUEST"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInternal        Code = "INTERNAL_ERROR"

	// Upstream capability failures, classified at the gateway boundary.
	CodeUpstream            Code = "UPSTREAM_ERROR"
	CodeUpstreamTimeout     Code = "UPSTREAM_TIMEOUT"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"

	// Domain failures surfaced with the upstream shape.
	CodeInvalidNetwork       Code = "INVALID_NETWORK"
	CodeInvalidMarket        Code = "INVALID_MARKET"
	CodeInvalidSide          Code = "INVALID_SIDE"
	CodeLeverageTooHigh      Code = "LEVERAGE_TOO_HIGH"
	CodeTriggerPriceRequired Code = "TRIGGER_PRICE_REQUIRED"
	CodePriceFetchFailed     Code = "PRICE_FETCH_FAILED"
	CodeDelegateKeyMissing   Code = "DELEGATE_KEY_MISSING"
	CodeAllowanceMissing     Code = "ALLOWANCE_MISSING"
	CodeDelegationInactive   Code = "DELEGATION_NOT_ACTIVE"
	CodeDelegateGasLow       Code = "DELEGATE_GAS_LOW"
	CodeFaucetUnavailable    Code = "FAUCET_NOT_AVAILABLE"
)

// AppError is the one error shape that crosses the gateway boundary.
// Upstream SDK/client errors are classified into an AppError before they
// reach a response; raw upstream errors never leak to the caller.
type AppError struct {
	Code       Code           `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Retryable  *bool          `json:"retryable,omitempty"`
	HTTPStatus int            `json:"-"`
	Cause      error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, msg string, cause error) *AppError {
	return &AppError{
		Code:       code,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: statusFor(code),
		Retryable:  retryableFor(code),
	}
}

func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithStatus(status int) *AppError {
	e.HTTPStatus = status
	return e
}

func NewInvalidRequest(msg string) *AppError {
	return New(CodeInvalidRequest, msg, nil)
}

// Wrap classifies an arbitrary error; AppErrors pass through unchanged.
func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(CodeInternal, err.Error(), err)
}

func statusFor(code Code) int {
	switch code {
	case CodeAuthFailed, CodeRequestStale:
		return http.StatusUnauthorized
	case CodeRequestReplayed:
		return http.StatusForbidden
	case CodeNotReady, CodeDelegateKeyMissing, CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeInvalidRequest, CodeInvalidNetwork, CodeInvalidMarket, CodeInvalidSide,
		CodeLeverageTooHigh, CodeTriggerPriceRequired, CodeAllowanceMissing,
		CodeDelegationInactive, CodeDelegateGasLow, CodeFaucetUnavailable:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeUpstream, CodePriceFetchFailed:
		return http.StatusBadGateway
	case CodeUpstreamTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func retryableFor(code Code) *bool {
	switch code {
	case CodeUpstream, CodeUpstreamTimeout, CodeUpstreamUnavailable, CodePriceFetchFailed:
		return boolPtr(true)
	case CodeInvalidRequest, CodeInvalidNetwork, CodeInvalidMarket, CodeInvalidSide,
		CodeLeverageTooHigh, CodeTriggerPriceRequired, CodeAllowanceMissing,
		CodeDelegationInactive, CodeDelegateGasLow, CodeFaucetUnavailable,
		CodeDelegateKeyMissing:
		return boolPtr(false)
	default:
		return nil
	}
}

func boolPtr(b bool) *bool { return &b }
