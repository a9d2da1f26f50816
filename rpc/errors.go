package rpc

import (
	"errors"
	"net/http"

	"sentechain/core"
	nativecommon "sentechain/native/common"
	"sentechain/native/credential"
	"sentechain/native/lending"
	"sentechain/native/reputation"
	"sentechain/native/token"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeUnavailable    = -32003
	codeServerError    = -32000
	codeLoanDefaulted  = -32010
	codeConflict       = -32020
)

var (
	errMissingCaller   = errors.New("rpc: caller required")
	errMirrorDisabled  = errors.New("rpc: mirror not enabled")
	errUserNotFound    = errors.New("rpc: user not mirrored")
	errEmptyParams     = errors.New("rpc: parameter object required")
	errTooManyParams   = errors.New("rpc: expected a single parameter object")
	errInvalidAmount   = errors.New("rpc: amount must be a base-10 integer")
	errInvalidAddress  = errors.New("rpc: invalid address")
	errMalformedParams = errors.New("rpc: malformed parameter object")
)

// ErrorData is carried in error.data of every failed call.
type ErrorData struct {
	Reason string      `json:"reason"`
	Detail string      `json:"detail,omitempty"`
	Result interface{} `json:"result,omitempty"`
}

type failure struct {
	status int
	code   int
	reason string
}

type mapping struct {
	err error
	failure
}

func invalid(reason string) failure  { return failure{http.StatusBadRequest, codeInvalidParams, reason} }
func forbidden(reason string) failure { return failure{http.StatusForbidden, codeUnauthorized, reason} }
func conflict(reason string) failure  { return failure{http.StatusConflict, codeConflict, reason} }

// errorTable is scanned in order; the first errors.Is match wins.
var errorTable = []mapping{
	{lending.ErrLoanDefaulted, failure{http.StatusConflict, codeLoanDefaulted, "LoanDefaulted"}},
	{nativecommon.ErrModulePaused, failure{http.StatusServiceUnavailable, codeUnavailable, "ModulePaused"}},
	{nativecommon.ErrReentrantCall, conflict("ReentrantCall")},
	{errMirrorDisabled, failure{http.StatusServiceUnavailable, codeUnavailable, "MirrorDisabled"}},
	{errMissingCaller, failure{http.StatusUnauthorized, codeUnauthorized, "Unauthenticated"}},

	{reputation.ErrUnauthorized, forbidden("NotOracle")},
	{reputation.ErrNotOwner, forbidden("NotOwner")},
	{credential.ErrUnauthorized, forbidden("NotMinter")},
	{credential.ErrNotOwner, forbidden("NotOwner")},
	{token.ErrUnauthorized, forbidden("NotMinter")},
	{core.ErrUnauthorized, forbidden("NotAdmin")},
	{lending.ErrNotLoanOwner, forbidden("NotLoanOwner")},

	{lending.ErrInvalidAmount, invalid("InvalidAmount")},
	{lending.ErrInsufficientBalance, invalid("InsufficientBalance")},
	{lending.ErrInsufficientLiquidity, invalid("InsufficientLiquidity")},
	{lending.ErrAmountTooLow, invalid("AmountTooLow")},
	{lending.ErrAmountTooHigh, invalid("AmountTooHigh")},
	{lending.ErrActiveLoanExists, invalid("ActiveLoanExists")},
	{lending.ErrCreditScoreTooLow, invalid("CreditScoreTooLow")},
	{lending.ErrInvalidLoanID, invalid("InvalidLoanId")},
	{lending.ErrLoanNotActive, invalid("LoanNotActive")},
	{lending.ErrNotOverdue, invalid("NotOverdue")},

	{reputation.ErrAlreadyExists, invalid("AlreadyExists")},
	{reputation.ErrInvalidScore, invalid("InvalidScore")},
	{reputation.ErrNoProfile, invalid("NoProfile")},
	{reputation.ErrInvalidPrincipal, invalid("InvalidPrincipal")},
	{reputation.ErrAlreadyInitialised, conflict("AlreadyInitialised")},

	{credential.ErrAlreadyHasCredential, invalid("AlreadyHasCredential")},
	{credential.ErrScoreTooLow, invalid("ScoreTooLow")},
	{credential.ErrNonTransferable, invalid("NonTransferable")},
	{errUserNotFound, failure{http.StatusNotFound, codeInvalidParams, "UserNotFound"}},
	{credential.ErrCredentialNotFound, failure{http.StatusNotFound, codeInvalidParams, "CredentialNotFound"}},
	{credential.ErrInvalidPrincipal, invalid("InvalidPrincipal")},
	{credential.ErrAlreadyInitialised, conflict("AlreadyInitialised")},

	{token.ErrInvalidAmount, invalid("InvalidAmount")},
	{token.ErrInvalidRecipient, invalid("InvalidRecipient")},
	{token.ErrInsufficientFunds, invalid("InsufficientFunds")},
	{token.ErrInsufficientAllowance, invalid("InsufficientAllowance")},
	{token.ErrOverflow, invalid("Overflow")},
	{token.ErrAlreadyInitialised, conflict("AlreadyInitialised")},

	{core.ErrUnknownModule, invalid("UnknownModule")},

	{errEmptyParams, invalid("InvalidParams")},
	{errTooManyParams, invalid("InvalidParams")},
	{errInvalidAmount, invalid("InvalidParams")},
	{errInvalidAddress, invalid("InvalidParams")},
	{errMalformedParams, invalid("InvalidParams")},
}

// classify maps err to its HTTP status, JSON-RPC code and reason. Errors not
// in the table are internal failures.
func classify(err error) failure {
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.failure
		}
	}
	return failure{http.StatusInternalServerError, codeServerError, "Internal"}
}

// paramError wraps a decoding failure so it classifies as invalid params.
type paramError struct {
	cause  error
	detail string
}

func (e *paramError) Error() string { return e.cause.Error() + ": " + e.detail }
func (e *paramError) Unwrap() error { return e.cause }
