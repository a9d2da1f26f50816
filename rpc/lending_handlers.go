package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
	"strings"

	"sentechain/crypto"
	"sentechain/native/lending"
)

type lendingAmountParams struct {
	callerParam
	Amount string `json:"amount"`
}

type lendingLoanParams struct {
	callerParam
	Borrower string  `json:"borrower,omitempty"`
	LoanID   *uint64 `json:"loanId"`
}

type lendingInterestParams struct {
	Amount string `json:"amount"`
	Score  uint64 `json:"score"`
}

type lendingBorrowerParams struct {
	Borrower string `json:"borrower"`
}

type lendingLenderParams struct {
	Lender string `json:"lender"`
}

type lendingQuoteParams struct {
	Borrower string `json:"borrower"`
	Amount   string `json:"amount,omitempty"`
}

type interestResult struct {
	Amount   *big.Int `json:"amount"`
	Score    uint64   `json:"score"`
	RateBps  uint64   `json:"rateBps"`
	Interest *big.Int `json:"interest"`
	Tier     string   `json:"tier"`
}

type liquidityResult struct {
	Available *big.Int `json:"available"`
}

type utilizationResult struct {
	Utilization uint64 `json:"utilization"`
}

type loansResult struct {
	Borrower string          `json:"borrower"`
	Loans    []*lending.Loan `json:"loans"`
}

type positionResult struct {
	Lender   string                  `json:"lender"`
	Position *lending.LenderPosition `json:"position"`
}

func (s *Server) registerLending() {
	s.methods["lending_deposit"] = s.handleLendingAmount(func(caller crypto.Address, amount *big.Int) (interface{}, error) {
		return s.node.Deposit(caller, amount)
	})
	s.methods["lending_withdraw"] = s.handleLendingAmount(func(caller crypto.Address, amount *big.Int) (interface{}, error) {
		return s.node.Withdraw(caller, amount)
	})
	s.methods["lending_requestLoan"] = s.handleLendingAmount(func(caller crypto.Address, amount *big.Int) (interface{}, error) {
		return s.node.RequestLoan(caller, amount)
	})
	s.methods["lending_repayLoan"] = s.handleLendingLoan(s.node.RepayLoan)
	s.methods["lending_markDefault"] = s.handleLendingLoan(s.node.MarkDefault)
	s.methods["lending_calculateInterest"] = s.handleLendingCalculateInterest
	s.methods["lending_getAvailableLiquidity"] = s.handleLendingGetAvailableLiquidity
	s.methods["lending_getUtilizationRate"] = s.handleLendingGetUtilizationRate
	s.methods["lending_getLoan"] = s.handleLendingGetLoan
	s.methods["lending_getLoans"] = s.handleLendingGetLoans
	s.methods["lending_getOverdueLoans"] = s.handleLendingGetOverdueLoans
	s.methods["lending_getPosition"] = s.handleLendingGetPosition
	s.methods["lending_getTotals"] = s.handleLendingGetTotals
	s.methods["lending_getParams"] = s.handleLendingGetParams
	s.methods["lending_quote"] = s.handleLendingQuote
}

func (s *Server) handleLendingAmount(apply func(caller crypto.Address, amount *big.Int) (interface{}, error)) method {
	return func(r *http.Request, params []json.RawMessage) (interface{}, error) {
		var input lendingAmountParams
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		caller, err := s.caller(r, input.callerParam)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount("amount", input.Amount)
		if err != nil {
			return nil, err
		}
		return apply(caller, amount)
	}
}

// handleLendingLoan serves repay and markDefault. Borrower defaults to the
// caller. A late repayment returns the defaulted loan inside the error data.
func (s *Server) handleLendingLoan(apply func(caller, borrower crypto.Address, loanID uint64) (*lending.Loan, error)) method {
	return func(r *http.Request, params []json.RawMessage) (interface{}, error) {
		var input lendingLoanParams
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		caller, err := s.caller(r, input.callerParam)
		if err != nil {
			return nil, err
		}
		borrower := caller
		if strings.TrimSpace(input.Borrower) != "" {
			if borrower, err = parseAddress("borrower", input.Borrower); err != nil {
				return nil, err
			}
		}
		if input.LoanID == nil {
			return nil, &paramError{cause: errMalformedParams, detail: "loanId required"}
		}
		loan, err := apply(caller, borrower, *input.LoanID)
		if loan == nil {
			return nil, err
		}
		return loan, err
	}
}

func (s *Server) handleLendingCalculateInterest(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input lendingInterestParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", input.Amount)
	if err != nil {
		return nil, err
	}
	return interestResult{
		Amount:   amount,
		Score:    input.Score,
		RateBps:  lending.InterestRateBps(input.Score),
		Interest: lending.CalculateInterest(amount, input.Score),
		Tier:     lending.ScoreTier(input.Score),
	}, nil
}

func (s *Server) handleLendingGetAvailableLiquidity(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	amount, err := s.node.AvailableLiquidity()
	if err != nil {
		return nil, err
	}
	return liquidityResult{Available: amount}, nil
}

func (s *Server) handleLendingGetUtilizationRate(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	rate, err := s.node.UtilizationRate()
	if err != nil {
		return nil, err
	}
	return utilizationResult{Utilization: rate}, nil
}

func (s *Server) handleLendingGetLoan(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input lendingLoanParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	borrower, err := parseAddress("borrower", input.Borrower)
	if err != nil {
		return nil, err
	}
	if input.LoanID == nil {
		return nil, &paramError{cause: errMalformedParams, detail: "loanId required"}
	}
	loan, err := s.node.Loan(borrower, *input.LoanID)
	if err != nil {
		return nil, err
	}
	return loan, nil
}

func (s *Server) handleLendingGetLoans(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input lendingBorrowerParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	borrower, err := parseAddress("borrower", input.Borrower)
	if err != nil {
		return nil, err
	}
	loans, err := s.node.Loans(borrower)
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []*lending.Loan{}
	}
	return loansResult{Borrower: borrower.String(), Loans: loans}, nil
}

func (s *Server) handleLendingGetOverdueLoans(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	loans, err := s.node.OverdueLoans()
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []*lending.Loan{}
	}
	return map[string]interface{}{"loans": loans}, nil
}

func (s *Server) handleLendingGetPosition(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input lendingLenderParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	lender, err := parseAddress("lender", input.Lender)
	if err != nil {
		return nil, err
	}
	pos, err := s.node.Position(lender)
	if err != nil {
		return nil, err
	}
	return positionResult{Lender: lender.String(), Position: pos}, nil
}

func (s *Server) handleLendingGetTotals(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	totals, err := s.node.Totals()
	if err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *Server) handleLendingGetParams(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	p := s.node.LendingParams()
	return map[string]interface{}{
		"minLoanAmount":       p.MinLoanAmount,
		"maxLoanAmount":       p.MaxLoanAmount,
		"minCreditScore":      p.MinCreditScore,
		"loanDurationSeconds": int64(p.LoanDuration.Seconds()),
		"gracePeriodSeconds":  int64(p.GracePeriod.Seconds()),
		"pool":                s.node.PoolAddress().String(),
	}, nil
}

func (s *Server) handleLendingQuote(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input lendingQuoteParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	borrower, err := parseAddress("borrower", input.Borrower)
	if err != nil {
		return nil, err
	}
	var amount *big.Int
	if strings.TrimSpace(input.Amount) != "" {
		if amount, err = parseAmount("amount", input.Amount); err != nil {
			return nil, err
		}
	}
	q, err := s.node.Quote(borrower, amount)
	if err != nil {
		return nil, err
	}
	return q, nil
}
