package rpc

import (
	"encoding/json"
	"math/big"
	"net/http"
)

type tokenAddressParams struct {
	Address string `json:"address"`
}

type tokenTransferParams struct {
	callerParam
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type tokenApproveParams struct {
	callerParam
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type tokenAllowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

type balanceResult struct {
	Address string   `json:"address"`
	Balance *big.Int `json:"balance"`
}

func (s *Server) registerToken() {
	s.methods["token_balanceOf"] = s.handleTokenBalanceOf
	s.methods["token_totalSupply"] = s.handleTokenTotalSupply
	s.methods["token_transfer"] = s.handleTokenTransfer
	s.methods["token_approve"] = s.handleTokenApprove
	s.methods["token_allowance"] = s.handleTokenAllowance
	s.methods["token_mint"] = s.handleTokenMint
}

func (s *Server) handleTokenBalanceOf(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input tokenAddressParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", input.Address)
	if err != nil {
		return nil, err
	}
	balance, err := s.node.BalanceOf(addr)
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: addr.String(), Balance: balance}, nil
}

func (s *Server) handleTokenTotalSupply(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	supply, err := s.node.TotalSupply()
	if err != nil {
		return nil, err
	}
	return map[string]*big.Int{"totalSupply": supply}, nil
}

func (s *Server) handleTokenTransfer(r *http.Request, params []json.RawMessage) (interface{}, error) {
	var input tokenTransferParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	caller, err := s.caller(r, input.callerParam)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", input.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", input.Amount)
	if err != nil {
		return nil, err
	}
	height, err := s.node.Transfer(caller, to, amount)
	if err != nil {
		return nil, err
	}
	return committed(height), nil
}

// handleTokenMint shares the transfer shape: the caller mints amount to to.
func (s *Server) handleTokenMint(r *http.Request, params []json.RawMessage) (interface{}, error) {
	var input tokenTransferParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	caller, err := s.caller(r, input.callerParam)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", input.To)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", input.Amount)
	if err != nil {
		return nil, err
	}
	height, err := s.node.Mint(caller, to, amount)
	if err != nil {
		return nil, err
	}
	return committed(height), nil
}

func (s *Server) handleTokenApprove(r *http.Request, params []json.RawMessage) (interface{}, error) {
	var input tokenApproveParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	caller, err := s.caller(r, input.callerParam)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", input.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", input.Amount)
	if err != nil {
		return nil, err
	}
	height, err := s.node.Approve(caller, spender, amount)
	if err != nil {
		return nil, err
	}
	return committed(height), nil
}

func (s *Server) handleTokenAllowance(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input tokenAllowanceParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	owner, err := parseAddress("owner", input.Owner)
	if err != nil {
		return nil, err
	}
	spender, err := parseAddress("spender", input.Spender)
	if err != nil {
		return nil, err
	}
	amount, err := s.node.Allowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"owner": owner.String(), "spender": spender.String(), "allowance": amount}, nil
}
