package rpc

import (
	"encoding/json"
	"net/http"
	"strings"
)

type credentialMintParams struct {
	callerParam
	Principal  string `json:"principal"`
	Score      uint64 `json:"score"`
	Repayments uint64 `json:"repayments"`
}

type credentialTransferParams struct {
	callerParam
	From    string `json:"from"`
	To      string `json:"to"`
	TokenID uint64 `json:"tokenId"`
}

type credentialApproveParams struct {
	callerParam
	Spender string `json:"spender"`
	TokenID uint64 `json:"tokenId"`
}

type credentialMinterParams struct {
	callerParam
	Minter string `json:"minter"`
	Revoke bool   `json:"revoke,omitempty"`
}

type credentialLookupParams struct {
	Principal string  `json:"principal,omitempty"`
	TokenID   *uint64 `json:"tokenId,omitempty"`
}

func (s *Server) registerCredential() {
	s.methods["credential_mint"] = s.handleCredentialMint
	s.methods["credential_transfer"] = s.handleCredentialTransfer
	s.methods["credential_approve"] = s.handleCredentialApprove
	s.methods["credential_has"] = s.handleCredentialHas
	s.methods["credential_get"] = s.handleCredentialGet
	s.methods["credential_totalSupply"] = s.handleCredentialTotalSupply
	s.methods["credential_authorizeMinter"] = s.handleCredentialMinter(false)
	s.methods["credential_revokeMinter"] = s.handleCredentialMinter(true)
}

func (s *Server) handleCredentialMint(r *http.Request, params []json.RawMessage) (interface{}, error) {
	var input credentialMintParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	caller, err := s.caller(r, input.callerParam)
	if err != nil {
		return nil, err
	}
	principal, err := parseAddress("principal", input.Principal)
	if err != nil {
		return nil, err
	}
	return s.node.MintCredential(caller, principal, input.Score, input.Repayments)
}

func (s *Server) handleCredentialTransfer(r *http.Request, params []json.RawMessage) (interface{}, error) {
	var input credentialTransferParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	caller, err := s.caller(r, input.callerParam)
	if err != nil {
		return nil, err
	}
	from, err := parseAddress("from", input.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", input.To)
	if err != nil {
		return nil, err
	}
	height, err := s.node.TransferCredential(caller, from, to, input.TokenID)
	if err != nil {
		return nil, err
	}
	return committed(height), nil
}

func (s *Server) handleCredentialApprove(r *http.Request, params []json.RawMessage) (interface{}, error) {
	var input credentialApproveParams
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
	height, err := s.node.ApproveCredential(caller, spender, input.TokenID)
	if err != nil {
		return nil, err
	}
	return committed(height), nil
}

func (s *Server) handleCredentialHas(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input credentialLookupParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	principal, err := parseAddress("principal", input.Principal)
	if err != nil {
		return nil, err
	}
	ok, err := s.node.HasCredential(principal)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"principal": principal.String(), "hasCredential": ok}, nil
}

// handleCredentialGet looks a credential up by tokenId, or by principal when
// no tokenId is given.
func (s *Server) handleCredentialGet(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input credentialLookupParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	if input.TokenID != nil {
		return s.node.CredentialByID(*input.TokenID)
	}
	if strings.TrimSpace(input.Principal) == "" {
		return nil, &paramError{cause: errMalformedParams, detail: "principal or tokenId required"}
	}
	principal, err := parseAddress("principal", input.Principal)
	if err != nil {
		return nil, err
	}
	return s.node.Credential(principal)
}

func (s *Server) handleCredentialTotalSupply(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	supply, err := s.node.CredentialSupply()
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"totalSupply": supply}, nil
}

func (s *Server) handleCredentialMinter(revoke bool) method {
	return func(r *http.Request, params []json.RawMessage) (interface{}, error) {
		var input credentialMinterParams
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		caller, err := s.caller(r, input.callerParam)
		if err != nil {
			return nil, err
		}
		minter, err := parseAddress("minter", input.Minter)
		if err != nil {
			return nil, err
		}
		apply := s.node.AuthorizeMinter
		if revoke || input.Revoke {
			apply = s.node.RevokeMinter
		}
		height, err := apply(caller, minter)
		if err != nil {
			return nil, err
		}
		return committed(height), nil
	}
}
