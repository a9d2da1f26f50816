package rpc

import (
	"encoding/json"
	"net/http"

	"sentechain/integrations/mirror"
)

type mirrorUserLoansParams struct {
	Borrower   string `json:"borrower"`
	ActiveOnly bool   `json:"activeOnly,omitempty"`
}

type mirrorAddressParams struct {
	Address string `json:"address"`
}

type mirrorHistoryParams struct {
	Address string `json:"address"`
	Limit   int    `json:"limit,omitempty"`
}

func (s *Server) registerMirror() {
	s.methods["mirror_userProfile"] = s.handleMirrorUserProfile
	s.methods["mirror_userLoans"] = s.handleMirrorUserLoans
	s.methods["mirror_scoreHistory"] = s.handleMirrorScoreHistory
	s.methods["mirror_loanStats"] = s.handleMirrorLoanStats
	s.methods["mirror_platformStats"] = s.handleMirrorPlatformStats
}

func (s *Server) handleMirrorUserProfile(r *http.Request, params []json.RawMessage) (interface{}, error) {
	if s.mirror == nil {
		return nil, errMirrorDisabled
	}
	var input mirrorAddressParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", input.Address)
	if err != nil {
		return nil, err
	}
	profile, err := s.mirror.UserProfile(r.Context(), addr.String())
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, errUserNotFound
	}
	return profile, nil
}

func (s *Server) handleMirrorUserLoans(r *http.Request, params []json.RawMessage) (interface{}, error) {
	if s.mirror == nil {
		return nil, errMirrorDisabled
	}
	var input mirrorUserLoansParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	borrower, err := parseAddress("borrower", input.Borrower)
	if err != nil {
		return nil, err
	}
	loans, err := s.mirror.UserLoans(r.Context(), borrower.String(), input.ActiveOnly)
	if err != nil {
		return nil, err
	}
	if loans == nil {
		loans = []mirror.LoanRow{}
	}
	return map[string]interface{}{"borrower": borrower.String(), "loans": loans}, nil
}

func (s *Server) handleMirrorScoreHistory(r *http.Request, params []json.RawMessage) (interface{}, error) {
	if s.mirror == nil {
		return nil, errMirrorDisabled
	}
	var input mirrorHistoryParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	addr, err := parseAddress("address", input.Address)
	if err != nil {
		return nil, err
	}
	history, err := s.mirror.ScoreHistory(r.Context(), addr.String(), input.Limit)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []mirror.ScoreChangeRow{}
	}
	return map[string]interface{}{"address": addr.String(), "history": history}, nil
}

func (s *Server) handleMirrorLoanStats(r *http.Request, _ []json.RawMessage) (interface{}, error) {
	if s.mirror == nil {
		return nil, errMirrorDisabled
	}
	return s.mirror.LoanStats(r.Context())
}

func (s *Server) handleMirrorPlatformStats(r *http.Request, _ []json.RawMessage) (interface{}, error) {
	if s.mirror == nil {
		return nil, errMirrorDisabled
	}
	return s.mirror.PlatformStats(r.Context())
}
