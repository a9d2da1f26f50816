package rpc

import (
	"encoding/json"
	"net/http"

	"sentechain/crypto"
)

type reputationScoreParams struct {
	callerParam
	Principal string `json:"principal"`
	Score     int64  `json:"score"`
}

type reputationPrincipalParams struct {
	callerParam
	Principal string `json:"principal"`
}

type reputationOracleParams struct {
	callerParam
	Oracle string `json:"oracle"`
}

type reputationEligibleParams struct {
	Principal string `json:"principal"`
	MinScore  uint64 `json:"minScore"`
}

type scoreResult struct {
	Principal string `json:"principal"`
	Score     uint64 `json:"score"`
}

type eligibleResult struct {
	Principal string `json:"principal"`
	MinScore  uint64 `json:"minScore"`
	Eligible  bool   `json:"eligible"`
}

type repaymentRateResult struct {
	Principal string `json:"principal"`
	Rate      uint64 `json:"rate"`
}

func (s *Server) registerReputation() {
	s.methods["reputation_createProfile"] = s.handleReputationScore(func(caller, principal crypto.Address, score int64) (uint64, error) {
		return s.node.CreateProfile(caller, principal, score)
	})
	s.methods["reputation_updateScore"] = s.handleReputationScore(func(caller, principal crypto.Address, score int64) (uint64, error) {
		return s.node.UpdateScore(caller, principal, score)
	})
	s.methods["reputation_recordLoan"] = s.handleReputationCounter(s.node.RecordLoan)
	s.methods["reputation_recordRepayment"] = s.handleReputationCounter(s.node.RecordRepayment)
	s.methods["reputation_recordDefault"] = s.handleReputationCounter(s.node.RecordDefault)
	s.methods["reputation_authorizeOracle"] = s.handleReputationOracle(s.node.AuthorizeOracle)
	s.methods["reputation_revokeOracle"] = s.handleReputationOracle(s.node.RevokeOracle)
	s.methods["reputation_isOracle"] = s.handleReputationIsOracle
	s.methods["reputation_getScore"] = s.handleReputationGetScore
	s.methods["reputation_getProfile"] = s.handleReputationGetProfile
	s.methods["reputation_isEligible"] = s.handleReputationIsEligible
	s.methods["reputation_getRepaymentRate"] = s.handleReputationGetRepaymentRate
}

func (s *Server) handleReputationScore(apply func(caller, principal crypto.Address, score int64) (uint64, error)) method {
	return func(r *http.Request, params []json.RawMessage) (interface{}, error) {
		var input reputationScoreParams
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
		height, err := apply(caller, principal, input.Score)
		if err != nil {
			return nil, err
		}
		return committed(height), nil
	}
}

func (s *Server) handleReputationCounter(apply func(caller, principal crypto.Address) (uint64, error)) method {
	return func(r *http.Request, params []json.RawMessage) (interface{}, error) {
		var input reputationPrincipalParams
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
		height, err := apply(caller, principal)
		if err != nil {
			return nil, err
		}
		return committed(height), nil
	}
}

func (s *Server) handleReputationOracle(apply func(caller, oracle crypto.Address) (uint64, error)) method {
	return func(r *http.Request, params []json.RawMessage) (interface{}, error) {
		var input reputationOracleParams
		if err := decodeParams(params, &input); err != nil {
			return nil, err
		}
		caller, err := s.caller(r, input.callerParam)
		if err != nil {
			return nil, err
		}
		oracle, err := parseAddress("oracle", input.Oracle)
		if err != nil {
			return nil, err
		}
		height, err := apply(caller, oracle)
		if err != nil {
			return nil, err
		}
		return committed(height), nil
	}
}

func (s *Server) principalParam(params []json.RawMessage) (crypto.Address, error) {
	var input reputationPrincipalParams
	if err := decodeParams(params, &input); err != nil {
		return crypto.Address{}, err
	}
	return parseAddress("principal", input.Principal)
}

func (s *Server) handleReputationIsOracle(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input reputationOracleParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	oracle, err := parseAddress("oracle", input.Oracle)
	if err != nil {
		return nil, err
	}
	ok, err := s.node.IsOracle(oracle)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"oracle": oracle.String(), "authorized": ok}, nil
}

func (s *Server) handleReputationGetScore(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	principal, err := s.principalParam(params)
	if err != nil {
		return nil, err
	}
	score, err := s.node.Score(principal)
	if err != nil {
		return nil, err
	}
	return scoreResult{Principal: principal.String(), Score: score}, nil
}

func (s *Server) handleReputationGetProfile(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	principal, err := s.principalParam(params)
	if err != nil {
		return nil, err
	}
	return s.node.Profile(principal)
}

func (s *Server) handleReputationIsEligible(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	var input reputationEligibleParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	principal, err := parseAddress("principal", input.Principal)
	if err != nil {
		return nil, err
	}
	ok, err := s.node.IsEligible(principal, input.MinScore)
	if err != nil {
		return nil, err
	}
	return eligibleResult{Principal: principal.String(), MinScore: input.MinScore, Eligible: ok}, nil
}

func (s *Server) handleReputationGetRepaymentRate(_ *http.Request, params []json.RawMessage) (interface{}, error) {
	principal, err := s.principalParam(params)
	if err != nil {
		return nil, err
	}
	rate, err := s.node.RepaymentRate(principal)
	if err != nil {
		return nil, err
	}
	return repaymentRateResult{Principal: principal.String(), Rate: rate}, nil
}
