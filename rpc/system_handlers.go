package rpc

import (
	"encoding/json"
	"net/http"

	nativecommon "sentechain/native/common"
)

type systemPauseParams struct {
	callerParam
	Module string `json:"module"`
	Paused bool   `json:"paused"`
}

type heightResult struct {
	Height uint64          `json:"height"`
	Admin  string          `json:"admin"`
	Pool   string          `json:"pool"`
	Paused map[string]bool `json:"paused"`
}

func (s *Server) registerSystem() {
	s.methods["system_setPaused"] = s.handleSystemSetPaused
	s.methods["system_height"] = s.handleSystemHeight
}

func (s *Server) handleSystemSetPaused(r *http.Request, params []json.RawMessage) (interface{}, error) {
	var input systemPauseParams
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	caller, err := s.caller(r, input.callerParam)
	if err != nil {
		return nil, err
	}
	height, err := s.node.SetPaused(caller, input.Module, input.Paused)
	if err != nil {
		return nil, err
	}
	return committed(height), nil
}

func (s *Server) handleSystemHeight(_ *http.Request, _ []json.RawMessage) (interface{}, error) {
	paused := make(map[string]bool, len(nativecommon.Modules))
	for _, module := range nativecommon.Modules {
		paused[module] = s.node.IsPaused(module)
	}
	return heightResult{
		Height: s.node.Height(),
		Admin:  s.node.Admin().String(),
		Pool:   s.node.PoolAddress().String(),
		Paused: paused,
	}, nil
}
