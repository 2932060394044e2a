/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Request and response bodies of the HTTP API.
*/

package server

import (
	"time"

	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/kleascm/fuzzylogic/pkg/recording"
)

// Error codes returned in ErrorResponse.Code
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidModel   = "INVALID_MODEL"
	CodeNotFound       = "NOT_FOUND"
	CodeMissingInput   = "MISSING_INPUT"
	CodeRateLimited    = "RATE_LIMITED"
	CodeUnavailable    = "UNAVAILABLE"
	CodeInternal       = "INTERNAL"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string        `json:"status"`
	Version string        `json:"version"`
	Models  int           `json:"models"`
	Store   bool          `json:"store"`
	Uptime  time.Duration `json:"uptime"`
}

// ModelSummary is one entry of GET /models
type ModelSummary struct {
	Name      string   `json:"name"`
	Inputs    []string `json:"inputs"`
	Outputs   []string `json:"outputs"`
	Variables int      `json:"variables"`
	Rules     int      `json:"rules"`
}

// ModelResponse is returned by GET and POST /models/:name
type ModelResponse struct {
	Document *modelfile.Document `json:"document"`
	Revision int                 `json:"revision,omitempty"`
}

// EvaluateRequest is the body of POST /models/:name/evaluate
type EvaluateRequest struct {
	Inputs map[string]float64 `json:"inputs" binding:"required,min=1"`
}

// BatchRequest is the body of POST /models/:name/batch
type BatchRequest struct {
	Vectors []map[string]float64 `json:"vectors" binding:"required,min=1,max=100000"`
	Workers int                  `json:"workers" binding:"gte=0,lte=256"`
}

// BatchResponse carries results in request order
type BatchResponse struct {
	Results []*execution.Result `json:"results"`
	Stats   *core.BatchStats    `json:"stats"`
}

// FunctionInfo describes one membership function
type FunctionInfo struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description"`
	Params      int      `json:"params"`
}

// HistoryResponse is returned by GET /models/:name/evaluations
type HistoryResponse struct {
	Model       string            `json:"model"`
	Evaluations []recording.Entry `json:"evaluations"`
}
