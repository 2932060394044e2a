/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: handlers.go
Description: HTTP handlers for model management and evaluation.
*/

package server

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kleascm/fuzzylogic/pkg/core"
	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/kleascm/fuzzylogic/pkg/modelfile"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
)

var validate = validator.New()

func (s *Server) fail(c *gin.Context, status int, code string, err error) {
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// modelError maps errors from building or registering a model
func (s *Server) modelError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, fuzzy.ErrInvalidModel),
		errors.Is(err, fuzzy.ErrInvalidRule),
		errors.Is(err, fuzzy.ErrInvalidParams),
		errors.Is(err, fuzzy.ErrUnknownFunction),
		errors.Is(err, fuzzy.ErrDuplicate),
		errors.Is(err, fuzzy.ErrCycle):
		s.fail(c, http.StatusBadRequest, CodeInvalidModel, err)
	default:
		s.logger.WithError(err).Error("Model request failed")
		s.fail(c, http.StatusInternalServerError, CodeInternal, err)
	}
}

// evaluationError maps errors from evaluating against an existing model
func (s *Server) evaluationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, execution.ErrMissingInput):
		s.fail(c, http.StatusBadRequest, CodeMissingInput, err)
	case errors.Is(err, fuzzy.ErrNotFound):
		s.fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
	default:
		s.logger.WithError(err).Error("Evaluation failed")
		s.fail(c, http.StatusInternalServerError, CodeInternal, err)
	}
}

func (s *Server) lookup(c *gin.Context) (*fuzzy.Model, bool) {
	m, err := s.engine.Model(c.Param("name"))
	if err != nil {
		s.fail(c, http.StatusNotFound, CodeNotFound, err)
		return nil, false
	}
	return m, true
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: core.Version,
		Models:  s.engine.Models().Len(),
		Store:   s.store != nil,
		Uptime:  time.Since(s.started),
	})
}

func (s *Server) handleFunctions(c *gin.Context) {
	funcs := fuzzy.DefaultFunctions()
	var out []FunctionInfo
	for _, name := range funcs.Names() {
		fn, err := funcs.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, FunctionInfo{
			Name:        fn.Name,
			Aliases:     funcs.Aliases(fn.Name),
			Description: fn.Description,
			Params:      fn.ParamCount,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleListModels(c *gin.Context) {
	models := s.engine.Models().All()
	sort.Slice(models, func(i, j int) bool { return models[i].Name() < models[j].Name() })

	out := make([]ModelSummary, 0, len(models))
	for _, m := range models {
		sum := ModelSummary{
			Name:      m.Name(),
			Inputs:    []string{},
			Outputs:   []string{},
			Variables: len(m.Variables()),
			Rules:     m.RuleCount(),
		}
		for _, v := range m.Inputs() {
			sum.Inputs = append(sum.Inputs, v.Name())
		}
		for _, v := range m.Outputs() {
			sum.Outputs = append(sum.Outputs, v.Name())
		}
		out = append(out, sum)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGetModel(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	resp := ModelResponse{Document: modelfile.FromModel(m)}
	if s.store != nil {
		if rec, err := s.store.GetRecord(c.Request.Context(), m.Name()); err == nil {
			resp.Revision = rec.Revision
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handlePutModel(c *gin.Context) {
	var doc modelfile.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		s.fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	if err := validate.Struct(&doc); err != nil {
		s.fail(c, http.StatusBadRequest, CodeInvalidModel, err)
		return
	}
	m, err := doc.Model()
	if err != nil {
		s.modelError(c, err)
		return
	}

	// the engine goes first; a failed store write puts the previous model back
	prev, _ := s.engine.Model(m.Name())
	if _, err := s.engine.PutModel(m); err != nil {
		s.modelError(c, err)
		return
	}
	resp := ModelResponse{Document: modelfile.FromModel(m)}
	if s.store != nil {
		rec, err := s.store.PutDocument(c.Request.Context(), resp.Document)
		if err != nil {
			s.rollbackPut(m, prev)
			s.modelError(c, err)
			return
		}
		resp.Revision = rec.Revision
	}
	s.updateModelGauge()

	s.logger.WithFields(logrus.Fields{
		"model":     m.Name(),
		"variables": len(m.Variables()),
		"rules":     m.RuleCount(),
		"revision":  resp.Revision,
	}).Info("Model stored")
	c.JSON(http.StatusCreated, resp)
}

// rollbackPut restores the engine to what it held before m was put
func (s *Server) rollbackPut(m, prev *fuzzy.Model) {
	var err error
	if prev != nil {
		_, err = s.engine.PutModel(prev)
	} else {
		err = s.engine.FreeModel(m.Handle())
	}
	if err != nil {
		s.logger.WithError(err).WithField("model", m.Name()).Error("Failed to roll back model")
	}
}

func (s *Server) handleDeleteModel(c *gin.Context) {
	name := c.Param("name")
	found := false

	if m, err := s.engine.Model(name); err == nil {
		if err := s.engine.FreeModel(m.Handle()); err != nil {
			s.fail(c, http.StatusInternalServerError, CodeInternal, err)
			return
		}
		found = true
	}
	if s.store != nil {
		err := s.store.Delete(c.Request.Context(), name)
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, fuzzy.ErrNotFound):
			s.fail(c, http.StatusInternalServerError, CodeInternal, err)
			return
		}
	}
	if !found {
		s.fail(c, http.StatusNotFound, CodeNotFound, fuzzy.ErrNotFound)
		return
	}
	s.updateModelGauge()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEvaluate(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	res, err := s.engine.Evaluate(c.Request.Context(), m.Name(), req.Inputs)
	if err != nil {
		s.evaluationError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleBatch(c *gin.Context) {
	m, ok := s.lookup(c)
	if !ok {
		return
	}
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, CodeInvalidRequest, err)
		return
	}
	workers := req.Workers
	if workers == 0 {
		workers = s.workers
	}
	results, stats, err := s.engine.Batch(c.Request.Context(), m.Name(), req.Vectors, workers)
	if err != nil {
		s.evaluationError(c, err)
		return
	}
	c.JSON(http.StatusOK, BatchResponse{Results: results, Stats: stats})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		s.fail(c, http.StatusServiceUnavailable, CodeUnavailable, errors.New("evaluation recording is disabled"))
		return
	}
	limit := defaultHistoryLimit
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 1 || n > maxHistoryLimit {
			s.fail(c, http.StatusBadRequest, CodeInvalidRequest, errors.New("limit must be between 1 and 1000"))
			return
		}
		limit = n
	}
	name := c.Param("name")
	entries, err := s.history.Query(c.Request.Context(), name, limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, CodeInternal, err)
		return
	}
	c.JSON(http.StatusOK, HistoryResponse{Model: name, Evaluations: entries})
}
