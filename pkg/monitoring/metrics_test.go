/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: metrics_test.go
Description: Tests for the evaluation metrics.
*/

package monitoring

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveEvaluation(t *testing.T) {
	m := NewMetrics(false)
	ctx := context.Background()

	res := &execution.Result{
		Model:    "tipper",
		Fired:    map[string]bool{"tip": true, "bonus": false},
		Duration: 200 * time.Microsecond,
		Strengths: []execution.RuleStrength{
			{Index: 0, Strength: 0.4},
			{Index: 1, Strength: 0},
			{Index: 2, Strength: 1},
		},
	}
	m.ObserveEvaluation(ctx, "tipper", res, nil)
	m.ObserveEvaluation(ctx, "tipper", res, nil)
	m.ObserveEvaluation(ctx, "tipper", nil, errors.New("missing input"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.evaluations.WithLabelValues("tipper", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evaluations.WithLabelValues("tipper", StatusError)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rulesFired.WithLabelValues("tipper")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.unfired.WithLabelValues("tipper", "bonus")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	m.SetModelsLoaded(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.modelsLoaded))

	m.RecordReload(nil)
	m.RecordReload(errors.New("bad file"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reloads.WithLabelValues(StatusError)))
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics(true)
	m.RecordRequest("/api/v1/models", "GET", "200")
	m.SetModelsLoaded(1)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "fuzzylogic_models_loaded 1")
	assert.Contains(t, body, `fuzzylogic_http_requests_total{code="200",method="GET",route="/api/v1/models"} 1`)
	assert.True(t, strings.Contains(body, "go_goroutines"))
}
