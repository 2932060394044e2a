/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report_test.go
Description: Tests for HTML model reports and PDF export.
*/

package reporting

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heaterModel(t *testing.T) *fuzzy.Model {
	t.Helper()
	m, err := fuzzy.NewModel("heater")
	require.NoError(t, err)
	m.Description = "power from room temperature"

	temp, err := fuzzy.NewVariable("temp")
	require.NoError(t, err)
	temp.AddSet(fuzzy.MustSet("cold", fuzzy.FuncInvertedSCurve, 0, 30))
	temp.AddSet(fuzzy.MustSet("hot", fuzzy.FuncSCurve, 0, 30))

	power, err := fuzzy.NewVariable("power")
	require.NoError(t, err)
	power.AddSet(fuzzy.MustSet("low", fuzzy.FuncTriangle, 0, 50))
	power.AddSet(fuzzy.MustSet("high", fuzzy.FuncTriangle, 50, 100))

	require.NoError(t, m.AddVariable(temp))
	require.NoError(t, m.AddVariable(power))
	_, err = m.AddRule("if temp.cold then power.high")
	require.NoError(t, err)
	_, err = m.AddRule("if temp.hot then power.low with 0.5")
	require.NoError(t, err)
	return m
}

func render(t *testing.T, m *fuzzy.Model, res *execution.Result) *goquery.Document {
	t.Helper()
	var buf bytes.Buffer
	rg := NewReportGenerator(t.TempDir(), "", "1.0.0", nil)
	require.NoError(t, rg.Render(&buf, m, res))
	doc, err := goquery.NewDocumentFromReader(&buf)
	require.NoError(t, err)
	return doc
}

func TestReportModelOnly(t *testing.T) {
	doc := render(t, heaterModel(t), nil)

	assert.Equal(t, "heater", doc.Find("#model-name").Text())
	assert.Contains(t, doc.Find("title").Text(), "Fuzzy Model Report")
	assert.Contains(t, doc.Find(".header p").Text(), "power from room temperature")

	assert.Equal(t, 2, doc.Find(".variable").Length())
	role, _ := doc.Find("#var-temp").Attr("data-role")
	assert.Equal(t, "input", role)
	role, _ = doc.Find("#var-power").Attr("data-role")
	assert.Equal(t, "output", role)

	assert.Equal(t, 4, doc.Find("polyline.set").Length())
	points, ok := doc.Find("#var-power polyline.set").First().Attr("points")
	require.True(t, ok)
	assert.Len(t, strings.Fields(points), curveSteps+1)

	assert.Equal(t, 0, doc.Find("#evaluation").Length())
	assert.Equal(t, 0, doc.Find("line.marker").Length())
	assert.Equal(t, 0, doc.Find("polyline.aggregate").Length())

	rules := doc.Find("tr.rule")
	require.Equal(t, 2, rules.Length())
	assert.Contains(t, rules.Eq(1).Text(), "if temp.hot then power.low with 0.5")
	assert.Equal(t, "", strings.TrimSpace(rules.Eq(0).Find(".strength").Text()))
}

func TestReportWithEvaluation(t *testing.T) {
	m := heaterModel(t)
	exec, err := execution.New(m, execution.WithCurves(true))
	require.NoError(t, err)
	res, err := exec.Evaluate(context.Background(), map[string]float64{"temp": 5})
	require.NoError(t, err)

	doc := render(t, m, res)

	require.Equal(t, 1, doc.Find("#evaluation").Length())
	assert.Contains(t, doc.Find("#evaluation").Text(), res.RunID)
	out := doc.Find("tr.output-value")
	require.Equal(t, 1, out.Length())
	name, _ := out.Attr("data-variable")
	assert.Equal(t, "power", name)
	assert.Equal(t, 1, doc.Find("tr.input-value").Length())

	assert.Equal(t, 2, doc.Find("line.marker").Length())
	assert.Equal(t, 1, doc.Find("#var-power polyline.aggregate").Length())

	doc.Find("tr.rule .strength").Each(func(_ int, s *goquery.Selection) {
		assert.NotEmpty(t, strings.TrimSpace(s.Text()))
	})
	assert.Contains(t, doc.Find("#var-temp").Text(), "%")
}

func TestReportData(t *testing.T) {
	m := heaterModel(t)
	exec, err := execution.New(m)
	require.NoError(t, err)
	res, err := exec.Evaluate(context.Background(), map[string]float64{"temp": 30})
	require.NoError(t, err)

	data := NewReportGenerator("", "Heating", "", nil).Data(m, res)
	assert.Equal(t, "Heating", data.Title)
	require.Len(t, data.Variables, 2)
	require.NotNil(t, data.Variables[1].Value)
	assert.Equal(t, res.Outputs["power"], *data.Variables[1].Value)
	assert.Empty(t, data.Variables[1].Aggregate)
	require.Len(t, data.Rules, 2)
	assert.Equal(t, 0.5, data.Rules[1].Weight)
	require.NotNil(t, data.Evaluation)
	assert.Equal(t, []NamedValue{{Name: "temp", Value: 30, Fired: true}}, data.Evaluation.Inputs)
}

func TestGenerateWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	path, err := NewReportGenerator(dir, "", "", nil).Generate(heaterModel(t), nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "heater.html"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	assert.Equal(t, "heater", doc.Find("#model-name").Text())
}

func TestExportPDF(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, ExportPDF(context.Background(), filepath.Join(dir, "missing.html"), filepath.Join(dir, "x.pdf")))

	if _, err := FindChrome(); err != nil {
		t.Skip("headless chrome not installed")
	}
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	path, err := NewReportGenerator(dir, "", "", nil).Generate(heaterModel(t), nil)
	require.NoError(t, err)
	pdf := filepath.Join(dir, "pdf", "heater.pdf")
	require.NoError(t, ExportPDF(context.Background(), path, pdf))

	data, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}
