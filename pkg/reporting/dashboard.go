/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dashboard.go
Description: HTML model reports. A report shows every variable of a model with its
membership curves drawn as SVG, the rule base, and optionally the last evaluation with
rule strengths, fired outputs and the aggregated output curves.
*/

package reporting

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kleascm/fuzzylogic/pkg/execution"
	"github.com/kleascm/fuzzylogic/pkg/fuzzy"
	"github.com/sirupsen/logrus"
)

// Chart geometry in SVG user units
const (
	chartWidth  = 480
	chartHeight = 140
	chartPad    = 10
	curveSteps  = 200
)

var palette = []string{"#667eea", "#f56565", "#48bb78", "#ed8936", "#9f7aea", "#38b2ac", "#d69e2e", "#e53e8c"}

// ReportGenerator renders model reports into an output directory
type ReportGenerator struct {
	outputDir string
	title     string
	version   string
	logger    *logrus.Logger
	templates *template.Template
}

// ReportData is everything the report template needs
type ReportData struct {
	Title       string          `json:"title"`
	GeneratedAt time.Time       `json:"generated_at"`
	Version     string          `json:"version"`
	Model       string          `json:"model"`
	Description string          `json:"description"`
	Variables   []VariableView  `json:"variables"`
	Rules       []RuleView      `json:"rules"`
	Evaluation  *EvaluationView `json:"evaluation,omitempty"`
}

// VariableView is one variable with its plotted sets
type VariableView struct {
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Sets      []SetView `json:"sets"`
	Value     *float64  `json:"value,omitempty"`
	MarkerX   float64   `json:"-"`
	Aggregate string    `json:"-"`
	Width     int       `json:"-"`
	Height    int       `json:"-"`
}

// SetView is one set of a variable
type SetView struct {
	Name     string    `json:"name"`
	Function string    `json:"function"`
	Min      float64   `json:"min"`
	Max      float64   `json:"max"`
	Params   []float64 `json:"params,omitempty"`
	Points   string    `json:"-"`
	Color    string    `json:"color"`
	Degree   *float64  `json:"degree,omitempty"`
}

// RuleView is one row of the rule table
type RuleView struct {
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Weight   float64  `json:"weight"`
	Strength *float64 `json:"strength,omitempty"`
}

// EvaluationView summarises one evaluation
type EvaluationView struct {
	RunID    string        `json:"run_id"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Inputs   []NamedValue  `json:"inputs"`
	Outputs  []NamedValue  `json:"outputs"`
}

// NamedValue is a variable value in a stable order
type NamedValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Fired bool    `json:"fired"`
}

// NewReportGenerator creates a generator writing into outputDir
func NewReportGenerator(outputDir, title, version string, logger *logrus.Logger) *ReportGenerator {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	if title == "" {
		title = "Fuzzy Model Report"
	}
	return &ReportGenerator{
		outputDir: outputDir,
		title:     title,
		version:   version,
		logger:    logger,
		templates: template.Must(template.New("report").Funcs(templateFuncs).Parse(reportTemplate)),
	}
}

var templateFuncs = template.FuncMap{
	"num": func(f float64) string { return strconv.FormatFloat(f, 'g', 5, 64) },
	"pct": func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"deref": func(f *float64) float64 {
		if f == nil {
			return 0
		}
		return *f
	},
}

// Generate writes <model>.html into the output directory and returns its path.
// res may be nil.
func (rg *ReportGenerator) Generate(m *fuzzy.Model, res *execution.Result) (string, error) {
	if err := os.MkdirAll(rg.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputFile := filepath.Join(rg.outputDir, m.Name()+".html")
	file, err := os.Create(outputFile)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := rg.Render(file, m, res); err != nil {
		return "", err
	}

	rg.logger.WithFields(logrus.Fields{"model": m.Name(), "path": outputFile}).Info("Report generated")
	return outputFile, nil
}

// Render executes the report template into w
func (rg *ReportGenerator) Render(w io.Writer, m *fuzzy.Model, res *execution.Result) error {
	data := rg.Data(m, res)
	if err := rg.templates.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

// Data builds the template data for m and an optional evaluation of it
func (rg *ReportGenerator) Data(m *fuzzy.Model, res *execution.Result) *ReportData {
	data := &ReportData{
		Title:       rg.title,
		GeneratedAt: time.Now(),
		Version:     rg.version,
		Model:       m.Name(),
		Description: m.Description,
	}

	outputs := make(map[string]bool)
	for _, v := range m.Outputs() {
		outputs[v.Name()] = true
	}
	for _, v := range m.Variables() {
		data.Variables = append(data.Variables, buildVariable(v, outputs[v.Name()], res))
	}

	var strengths map[int]float64
	if res != nil {
		strengths = make(map[int]float64, len(res.Strengths))
		for _, s := range res.Strengths {
			strengths[s.Index] = s.Strength
		}
		data.Evaluation = buildEvaluation(res)
	}
	for i, r := range m.Rules() {
		row := RuleView{Index: i + 1, Text: r.String(), Weight: r.Weight}
		if s, ok := strengths[i]; ok {
			row.Strength = &s
		}
		data.Rules = append(data.Rules, row)
	}
	return data
}

func buildVariable(v *fuzzy.Variable, output bool, res *execution.Result) VariableView {
	view := VariableView{
		Name:   v.Name(),
		Role:   "input",
		Min:    v.Min(),
		Max:    v.Max(),
		Width:  chartWidth,
		Height: chartHeight,
	}
	if output {
		view.Role = "output"
	}
	sx := scaler(view.Min, view.Max)

	var degrees map[string]float64
	if res != nil {
		degrees = res.Degrees[v.Name()]
		if x, ok := res.Outputs[v.Name()]; ok {
			view.Value = &x
		} else if x, ok := res.Inputs[v.Name()]; ok {
			view.Value = &x
		}
		if view.Value != nil {
			view.MarkerX = sx(*view.Value)
		}
		if agg := res.Aggregates[v.Name()]; len(agg) > 0 {
			view.Aggregate = polyline(agg, sx)
		}
	}

	for i, s := range v.Sets() {
		sv := SetView{
			Name:     s.Name(),
			Function: s.Function(),
			Min:      s.Min(),
			Max:      s.Max(),
			Params:   s.Params(),
			Points:   polyline(s.Curve(curveSteps), sx),
			Color:    palette[i%len(palette)],
		}
		if d, ok := degrees[s.Name()]; ok {
			sv.Degree = &d
		}
		view.Sets = append(view.Sets, sv)
	}
	return view
}

func buildEvaluation(res *execution.Result) *EvaluationView {
	ev := &EvaluationView{RunID: res.RunID, Started: res.Started, Duration: res.Duration}
	for name, x := range res.Inputs {
		ev.Inputs = append(ev.Inputs, NamedValue{Name: name, Value: x, Fired: true})
	}
	for name, x := range res.Outputs {
		ev.Outputs = append(ev.Outputs, NamedValue{Name: name, Value: x, Fired: res.Fired[name]})
	}
	byName := func(vals []NamedValue) func(i, j int) bool {
		return func(i, j int) bool { return vals[i].Name < vals[j].Name }
	}
	sort.Slice(ev.Inputs, byName(ev.Inputs))
	sort.Slice(ev.Outputs, byName(ev.Outputs))
	return ev
}

// scaler maps a value in [min, max] to an x coordinate of the chart
func scaler(min, max float64) func(float64) float64 {
	span := max - min
	if span <= 0 {
		span = 1
	}
	return func(x float64) float64 {
		return chartPad + (x-min)/span*(chartWidth-2*chartPad)
	}
}

// polyline renders curve points as an SVG points attribute; y grows downwards
func polyline(pts []fuzzy.Point, sx func(float64) float64) string {
	var b strings.Builder
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		y := chartHeight - chartPad - p.Mu*(chartHeight-2*chartPad)
		b.WriteString(strconv.FormatFloat(sx(p.X), 'f', 2, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(y, 'f', 2, 64))
	}
	return b.String()
}
