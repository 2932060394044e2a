/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: formatter.go
Description: Console formatters for the fuzzy engine. CustomFormatter prints aligned,
optionally coloured lines with sorted fields; EngineFormatter adds an event tag and
compact rendering of evaluation fields.
*/

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CustomFormatter provides structured, human readable output
type CustomFormatter struct {
	Timestamp bool
	Caller    bool
	Colors    bool
}

// Format formats a log entry
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return f.format(entry, "", f.formatValue)
}

func (f *CustomFormatter) format(entry *logrus.Entry, tag string, value func(string, interface{}) string) ([]byte, error) {
	var output strings.Builder

	if f.Timestamp {
		f.paint(&output, 36, entry.Time.Format("2006-01-02 15:04:05.000")) // Cyan
		output.WriteString(" ")
	}

	f.paint(&output, f.getLevelColor(entry.Level), strings.ToUpper(entry.Level.String()))
	output.WriteString(" ")

	if tag != "" {
		f.paint(&output, 35, "["+tag+"]") // Magenta
		output.WriteString(" ")
	}

	if f.Caller && entry.HasCaller() {
		f.paint(&output, 33, fmt.Sprintf("[%s:%d]", entry.Caller.File, entry.Caller.Line)) // Yellow
		output.WriteString(" ")
	}

	output.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		output.WriteString(" ")
		output.WriteString(f.formatFields(entry.Data, value))
	}

	output.WriteString("\n")
	return []byte(output.String()), nil
}

func (f *CustomFormatter) paint(b *strings.Builder, color int, s string) {
	if f.Colors {
		fmt.Fprintf(b, "\033[%dm%s\033[0m", color, s)
		return
	}
	b.WriteString(s)
}

// getLevelColor returns the ANSI color code for a log level
func (f *CustomFormatter) getLevelColor(level logrus.Level) int {
	switch level {
	case logrus.DebugLevel:
		return 37 // White
	case logrus.InfoLevel:
		return 32 // Green
	case logrus.WarnLevel:
		return 33 // Yellow
	case logrus.ErrorLevel:
		return 31 // Red
	case logrus.FatalLevel, logrus.PanicLevel:
		return 35 // Magenta
	default:
		return 37
	}
}

// formatFields renders fields sorted by key
func (f *CustomFormatter) formatFields(fields logrus.Fields, value func(string, interface{}) string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		formatted := value(key, fields[key])
		if f.Colors {
			parts = append(parts, fmt.Sprintf("\033[34m%s\033[0m=\033[32m%s\033[0m", key, formatted)) // Blue key, Green value
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", key, formatted))
		}
	}
	return strings.Join(parts, " ")
}

// formatValue formats a field value appropriately
func (f *CustomFormatter) formatValue(_ string, value interface{}) string {
	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("15:04:05.000")
	case string:
		if len(v) > 60 {
			return v[:60] + "..."
		}
		return v
	case float64:
		return fmt.Sprintf("%.4g", v)
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// EngineFormatter tags engine events and renders evaluation fields compactly
type EngineFormatter struct {
	CustomFormatter
}

// Format formats engine log entries
func (f *EngineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return f.format(entry, eventTag(entry.Message), f.formatEngineValue)
}

// eventTag returns a tag based on the log message
func eventTag(message string) string {
	switch {
	case strings.Contains(message, "evaluated"):
		return "EVAL"
	case strings.Contains(message, "Evaluation failed"):
		return "FAIL"
	case strings.Contains(message, "Rule fired"):
		return "RULE"
	case strings.Contains(message, "reload"):
		return "RELOAD"
	case strings.Contains(message, "Model loaded"):
		return "MODEL"
	case strings.Contains(message, "Batch"):
		return "BATCH"
	case strings.Contains(message, "Server"), strings.Contains(message, "Request"):
		return "HTTP"
	case strings.Contains(message, "Store"):
		return "STORE"
	default:
		return ""
	}
}

// formatEngineValue formats engine specific field values
func (f *EngineFormatter) formatEngineValue(key string, value interface{}) string {
	switch key {
	case "outputs", "inputs":
		if m, ok := value.(map[string]float64); ok {
			return formatVector(m)
		}
	case "strength":
		if s, ok := value.(float64); ok {
			return fmt.Sprintf("%.3f", s)
		}
	case "evaluations_per_sec":
		if r, ok := value.(float64); ok {
			return fmt.Sprintf("%.2f/sec", r)
		}
	case "run_id":
		if s, ok := value.(string); ok && len(s) > 8 {
			return s[:8]
		}
	case "rule":
		if s, ok := value.(string); ok {
			return fmt.Sprintf("%q", s)
		}
	}
	return f.formatValue(key, value)
}

// formatVector renders a variable map as {a=1 b=2} with sorted names
func formatVector(m map[string]float64) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%.4g", n, m[n])
	}
	return "{" + strings.Join(parts, " ") + "}"
}
