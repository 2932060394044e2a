/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: ini.go
Description: INI file reader and writer used for fuzzy model files. Keeps sections and
params in file order, carries comments through a load/save round trip and reports
syntax errors with line numbers.
*/

package ini

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseError reports a syntax error at a given line
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ini: line %d: %s", e.Line, e.Msg)
}

// Param is a single name = value entry
type Param struct {
	Name    string
	Value   string
	Comment string
}

// String returns the raw value
func (p *Param) String() string {
	return p.Value
}

// Float parses the value as a float, returning def when it does not parse
func (p *Param) Float(def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(p.Value), 64)
	if err != nil {
		return def
	}
	return v
}

// Int parses the value as an int, returning def when it does not parse
func (p *Param) Int(def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(p.Value))
	if err != nil {
		return def
	}
	return v
}

// Bool parses the value as a bool, returning def when it does not parse
func (p *Param) Bool(def bool) bool {
	switch strings.ToLower(strings.TrimSpace(p.Value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// SetFloat stores v using the shortest representation that round-trips
func (p *Param) SetFloat(v float64) {
	p.Value = strconv.FormatFloat(v, 'g', -1, 64)
}

// SetInt stores v
func (p *Param) SetInt(v int) {
	p.Value = strconv.Itoa(v)
}

// Section is a named group of params
type Section struct {
	Name    string
	Comment string

	params []*Param
	index  map[string]int
}

func newSection(name string) *Section {
	return &Section{
		Name:  normalize(name),
		index: make(map[string]int),
	}
}

// Add sets name to value, replacing any existing value, and returns the param
func (s *Section) Add(name, value string) *Param {
	key := normalize(name)
	if i, ok := s.index[key]; ok {
		s.params[i].Value = value
		return s.params[i]
	}
	p := &Param{Name: key, Value: value}
	s.index[key] = len(s.params)
	s.params = append(s.params, p)
	return p
}

// Get returns the named param or nil
func (s *Section) Get(name string) *Param {
	if i, ok := s.index[normalize(name)]; ok {
		return s.params[i]
	}
	return nil
}

// Value returns the named value, or def when the param is missing
func (s *Section) Value(name, def string) string {
	if p := s.Get(name); p != nil {
		return p.Value
	}
	return def
}

// Delete removes the named param and reports whether it existed
func (s *Section) Delete(name string) bool {
	key := normalize(name)
	i, ok := s.index[key]
	if !ok {
		return false
	}
	s.params = append(s.params[:i], s.params[i+1:]...)
	s.reindex()
	return true
}

// At returns the i-th param in file order
func (s *Section) At(i int) *Param {
	if i < 0 || i >= len(s.params) {
		return nil
	}
	return s.params[i]
}

// Len returns the number of params
func (s *Section) Len() int {
	return len(s.params)
}

// Params returns the params in file order
func (s *Section) Params() []*Param {
	out := make([]*Param, len(s.params))
	copy(out, s.params)
	return out
}

func (s *Section) reindex() {
	s.index = make(map[string]int, len(s.params))
	for i, p := range s.params {
		s.index[p.Name] = i
	}
}

// File is an in-memory INI document
type File struct {
	Header string

	sections []*Section
	index    map[string]int
}

// New creates an empty file
func New() *File {
	return &File{index: make(map[string]int)}
}

// Load reads and parses the file at path
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ini file: %w", err)
	}
	defer fh.Close()

	f := New()
	if err := f.Parse(fh); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return f, nil
}

// Parse reads INI text from r, adding to any sections already present
func (f *File) Parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	var (
		current  *Section
		comments []string
		lineNo   int
		seenBody bool
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			// A blank line after the leading comment block closes the header.
			if !seenBody && len(comments) > 0 && f.Header == "" {
				f.Header = strings.Join(comments, "\n")
				comments = nil
			}

		case line[0] == '#' || line[0] == ';':
			comments = append(comments, strings.TrimSpace(line[1:]))

		case line[0] == '[':
			seenBody = true
			end := strings.IndexByte(line, ']')
			if end < 0 {
				return &ParseError{Line: lineNo, Msg: "missing ']' in section header"}
			}
			name := strings.TrimSpace(line[1:end])
			if name == "" {
				return &ParseError{Line: lineNo, Msg: "empty section name"}
			}
			current = f.AddSection(name)
			if len(comments) > 0 {
				current.Comment = strings.Join(comments, "\n")
				comments = nil
			}

		default:
			seenBody = true
			if current == nil {
				return &ParseError{Line: lineNo, Msg: "param outside of any section"}
			}
			eq := strings.IndexByte(line, '=')
			if eq < 0 {
				return &ParseError{Line: lineNo, Msg: fmt.Sprintf("expected name = value, got %q", line)}
			}
			name := strings.TrimSpace(line[:eq])
			if name == "" {
				return &ParseError{Line: lineNo, Msg: "empty param name"}
			}
			value, inline := splitInlineComment(line[eq+1:])
			p := current.Add(name, value)
			switch {
			case inline != "":
				p.Comment = inline
			case len(comments) > 0:
				p.Comment = strings.Join(comments, "\n")
			}
			comments = nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read ini data: %w", err)
	}
	return nil
}

// splitInlineComment separates "value # comment"; a '#' not preceded by whitespace is data.
// A value written in double quotes is unquoted and may hold comment characters.
func splitInlineComment(raw string) (string, string) {
	raw = strings.TrimLeft(raw, " \t")
	if strings.HasPrefix(raw, `"`) {
		if q, err := strconv.QuotedPrefix(raw); err == nil {
			rest := strings.TrimSpace(raw[len(q):])
			if rest == "" || rest[0] == '#' || rest[0] == ';' {
				value, _ := strconv.Unquote(q)
				if rest != "" {
					rest = strings.TrimSpace(rest[1:])
				}
				return value, rest
			}
		}
	}
	for i := 1; i < len(raw); i++ {
		if (raw[i] == '#' || raw[i] == ';') && (raw[i-1] == ' ' || raw[i-1] == '\t') {
			return strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:])
		}
	}
	return strings.TrimSpace(raw), ""
}

// Section returns the named section or nil
func (f *File) Section(name string) *Section {
	if i, ok := f.index[normalize(name)]; ok {
		return f.sections[i]
	}
	return nil
}

// AddSection returns the named section, creating it when missing
func (f *File) AddSection(name string) *Section {
	if s := f.Section(name); s != nil {
		return s
	}
	s := newSection(name)
	f.index[s.Name] = len(f.sections)
	f.sections = append(f.sections, s)
	return s
}

// DeleteSection removes the named section and reports whether it existed
func (f *File) DeleteSection(name string) bool {
	i, ok := f.index[normalize(name)]
	if !ok {
		return false
	}
	f.sections = append(f.sections[:i], f.sections[i+1:]...)
	f.index = make(map[string]int, len(f.sections))
	for j, s := range f.sections {
		f.index[s.Name] = j
	}
	return true
}

// Sections returns all sections in file order
func (f *File) Sections() []*Section {
	out := make([]*Section, len(f.sections))
	copy(out, f.sections)
	return out
}

// Clear drops every section and the header
func (f *File) Clear() {
	f.Header = ""
	f.sections = nil
	f.index = make(map[string]int)
}

// Write serializes the file to w
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	if f.Header != "" {
		writeComment(bw, f.Header)
		bw.WriteString("\n")
	}
	for i, s := range f.sections {
		if i > 0 {
			bw.WriteString("\n")
		}
		if s.Comment != "" {
			writeComment(bw, s.Comment)
		}
		fmt.Fprintf(bw, "[%s]\n", s.Name)
		for _, p := range s.params {
			value := quoteValue(p.Value)
			if p.Comment != "" && !strings.Contains(p.Comment, "\n") {
				fmt.Fprintf(bw, "%s = %s # %s\n", p.Name, value, p.Comment)
				continue
			}
			if p.Comment != "" {
				writeComment(bw, p.Comment)
			}
			fmt.Fprintf(bw, "%s = %s\n", p.Name, value)
		}
	}
	return bw.Flush()
}

// Save writes the file to path
func (f *File) Save(path string) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ini file: %w", err)
	}
	if err := f.Write(fh); err != nil {
		fh.Close()
		return fmt.Errorf("failed to write ini file: %w", err)
	}
	return fh.Close()
}

// quoteValue quotes values Parse would otherwise trim, cut at a comment or split
// across lines
func quoteValue(v string) string {
	if v != strings.TrimSpace(v) || strings.HasPrefix(v, `"`) || strings.ContainsAny(v, "\r\n") {
		return strconv.Quote(v)
	}
	for i := 1; i < len(v); i++ {
		if (v[i] == '#' || v[i] == ';') && (v[i-1] == ' ' || v[i-1] == '\t') {
			return strconv.Quote(v)
		}
	}
	return v
}

func writeComment(w *bufio.Writer, text string) {
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			w.WriteString("#\n")
			continue
		}
		fmt.Fprintf(w, "# %s\n", line)
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
