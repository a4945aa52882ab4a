// Package machinefile loads machine descriptions from disk.
//
// Two layouts are understood. Structured descriptors are read from .yaml,
// .yml and .json files. Every other extension uses the line format:
//
//	name
//	states (comma separated)
//	input alphabet
//	tape alphabet
//	start state
//	accept states
//	reject state
//	from,read,to,write,move   (one rule per line)
package machinefile

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/tracetm/domain/machine"
)

// Format is a machine file layout.
type Format string

const (
	FormatText Format = "text"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the layout for a path by extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	default:
		return FormatText
	}
}

// headerLines is the number of lines before the first rule in the line format.
const headerLines = 7

// Loader reads machine files.
type Loader struct {
	// Strict runs machine.Validate after parsing and fails on any finding.
	Strict bool
}

// NewLoader creates a lenient loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoaderOption configures the loader.
type LoaderOption func(*Loader)

// WithStrict enables consistency validation.
func WithStrict(enabled bool) LoaderOption {
	return func(l *Loader) {
		l.Strict = enabled
	}
}

// NewLoaderWithOptions creates a loader with the specified options.
func NewLoaderWithOptions(opts ...LoaderOption) *Loader {
	l := NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadFile loads a machine from path.
func (l *Loader) LoadFile(path string) (*machine.Machine, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", machine.ErrMachineNotFound, path)
		}
		return nil, fmt.Errorf("failed to access machine file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", machine.ErrMalformedMachine, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open machine file: %w", err)
	}
	defer f.Close()

	m, err := l.Load(f, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Load parses a machine from r in the given format.
func (l *Loader) Load(r io.Reader, format Format) (*machine.Machine, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read machine: %w", err)
	}

	var m *machine.Machine
	switch format {
	case FormatText:
		m, err = parseText(data)
	case FormatYAML:
		var d Descriptor
		if err = yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", machine.ErrMalformedMachine, err)
		}
		m, err = d.Machine()
	case FormatJSON:
		var d Descriptor
		if err = json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("%w: %v", machine.ErrMalformedMachine, err)
		}
		m, err = d.Machine()
	default:
		return nil, fmt.Errorf("%w: %s", machine.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	if err := m.Check(); err != nil {
		return nil, errors.Join(machine.ErrMalformedMachine, err)
	}
	if l.Strict {
		if errs := m.Validate(); len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
	}
	return m, nil
}

func parseText(data []byte) (*machine.Machine, error) {
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read machine: %w", err)
	}
	if len(lines) < headerLines {
		return nil, fmt.Errorf("%w: expected %d header lines, got %d", machine.ErrMalformedMachine, headerLines, len(lines))
	}

	m := &machine.Machine{
		Name:   strings.TrimSpace(lines[0]),
		States: states(splitList(lines[1])),
		Start:  machine.State(strings.TrimSpace(lines[4])),
		Accept: states(splitList(lines[5])),
		Reject: machine.State(strings.TrimSpace(lines[6])),
		Table:  machine.NewTable(),
	}

	var err error
	if m.InputAlphabet, err = symbols(splitList(lines[2])); err != nil {
		return nil, lineError(3, err)
	}
	if m.TapeAlphabet, err = symbols(splitList(lines[3])); err != nil {
		return nil, lineError(4, err)
	}

	for i := headerLines; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" {
			continue
		}
		r, err := parseRule(lines[i])
		if err != nil {
			return nil, lineError(i+1, err)
		}
		m.Table.Add(r)
	}
	return m, nil
}

func parseRule(line string) (machine.Rule, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return machine.Rule{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	return buildRule(fields[0], fields[1], fields[2], fields[3], fields[4])
}

func buildRule(from, read, to, write, move string) (machine.Rule, error) {
	r := machine.Rule{
		From: machine.State(strings.TrimSpace(from)),
		Next: machine.State(strings.TrimSpace(to)),
	}
	if r.From == "" || r.Next == "" {
		return machine.Rule{}, errors.New("empty state")
	}

	var err error
	if r.Read, err = machine.ParseSymbol(read); err != nil {
		return machine.Rule{}, err
	}
	if r.Write, err = machine.ParseSymbol(write); err != nil {
		return machine.Rule{}, err
	}
	if r.Move, err = machine.ParseDirection(move); err != nil {
		return machine.Rule{}, err
	}
	return r, nil
}

func lineError(line int, err error) error {
	return fmt.Errorf("%w: line %d: %w", machine.ErrMalformedMachine, line, err)
}

func splitList(line string) []string {
	var out []string
	for _, f := range strings.Split(line, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func states(names []string) []machine.State {
	out := make([]machine.State, len(names))
	for i, n := range names {
		out[i] = machine.State(n)
	}
	return out
}

func symbols(fields []string) ([]machine.Symbol, error) {
	out := make([]machine.Symbol, 0, len(fields))
	for _, f := range fields {
		s, err := machine.ParseSymbol(f)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}
