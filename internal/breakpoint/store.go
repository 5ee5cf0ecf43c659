// Breakpoint state file, written before a restart and read back by the new session.
package breakpoint

import (
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

type storedBreakpoint struct {
	ID        int     `yaml:"id"`
	File      string  `yaml:"file"`
	Line      int     `yaml:"line"`
	Function  string  `yaml:"function,omitempty"`
	Condition *string `yaml:"condition,omitempty"`
	Enabled   bool    `yaml:"enabled"`
}

type storedTable struct {
	Breakpoints []storedBreakpoint `yaml:"breakpoints"`
}

// Save writes the table as YAML. An absent condition is omitted; an empty
// but present condition is kept.
func Save(w io.Writer, t *Table) error {
	var doc storedTable
	for _, bp := range t.List() {
		sb := storedBreakpoint{
			ID:       bp.ID,
			File:     bp.Location.File,
			Line:     bp.Location.Line,
			Function: bp.Location.Function,
			Enabled:  bp.Enabled,
		}
		if text, ok := bp.Condition.Text(); ok {
			sb.Condition = &text
		}
		doc.Breakpoints = append(doc.Breakpoints, sb)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(&doc); err != nil {
		return errors.Wrap(err, "encode breakpoints")
	}
	return nil
}

// Load reads a table written by Save. IDs are preserved.
func Load(r io.Reader) (*Table, error) {
	var doc storedTable
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode breakpoints")
	}
	t := NewTable()
	for _, sb := range doc.Breakpoints {
		cond := NoCondition()
		if sb.Condition != nil {
			cond = When(*sb.Condition)
		}
		bp := &Breakpoint{
			ID:        sb.ID,
			Location:  Location{File: sb.File, Line: sb.Line, Function: sb.Function},
			Condition: cond,
			Enabled:   sb.Enabled,
		}
		if err := t.Insert(bp); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// SaveFile writes the table to path on fs, creating parent directories.
func SaveFile(fs afero.Fs, path string, t *Table) error {
	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	f, err := fs.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := Save(f, t); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// LoadFile reads a table saved with SaveFile.
func LoadFile(fs afero.Fs, path string) (*Table, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	return Load(f)
}
