package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultFixture []byte

// DefaultName is shown in place of a path for the embedded fixture.
const DefaultName = "<built-in>"

// Error codes reported by LoadError.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE evaluation failed
	ErrCodeParse       = "E007" // YAML decode failed
	ErrCodeInvalid     = "E008" // Fixture failed validation
	ErrCodeFormat      = "E009" // Unsupported file extension
)

// LoadError is a fixture loading failure with an optional source position.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Default returns the embedded fixture.
func Default() (*File, error) {
	return Decode(defaultFixture)
}

// DefaultBytes returns the raw embedded fixture, for `conformer validate`
// and for writing a starter file.
func DefaultBytes() []byte {
	return bytes.Clone(defaultFixture)
}

// Load reads a fixture from a .yaml, .yml or .cue file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("fixture not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("failed to read fixture: %v", err)}
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Decode(data)
	case ".cue":
		exported, err := exportCUE(data, path)
		if err != nil {
			return nil, err
		}
		return Decode(exported)
	default:
		return nil, &LoadError{Code: ErrCodeFormat, Message: fmt.Sprintf("unsupported fixture format %q (want .yaml, .yml or .cue)", filepath.Ext(path))}
	}
}

// Decode parses fixture YAML with strict field validation.
func Decode(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // Reject unknown fields
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &LoadError{Code: ErrCodeParse, Message: "fixture is empty"}
		}
		return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("failed to parse fixture: %v", err)}
	}
	if err := f.Validate(); err != nil {
		return nil, &LoadError{Code: ErrCodeInvalid, Message: err.Error()}
	}
	return &f, nil
}

// exportCUE evaluates a CUE fixture and exports it as JSON, which the YAML
// decoder accepts unchanged.
func exportCUE(data []byte, path string) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, cueLoadError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(err)
	}
	out, err := v.MarshalJSON()
	if err != nil {
		return nil, cueLoadError(err)
	}
	return out, nil
}

// cueLoadError keeps the position of the first CUE error.
func cueLoadError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &LoadError{Code: ErrCodeBuildFailed, Message: err.Error()}
	}
	first := errs[0]
	le := &LoadError{Code: ErrCodeBuildFailed, Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		le.Pos = positions[0]
	}
	return le
}
