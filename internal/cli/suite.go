package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/roach88/conformer/internal/config"
)

// loadSuite loads and compiles the fixture at path, or the built-in fixture
// when path is empty. Environment overrides are applied before building.
// Returns the suite and a source label for reports and history.
func loadSuite(path string) (*config.Suite, string, error) {
	var (
		f      *config.File
		err    error
		source = config.DefaultName
		dir    string
	)
	if path == "" {
		f, err = config.Default()
	} else {
		f, err = config.Load(path)
		source = path
		dir = filepath.Dir(path)
	}
	if err != nil {
		return nil, source, fixtureError(err)
	}

	if err := config.ApplyEnv(f, os.LookupEnv); err != nil {
		return nil, source, WrapExitError(ExitCommandError, "invalid environment", err)
	}

	suite, err := config.Build(f, dir)
	if err != nil {
		return nil, source, WrapExitError(ExitCommandError, "invalid fixture", err)
	}
	return suite, source, nil
}

// fixtureError keeps the loader's error code in the message.
func fixtureError(err error) error {
	var le *config.LoadError
	if errors.As(err, &le) {
		return NewExitError(ExitCommandError, le.Error())
	}
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to load fixture", config.ErrCodeGeneric), err)
}
