package config

import (
	"fmt"
	"strconv"
)

// Environment variables that override fixture values.
const (
	EnvAPIBaseURL = "CONFORMER_API_BASE_URL"
	EnvUIBaseURL  = "CONFORMER_UI_BASE_URL"
	EnvAPIKey     = "CONFORMER_API_KEY"
	EnvParallel   = "CONFORMER_PARALLEL"
)

// APIKeyHeader carries CONFORMER_API_KEY on every API request.
const APIKeyHeader = "X-Api-Key"

// ApplyEnv overrides fixture values from the environment. lookup is
// usually os.LookupEnv.
func ApplyEnv(f *File, lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAPIBaseURL); ok && v != "" {
		f.API.BaseURL = v
	}
	if v, ok := lookup(EnvUIBaseURL); ok && v != "" {
		f.UI.BaseURL = v
	}
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		if f.API.Headers == nil {
			f.API.Headers = map[string]string{}
		}
		f.API.Headers[APIKeyHeader] = v
	}
	if v, ok := lookup(EnvParallel); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative integer, got %q", EnvParallel, v)
		}
		f.Run.Parallel = n
	}
	return nil
}
