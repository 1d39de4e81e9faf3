package config

import (
	"os"
	"regexp"

	"github.com/tidwall/jsonc"
)

// envPattern matches {env:VAR_NAME} placeholders.
var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// readJSONC reads a config file, strips JSONC comments and applies
// {env:VAR} interpolation. Returns os.ErrNotExist-wrapping errors
// unchanged so callers can treat a missing file as empty.
func readJSONC(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = jsonc.ToJSON(data)

	str := envPattern.ReplaceAllStringFunc(string(data), func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	return []byte(str), nil
}
