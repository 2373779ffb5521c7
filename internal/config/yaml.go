// Package config reads CLI defaults from a YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// YAML is a kong.ConfigurationLoader. Keys match flag names, with dashes or
// underscores, and may be nested under a command name:
//
//	log-level: debug
//	transform:
//	  ema_span: 10
//	  timezone: UTC
func YAML(r io.Reader) (kong.Resolver, error) {
	var raw map[string]any
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml config: %w", err)
	}

	values := map[string]any{}
	flatten("", raw, values)

	return kong.ResolverFunc(func(_ *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		for _, key := range lookupKeys(parent, flag.Name) {
			if v, ok := values[key]; ok {
				return v, nil
			}
		}
		return nil, nil
	}), nil
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := normalise(k)
		if prefix != "" {
			key = prefix + "." + key
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func normalise(key string) string {
	return strings.ReplaceAll(strings.ToLower(key), "_", "-")
}

// lookupKeys lists the keys tried for a flag, most specific first.
func lookupKeys(parent *kong.Path, name string) []string {
	name = normalise(name)
	var keys []string
	if parent != nil && parent.Command != nil {
		keys = append(keys, normalise(parent.Command.Name)+"."+name)
	}
	return append(keys, name)
}
