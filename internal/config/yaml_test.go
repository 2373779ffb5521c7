package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/kong"
)

type testCLI struct {
	LogLevel string `default:"info"`

	Transform struct {
		EMASpan  int    `name:"ema-span" default:"15"`
		Timezone string `default:"Europe/London"`
		Output   string `default:"out.csv"`
	} `cmd:""`
}

func parse(t *testing.T, config string, args ...string) *testCLI {
	t.Helper()
	path := filepath.Join(t.TempDir(), "co2pipeline.yaml")
	if err := os.WriteFile(path, []byte(config), 0o644); err != nil {
		t.Fatal(err)
	}

	var cli testCLI
	parser, err := kong.New(&cli, kong.Configuration(YAML, path), kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	if err != nil {
		t.Fatalf("kong.New: %v", err)
	}
	if _, err := parser.Parse(args); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return &cli
}

func TestYAMLResolvesFlags(t *testing.T) {
	cli := parse(t, strings.Join([]string{
		"log_level: debug",
		"transform:",
		"  ema_span: 10",
		"  timezone: UTC",
	}, "\n"), "transform")

	if cli.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cli.LogLevel)
	}
	if cli.Transform.EMASpan != 10 {
		t.Errorf("EMASpan = %d, want 10", cli.Transform.EMASpan)
	}
	if cli.Transform.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", cli.Transform.Timezone)
	}
	if cli.Transform.Output != "out.csv" {
		t.Errorf("Output = %q, want default", cli.Transform.Output)
	}
}

func TestFlagsOverrideYAML(t *testing.T) {
	cli := parse(t, "transform:\n  ema-span: 10\n", "transform", "--ema-span=5")
	if cli.Transform.EMASpan != 5 {
		t.Errorf("EMASpan = %d, want 5", cli.Transform.EMASpan)
	}
}

func TestEmptyConfig(t *testing.T) {
	cli := parse(t, "", "transform")
	if cli.Transform.EMASpan != 15 {
		t.Errorf("EMASpan = %d, want 15", cli.Transform.EMASpan)
	}
}

func TestYAMLRejectsMalformed(t *testing.T) {
	if _, err := YAML(strings.NewReader("a: [1, 2")); err == nil {
		t.Error("expected decode error")
	}
}
