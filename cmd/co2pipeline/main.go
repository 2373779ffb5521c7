package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/co2pipeline/internal/config"
	"github.com/lox/co2pipeline/internal/logging"
)

var version = "dev"

type CLI struct {
	EnvFile kongdotenv.ENVFileConfig `name:"env-file" default:".env" help:"Load environment variables from this file if it exists."`
	Config  kong.ConfigFlag          `help:"Read flag defaults from this YAML file."`
	Version kong.VersionFlag         `help:"Print the version and exit."`

	LogLevel  string `default:"info" enum:"debug,info,warn,error" env:"CO2_LOG_LEVEL" help:"Log level (${enum})."`
	LogFormat string `default:"text" enum:"text,json" env:"CO2_LOG_FORMAT" help:"Log format (${enum})."`

	Transform TransformCmd `cmd:"" default:"withargs" help:"Clean a CO2 CSV export and write the result."`
	Runs      RunsCmd      `cmd:"" help:"List recorded pipeline runs."`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("co2pipeline"),
		kong.Description("Cleans sensor-logged CO2 readings: numeric conversion, timezone conversion, gap filling and an exponential moving average."),
		kong.UsageOnError(),
		kong.Configuration(config.YAML, "co2pipeline.yaml"),
		kong.Vars{"version": version},
	)

	logging.Setup(logging.Config{Level: cli.LogLevel, Format: cli.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	err := kctx.Run()
	stop()
	kctx.FatalIfErrorf(err)
}
