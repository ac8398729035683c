package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/rigmerge/internal"
	pkgconfig "github.com/starford/rigmerge/pkg/config"
)

const defaultConfigPath = "config/config.yaml"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	// An explicitly requested config must exist; the default one is optional.
	if cmd.IsSet("config") {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
		return cfg, nil
	}
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one source directory, got %d arguments", cmd.Args().Len())
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("no-export") {
		cfg.Output.Export = false
	}

	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithSourceDir(cmd.Args().First()),
		internal.WithWatch(cmd.Bool("watch")),
	}

	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func inspect(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return fmt.Errorf("expected exactly one library file")
	}
	return internal.Inspect(cmd.Args().First(), os.Stdout)
}

func main() {
	cmd := &cli.Command{
		Name:      "rigmerge",
		Usage:     "Merge a directory of motion-capture clips into one root-motion animation library",
		ArgsUsage: "<source-dir>",
		Action:    run,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: defaultConfigPath,
				Value:       defaultConfigPath,
				Sources:     cli.EnvVars("RIGMERGE_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "no-export",
				Aliases: []string{"ne"},
				Usage:   "Write only the project library, skip the distribution export",
				Sources: cli.EnvVars("RIGMERGE_NO_EXPORT"),
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Rebuild whenever a clip file changes",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "List the tracks of a saved library",
				ArgsUsage: "<library.animlib>",
				Action:    inspect,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
