package main

import (
	"github.com/urfave/cli/v2"

	"github.com/MrEthical07/authcore/internal/config"
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "authd",
		Usage: "username/password authentication service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"AUTHCORE_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
		},
	}
}

// loadConfig merges the config file with the flags set on c.
func loadConfig(c *cli.Context) (config.Config, error) {
	overrides := make(map[string]any)

	if c.IsSet("addr") {
		overrides["server.addr"] = c.String("addr")
	}
	if c.IsSet("storage") {
		overrides["storage.users"] = c.String("storage")
		overrides["storage.refresh"] = c.String("storage")
	}
	if c.IsSet("refresh-storage") {
		overrides["storage.refresh"] = c.String("refresh-storage")
	}
	if c.IsSet("migrate") {
		overrides["database.migrate_on_start"] = c.Bool("migrate")
	}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}

	return config.Load(
		config.WithConfigFile(c.String("config")),
		config.WithOverrides(overrides),
	)
}
