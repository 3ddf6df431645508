package main

import (
	"embed"
	"fmt"
	"os"

	clay "github.com/go-go-golems/clay/pkg"
	"github.com/go-go-golems/glazed/pkg/help"
	"github.com/go-go-golems/ponder/pkg/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const appName = "ponder"

//go:embed doc/*
var docFS embed.FS

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "ponder makes a language model reason step by step before it answers",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		return clay.InitLogger()
	},
}

func initHelpSystem(rootCmd *cobra.Command) (*help.HelpSystem, error) {
	helpSystem := help.NewHelpSystem()
	if err := helpSystem.LoadSectionsFromFS(docFS, "."); err != nil {
		return nil, err
	}

	helpFunc, usageFunc := help.GetCobraHelpUsageFuncs(helpSystem)
	helpTemplate, usageTemplate := help.GetCobraHelpUsageTemplates(helpSystem)

	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetHelpTemplate(helpTemplate)
	rootCmd.SetUsageTemplate(usageTemplate)
	rootCmd.SetHelpCommand(help.NewCobraHelpCommand(helpSystem))

	return helpSystem, nil
}

// initConfig wires config file discovery, env and logging flags through clay, then makes
// every settings key readable from PONDER_* variables.
func initConfig(rootCmd *cobra.Command) error {
	if err := clay.InitViper(appName, rootCmd); err != nil {
		return err
	}
	if err := settings.BindEnv(viper.GetViper(), appName); err != nil {
		return err
	}
	if err := clay.InitLogger(); err != nil {
		return err
	}

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")
	return nil
}

func main() {
	if _, err := initHelpSystem(rootCmd); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing help system: %s\n", err)
		os.Exit(1)
	}

	if err := initConfig(rootCmd); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error initializing config: %s\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(newRunCommand(), newServeCommand(), newConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
