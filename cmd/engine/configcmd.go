package main

import (
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"jobpipe-engine/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		abs, _ := filepath.Abs(path)
		pterm.Println(abs)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file and list errors and warnings",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath()
		if err != nil {
			return err
		}
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		_, vr := config.NormalizeAndValidate(cfg)
		for _, w := range vr.Warnings {
			pterm.Warning.Println(w)
		}
		for _, e := range vr.Errors {
			pterm.Error.Println(e)
		}
		if !vr.OK() {
			return config.Validate(cfg)
		}
		pterm.Success.Printf("%s is valid\n", path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configPathCmd, configValidateCmd)
}
