package main

import (
	"fmt"
	"os"

	"pipewright/internal/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pipewright configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config already exists at %s", configPath)
		}

		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Println(successStyle.Render("Wrote " + configPath))
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("provider:     %s\n", cfg.LLM.Provider)
		fmt.Printf("model:        %s\n", cfg.LLM.Model)
		fmt.Printf("base_url:     %s\n", cfg.LLM.BaseURL)
		fmt.Printf("max_attempts: %d\n", cfg.LLM.MaxAttempts)
		fmt.Printf("database:     %s\n", cfg.Storage.DatabasePath)
		fmt.Printf("embedding:    %v (%s)\n", cfg.Embedding.Enabled, cfg.Embedding.Model)
		fmt.Printf("lint:         %s (disabled=%v)\n", cfg.Validation.RuffBinary, cfg.Validation.DisableLint)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
