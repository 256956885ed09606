package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/storebroker/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a StoreSpec manifest without opening its backend",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringP("file", "f", "", "StoreSpec manifest to validate (required)")
	_ = validateCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	filename, _ := cmd.Flags().GetString("file")
	cfg, err := config.LoadFile(filename)
	if err != nil {
		return err
	}
	fmt.Printf("✓ %s is a valid Store manifest (role=%s, backend=%s)\n", cfg.Name, cfg.Role, cfg.Backend.Kind)
	return nil
}
