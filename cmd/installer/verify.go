package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/splax/installer/internal/license"
	"github.com/splax/installer/internal/service/activation"
	"github.com/splax/installer/pkg/config"
	"github.com/splax/installer/pkg/logger"
)

func newVerifyCmd(cfg config.InstallerConfig) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "check a purchase code against the licensing service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !license.IsValidPurchaseCode(code) {
				return errors.New(activation.MessageInvalidPurchaseCode)
			}
			log := logger.New("verify", logger.ParseLevel(cfg.LogLevel))
			client, err := license.New(cfg.LicenseAPIURL, license.WithTimeout(cfg.LicenseTimeout), license.WithLogger(log))
			if err != nil {
				return err
			}
			result := client.Verify(cmd.Context(), code, cfg.AppURL)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("verification failed: %s", result.Message)
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&code, "purchase-code", "", "purchase code to verify")
	flags.StringVar(&cfg.AppURL, "url", cfg.AppURL, "installation URL reported to the licensing service")
	flags.StringVar(&cfg.LicenseAPIURL, "endpoint", cfg.LicenseAPIURL, "licensing API endpoint")
	_ = cmd.MarkFlagRequired("purchase-code")
	return cmd
}
