package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/quiet-room/internal/adapters/llm"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the locally stored vendor key",
}

var keySetCmd = &cobra.Command{
	Use:   "set [key]",
	Short: "Validate and store a key (read from stdin when omitted)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var key string
		if len(args) == 1 {
			key = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading key from stdin: %w", err)
			}
			key = strings.TrimSpace(line)
		}

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.svc.SaveCredential(ctx, key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s key in %s\n", a.svc.Vendor(), slotFor(a.svc.Vendor()))
		return nil
	},
}

var keyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Purge the stored key",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.svc.ResetCredential(ctx); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "purged %s\n", slotFor(a.svc.Vendor()))
		return nil
	},
}

var keyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a usable key is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		ok, err := a.svc.HasCredential(ctx)
		if err != nil {
			return err
		}
		state := "missing"
		if ok {
			state = "stored"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", slotFor(a.svc.Vendor()), state)
		return nil
	},
}

func slotFor(vendor string) string {
	return llm.SlotName(llm.Vendor(vendor))
}

func init() {
	keyCmd.AddCommand(keySetCmd, keyResetCmd, keyStatusCmd)
	rootCmd.AddCommand(keyCmd)
}
