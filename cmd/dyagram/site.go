package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cmoses01/DyaGram/internal/inventory"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <site>",
		Short: "Initialize a workspace with its first site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := inventory.NewWorkspace(cfg.Workspace).Init(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created site: %s\nDyaGram initialized!\n", args[0])
			return nil
		},
	}
}

func newSiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "List sites, the current one marked with *",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ws := inventory.NewWorkspace(cfg.Workspace)
			current, err := ws.CurrentSite()
			if err != nil {
				return err
			}
			sites, err := ws.Sites()
			if err != nil {
				return err
			}
			for _, s := range sites {
				marker := " "
				if s == current {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, s)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "new <site>",
		Short: "Create a site",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := inventory.NewWorkspace(cfg.Workspace).NewSite(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Site %q created!\n", args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "switch <site>",
		Short: "Make a site current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := inventory.NewWorkspace(cfg.Workspace).SwitchSite(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Switched to site %q.\n", args[0])
			return nil
		},
	})
	return cmd
}
