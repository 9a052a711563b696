package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lsbridge/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the semantic token cache",
	}
	cacheCmd.PersistentFlags().String("system-path", "", "directory for persistent server data (overrides the config file)")

	dirCmd := &cobra.Command{
		Use:   "dir",
		Short: "Print the cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			disk, err := cacheForCommand(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), disk.Dir())
			return nil
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached semantic token stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			disk, err := cacheForCommand(cmd)
			if err != nil {
				return err
			}
			if err := disk.DropAll(); err != nil {
				return fmt.Errorf("clear %s: %w", disk.Dir(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", disk.Dir())
			return nil
		},
	}
	cacheCmd.AddCommand(dirCmd)
	cacheCmd.AddCommand(clearCmd)
	return cacheCmd
}

// cacheForCommand opens the disk cache the server would use with the same
// configuration.
func cacheForCommand(cmd *cobra.Command) (*cache.DiskCache, error) {
	systemPath, err := stringFlag(cmd, "system-path")
	if err != nil {
		return nil, err
	}
	if systemPath == "" {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		systemPath = cfg.Server.SystemPath
	}
	disk, err := openDiskCache(systemPath)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return disk, nil
}
