package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lsbridge/internal/address"
)

var uriCmd = &cobra.Command{
	Use:   "uri",
	Short: "Convert document addresses",
	Long: `Convert between editor URIs, internal addresses and local paths.

Each argument is converted independently and printed on its own line.`,
}

func init() {
	uriCmd.PersistentFlags().String("style", "native", "path convention (posix|windows|native)")

	uriCmd.AddCommand(&cobra.Command{
		Use:   "to-internal URI...",
		Short: "Convert editor URIs to internal addresses",
		Args:  cobra.MinimumNArgs(1),
		RunE:  uriRunner(address.Converter.ExternalToInternal),
	})
	uriCmd.AddCommand(&cobra.Command{
		Use:   "to-external ADDRESS...",
		Short: "Convert internal addresses to editor URIs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  uriRunner(address.Converter.InternalToExternal),
	})
	uriCmd.AddCommand(&cobra.Command{
		Use:   "from-path PATH...",
		Short: "Convert absolute local paths to editor URIs",
		Args:  cobra.MinimumNArgs(1),
		RunE:  uriRunner(address.Converter.LocalAbsolutePathToExternal),
	})
	uriCmd.AddCommand(&cobra.Command{
		Use:   "to-path URI...",
		Short: "Convert file URIs to local paths",
		Args:  cobra.MinimumNArgs(1),
		RunE:  uriRunner(address.Converter.ExternalToLocalPath),
	})
}

func uriRunner(convert func(address.Converter, string) (string, error)) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		styleName, err := cmd.Flags().GetString("style")
		if err != nil {
			return fmt.Errorf("failed to get style flag: %w", err)
		}
		style, err := address.ParseStyle(styleName)
		if err != nil {
			return err
		}
		conv := address.Converter{Style: style}
		for _, arg := range args {
			out, err := convert(conv, arg)
			if err != nil {
				return fmt.Errorf("%s: %w", arg, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
		return nil
	}
}
