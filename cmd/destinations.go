package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/netanon/internal/tabular"
)

var destinationsCmd = &cobra.Command{
	Use:   "destinations",
	Short: "List destination addresses contacted by given sources",
	Long: `Write the unique DestinationIP values contacted by the given SourceIP
addresses, in order of first appearance.

Example:
  netanon destinations -i meta.csv -o dst.csv --source 192.168.0.2 --source 192.168.0.13`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDestinations(destinationsOpts, destinationsSources, cmd.OutOrStdout()); err != nil {
			exitWithError("destinations failed", err)
		}
	},
}

var (
	destinationsOpts    tableFlags
	destinationsSources []string
)

func init() {
	destinationsCmd.Flags().StringVarP(&destinationsOpts.input, "input", "i", "", "metadata table (required)")
	destinationsCmd.Flags().StringVarP(&destinationsOpts.output, "output", "o", "", "output table (required)")
	destinationsCmd.Flags().StringSliceVar(&destinationsSources, "source", nil, "SourceIP to follow (repeatable, required)")
	destinationsCmd.MarkFlagRequired("input")
	destinationsCmd.MarkFlagRequired("output")
	destinationsCmd.MarkFlagRequired("source")
}

func runDestinations(opts tableFlags, sources []string, w io.Writer) error {
	n, err := runTablePass(opts.input, opts.output, func(in io.Reader, out io.Writer) (int, error) {
		return tabular.DestinationIPs(in, out, sources)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d destination addresses -> %s\n", n, opts.output)
	return nil
}
