package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/netanon/internal/tabular"
)

var associationsCmd = &cobra.Command{
	Use:   "associations",
	Short: "Count packets per address/port association",
	Long: `Read a metadata table and write unique (SourceIP, DestinationIP, SourcePort,
DestinationPort) associations with their PacketCount, most frequent first.

Example:
  netanon associations -i meta.csv -o associations.csv`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAssociations(associationsOpts, cmd.OutOrStdout()); err != nil {
			exitWithError("associations failed", err)
		}
	},
}

var associationsOpts tableFlags

func init() {
	associationsCmd.Flags().StringVarP(&associationsOpts.input, "input", "i", "", "metadata table (required)")
	associationsCmd.Flags().StringVarP(&associationsOpts.output, "output", "o", "", "output table (required)")
	associationsCmd.MarkFlagRequired("input")
	associationsCmd.MarkFlagRequired("output")
}

func runAssociations(opts tableFlags, w io.Writer) error {
	n, err := runTablePass(opts.input, opts.output, tabular.Associations)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d associations -> %s\n", n, opts.output)
	return nil
}
