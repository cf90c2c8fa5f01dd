package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/netanon/internal/tabular"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List unique destination ports",
	Long: `Write the sorted unique DestinationPort values of a metadata table,
optionally only for rows from the given source addresses.

Examples:
  netanon ports -i meta.csv -o ports.csv
  netanon ports -i meta.csv -o ports.csv --source 192.168.0.33`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runPorts(portsOpts, portsSources, cmd.OutOrStdout()); err != nil {
			exitWithError("ports failed", err)
		}
	},
}

var (
	portsOpts    tableFlags
	portsSources []string
)

func init() {
	portsCmd.Flags().StringVarP(&portsOpts.input, "input", "i", "", "metadata table (required)")
	portsCmd.Flags().StringVarP(&portsOpts.output, "output", "o", "", "output table (required)")
	portsCmd.Flags().StringSliceVar(&portsSources, "source", nil, "only rows with this SourceIP (repeatable)")
	portsCmd.MarkFlagRequired("input")
	portsCmd.MarkFlagRequired("output")
}

func runPorts(opts tableFlags, sources []string, w io.Writer) error {
	n, err := runTablePass(opts.input, opts.output, func(in io.Reader, out io.Writer) (int, error) {
		return tabular.UniquePorts(in, out, sources)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d unique ports -> %s\n", n, opts.output)
	return nil
}
