package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/tabular"
)

var substituteCmd = &cobra.Command{
	Use:   "substitute",
	Short: "Substitute peer addresses of configured groups in a CSV table",
	Long: `Stream a metadata table and replace the peer address of every row whose
SourceIP or DestinationIP belongs to a configured substitution group.

Groups come from the 'substitutions' section of the config file.

Example:
  netanon substitute -c netanon.yml -i meta.csv -o meta_sub.csv --chunk 10000`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runSubstitute(globalCfg, substituteOpts, substituteChunk, cmd.OutOrStdout()); err != nil {
			exitWithError("substitute failed", err)
		}
	},
}

var (
	substituteOpts  tableFlags
	substituteChunk int
)

func init() {
	substituteCmd.Flags().StringVarP(&substituteOpts.input, "input", "i", "", "metadata table (required)")
	substituteCmd.Flags().StringVarP(&substituteOpts.output, "output", "o", "", "output table (required)")
	substituteCmd.Flags().IntVar(&substituteChunk, "chunk", tabular.DefaultChunk, "rows per chunk")
	substituteCmd.MarkFlagRequired("input")
	substituteCmd.MarkFlagRequired("output")
}

func runSubstitute(cfg *config.GlobalConfig, opts tableFlags, chunk int, w io.Writer) error {
	if len(cfg.Substitutions) == 0 {
		return errors.New("no substitution groups configured")
	}
	groups := tabular.GroupsFromConfig(cfg.Substitutions)
	n, err := runTablePass(opts.input, opts.output, func(in io.Reader, out io.Writer) (int, error) {
		return tabular.Substitute(in, out, groups, chunk)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d rows, %d groups -> %s\n", n, len(groups), opts.output)
	return nil
}
