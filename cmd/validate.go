package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/netanon/internal/anon"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and the partition table",
	Long: `Load the configuration, build the partition table and the address
generator, and print a summary without touching any capture.

Examples:
  netanon validate -c netanon.yml
  netanon validate -c netanon.yml --partitions groups.yaml`,
	// Configuration errors are reported by the command itself.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		if err := runValidate(configFile, partitionsFile, cmd.OutOrStdout()); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

func runValidate(path, partitions string, w io.Writer) error {
	cfg, err := loadConfig(path, partitions, "")
	if err != nil {
		return err
	}
	table, err := anon.BuildPartitionTable(cfg.Anonymize, cfg.Partitions)
	if err != nil {
		return err
	}
	if _, err := anon.NewGenerator(cfg.Anonymize); err != nil {
		return err
	}

	fmt.Fprintf(w, "VALID: %d partition(s), %d private address(es), default subnet %s, strategy %s\n",
		len(table.Groups()), table.Len(), table.Fallback(), cfg.Anonymize.Strategy)
	for _, g := range table.Groups() {
		fmt.Fprintf(w, "  %-16s %-18s %d address(es)\n", g.Name, g.Subnet, len(g.Addresses))
	}
	if n := len(cfg.Substitutions); n > 0 {
		fmt.Fprintf(w, "  %d substitution group(s)\n", n)
	}
	if cfg.Audit.Kafka.Enabled {
		fmt.Fprintf(w, "  kafka audit sink: %v topic %s\n", cfg.Audit.Kafka.Brokers, cfg.Audit.Kafka.Topic)
	}
	return nil
}
