package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

func tokenCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect token metadata",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "info <address>",
			Short: "Print symbol and decimals of a token",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if !common.IsHexAddress(args[0]) {
					return fmt.Errorf("%q is not an address", args[0])
				}
				addr := common.HexToAddress(args[0])

				decimals, err := opts.app.Converter().Decimals(cmd.Context(), addr)
				if err != nil {
					return err
				}
				symbol, err := opts.app.Tokens().Symbol(cmd.Context(), addr)
				if err != nil {
					symbol = "?"
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "address:  %s\n", addr.Hex())
				fmt.Fprintf(out, "symbol:   %s\n", symbol)
				fmt.Fprintf(out, "decimals: %d\n", decimals)
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List predefined tokens",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ADDRESS\tSYMBOL\tDECIMALS")
				for _, t := range opts.app.Tokens().Tokens() {
					fmt.Fprintf(w, "%s\t%s\t%d\n", t.Address.Hex(), t.Symbol, t.Decimals)
				}
				return w.Flush()
			},
		},
	)
	return cmd
}
