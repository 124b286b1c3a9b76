package commands

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/xpool-finance/xpool-signer/internal/metrics"
	"github.com/xpool-finance/xpool-signer/pkg/decimal"
)

// unitsFlags --decimals 与 --token 二选一
type unitsFlags struct {
	decimals int32
	token    string
}

func (f *unitsFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int32VarP(&f.decimals, "decimals", "d", 0, "token decimals")
	cmd.Flags().StringVarP(&f.token, "token", "t", "", "token address; decimals are looked up")
	cmd.MarkFlagsMutuallyExclusive("decimals", "token")
	cmd.MarkFlagsOneRequired("decimals", "token")
}

func (f *unitsFlags) tokenAddress() (common.Address, error) {
	if !common.IsHexAddress(f.token) {
		return common.Address{}, fmt.Errorf("--token %q is not an address", f.token)
	}
	return common.HexToAddress(f.token), nil
}

func toBaseUnitsCmd(opts *rootOptions) *cobra.Command {
	var flags unitsFlags

	cmd := &cobra.Command{
		Use:   "to-base-units <amount>",
		Short: "Convert a human-readable amount into integer base units",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				base *big.Int
				err  error
			)
			if cmd.Flags().Changed("decimals") {
				base, err = decimal.ToBaseUnits(args[0], flags.decimals)
				metrics.RecordConversion(metrics.DirectionToBase, metrics.ConversionStatus(err))
			} else {
				addr, aerr := flags.tokenAddress()
				if aerr != nil {
					return aerr
				}
				base, err = opts.app.Converter().ConvertToCurrencyDecimals(cmd.Context(), addr, args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), base.String())
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func toHumanUnitsCmd(opts *rootOptions) *cobra.Command {
	var flags unitsFlags

	cmd := &cobra.Command{
		Use:   "to-human-units <base-units>",
		Short: "Convert integer base units into a human-readable amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := decimal.ParseBaseUnits(args[0])
			if err != nil {
				return err
			}

			var human string
			if cmd.Flags().Changed("decimals") {
				human, err = decimal.ToHumanUnits(base, flags.decimals)
				metrics.RecordConversion(metrics.DirectionToHuman, metrics.ConversionStatus(err))
			} else {
				addr, aerr := flags.tokenAddress()
				if aerr != nil {
					return aerr
				}
				human, err = opts.app.Converter().ConvertToCurrencyUnits(cmd.Context(), addr, base)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), human)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
