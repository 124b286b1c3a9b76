package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xpool-finance/xpool-signer/internal/registry"
	"github.com/xpool-finance/xpool-signer/pkg/logger"
)

func registryCmd(opts *rootOptions) *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Read and write deployed contract addresses",
	}
	cmd.PersistentFlags().StringVarP(&network, "network", "n", "", "network name, overrides registry.network")

	networkOf := func() string {
		if network != "" {
			return network
		}
		return opts.app.Network()
	}

	get := &cobra.Command{
		Use:   "get <contractId>",
		Short: "Print the address registered for a contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.app.Registry()
			if err != nil {
				return err
			}
			entry, err := store.Get(cmd.Context(), registry.Key(args[0], networkOf()))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address:  %s\n", entry.Address)
			if entry.Deployer != "" {
				fmt.Fprintf(out, "deployer: %s\n", entry.Deployer)
			}
			return nil
		},
	}

	var deployer string
	set := &cobra.Command{
		Use:   "set <contractId> <address>",
		Short: "Register the address of a deployed contract",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.app.Registry()
			if err != nil {
				return err
			}
			key := registry.Key(args[0], networkOf())
			if err := store.Set(cmd.Context(), key, registry.Entry{Address: args[1], Deployer: deployer}); err != nil {
				return err
			}

			logger.Info("contract registered",
				zap.String("key", key.String()),
				zap.String("address", args[1]),
				zap.String("deployer", deployer))
			return nil
		},
	}
	set.Flags().StringVar(&deployer, "deployer", "", "address that deployed the contract")

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered contracts of the network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.app.Registry()
			if err != nil {
				return err
			}
			records, err := store.List(cmd.Context(), networkOf())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CONTRACT\tNETWORK\tADDRESS\tDEPLOYER")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Key.ContractID, r.Key.Network, r.Entry.Address, r.Entry.Deployer)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(get, set, list)
	return cmd
}
