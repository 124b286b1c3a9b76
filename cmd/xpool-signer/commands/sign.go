package commands

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xpool-finance/xpool-signer/internal/metrics"
	"github.com/xpool-finance/xpool-signer/pkg/eip712"
	"github.com/xpool-finance/xpool-signer/pkg/logger"
	"github.com/xpool-finance/xpool-signer/pkg/signature"
)

func addressCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the signer address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := opts.app.Signer()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signer.Address().Hex())
			return nil
		},
	}
}

// loadTypedData 读取并解析 typed data，缺少 domain 时使用配置中的域
func (o *rootOptions) loadTypedData(cmd *cobra.Command, path string) (*eip712.TypedData, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	td, err := eip712.ParseTypedData(data, eip712.WithDefaultDomain(o.app.Domain()))
	if err != nil {
		metrics.RecordDigest(err)
		return nil, err
	}
	return td, nil
}

// encoder 有签名器时使用其后端的 keccak
func (o *rootOptions) encoder() *eip712.Encoder {
	if signer, err := o.app.Signer(); err == nil {
		return signer.Encoder()
	}
	return eip712.NewEncoder(nil)
}

func digestCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "digest <typed-data.json|->",
		Short: "Print domain separator, struct hash and signing digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			td, err := opts.loadTypedData(cmd, args[0])
			if err != nil {
				return err
			}

			enc := opts.encoder()
			separator, err := enc.DomainSeparator(td.Domain)
			if err != nil {
				metrics.RecordDigest(err)
				return err
			}
			structHash, err := enc.HashStruct(td.Types, td.PrimaryType, td.Message)
			if err != nil {
				metrics.RecordDigest(err)
				return err
			}
			digest, err := enc.Digest(td.Domain, td.Types, td.PrimaryType, td.Message)
			metrics.RecordDigest(err)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "domainSeparator: %s\n", separator.Hex())
			fmt.Fprintf(out, "structHash:      %s\n", structHash.Hex())
			fmt.Fprintf(out, "digest:          %s\n", digest.Hex())
			return nil
		},
	}
}

func signCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sign <typed-data.json|->",
		Short: "Sign typed data and print the signature with its r, s, v parts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := opts.app.Signer()
			if err != nil {
				return err
			}
			td, err := opts.loadTypedData(cmd, args[0])
			if err != nil {
				return err
			}

			sig, digest, err := signer.SignTypedData(td)
			metrics.RecordDigest(err)
			if err != nil {
				return err
			}

			logger.WithContext(cmd.Context()).Info("typed data signed",
				zap.String("signer", signer.Address().Hex()),
				zap.String("primary_type", td.PrimaryType),
				zap.String("digest", digest.Hex()))

			r, s, v := sig.RSV()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "digest:    %s\n", digest.Hex())
			fmt.Fprintf(out, "signature: %s\n", sig.Hex())
			fmt.Fprintf(out, "r:         %s\n", hexutil.Encode(r[:]))
			fmt.Fprintf(out, "s:         %s\n", hexutil.Encode(s[:]))
			fmt.Fprintf(out, "v:         %d\n", v)
			return nil
		},
	}
}

func recoverCmd(opts *rootOptions) *cobra.Command {
	var expect string

	cmd := &cobra.Command{
		Use:   "recover <typed-data.json|-> <signature>",
		Short: "Recover the address that signed typed data",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sig, err := signature.ParseHex(args[1])
			if err != nil {
				return err
			}
			td, err := opts.loadTypedData(cmd, args[0])
			if err != nil {
				return err
			}
			digest, err := opts.encoder().Digest(td.Domain, td.Types, td.PrimaryType, td.Message)
			metrics.RecordDigest(err)
			if err != nil {
				return err
			}

			addr, err := signature.RecoverAddress(digest[:], sig)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), addr.Hex())

			if expect != "" {
				if !common.IsHexAddress(expect) {
					return fmt.Errorf("--expect %q is not an address", expect)
				}
				if addr != common.HexToAddress(expect) {
					return fmt.Errorf("signature recovers to %s, expected %s", addr.Hex(), common.HexToAddress(expect).Hex())
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&expect, "expect", "", "fail unless the signature recovers to this address")
	return cmd
}
