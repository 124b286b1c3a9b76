// Package commands 实现 xpool-signer 命令行
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xpool-finance/xpool-signer/internal/app"
	"github.com/xpool-finance/xpool-signer/internal/config"
	"github.com/xpool-finance/xpool-signer/pkg/logger"
)

// rootOptions 全局参数及运行时状态
type rootOptions struct {
	configPath string
	privateKey string
	backend    string
	logLevel   string

	app *app.App
}

// NewRootCmd 创建根命令
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "xpool-signer",
		Short:         "EIP-712 signing and token amount tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.setup(cmd); err != nil {
				_ = opts.teardown()
				return err
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "config file path (defaults apply when empty)")
	flags.StringVarP(&opts.privateKey, "key", "k", "", "signer private key hex, overrides signer.private_key")
	flags.StringVar(&opts.backend, "backend", "", "crypto backend: ethereum | decred")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level, overrides log.level")

	root.AddCommand(
		addressCmd(opts),
		digestCmd(opts),
		signCmd(opts),
		recoverCmd(opts),
		toBaseUnitsCmd(opts),
		toHumanUnitsCmd(opts),
		tokenCmd(opts),
		registryCmd(opts),
	)
	withTeardown(root, opts)

	return root
}

// withTeardown 包装所有子命令的 RunE, 无论成功失败都释放资源
// cobra 在 RunE 出错时不会执行 PersistentPostRunE
func withTeardown(cmd *cobra.Command, opts *rootOptions) {
	for _, c := range cmd.Commands() {
		withTeardown(c, opts)
	}
	if cmd.RunE == nil {
		return
	}
	run := cmd.RunE
	cmd.RunE = func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if terr := opts.teardown(); err == nil {
				err = terr
			}
		}()
		return run(cmd, args)
	}
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.privateKey != "" {
		cfg.Signer.PrivateKey = o.privateKey
	}
	if o.backend != "" {
		cfg.Signer.Backend = o.backend
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logOut := cmd.ErrOrStderr()
	if cfg.Log.Output == "stdout" {
		logOut = cmd.OutOrStdout()
	}
	l, err := logger.New(&cfg.Log, logOut)
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	logger.ReplaceGlobals(l)

	logger.Debug("config loaded",
		zap.String("path", o.configPath),
		zap.String("env", cfg.Service.Env),
		zap.Int64("chain_id", cfg.Chain.ChainID))

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	o.app = a
	return nil
}

func (o *rootOptions) teardown() error {
	defer logger.Sync()
	if o.app == nil {
		return nil
	}
	err := o.app.Close()
	o.app = nil
	return err
}

// readInput 读取文件内容，"-" 表示标准输入
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
