// Command feectl runs operator actions against a fee engine deployment.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"fee-engine/config"
	"fee-engine/internal/app"
	"fee-engine/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// env is built once per invocation, before the subcommand runs.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	infra *app.Infra
	svcs  *app.Services
	out   io.Writer
}

// inline reports whether jobs must run in this process instead of being queued.
func (e *env) inline(forced bool) bool {
	return forced || e.cfg.Jobs.Driver == "memory"
}

func (e *env) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (e *env) close() {
	if e.infra != nil {
		e.infra.Close()
	}
}

func main() {
	e := &env{out: os.Stdout}
	root := rootCmd(e)
	err := root.ExecuteContext(context.Background())
	e.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(e *env) *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "feectl",
		Short:         "Operator tooling for the fee engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if e.svcs != nil {
				return nil
			}
			return e.connect(cmd.Context(), cfgPath)
		},
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to config file")

	root.AddCommand(settleCmd(e))
	root.AddCommand(reconcileCmd(e))
	root.AddCommand(webhookCmd(e))
	root.AddCommand(complianceCmd(e))
	root.AddCommand(rateCardCmd(e))
	root.AddCommand(providerCmd(e))

	return root
}

func (e *env) connect(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := logger.New("feectl", cfg.Log.Level, cfg.Log.Pretty)

	infra, err := app.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	svcs, err := app.Build(cfg, infra, log)
	if err != nil {
		infra.Close()
		return err
	}

	e.cfg, e.log, e.infra, e.svcs = cfg, log, infra, svcs
	return nil
}
