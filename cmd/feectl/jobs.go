package main

import (
	"fmt"
	"time"

	"fee-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func settleCmd(e *env) *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "Settle unsettled payment link revenue into business wallets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !e.inline(now) {
				return e.enqueue(cmd, ports.Job{
					ID:   fmt.Sprintf("settlement:%d", time.Now().Unix()),
					Kind: ports.JobSettlement,
				})
			}
			history, err := e.svcs.Settlement.Run(cmd.Context())
			if err != nil {
				return err
			}
			if history == nil {
				fmt.Fprintln(e.out, "nothing to settle")
				return nil
			}
			return e.print(history)
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "Run in this process instead of queueing a job")

	return cmd
}

func reconcileCmd(e *env) *cobra.Command {
	var now bool

	cmd := &cobra.Command{
		Use:   "reconcile [provider]",
		Short: "Poll a provider for open transactions and advance the ones that moved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			provider := args[0]
			if _, ok := e.infra.Gateways.Gateway(provider); !ok {
				return fmt.Errorf("unknown provider %q (configured: %v)", provider, e.infra.Gateways.Names())
			}
			if !e.inline(now) {
				return e.enqueue(cmd, ports.Job{
					ID:      fmt.Sprintf("reconcile:%s:%d", provider, time.Now().Unix()),
					Kind:    ports.JobReconcile,
					Payload: []byte(provider),
				})
			}
			report, err := e.svcs.Reconcile.ReconcileProvider(cmd.Context(), provider)
			if err != nil {
				return err
			}
			return e.print(report)
		},
	}
	cmd.Flags().BoolVar(&now, "now", false, "Run in this process instead of queueing a job")

	return cmd
}

func webhookCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Manage outcome webhooks",
	}

	var now bool
	deliver := &cobra.Command{
		Use:   "deliver [transaction-id]",
		Short: "Queue (or send) the outcome webhook for a finished transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id: %w", err)
			}
			if !e.inline(now) {
				return e.enqueue(cmd, ports.Job{
					ID:          fmt.Sprintf("%s:manual:%d", id, time.Now().Unix()),
					Kind:        ports.JobWebhookDelivery,
					Payload:     []byte(id.String()),
					MaxAttempts: e.cfg.Webhook.MaxAttempts,
				})
			}
			if err := e.svcs.Notifier.Deliver(cmd.Context(), id, 1); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "webhook for %s delivered\n", id)
			return nil
		},
	}
	deliver.Flags().BoolVar(&now, "now", false, "Send from this process instead of queueing a job")
	cmd.AddCommand(deliver)

	return cmd
}

func (e *env) enqueue(cmd *cobra.Command, job ports.Job) error {
	if err := e.infra.Jobs.Enqueue(cmd.Context(), job); err != nil {
		return fmt.Errorf("enqueue %s: %w", job.Kind, err)
	}
	fmt.Fprintf(e.out, "queued %s job %s\n", job.Kind, job.ID)
	return nil
}
