package main

import (
	"encoding/json"
	"fmt"
	"os"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func complianceCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compliance",
		Short: "Record KYC and KYB review outcomes",
	}

	var kyc, kyb string
	set := &cobra.Command{
		Use:   "set [business-id]",
		Short: "Set a business's KYC and/or KYB status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid business id: %w", err)
			}
			if kyc == "" && kyb == "" {
				return fmt.Errorf("one of --kyc or --kyb is required")
			}
			if err := e.svcs.Business.SetCompliance(cmd.Context(), id,
				domain.ComplianceStatus(kyc), domain.ComplianceStatus(kyb)); err != nil {
				return err
			}
			business, err := e.svcs.Business.GetProfile(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "business %s: kyc=%s kyb=%s\n", id, business.KYCStatus, business.KYBStatus)
			return nil
		},
	}
	set.Flags().StringVar(&kyc, "kyc", "", "KYC status (PENDING, APPROVED, REJECTED)")
	set.Flags().StringVar(&kyb, "kyb", "", "KYB status (PENDING, APPROVED, REJECTED)")
	cmd.AddCommand(set)

	return cmd
}

func rateCardCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate-card",
		Short: "Manage negotiated pricing for corporate businesses",
	}

	var file string
	set := &cobra.Command{
		Use:   "set [business-id]",
		Short: "Replace a business's rate card with the one in --file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid business id: %w", err)
			}
			var setting domain.Setting
			if err := readJSON(file, &setting); err != nil {
				return err
			}
			saved, err := e.svcs.Business.UpsertRateCard(cmd.Context(), id, setting)
			if err != nil {
				return err
			}
			return e.print(saved)
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "JSON rate card (card_fee, bills_fee, transfer_fee, inflow_fee)")
	_ = set.MarkFlagRequired("file")
	cmd.AddCommand(set)

	return cmd
}

func providerCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage provider default pricing",
	}

	var file string
	var inactive bool
	set := &cobra.Command{
		Use:   "set [name]",
		Short: "Store a provider's default fee schedules from --file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, ok := e.infra.Gateways.Gateway(name); !ok {
				return fmt.Errorf("unknown provider %q (configured: %v)", name, e.infra.Gateways.Names())
			}
			var p domain.Provider
			if err := readJSON(file, &p); err != nil {
				return err
			}
			for _, sched := range []*domain.FeeSchedule{&p.VaceInflow, &p.VaceOutflow} {
				for _, block := range []*domain.ChargeBlock{&sched.Transfer, &sched.Card, &sched.Bills} {
					if err := service.ValidateBlock(block); err != nil {
						return err
					}
				}
			}

			repo := e.infra.Repos.Providers
			existing, err := repo.GetByName(cmd.Context(), name)
			if err != nil {
				return fmt.Errorf("get provider: %w", err)
			}
			p.ID = uuid.New()
			if existing != nil {
				p.ID = existing.ID
			}
			p.Name = name
			p.Active = !inactive
			if err := repo.Upsert(cmd.Context(), &p); err != nil {
				return fmt.Errorf("store provider: %w", err)
			}
			return e.print(p)
		},
	}
	set.Flags().StringVarP(&file, "file", "f", "", "JSON fee schedules (vace_inflow, vace_outflow)")
	set.Flags().BoolVar(&inactive, "inactive", false, "Store the provider as inactive")
	_ = set.MarkFlagRequired("file")
	cmd.AddCommand(set)

	return cmd
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
