package service

import (
	"context"
	"fmt"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"

	"github.com/shopspring/decimal"
)

type rateCell struct {
	setting  func(s *domain.Setting) *domain.ChargeBlock
	provider func(p *domain.Provider) *domain.ChargeBlock
}

type cellKey struct {
	category domain.Category
	kind     domain.ChargeKind
}

var rateTable = map[cellKey]rateCell{
	{domain.CategoryInflow, domain.KindTransfer}: {
		setting:  func(s *domain.Setting) *domain.ChargeBlock { return s.InflowFee },
		provider: func(p *domain.Provider) *domain.ChargeBlock { return &p.VaceInflow.Transfer },
	},
	{domain.CategoryInflow, domain.KindCard}: {
		setting:  func(s *domain.Setting) *domain.ChargeBlock { return s.CardFee },
		provider: func(p *domain.Provider) *domain.ChargeBlock { return &p.VaceInflow.Card },
	},
	{domain.CategoryInflow, domain.KindBills}: {
		setting:  func(s *domain.Setting) *domain.ChargeBlock { return s.BillsFee },
		provider: func(p *domain.Provider) *domain.ChargeBlock { return &p.VaceInflow.Bills },
	},
	{domain.CategoryOutflow, domain.KindTransfer}: {
		setting:  func(s *domain.Setting) *domain.ChargeBlock { return s.TransferFee },
		provider: func(p *domain.Provider) *domain.ChargeBlock { return &p.VaceOutflow.Transfer },
	},
	{domain.CategoryOutflow, domain.KindCard}: {
		setting:  func(s *domain.Setting) *domain.ChargeBlock { return s.CardFee },
		provider: func(p *domain.Provider) *domain.ChargeBlock { return &p.VaceOutflow.Card },
	},
	{domain.CategoryOutflow, domain.KindBills}: {
		setting:  func(s *domain.Setting) *domain.ChargeBlock { return s.BillsFee },
		provider: func(p *domain.Provider) *domain.ChargeBlock { return &p.VaceOutflow.Bills },
	},
}

// resolvers picks how a cell is resolved per business type. Types missing here fall
// back to the provider default.
var resolvers = map[domain.BusinessType]func(setting, provider *domain.ChargeBlock) domain.Charge{
	domain.BusinessCorporate: overlay,
}

// RateCardResolver turns a provider's default pricing and a business rate card into
// the concrete fee structure for one transaction.
type RateCardResolver struct {
	providers ports.ProviderRepository
	settings  ports.SettingRepository
}

// NewRateCardResolver creates a new RateCardResolver.
func NewRateCardResolver(providers ports.ProviderRepository, settings ports.SettingRepository) *RateCardResolver {
	return &RateCardResolver{providers: providers, settings: settings}
}

// ResolveFor loads the provider and the business rate card and resolves the cell.
func (r *RateCardResolver) ResolveFor(ctx context.Context, providerName string, b *domain.Business, cat domain.Category, kind domain.ChargeKind) (domain.Charge, error) {
	provider, err := r.providers.GetByName(ctx, providerName)
	if err != nil {
		return domain.Charge{}, apperror.ErrDatabaseError(fmt.Errorf("get provider: %w", err))
	}
	if provider == nil {
		return domain.Charge{}, apperror.ErrNotFound("provider")
	}

	var setting *domain.Setting
	if b.NegotiatesPricing() {
		setting, err = r.settings.GetByBusinessID(ctx, b.ID)
		if err != nil {
			return domain.Charge{}, apperror.ErrDatabaseError(fmt.Errorf("get setting: %w", err))
		}
	}
	return Resolve(provider, setting, b.BusinessType, cat, kind)
}

// Resolve selects the (category, kind) cell and applies the business type's rule.
// A nil setting resolves to the provider default.
func Resolve(provider *domain.Provider, setting *domain.Setting, bt domain.BusinessType, cat domain.Category, kind domain.ChargeKind) (domain.Charge, error) {
	cell, ok := rateTable[cellKey{cat, kind}]
	if !ok {
		return domain.Charge{}, apperror.Validation(fmt.Sprintf("no rate card for %s %s", cat, kind))
	}
	providerBlock := cell.provider(provider)

	var settingBlock *domain.ChargeBlock
	if setting != nil {
		settingBlock = cell.setting(setting)
	}
	if fn, ok := resolvers[bt]; ok {
		return fn(settingBlock, providerBlock), nil
	}
	return overlay(nil, providerBlock), nil
}

// overlay takes each field from setting when defined there, else from provider.
func overlay(setting, provider *domain.ChargeBlock) domain.Charge {
	if setting == nil {
		setting = &domain.ChargeBlock{}
	}
	if provider == nil {
		provider = &domain.ChargeBlock{}
	}
	return domain.Charge{
		ChargeFee:      pickBool(setting.ChargeFee, provider.ChargeFee, true),
		Type:           pickKind(setting.Type, provider.Type, domain.FeeFlat),
		Value:          pickDecimal(setting.Value, provider.Value),
		ProviderFee:    pickDecimal(setting.ProviderFee, provider.ProviderFee),
		Markup:         pickDecimal(setting.Markup, provider.Markup),
		ProviderMarkup: pickDecimal(setting.ProviderMarkup, provider.ProviderMarkup),
		Capped:         pickDecimal(setting.Capped, provider.Capped),
		ProviderCap:    pickDecimal(setting.ProviderCap, provider.ProviderCap),
		VatType:        pickKind(setting.VatType, provider.VatType, domain.FeeFlat),
		VatValue:       pickDecimal(setting.VatValue, provider.VatValue),
		StampDuty:      pickDecimal(setting.StampDuty, provider.StampDuty),
	}
}

func pickBool(a, b *bool, def bool) bool {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return def
}

func pickKind(a, b *domain.FeeKind, def domain.FeeKind) domain.FeeKind {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return def
}

func pickDecimal(a, b *decimal.Decimal) decimal.Decimal {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return decimal.Zero
}

// Breakdown applies a resolved charge to an amount. Markups are carried on the
// resolved charge for reporting and do not move the fee.
func Breakdown(amount decimal.Decimal, c domain.Charge) domain.Breakdown {
	out := domain.Breakdown{
		Amount:       amount,
		Fee:          decimal.Zero,
		ProviderCost: decimal.Zero,
		Revenue:      decimal.Zero,
		Vat:          decimal.Zero,
		StampDuty:    decimal.Zero,
		TotalCharge:  decimal.Zero,
	}
	if !c.ChargeFee {
		return out
	}

	out.Fee = applyFee(amount, c.Type, c.Value, c.Capped)
	out.ProviderCost = applyFee(amount, c.Type, c.ProviderFee, c.ProviderCap)
	out.Revenue = out.Fee.Sub(out.ProviderCost)
	if c.VatType == domain.FeePercentage {
		out.Vat = domain.RoundMoney(domain.Percent(out.Fee, c.VatValue))
	} else {
		out.Vat = domain.RoundMoney(c.VatValue)
	}
	out.StampDuty = domain.RoundMoney(c.StampDuty)
	out.TotalCharge = out.Fee.Add(out.Vat).Add(out.StampDuty)
	return out
}

func applyFee(amount decimal.Decimal, kind domain.FeeKind, value, cap decimal.Decimal) decimal.Decimal {
	fee := value
	if kind == domain.FeePercentage {
		fee = domain.Percent(amount, value)
	}
	if cap.IsPositive() {
		fee = domain.MinDecimal(fee, cap)
	}
	return domain.RoundMoney(fee)
}

// ValidateBlock rejects rate card entries that cannot price a transaction.
func ValidateBlock(b *domain.ChargeBlock) error {
	if b == nil {
		return nil
	}
	if b.Type != nil && *b.Type != domain.FeeFlat && *b.Type != domain.FeePercentage {
		return apperror.Validation(fmt.Sprintf("unknown fee type %q", *b.Type))
	}
	if b.VatType != nil && *b.VatType != domain.FeeFlat && *b.VatType != domain.FeePercentage {
		return apperror.Validation(fmt.Sprintf("unknown vat type %q", *b.VatType))
	}
	if (b.VatType == nil) != (b.VatValue == nil) {
		return apperror.Validation("vat_type and vat_value must be set together")
	}

	pct := b.Type != nil && *b.Type == domain.FeePercentage
	for name, v := range map[string]*decimal.Decimal{
		"value":        b.Value,
		"provider_fee": b.ProviderFee,
	} {
		if err := checkRate(name, v, pct); err != nil {
			return err
		}
	}
	for name, v := range map[string]*decimal.Decimal{
		"markup":          b.Markup,
		"provider_markup": b.ProviderMarkup,
		"capped":          b.Capped,
		"provider_cap":    b.ProviderCap,
		"stamp_duty":      b.StampDuty,
	} {
		if err := checkRate(name, v, false); err != nil {
			return err
		}
	}
	return checkRate("vat_value", b.VatValue, b.VatType != nil && *b.VatType == domain.FeePercentage)
}

var hundredPercent = decimal.NewFromInt(100)

func checkRate(name string, v *decimal.Decimal, percentage bool) error {
	if v == nil {
		return nil
	}
	if v.IsNegative() {
		return apperror.Validation(fmt.Sprintf("%s must not be negative", name))
	}
	if percentage && v.GreaterThan(hundredPercent) {
		return apperror.Validation(fmt.Sprintf("%s must be between 0 and 100", name))
	}
	return nil
}
