package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// FeePolicy - политика распределения суммы: комиссия платформы и доля аванса.
// Значения приходят из конфигурации деплоя.
type FeePolicy struct {
	FeeRate         decimal.Decimal // доля комиссии от total
	AdvanceRate     decimal.Decimal // доля аванса от vendorAmount
	MinorUnitFactor int64           // 100 для INR (пайсы)
	Places          int32           // до скольких знаков округляются комиссия и аванс
	Currency        string
}

// Amounts - разбивка суммы платежа.
type Amounts struct {
	Total           decimal.Decimal
	PlatformFee     decimal.Decimal
	VendorAmount    decimal.Decimal
	AdvanceAmount   decimal.Decimal
	RemainingAmount decimal.Decimal
	TotalMinor      int64
	Currency        string
}

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// Calculate считает разбивку. Функция чистая.
//
// Комиссия и аванс округляются half-away-from-zero до Places знаков,
// а дополняющая доля получается точным вычитанием, поэтому
// PlatformFee+VendorAmount == Total и AdvanceAmount+RemainingAmount == VendorAmount.
func (p FeePolicy) Calculate(total decimal.Decimal) (Amounts, error) {
	if total.IsNegative() {
		return Amounts{}, ErrInvalidAmount
	}

	minor := total.Mul(decimal.NewFromInt(p.MinorUnitFactor))
	if !minor.Equal(minor.Truncate(0)) || minor.GreaterThan(maxMinor) {
		// Больше знаков после запятой, чем позволяет минимальная единица валюты.
		return Amounts{}, ErrInvalidAmount
	}

	// Округление вверх не должно давать долю больше базы.
	fee := decimal.Min(total.Mul(p.FeeRate).Round(p.Places), total)
	vendor := total.Sub(fee)
	advance := decimal.Min(vendor.Mul(p.AdvanceRate).Round(p.Places), vendor)
	remaining := vendor.Sub(advance)

	return Amounts{
		Total:           total,
		PlatformFee:     fee,
		VendorAmount:    vendor,
		AdvanceAmount:   advance,
		RemainingAmount: remaining,
		TotalMinor:      minor.IntPart(),
		Currency:        p.Currency,
	}, nil
}
