package commission

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"kuberafi/internal/models"
)

// Input carries the order facts the calculator needs. ReferenceRate is the
// market rate captured at intake and may be absent.
type Input struct {
	BaseAmount    decimal.Decimal
	AppliedRate   decimal.Decimal
	ReferenceRate *decimal.Decimal
	BaseCurrency  string
	QuoteCurrency string
}

// Config selects the model. A nil SpreadWeight counts as 1.
type Config struct {
	Model          string
	PercentageRate decimal.Decimal
	SpreadWeight   *decimal.Decimal
	// Source names where the config came from, e.g. "pair", "house", "default".
	Source string
}

type Result struct {
	Model               string
	Amount              decimal.Decimal
	Currency            string
	PercentageComponent decimal.Decimal
	SpreadComponent     decimal.Decimal
}

// Calculate is pure. Missing rates produce zero components; a negative spread
// is returned as is.
func Calculate(in Input, cfg Config) Result {
	model := normalizeModel(cfg.Model)
	res := Result{
		Model:               model,
		PercentageComponent: decimal.Zero,
		SpreadComponent:     decimal.Zero,
	}

	if model == models.CommissionModelPercentage || model == models.CommissionModelMixed {
		res.PercentageComponent = in.BaseAmount.Mul(cfg.PercentageRate)
	}
	if model == models.CommissionModelSpread || model == models.CommissionModelMixed {
		if in.ReferenceRate != nil {
			weight := decimal.NewFromInt(1)
			if cfg.SpreadWeight != nil {
				weight = *cfg.SpreadWeight
			}
			res.SpreadComponent = in.AppliedRate.Sub(*in.ReferenceRate).Mul(in.BaseAmount).Mul(weight)
		}
	}

	res.Amount = res.PercentageComponent.Add(res.SpreadComponent)
	if model == models.CommissionModelPercentage {
		res.Currency = strings.ToUpper(in.BaseCurrency)
	} else {
		res.Currency = strings.ToUpper(in.QuoteCurrency)
	}
	return res
}

func normalizeModel(model string) string {
	switch strings.ToLower(strings.TrimSpace(model)) {
	case models.CommissionModelSpread:
		return models.CommissionModelSpread
	case models.CommissionModelMixed:
		return models.CommissionModelMixed
	default:
		return models.CommissionModelPercentage
	}
}

type breakdown struct {
	Source              string  `json:"source"`
	PercentageRate      string  `json:"percentage_rate"`
	PercentageComponent string  `json:"percentage_component"`
	SpreadWeight        string  `json:"spread_weight"`
	SpreadComponent     string  `json:"spread_component"`
	AppliedRate         string  `json:"applied_rate"`
	ReferenceRate       *string `json:"reference_rate"`
	BaseAmount          string  `json:"base_amount"`
}

// Breakdown renders the inputs and components stored next to the commission.
func Breakdown(in Input, cfg Config, res Result) datatypes.JSON {
	weight := "1"
	if cfg.SpreadWeight != nil {
		weight = cfg.SpreadWeight.String()
	}
	b := breakdown{
		Source:              cfg.Source,
		PercentageRate:      cfg.PercentageRate.String(),
		PercentageComponent: res.PercentageComponent.String(),
		SpreadWeight:        weight,
		SpreadComponent:     res.SpreadComponent.String(),
		AppliedRate:         in.AppliedRate.String(),
		BaseAmount:          in.BaseAmount.String(),
	}
	if in.ReferenceRate != nil {
		v := in.ReferenceRate.String()
		b.ReferenceRate = &v
	}
	raw, _ := json.Marshal(b)
	return datatypes.JSON(raw)
}

// InputFor builds calculator input from an order and its pair.
func InputFor(order *models.Order, pair *models.CurrencyPair) Input {
	in := Input{
		BaseAmount:    order.BaseAmount,
		AppliedRate:   order.AppliedRate,
		ReferenceRate: order.MarketRate,
	}
	if pair != nil {
		in.BaseCurrency = pair.BaseCurrency
		in.QuoteCurrency = pair.QuoteCurrency
	}
	return in
}
