package provider

// price is USD per million tokens, input and output.
type price struct {
	in  float64
	out float64
}

var priceTable = map[string]price{
	"claude-3-opus-20240229":     {15.0, 75.0},
	"claude-3-sonnet-20240229":   {3.0, 15.0},
	"claude-3-haiku-20240307":    {0.25, 1.25},
	"claude-3-5-sonnet-20241022": {3.0, 15.0},
	"claude-3-5-haiku-20241022":  {0.80, 4.0},
	"claude-sonnet-4-5-20250929": {3.0, 15.0},
	"claude-opus-4-6":            {15.0, 75.0},

	"gpt-4o":      {2.50, 10.0},
	"gpt-4o-mini": {0.15, 0.60},
	"gpt-4-turbo": {10.0, 30.0},
	"gpt-4":       {30.0, 60.0},
	"o1":          {15.0, 60.0},
	"o1-mini":     {3.0, 12.0},
	"o3-mini":     {1.10, 4.40},
}

// EstimateCost returns the USD cost of usage against the given model,
// or 0 when the model has no entry in the pricing table.
func EstimateCost(model string, usage Usage) float64 {
	p, ok := priceTable[model]
	if !ok {
		return 0
	}
	return float64(usage.InputTokens)/1e6*p.in + float64(usage.OutputTokens)/1e6*p.out
}
