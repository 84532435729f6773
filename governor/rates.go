package governor

// Rate is a model's price per 1,000 tokens, split by direction.
type Rate struct {
	InputPer1K  float64
	OutputPer1K float64
}

// Cost computes the currency cost of a call from actual token counts.
func (r Rate) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*r.InputPer1K + float64(outputTokens)/1000*r.OutputPer1K
}

// DefaultRate is applied to models missing from the rate table. Priced at
// the high end so an unknown model errs toward counting against the budget
// rather than failing the request.
var DefaultRate = Rate{InputPer1K: 0.0025, OutputPer1K: 0.01}

// defaultRates holds per-model pricing. Prices are per 1K tokens, USD.
var defaultRates = map[string]Rate{
	"gpt-4o":        {InputPer1K: 0.0025, OutputPer1K: 0.01},
	"gpt-4o-mini":   {InputPer1K: 0.00015, OutputPer1K: 0.0006},
	"gpt-4-turbo":   {InputPer1K: 0.01, OutputPer1K: 0.03},
	"gpt-3.5-turbo": {InputPer1K: 0.0005, OutputPer1K: 0.0015},
	"o1":            {InputPer1K: 0.015, OutputPer1K: 0.06},
	"o1-mini":       {InputPer1K: 0.003, OutputPer1K: 0.012},

	"claude-3-5-sonnet-20241022": {InputPer1K: 0.003, OutputPer1K: 0.015},
	"claude-3-5-haiku-20241022":  {InputPer1K: 0.0008, OutputPer1K: 0.004},
	"claude-3-opus-20240229":     {InputPer1K: 0.015, OutputPer1K: 0.075},

	"gemini-2.0-flash": {InputPer1K: 0.0001, OutputPer1K: 0.0004},
	"gemini-1.5-pro":   {InputPer1K: 0.00125, OutputPer1K: 0.005},

	"text-embedding-3-small": {InputPer1K: 0.00002},
	"text-embedding-3-large": {InputPer1K: 0.00013},
}

// rateFor resolves a model's rate, falling back to DefaultRate for unknown
// models instead of failing.
func (g *Governor) rateFor(model string) Rate {
	if rate, ok := g.config.Rates[model]; ok {
		return rate
	}
	if rate, ok := defaultRates[model]; ok {
		return rate
	}
	return g.config.DefaultRate
}
