package domain

// DepthLevel analiza el arbitraje a una profundidad de capital específica.
type DepthLevel struct {
	DepthUSDC    float64 // capital analizado en USDC ($50, $100, $200, $500)
	AvgPriceYES  float64 // precio medio ponderado de YES a esta profundidad
	AvgPriceNO   float64 // precio medio ponderado de NO a esta profundidad
	Sum          float64 // AvgPriceYES + AvgPriceNO
	Profitable   bool    // Sum < 1.0
}

// ArbitrageOpportunity es una oportunidad de arbitraje sin riesgo detectada
// en un par YES/NO: comprar ambos tokens al best ask cuesta menos de $1.00,
// y uno de los dos siempre liquida a $1.00.
type ArbitrageOpportunity struct {
	YesTokenID   string
	NoTokenID    string
	Market       string
	YesPrice     float64
	NoPrice      float64
	CombinedCost float64
	ProfitPct    float64 // (1 - CombinedCost) / CombinedCost * 100

	// AtDepth analiza la misma oportunidad a profundidades de book mayores,
	// para saber cuánto capital puede desplegarse antes de que el fill
	// deje de ser rentable.
	AtDepth []DepthLevel
}

// Profit devuelve la ganancia garantizada en USD de desplegar amountUSD en
// esta oportunidad: amountUSD compra amountUSD/CombinedCost pares YES+NO,
// cada uno pagando 1 USD al resolverse.
func (o ArbitrageOpportunity) Profit(amountUSD float64) float64 {
	if o.CombinedCost <= 0 {
		return 0
	}
	return (1.0 - o.CombinedCost) / o.CombinedCost * amountUSD
}

// VolumeWeightedPrice calcula el precio medio ponderado por volumen
// para comprar hasta maxUSDC en USDC recorriendo los asks del book.
func VolumeWeightedPrice(asks []BookEntry, maxUSDC float64) float64 {
	if len(asks) == 0 || maxUSDC <= 0 {
		return 0
	}
	totalShares := 0.0
	totalCost := 0.0
	remaining := maxUSDC

	for _, ask := range asks {
		levelCost := ask.Size * ask.Price
		if levelCost <= remaining {
			totalShares += ask.Size
			totalCost += levelCost
			remaining -= levelCost
		} else {
			// Fill parcial de este nivel
			sharesToBuy := remaining / ask.Price
			totalShares += sharesToBuy
			totalCost += remaining
			break
		}
	}

	if totalShares == 0 {
		return 0
	}
	return totalCost / totalShares
}

// CheckArbitrage evalúa el best ask de un par YES/NO y devuelve una
// oportunidad si YES+NO < $1.00 con un profit por encima de minProfitPct.
// Devuelve (opp, false) si no hay oportunidad rentable.
func CheckArbitrage(yesTokenID, noTokenID, market string, yesBook, noBook OrderBook, minProfitPct float64) (ArbitrageOpportunity, bool) {
	yesPrice := yesBook.BestAsk()
	noPrice := noBook.BestAsk()
	if yesPrice <= 0 || noPrice <= 0 {
		return ArbitrageOpportunity{}, false
	}

	combined := yesPrice + noPrice
	if combined >= 1.0 {
		return ArbitrageOpportunity{}, false
	}

	profitPct := (1.0 - combined) / combined * 100
	if profitPct < minProfitPct {
		return ArbitrageOpportunity{}, false
	}

	opp := ArbitrageOpportunity{
		YesTokenID:   yesTokenID,
		NoTokenID:    noTokenID,
		Market:       market,
		YesPrice:     yesPrice,
		NoPrice:      noPrice,
		CombinedCost: combined,
		ProfitPct:    profitPct,
	}

	for _, depth := range []float64{50, 100, 200, 500} {
		avgYES := VolumeWeightedPrice(yesBook.Asks, depth)
		avgNO := VolumeWeightedPrice(noBook.Asks, depth)
		if avgYES == 0 || avgNO == 0 {
			break
		}
		sum := avgYES + avgNO
		opp.AtDepth = append(opp.AtDepth, DepthLevel{
			DepthUSDC:   depth,
			AvgPriceYES: avgYES,
			AvgPriceNO:  avgNO,
			Sum:         sum,
			Profitable:  sum < 1.0,
		})
	}

	return opp, true
}

// SplitUSD reparte amountUSD entre las dos patas YES/NO proporcionalmente
// a su precio, de forma que ambas piernas consuman la misma fracción del
// combined cost — replicando exactamente el ratio de compra usado para
// calcular CombinedCost.
func (o ArbitrageOpportunity) SplitUSD(amountUSD float64) (yesUSD, noUSD float64) {
	if o.CombinedCost <= 0 {
		return 0, 0
	}
	yesUSD = amountUSD * (o.YesPrice / o.CombinedCost)
	noUSD = amountUSD * (o.NoPrice / o.CombinedCost)
	return yesUSD, noUSD
}

// MaxProfitableDepth devuelve el mayor capital en USDC donde el arbitraje
// sigue siendo rentable según el análisis por profundidad.
func (o ArbitrageOpportunity) MaxProfitableDepth() float64 {
	max := 0.0
	for _, d := range o.AtDepth {
		if d.Profitable {
			max = d.DepthUSDC
		}
	}
	return max
}
