package recon

import "github.com/shopspring/decimal"

// Distribute reparte la cantidad ingresada en una vista agregada entre sus
// posiciones contribuyentes, proporcional a los objetivos originales.
//
// Reglas:
//  1. V se trunca (floor) una sola vez, a nivel agregado, antes de repartir.
//  2. Si T = Σ targets > 0: la parte de la posición i es floor(V * t_i / T).
//  3. Si T == 0: parte igual floor(V/n) para todas.
//  4. El resto (floor(V) - Σ partes) se suma completo a la ÚLTIMA posición
//     en el orden de descubrimiento de la lista.
//
// Garantiza Σ resultado == floor(V) para todo n >= 1 y V >= 0; las salidas
// son siempre enteras aunque V no lo sea.
func Distribute(targets []decimal.Decimal, entered decimal.Decimal) []decimal.Decimal {
	n := len(targets)
	if n == 0 {
		return nil
	}
	v := entered.Floor()

	total := decimal.Zero
	for _, t := range targets {
		total = total.Add(t)
	}

	shares := make([]decimal.Decimal, n)
	assigned := decimal.Zero
	if total.GreaterThan(decimal.Zero) {
		for i, t := range targets {
			shares[i] = v.Mul(t).Div(total).Floor()
			assigned = assigned.Add(shares[i])
		}
	} else {
		equal := v.Div(decimal.NewFromInt(int64(n))).Floor()
		for i := range shares {
			shares[i] = equal
			assigned = assigned.Add(equal)
		}
	}

	// El resto completo a la última posición del orden de recorrido
	remainder := v.Sub(assigned)
	shares[n-1] = shares[n-1].Add(remainder)
	return shares
}
