package recon

import "github.com/shopspring/decimal"

// UnitTotal convierte un conteo en unidades de manejo a una cantidad única.
// Total = Base + Pallets*FactorPallet + Cajas*FactorCaja, redondeado a 3 decimales.
// Los factores provienen del maestro de materiales; si faltan o no son
// positivos se toma 1.
func UnitTotal(base, pallets, crates, palletFactor, crateFactor decimal.Decimal) decimal.Decimal {
	pf := sanitizeFactor(palletFactor)
	cf := sanitizeFactor(crateFactor)
	total := base.Add(pallets.Mul(pf)).Add(crates.Mul(cf))
	return total.Round(3)
}

// UnitEntry estado de captura de una vista agregada: cantidad base más
// conteos de pallets y cajas. Es unidireccional una vez sobrescrito el total
// a mano: editar base/pallets/cajas después vuelve al cálculo normal.
type UnitEntry struct {
	Base         decimal.Decimal
	Pallets      decimal.Decimal
	Crates       decimal.Decimal
	PalletFactor decimal.Decimal
	CrateFactor  decimal.Decimal
}

// Total cantidad resultante de la captura actual.
func (e *UnitEntry) Total() decimal.Decimal {
	return UnitTotal(e.Base, e.Pallets, e.Crates, e.PalletFactor, e.CrateFactor)
}

// Override el operario editó el total directamente: pallets y cajas se
// ponen en cero y la base pasa a ser el total ingresado.
func (e *UnitEntry) Override(total decimal.Decimal) {
	e.Base = total
	e.Pallets = decimal.Zero
	e.Crates = decimal.Zero
}

// sanitizeFactor normaliza un factor de conversión: 1 si no es positivo.
func sanitizeFactor(f decimal.Decimal) decimal.Decimal {
	if f.LessThanOrEqual(decimal.Zero) {
		return decimal.NewFromInt(1)
	}
	return f
}
