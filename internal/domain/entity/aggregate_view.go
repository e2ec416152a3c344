package entity

import "github.com/shopspring/decimal"

// AggregateView vista efímera por código de material que combina todas las
// posiciones contribuyentes de las agrupaciones seleccionadas (puede cruzar
// varias agrupaciones). Nunca se persiste; se reconstruye en cada cambio de
// selección.
type AggregateView struct {
	Material     string
	MaterialText string
	Unit         string
	TargetQty    decimal.Decimal // suma de objetivos de las contribuyentes
	CountedQty   decimal.Decimal // suma de contadas / cantidad ingresada
	Approved     bool            // true solo si TODAS las contribuyentes están aprobadas
	Reason       string          // último motivo no vacío en orden de recorrido
	PalletFactor decimal.Decimal
	CrateFactor  decimal.Decimal

	// Lines claves de las posiciones contribuyentes en el orden de
	// descubrimiento al recorrer las agrupaciones. El distribuidor depende
	// de este orden: el resto de la división va a la última.
	Lines []LineKey
}
