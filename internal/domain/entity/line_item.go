package entity

import "github.com/shopspring/decimal"

// Estados derivados de una posición. Nunca se persisten: se recalculan
// siempre a partir de (contada, aprobada) sobre datos frescos.
const (
	LineStatusPending    = "PENDING"     // sin aprobar, cantidad contada en cero
	LineStatusInProgress = "IN_PROGRESS" // sin aprobar, cantidad contada distinta de cero
	LineStatusCompleted  = "COMPLETED"   // aprobada (re-editable, requiere re-confirmación)
)

// Severidades visuales de una posición (independientes del estado).
const (
	SeveritySuccess = "SUCCESS"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
)

// LineKey identidad completa de una posición dentro de la jerarquía
// contenedor → agrupación → posición. Se usa como clave de índice en lugar
// de referencias vivas entre objetos.
type LineKey struct {
	ContainerID string
	GroupID     string
	LineID      string
}

// LineItem posición transaccional de un material dentro de una agrupación
// (hoja de la jerarquía). Propiedad de su agrupación; se reemplaza completa
// en cada recarga autoritativa.
type LineItem struct {
	ContainerID  string
	GroupID      string
	LineID       string
	Material     string
	MaterialText string
	Category     string
	TargetQty    decimal.Decimal // cantidad objetivo del backend; nunca la pisa un borrador
	CountedQty   decimal.Decimal // cantidad contada/recibida
	Unit         string
	PalletFactor decimal.Decimal // unidades por pallet según maestro de materiales
	CrateFactor  decimal.Decimal // unidades por caja según maestro de materiales
	Approved     bool
	Reason       string // motivo de diferencia; vacío = sin motivo
}

// Key devuelve la identidad completa de la posición.
func (l *LineItem) Key() LineKey {
	return LineKey{ContainerID: l.ContainerID, GroupID: l.GroupID, LineID: l.LineID}
}
