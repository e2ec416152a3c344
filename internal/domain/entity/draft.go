package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Draft edición local de un operario aún no confirmada por el backend.
// Snapshot desnormalizado: contiene todo lo necesario para reconstruir la
// petición de actualización sin volver a consultar la jerarquía.
//
// Invariante: existe un Draft si y solo si su posición tiene un valor
// ingresado localmente sin sincronizar. Se crea en cada edición, se pisa al
// re-editar la misma posición y se elimina solo tras la sincronización
// confirmada de esa posición exacta.
type Draft struct {
	UserID      string
	ContainerID string
	GroupID     string
	LineID      string
	Material    string
	Quantity    decimal.Decimal // cantidad ingresada por el operario
	TargetQty   decimal.Decimal // objetivo original (informativo, nunca pisa al backend)
	Unit        string
	Approved    bool
	Reason      string
	UpdatedAt   time.Time
}

// Key clave lógica del borrador: usuario + "_" + posición.
func (d *Draft) Key() string {
	return d.UserID + "_" + d.LineID
}

// LineKey identidad de la posición a la que pertenece el borrador.
func (d *Draft) LineKey() LineKey {
	return LineKey{ContainerID: d.ContainerID, GroupID: d.GroupID, LineID: d.LineID}
}
