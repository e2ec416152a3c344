package recon

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/conteo-api/internal/domain"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
)

// StatusOf deriva el estado de una posición a partir de sus datos.
// Máquina de 3 estados sin transiciones persistidas: se recalcula siempre.
func StatusOf(line *entity.LineItem) string {
	switch {
	case line.Approved:
		return entity.LineStatusCompleted
	case line.CountedQty.IsZero():
		return entity.LineStatusPending
	default:
		return entity.LineStatusInProgress
	}
}

// SeverityOf deriva la severidad visual de una posición, independiente del
// estado de la máquina. counted==0 con aprobación es un estado contradictorio
// que se marca como error para atención del operario.
func SeverityOf(line *entity.LineItem) string {
	switch {
	case line.CountedQty.IsZero() && line.Approved:
		return entity.SeverityError
	case line.CountedQty.IsZero():
		return entity.SeverityWarning
	case !line.CountedQty.Equal(line.TargetQty):
		return entity.SeverityError
	default:
		return entity.SeveritySuccess
	}
}

// CheckApproval valida la puerta de aprobación: una posición solo puede
// pasar a COMPLETED si la cantidad coincide con el objetivo O hay un motivo
// no vacío. Si no, se rechaza localmente sin llamar al backend.
func CheckApproval(counted, target decimal.Decimal, reason string) error {
	if counted.Equal(target) || reason != "" {
		return nil
	}
	return domain.ErrApprovalNeedsReason
}
