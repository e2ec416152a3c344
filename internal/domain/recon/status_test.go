package recon_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/conteo-api/internal/domain"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
	"github.com/jhoicas/conteo-api/internal/domain/recon"
)

func line(counted, target float64, approved bool) *entity.LineItem {
	return &entity.LineItem{
		CountedQty: decimal.NewFromFloat(counted),
		TargetQty:  decimal.NewFromFloat(target),
		Approved:   approved,
	}
}

func TestStatusOf_MaquinaDeTresEstados(t *testing.T) {
	assert.Equal(t, entity.LineStatusPending, recon.StatusOf(line(0, 10, false)))
	assert.Equal(t, entity.LineStatusInProgress, recon.StatusOf(line(4, 10, false)))
	assert.Equal(t, entity.LineStatusCompleted, recon.StatusOf(line(10, 10, true)))
	// Aprobada domina aunque la cantidad sea cero
	assert.Equal(t, entity.LineStatusCompleted, recon.StatusOf(line(0, 10, true)))
}

func TestSeverityOf_DerivacionDeExcepciones(t *testing.T) {
	// contada == 0 y aprobada → estado contradictorio, ERROR
	assert.Equal(t, entity.SeverityError, recon.SeverityOf(line(0, 10, true)))
	// contada == 0 sin aprobar → WARNING
	assert.Equal(t, entity.SeverityWarning, recon.SeverityOf(line(0, 10, false)))
	// contada != objetivo (y != 0) → ERROR
	assert.Equal(t, entity.SeverityError, recon.SeverityOf(line(7, 10, false)))
	// contada == objetivo → SUCCESS
	assert.Equal(t, entity.SeveritySuccess, recon.SeverityOf(line(10, 10, false)))
}

func TestCheckApproval_PuertaDeAprobacion(t *testing.T) {
	diez := decimal.NewFromInt(10)
	siete := decimal.NewFromInt(7)

	// Cantidad exacta: se acepta con o sin motivo
	assert.NoError(t, recon.CheckApproval(diez, diez, ""))
	assert.NoError(t, recon.CheckApproval(diez, diez, "recuento doble"))

	// Diferencia sin motivo: rechazo local
	assert.ErrorIs(t, recon.CheckApproval(siete, diez, ""), domain.ErrApprovalNeedsReason)

	// Diferencia con motivo: se acepta
	assert.NoError(t, recon.CheckApproval(siete, diez, "mercancía dañada"))
}
