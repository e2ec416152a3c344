package recon_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/conteo-api/internal/application/recon"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
)

func draft(lineID string, qty float64, approved bool, reason string) *entity.Draft {
	return &entity.Draft{
		UserID:      testUser,
		ContainerID: "CONT1",
		GroupID:     "G1",
		LineID:      lineID,
		Material:    "MAT-A",
		Quantity:    decimal.NewFromFloat(qty),
		TargetQty:   decimal.NewFromInt(10),
		Unit:        "ST",
		Approved:    approved,
		Reason:      reason,
		UpdatedAt:   time.Now(),
	}
}

func TestMergeDrafts_ElBorradorLocalGana(t *testing.T) {
	// El servidor va por detrás de la edición local: devuelve L1 con 0,
	// pero existe un borrador con contada=4 sin aprobar
	containers := []*entity.Container{testContainer()}
	drafts := []*entity.Draft{draft("L1", 4, false, "")}

	recon.MergeDrafts(containers, drafts)

	l1 := containers[0].Groups[0].Lines[0]
	assert.True(t, l1.CountedQty.Equal(decimal.NewFromInt(4)), "la contada viene del borrador")
	assert.False(t, l1.Approved)
	// El objetivo autoritativo NUNCA se pisa
	assert.True(t, l1.TargetQty.Equal(decimal.NewFromInt(10)))
}

func TestMergeDrafts_EsIdempotente(t *testing.T) {
	containers := []*entity.Container{testContainer()}
	drafts := []*entity.Draft{draft("L1", 4, true, "faltante")}

	recon.MergeDrafts(containers, drafts)
	l1 := containers[0].Groups[0].Lines[0]
	qty, approved, reason := l1.CountedQty, l1.Approved, l1.Reason

	// Aplicarlo de nuevo con el mismo conjunto no cambia nada
	recon.MergeDrafts(containers, drafts)
	assert.True(t, l1.CountedQty.Equal(qty))
	assert.Equal(t, approved, l1.Approved)
	assert.Equal(t, reason, l1.Reason)
}

func TestMergeDrafts_SinBorradoresNoTocaNada(t *testing.T) {
	containers := []*entity.Container{testContainer()}
	recon.MergeDrafts(containers, nil)
	assert.True(t, containers[0].Groups[0].Lines[0].CountedQty.IsZero())
}

func TestLoad_SuperponeBorradoresSobreDatosFrescos(t *testing.T) {
	backend := &fakeBackend{hierarchy: []*entity.Container{testContainer()}}
	repo := newFakeDraftRepo()
	require.NoError(t, repo.Put(context.Background(), draft("L1", 4, false, "")))

	sessions := recon.NewSessionStore()
	uc := recon.NewLoadUseCase(backend, repo, sessions, testLogger())

	s, err := uc.Load(context.Background(), testUser, testPlant, recon.ModeDeferred, recon.Filter{PlantID: testPlant})
	require.NoError(t, err)

	l1 := s.Line(entity.LineKey{ContainerID: "CONT1", GroupID: "G1", LineID: "L1"})
	require.NotNil(t, l1)
	assert.True(t, l1.CountedQty.Equal(decimal.NewFromInt(4)), "merge estrictamente después del fetch")
	assert.True(t, l1.TargetQty.Equal(decimal.NewFromInt(10)))

	// Cargar de nuevo reemplaza la sesión anterior del usuario
	s2, err := uc.Load(context.Background(), testUser, testPlant, recon.ModeDeferred, recon.Filter{PlantID: testPlant})
	require.NoError(t, err)
	assert.Same(t, s2, sessions.Get(testUser))
}
