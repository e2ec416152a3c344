package recon_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/conteo-api/internal/application/recon"
	"github.com/jhoicas/conteo-api/internal/domain"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
)

// buildCoordinator arma un coordinador con fakes y una sesión ya cargada.
func buildCoordinator(t *testing.T, mode recon.Mode) (*recon.Coordinator, *fakeBackend, *fakeDraftRepo, *recon.SessionStore) {
	t.Helper()
	backend := &fakeBackend{hierarchy: []*entity.Container{testContainer()}}
	drafts := newFakeDraftRepo()
	sessions := recon.NewSessionStore()
	sessions.Put(recon.NewSession(testUser, testPlant, mode, []*entity.Container{testContainer()}))
	co := recon.NewCoordinator(backend, drafts, &fakeTxRunner{repo: drafts}, sessions, testLogger())
	return co, backend, drafts, sessions
}

func TestEnterAggregateQuantity_Diferido_ReparteYPersisteBorradores(t *testing.T) {
	co, backend, drafts, sessions := buildCoordinator(t, recon.ModeDeferred)

	// MAT-A cruza G1 y G2: objetivos [10, 5], V = 12 → [8, 4]
	res, err := co.EnterAggregateQuantity(context.Background(), testUser, recon.QuantityInput{
		ContainerID: "CONT1",
		Material:    "MAT-A",
		Groups:      []string{"G1", "G2"},
		Base:        decimal.NewFromInt(12),
	})
	require.NoError(t, err)
	require.Len(t, res.Shares, 2)
	assert.True(t, res.Shares[0].Quantity.Equal(decimal.NewFromInt(8)))
	assert.True(t, res.Shares[1].Quantity.Equal(decimal.NewFromInt(4)))
	assert.Empty(t, res.Warning)

	// Modo diferido: nada de backend, todo a borradores durables
	assert.Empty(t, backend.updateCalls)
	d1, err := drafts.Get(context.Background(), testUser, "L1")
	require.NoError(t, err)
	require.NotNil(t, d1, "debe existir borrador para L1")
	assert.True(t, d1.Quantity.Equal(decimal.NewFromInt(8)))
	d3, _ := drafts.Get(context.Background(), testUser, "L3")
	require.NotNil(t, d3)
	assert.True(t, d3.Quantity.Equal(decimal.NewFromInt(4)))

	// La mutación optimista está aplicada en la sesión
	s := sessions.Get(testUser)
	l1 := s.Line(entity.LineKey{ContainerID: "CONT1", GroupID: "G1", LineID: "L1"})
	assert.True(t, l1.CountedQty.Equal(decimal.NewFromInt(8)))
}

func TestEnterAggregateQuantity_FalloDeAlmacenamiento_NoEsFatal(t *testing.T) {
	co, _, drafts, sessions := buildCoordinator(t, recon.ModeDeferred)
	drafts.putErr = assert.AnError

	res, err := co.EnterAggregateQuantity(context.Background(), testUser, recon.QuantityInput{
		ContainerID: "CONT1",
		Material:    "MAT-A",
		Groups:      []string{"G1", "G2"},
		Base:        decimal.NewFromInt(12),
	})
	require.NoError(t, err, "el fallo de cuota/almacenamiento no es fatal")
	assert.NotEmpty(t, res.Warning, "debe avisar que la durabilidad no está garantizada")

	// El estado optimista en memoria se conserva a pesar del fallo
	l1 := sessions.Get(testUser).Line(entity.LineKey{ContainerID: "CONT1", GroupID: "G1", LineID: "L1"})
	assert.True(t, l1.CountedQty.Equal(decimal.NewFromInt(8)))
}

func TestEnterAggregateQuantity_Inmediato_ActualizaPorPosicion(t *testing.T) {
	co, backend, drafts, _ := buildCoordinator(t, recon.ModeImmediate)
	backend.freshGroup = cloneGroup(testContainer().Groups[0])

	_, err := co.EnterAggregateQuantity(context.Background(), testUser, recon.QuantityInput{
		ContainerID: "CONT1",
		Material:    "MAT-A",
		Groups:      []string{"G1", "G2"},
		Base:        decimal.NewFromInt(12),
	})
	require.NoError(t, err)

	// Una actualización por posición contribuyente, sin borradores
	assert.Len(t, backend.updateCalls, 2)
	assert.Zero(t, drafts.putN)
	// Refetch dirigido de cada agrupación tocada para reconciliar
	assert.NotEmpty(t, backend.fetchGroupCalls)
}

func TestFinalizeLine_RechazaDiferenciaSinMotivo(t *testing.T) {
	co, backend, drafts, sessions := buildCoordinator(t, recon.ModeImmediate)
	key := entity.LineKey{ContainerID: "CONT1", GroupID: "G1", LineID: "L1"}

	_, err := co.FinalizeLine(context.Background(), testUser, recon.FinalizeInput{
		Key:     key,
		Counted: decimal.NewFromInt(7), // objetivo es 10
		Reason:  "",
	})
	require.ErrorIs(t, err, domain.ErrApprovalNeedsReason)

	// Rechazo local: sin llamada al backend, sin borrador, sin mutación
	assert.Empty(t, backend.updateCalls)
	assert.Zero(t, drafts.putN)
	l := sessions.Get(testUser).Line(key)
	assert.False(t, l.Approved)
	assert.True(t, l.CountedQty.IsZero())
}

func TestFinalizeLine_AceptaCantidadExactaSinMotivo(t *testing.T) {
	co, backend, _, _ := buildCoordinator(t, recon.ModeImmediate)
	backend.freshGroup = cloneGroup(testContainer().Groups[0])

	res, err := co.FinalizeLine(context.Background(), testUser, recon.FinalizeInput{
		Key:     entity.LineKey{ContainerID: "CONT1", GroupID: "G1", LineID: "L1"},
		Counted: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Len(t, backend.updateCalls, 1)
	assert.NotEmpty(t, res.Status)
}

func TestFinalizeLine_AceptaDiferenciaConMotivo_Diferido(t *testing.T) {
	co, backend, drafts, _ := buildCoordinator(t, recon.ModeDeferred)

	_, err := co.FinalizeLine(context.Background(), testUser, recon.FinalizeInput{
		Key:     entity.LineKey{ContainerID: "CONT1", GroupID: "G1", LineID: "L1"},
		Counted: decimal.NewFromInt(7),
		Reason:  "bulto dañado",
	})
	require.NoError(t, err)
	assert.Empty(t, backend.updateCalls, "diferido: no hay llamada inmediata")

	d, _ := drafts.Get(context.Background(), testUser, "L1")
	require.NotNil(t, d)
	assert.True(t, d.Approved)
	assert.Equal(t, "bulto dañado", d.Reason)
}

func TestFinalizeLine_FalloDelBackend_RestauraEstadoAutoritativo(t *testing.T) {
	co, backend, _, sessions := buildCoordinator(t, recon.ModeImmediate)
	backend.updateErr = assert.AnError
	// El refetch devuelve el estado autoritativo: L1 sin contar ni aprobar
	backend.freshGroup = cloneGroup(testContainer().Groups[0])

	key := entity.LineKey{ContainerID: "CONT1", GroupID: "G1", LineID: "L1"}
	_, err := co.FinalizeLine(context.Background(), testUser, recon.FinalizeInput{
		Key:     key,
		Counted: decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, domain.ErrBackend)

	// La mutación optimista se descartó con el refetch dirigido
	l := sessions.Get(testUser).Line(key)
	require.NotNil(t, l)
	assert.False(t, l.Approved, "el refetch debe pisar la aprobación optimista")
	assert.True(t, l.CountedQty.IsZero())
	assert.NotEmpty(t, backend.fetchGroupCalls, "fallo ⇒ releer la agrupación dueña")
}

func seedDrafts(t *testing.T, co *recon.Coordinator) {
	t.Helper()
	_, err := co.EnterAggregateQuantity(context.Background(), testUser, recon.QuantityInput{
		ContainerID: "CONT1",
		Material:    "MAT-A",
		Groups:      []string{"G1", "G2"},
		Base:        decimal.NewFromInt(12),
	})
	require.NoError(t, err)
}

func TestCommitBatch_Exito_EnviaOrdenadoYEliminaBorradores(t *testing.T) {
	co, backend, drafts, _ := buildCoordinator(t, recon.ModeDeferred)
	seedDrafts(t, co)

	batchID, n, err := co.CommitBatch(context.Background(), testUser, "CONT1")
	require.NoError(t, err)
	assert.NotEmpty(t, batchID)
	assert.Equal(t, 2, n)

	// El lote va en orden de recorrido del árbol: L1 (G1) antes que L3 (G2)
	require.Len(t, backend.submitted, 1)
	batch := backend.submitted[0]
	require.Len(t, batch, 2)
	assert.Equal(t, "L1", batch[0].LineID)
	assert.Equal(t, "L3", batch[1].LineID)

	// Confirmado ⇒ las claves del lote se eliminaron
	d, _ := drafts.Get(context.Background(), testUser, "L1")
	assert.Nil(t, d)
	d, _ = drafts.Get(context.Background(), testUser, "L3")
	assert.Nil(t, d)
}

func TestCommitBatch_Fallo_ConservaTodosLosBorradores(t *testing.T) {
	co, backend, drafts, _ := buildCoordinator(t, recon.ModeDeferred)
	seedDrafts(t, co)
	backend.submitErr = assert.AnError

	_, _, err := co.CommitBatch(context.Background(), testUser, "CONT1")
	require.ErrorIs(t, err, domain.ErrBackend)

	// Cada borrador del lote intentado sigue recuperable vía Get
	for _, lineID := range []string{"L1", "L3"} {
		d, err := drafts.Get(context.Background(), testUser, lineID)
		require.NoError(t, err)
		require.NotNil(t, d, "el borrador de %s debe seguir local tras el fallo", lineID)
	}
}

func TestCommitBatch_SinBorradores(t *testing.T) {
	co, _, _, _ := buildCoordinator(t, recon.ModeDeferred)
	_, _, err := co.CommitBatch(context.Background(), testUser, "CONT1")
	assert.ErrorIs(t, err, domain.ErrNoDrafts)
}

func TestCommitBatch_ConcurrenteMismoContenedor_SeRechaza(t *testing.T) {
	co, backend, _, _ := buildCoordinator(t, recon.ModeDeferred)
	seedDrafts(t, co)

	backend.submitGate = make(chan struct{})
	backend.submitStarted = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, _, err := co.CommitBatch(context.Background(), testUser, "CONT1")
		done <- err
	}()

	// Esperar a que el primer commit esté en vuelo
	select {
	case <-backend.submitStarted:
	case <-time.After(2 * time.Second):
		t.Fatal("el primer commit nunca llegó al backend")
	}

	_, _, err := co.CommitBatch(context.Background(), testUser, "CONT1")
	assert.ErrorIs(t, err, domain.ErrCommitInFlight)

	close(backend.submitGate)
	require.NoError(t, <-done)
}

func TestDiscardContainer_EliminaBorradoresYRecarga(t *testing.T) {
	co, _, drafts, sessions := buildCoordinator(t, recon.ModeDeferred)
	seedDrafts(t, co)
	before := sessions.Get(testUser).Container("CONT1").RefreshTrigger

	require.NoError(t, co.DiscardContainer(context.Background(), testUser, "CONT1"))

	d, _ := drafts.Get(context.Background(), testUser, "L1")
	assert.Nil(t, d)

	// La recarga autoritativa pisó la edición local y avanzó el trigger
	s := sessions.Get(testUser)
	l1 := s.Line(entity.LineKey{ContainerID: "CONT1", GroupID: "G1", LineID: "L1"})
	require.NotNil(t, l1)
	assert.True(t, l1.CountedQty.IsZero())
	assert.Greater(t, s.Container("CONT1").RefreshTrigger, before)
}

func TestCoordinator_SinSesion(t *testing.T) {
	backend := &fakeBackend{}
	drafts := newFakeDraftRepo()
	co := recon.NewCoordinator(backend, drafts, &fakeTxRunner{repo: drafts}, recon.NewSessionStore(), testLogger())

	_, err := co.FinalizeLine(context.Background(), "NADIE", recon.FinalizeInput{})
	assert.ErrorIs(t, err, domain.ErrNoSession)
}
