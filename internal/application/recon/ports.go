package recon

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/conteo-api/internal/domain/entity"
	"github.com/jhoicas/conteo-api/internal/domain/repository"
)

// Filter criterios de selección para la carga de jerarquía.
type Filter struct {
	PlantID     string // centro/almacén del operario
	ContainerID string // opcional: un solo contenedor (refetch dirigido)
	Queue       string // opcional: cola de trabajo del backend
}

// LineUpdate campos que el core envía al backend al actualizar una posición.
type LineUpdate struct {
	Quantity decimal.Decimal
	Approved bool
	Reason   string
}

// Backend puerto de salida hacia el servicio OData del almacén. Los mensajes
// de error del backend son opacos: se propagan tal cual al caller.
// Para tests se inyecta un fake.
type Backend interface {
	// FetchHierarchy lee contenedores con sus agrupaciones y posiciones.
	FetchHierarchy(ctx context.Context, f Filter) ([]*entity.Container, error)

	// FetchGroup relee una sola agrupación (refetch dirigido tras una
	// actualización inmediata, exitosa o fallida).
	FetchGroup(ctx context.Context, containerID, groupID string) (*entity.DeliveryGroup, error)

	// UpdateLine actualiza una posición exacta (modo inmediato).
	UpdateLine(ctx context.Context, key entity.LineKey, upd LineUpdate) error

	// SubmitBatch envía todos los borradores de un contenedor como un lote
	// ordenado en una sola llamada (modo diferido).
	SubmitBatch(ctx context.Context, containerID, batchID string, drafts []*entity.Draft) error
}

// DraftTxRunner ejecuta una función contra el repositorio de borradores
// dentro de una transacción de BD. Garantiza que la eliminación de los
// borradores de un lote confirmado sea atómica.
type DraftTxRunner interface {
	Run(ctx context.Context, fn func(drafts repository.DraftRepository) error) error
}
