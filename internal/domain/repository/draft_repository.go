package repository

import (
	"context"

	"github.com/jhoicas/conteo-api/internal/domain/entity"
)

// DraftRepository almacén durable de borradores, con ámbito por usuario.
// Contrato de durabilidad: una vez que Put retorna sin error, el borrador
// sobrevive reinicios del proceso hasta que se llame Remove explícitamente.
// Un fallo de Put/Remove se devuelve al caller pero nunca debe corromper el
// estado en memoria ya aplicado.
type DraftRepository interface {
	// Put upsert durable; pisa cualquier borrador previo de la misma clave.
	Put(ctx context.Context, draft *entity.Draft) error

	// Get devuelve el borrador de (usuario, posición) o nil si no existe.
	Get(ctx context.Context, userID, lineID string) (*entity.Draft, error)

	// ListByUser enumera todos los borradores del usuario (merge al cargar).
	ListByUser(ctx context.Context, userID string) ([]*entity.Draft, error)

	// ListByContainer enumera los borradores del usuario para un contenedor
	// (envío en lote diferido y descarte).
	ListByContainer(ctx context.Context, userID, containerID string) ([]*entity.Draft, error)

	// Remove elimina un borrador; solo se usa tras sincronización confirmada
	// o descarte explícito del contenedor.
	Remove(ctx context.Context, userID, lineID string) error
}
