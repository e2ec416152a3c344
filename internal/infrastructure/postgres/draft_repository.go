package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/conteo-api/internal/domain/entity"
	"github.com/jhoicas/conteo-api/internal/domain/repository"
)

var _ repository.DraftRepository = (*DraftRepo)(nil)

// DraftRepo implementación de DraftRepository sobre PostgreSQL (usable con pool o tx).
// Tabla count_drafts: un registro por clave usuario+posición con el snapshot
// desnormalizado completo. El índice por (user_id) y (user_id, container_id)
// da las consultas por ámbito sin escaneo lineal.
type DraftRepo struct {
	q Querier
}

// NewDraftRepository construye el adaptador de borradores. Pasar pool o tx (Querier).
func NewDraftRepository(q Querier) *DraftRepo {
	return &DraftRepo{q: q}
}

const draftColumns = `user_id, container_id, group_id, line_id, material, quantity, target_qty, unit, approved, reason, updated_at`

// Put inserta o pisa el borrador de (usuario, posición). Durable al retornar.
func (r *DraftRepo) Put(ctx context.Context, d *entity.Draft) error {
	query := `
		INSERT INTO count_drafts (` + draftColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (user_id, line_id)
		DO UPDATE SET
			container_id = EXCLUDED.container_id,
			group_id     = EXCLUDED.group_id,
			material     = EXCLUDED.material,
			quantity     = EXCLUDED.quantity,
			target_qty   = EXCLUDED.target_qty,
			unit         = EXCLUDED.unit,
			approved     = EXCLUDED.approved,
			reason       = EXCLUDED.reason,
			updated_at   = now()`
	_, err := r.q.Exec(ctx, query,
		d.UserID, d.ContainerID, d.GroupID, d.LineID, d.Material,
		d.Quantity, d.TargetQty, d.Unit, d.Approved, d.Reason,
	)
	if err != nil {
		return fmt.Errorf("put draft: %w", err)
	}
	return nil
}

// Get devuelve el borrador de (usuario, posición), o nil si no existe.
func (r *DraftRepo) Get(ctx context.Context, userID, lineID string) (*entity.Draft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM count_drafts WHERE user_id = $1 AND line_id = $2`
	d, err := scanDraft(r.q.QueryRow(ctx, query, userID, lineID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return d, nil
}

// ListByUser enumera todos los borradores del usuario (merge al cargar).
func (r *DraftRepo) ListByUser(ctx context.Context, userID string) ([]*entity.Draft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM count_drafts WHERE user_id = $1
		ORDER BY container_id, group_id, line_id`
	rows, err := r.q.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list drafts by user: %w", err)
	}
	defer rows.Close()
	return collectDrafts(rows)
}

// ListByContainer enumera los borradores del usuario para un contenedor
// (envío en lote y descarte).
func (r *DraftRepo) ListByContainer(ctx context.Context, userID, containerID string) ([]*entity.Draft, error) {
	query := `
		SELECT ` + draftColumns + `
		FROM count_drafts WHERE user_id = $1 AND container_id = $2
		ORDER BY group_id, line_id`
	rows, err := r.q.Query(ctx, query, userID, containerID)
	if err != nil {
		return nil, fmt.Errorf("list drafts by container: %w", err)
	}
	defer rows.Close()
	return collectDrafts(rows)
}

// Remove elimina el borrador de (usuario, posición). Idempotente.
func (r *DraftRepo) Remove(ctx context.Context, userID, lineID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM count_drafts WHERE user_id = $1 AND line_id = $2`, userID, lineID)
	if err != nil {
		return fmt.Errorf("remove draft: %w", err)
	}
	return nil
}

func scanDraft(row pgx.Row) (*entity.Draft, error) {
	var d entity.Draft
	err := row.Scan(
		&d.UserID, &d.ContainerID, &d.GroupID, &d.LineID, &d.Material,
		&d.Quantity, &d.TargetQty, &d.Unit, &d.Approved, &d.Reason, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDrafts(rows pgx.Rows) ([]*entity.Draft, error) {
	var out []*entity.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, fmt.Errorf("scan draft: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return out, nil
}
