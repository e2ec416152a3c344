package recon

import (
	"context"
	"fmt"

	"github.com/jhoicas/conteo-api/internal/domain"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
	"github.com/jhoicas/conteo-api/internal/domain/repository"
	"github.com/jhoicas/conteo-api/pkg/logger"
)

// LoadUseCase carga la jerarquía autoritativa del backend y superpone los
// borradores pendientes del usuario ANTES de cualquier derivación de estado.
type LoadUseCase struct {
	backend  Backend
	drafts   repository.DraftRepository
	sessions *SessionStore
	log      *logger.Logger
}

// NewLoadUseCase construye el caso de uso.
func NewLoadUseCase(backend Backend, drafts repository.DraftRepository, sessions *SessionStore, log *logger.Logger) *LoadUseCase {
	return &LoadUseCase{backend: backend, drafts: drafts, sessions: sessions, log: log}
}

// Load trae la jerarquía para el filtro dado, aplica el merge de borradores
// y publica la sesión del usuario (reemplaza cualquier sesión previa).
// El orden es estricto: fetch → merge → (derivación de estado al leer).
func (uc *LoadUseCase) Load(ctx context.Context, userID, plantID string, mode Mode, f Filter) (*Session, error) {
	containers, err := uc.backend.FetchHierarchy(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBackend, err.Error())
	}

	drafts, err := uc.drafts.ListByUser(ctx, userID)
	if err != nil {
		// Sin borradores no hay superposición, pero la carga sigue siendo
		// utilizable; se avisa y se continúa con datos autoritativos.
		uc.log.WithUser(userID).Warn().Err(err).Msg("no se pudieron leer los borradores para el merge")
		drafts = nil
	}
	MergeDrafts(containers, drafts)

	for _, c := range containers {
		for _, g := range c.Groups {
			RecomputeCategoryCounts(g)
		}
	}

	s := NewSession(userID, plantID, mode, containers)
	uc.sessions.Put(s)

	uc.log.WithUser(userID).Info().
		Str("plant_id", plantID).
		Str("mode", string(mode)).
		Int("containers", len(containers)).
		Int("drafts", len(drafts)).
		Msg("jerarquía cargada con borradores superpuestos")
	return s, nil
}

// MergeDrafts superpone los borradores sobre las posiciones recién traídas:
// cantidad contada, aprobación y motivo vienen del borrador; el objetivo
// autoritativo NUNCA se pisa. Idempotente: aplicarlo dos veces con el mismo
// conjunto de borradores deja el mismo estado.
func MergeDrafts(containers []*entity.Container, drafts []*entity.Draft) {
	if len(drafts) == 0 {
		return
	}
	byLine := make(map[string]*entity.Draft, len(drafts))
	for _, d := range drafts {
		byLine[d.LineID] = d
	}
	for _, c := range containers {
		for _, g := range c.Groups {
			for _, l := range g.Lines {
				d, ok := byLine[l.LineID]
				if !ok {
					continue
				}
				l.CountedQty = d.Quantity
				l.Approved = d.Approved
				l.Reason = d.Reason
			}
		}
	}
}
