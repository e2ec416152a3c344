package recon

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/conteo-api/internal/domain"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
	reconsvc "github.com/jhoicas/conteo-api/internal/domain/recon"
	"github.com/jhoicas/conteo-api/internal/domain/repository"
	"github.com/jhoicas/conteo-api/pkg/logger"
)

// Coordinator aplica las ediciones del operario: mutación optimista en
// memoria, persistencia en borradores y reconciliación con el backend, ya
// sea inmediata (posición a posición) o diferida (lote por contenedor).
//
// Tras un fallo de llamada no hay cancelación: el único camino de
// recuperación es releer la agrupación dueña y reconciliar.
type Coordinator struct {
	backend  Backend
	drafts   repository.DraftRepository
	txRunner DraftTxRunner
	sessions *SessionStore
	log      *logger.Logger
}

// NewCoordinator construye el coordinador.
func NewCoordinator(backend Backend, drafts repository.DraftRepository, txRunner DraftTxRunner, sessions *SessionStore, log *logger.Logger) *Coordinator {
	return &Coordinator{backend: backend, drafts: drafts, txRunner: txRunner, sessions: sessions, log: log}
}

// QuantityInput captura de cantidad sobre una vista agregada.
type QuantityInput struct {
	ContainerID string
	Material    string
	Groups      []string // agrupaciones seleccionadas
	Base        decimal.Decimal
	Pallets     decimal.Decimal
	Crates      decimal.Decimal
	// Override true si el operario editó el total directamente; en ese caso
	// pallets y cajas se descartan y Base es el total ingresado.
	Override bool
}

// LineShare resultado del reparto para una posición contribuyente.
type LineShare struct {
	Key      entity.LineKey
	Quantity decimal.Decimal
	Status   string
	Severity string
}

// EntryResult resultado de una captura agregada. Warning no vacío indica un
// fallo no fatal (p. ej. borrador sin persistir): el estado en memoria vale.
type EntryResult struct {
	Total   decimal.Decimal
	Shares  []LineShare
	Warning string
}

// EnterAggregateQuantity convierte la captura (base + pallets + cajas) en
// una cantidad única, la reparte entre las posiciones contribuyentes del
// material y aplica el resultado según el modo de la sesión.
func (co *Coordinator) EnterAggregateQuantity(ctx context.Context, userID string, in QuantityInput) (*EntryResult, error) {
	s := co.sessions.Get(userID)
	if s == nil {
		return nil, domain.ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.Container(in.ContainerID)
	if c == nil {
		return nil, domain.ErrNotFound
	}

	agg := findAggregate(c, in.Groups, in.Material)
	if agg == nil {
		return nil, domain.ErrNotFound
	}

	entry := &reconsvc.UnitEntry{
		Base:         in.Base,
		Pallets:      in.Pallets,
		Crates:       in.Crates,
		PalletFactor: agg.PalletFactor,
		CrateFactor:  agg.CrateFactor,
	}
	if in.Override {
		entry.Override(in.Base)
	}
	total := entry.Total()

	// Reparto proporcional a los objetivos originales, resto a la última
	targets := make([]decimal.Decimal, len(agg.Lines))
	lines := make([]*entity.LineItem, len(agg.Lines))
	for i, key := range agg.Lines {
		l := s.Line(key)
		if l == nil {
			return nil, domain.ErrNotFound
		}
		lines[i] = l
		targets[i] = l.TargetQty
	}
	shares := reconsvc.Distribute(targets, total)

	// Mutación optimista en memoria: vale incluso si la persistencia falla
	for i, l := range lines {
		l.CountedQty = shares[i]
	}

	res := &EntryResult{Total: total}
	log := co.log.WithUser(userID)

	switch s.Mode {
	case ModeDeferred:
		for _, l := range lines {
			if err := co.drafts.Put(ctx, draftFromLine(userID, l)); err != nil {
				log.Warn().Err(err).Str("line_id", l.LineID).Msg("borrador sin persistir; la edición sigue en memoria")
				res.Warning = domain.ErrDraftStorage.Error()
			}
		}
	default: // ModeImmediate
		for _, l := range lines {
			if err := co.backend.UpdateLine(ctx, l.Key(), LineUpdate{Quantity: l.CountedQty, Approved: l.Approved, Reason: l.Reason}); err != nil {
				// Descarta la mutación optimista releyendo la agrupación dueña
				co.refetchGroup(ctx, s, l.ContainerID, l.GroupID)
				return nil, fmt.Errorf("%w: %s", domain.ErrBackend, err.Error())
			}
		}
		// Reconciliar efectos del lado servidor en cada agrupación tocada
		for _, groupID := range distinctGroups(lines) {
			co.refetchGroup(ctx, s, in.ContainerID, groupID)
		}
	}

	for _, key := range agg.Lines {
		l := s.Line(key)
		if l == nil {
			continue
		}
		res.Shares = append(res.Shares, LineShare{
			Key:      key,
			Quantity: l.CountedQty,
			Status:   reconsvc.StatusOf(l),
			Severity: reconsvc.SeverityOf(l),
		})
	}
	log.Info().
		Str("container_id", in.ContainerID).
		Str("material", in.Material).
		Str("total", total.String()).
		Int("lines", len(lines)).
		Msg("cantidad agregada repartida")
	return res, nil
}

// FinalizeInput aprobación/cierre de una posición individual.
type FinalizeInput struct {
	Key     entity.LineKey
	Counted decimal.Decimal
	Reason  string
}

// FinalizeResult resultado de finalizar una posición.
type FinalizeResult struct {
	Status   string
	Severity string
	Warning  string
}

// FinalizeLine aprueba una posición. La puerta de validación es local: con
// diferencia de cantidad y sin motivo se rechaza sin llamar al backend y sin
// tocar borradores.
func (co *Coordinator) FinalizeLine(ctx context.Context, userID string, in FinalizeInput) (*FinalizeResult, error) {
	s := co.sessions.Get(userID)
	if s == nil {
		return nil, domain.ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.Line(in.Key)
	if l == nil {
		return nil, domain.ErrNotFound
	}

	if err := reconsvc.CheckApproval(in.Counted, l.TargetQty, in.Reason); err != nil {
		return nil, err
	}

	// Mutación optimista
	l.CountedQty = in.Counted
	l.Approved = true
	l.Reason = in.Reason

	res := &FinalizeResult{}
	log := co.log.WithUser(userID)

	switch s.Mode {
	case ModeDeferred:
		if err := co.drafts.Put(ctx, draftFromLine(userID, l)); err != nil {
			log.Warn().Err(err).Str("line_id", l.LineID).Msg("borrador sin persistir; la edición sigue en memoria")
			res.Warning = domain.ErrDraftStorage.Error()
		}
	default: // ModeImmediate
		err := co.backend.UpdateLine(ctx, in.Key, LineUpdate{Quantity: l.CountedQty, Approved: true, Reason: l.Reason})
		// Con o sin éxito se relee la agrupación dueña: reconcilia efectos
		// del servidor o descarta la mutación optimista fallida
		co.refetchGroup(ctx, s, in.Key.ContainerID, in.Key.GroupID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrBackend, err.Error())
		}
	}

	if cur := s.Line(in.Key); cur != nil {
		res.Status = reconsvc.StatusOf(cur)
		res.Severity = reconsvc.SeverityOf(cur)
	}
	log.Info().
		Str("line_id", in.Key.LineID).
		Str("counted", in.Counted.String()).
		Bool("with_reason", in.Reason != "").
		Msg("posición finalizada")
	return res, nil
}

// CommitBatch recolecta todos los borradores del usuario para el contenedor,
// los serializa en orden de recorrido del árbol y los envía en una sola
// llamada. Éxito: se eliminan exactamente esas claves (atómico). Fallo: no
// se elimina nada; los datos quedan a salvo localmente para reintentar.
// Un segundo commit para el mismo contenedor mientras hay uno en vuelo se
// rechaza con ErrCommitInFlight.
func (co *Coordinator) CommitBatch(ctx context.Context, userID, containerID string) (string, int, error) {
	s := co.sessions.Get(userID)
	if s == nil {
		return "", 0, domain.ErrNoSession
	}

	s.mu.Lock()
	if !s.beginCommit(containerID) {
		s.mu.Unlock()
		return "", 0, domain.ErrCommitInFlight
	}
	defer func() {
		s.mu.Lock()
		s.endCommit(containerID)
		s.mu.Unlock()
	}()

	drafts, err := co.drafts.ListByContainer(ctx, userID, containerID)
	if err != nil {
		s.mu.Unlock()
		return "", 0, fmt.Errorf("%w: %s", domain.ErrDraftStorage, err.Error())
	}
	if len(drafts) == 0 {
		s.mu.Unlock()
		return "", 0, domain.ErrNoDrafts
	}
	ordered := orderByTreeWalk(s.Container(containerID), drafts)
	s.mu.Unlock()

	batchID := uuid.New().String()
	log := co.log.WithUser(userID).With().Str("batch_id", batchID).Str("container_id", containerID).Logger()

	// La llamada despachada no se cancela; sin lock de sesión mientras vuela
	if err := co.backend.SubmitBatch(ctx, containerID, batchID, ordered); err != nil {
		log.Warn().Err(err).Int("drafts", len(ordered)).
			Msg("lote rechazado; los borradores quedan locales para reintento")
		return batchID, 0, fmt.Errorf("%w: %s", domain.ErrBackend, err.Error())
	}

	// Eliminación atómica de las claves del lote confirmado
	err = co.txRunner.Run(ctx, func(repo repository.DraftRepository) error {
		for _, d := range ordered {
			if err := repo.Remove(ctx, d.UserID, d.LineID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// El backend ya confirmó: el lote está sincronizado aunque la
		// limpieza local falle; se reintentará en la próxima carga
		log.Warn().Err(err).Msg("lote confirmado pero la limpieza de borradores falló")
	}

	// Recarga autoritativa del contenedor para reconciliar efectos del servidor
	s.mu.Lock()
	co.refetchContainer(ctx, s, containerID)
	s.mu.Unlock()

	log.Info().Int("drafts", len(ordered)).Msg("lote confirmado por el backend")
	return batchID, len(ordered), nil
}

// DiscardContainer descarta las ediciones locales del contenedor: elimina
// los borradores del usuario para ese contenedor y recarga el estado
// autoritativo del backend.
func (co *Coordinator) DiscardContainer(ctx context.Context, userID, containerID string) error {
	s := co.sessions.Get(userID)
	if s == nil {
		return domain.ErrNoSession
	}

	drafts, err := co.drafts.ListByContainer(ctx, userID, containerID)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrDraftStorage, err.Error())
	}
	err = co.txRunner.Run(ctx, func(repo repository.DraftRepository) error {
		for _, d := range drafts {
			if err := repo.Remove(ctx, d.UserID, d.LineID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrDraftStorage, err.Error())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	co.refetchContainer(ctx, s, containerID)
	co.log.WithUser(userID).Info().
		Str("container_id", containerID).
		Int("drafts", len(drafts)).
		Msg("contenedor descartado y recargado")
	return nil
}

// Aggregates devuelve las vistas agregadas del contenedor para la selección
// de agrupaciones dada, con estados derivados al momento.
func (co *Coordinator) Aggregates(userID, containerID string, groups []string) ([]*entity.AggregateView, *entity.Container, error) {
	s := co.sessions.Get(userID)
	if s == nil {
		return nil, nil, domain.ErrNoSession
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := s.Container(containerID)
	if c == nil {
		return nil, nil, domain.ErrNotFound
	}
	return BuildAggregates(c, toSet(groups)), c, nil
}

// refetchGroup relee una agrupación del backend y la sustituye en sesión,
// volviendo a superponer los borradores del usuario (el merge va siempre
// después del fetch y antes de derivar estados). Llamar con s.mu tomado.
func (co *Coordinator) refetchGroup(ctx context.Context, s *Session, containerID, groupID string) {
	fresh, err := co.backend.FetchGroup(ctx, containerID, groupID)
	if err != nil {
		co.log.WithUser(s.UserID).Warn().Err(err).
			Str("container_id", containerID).
			Str("group_id", groupID).
			Msg("refetch dirigido falló; la sesión conserva el último estado conocido")
		return
	}
	if drafts, err := co.drafts.ListByUser(ctx, s.UserID); err == nil {
		overlayGroup(fresh, drafts)
	}
	RecomputeCategoryCounts(fresh)
	s.ReplaceGroup(containerID, fresh)
}

// refetchContainer recarga un contenedor completo del backend y lo
// sustituye en sesión con el merge de borradores aplicado. Llamar con s.mu tomado.
func (co *Coordinator) refetchContainer(ctx context.Context, s *Session, containerID string) {
	containers, err := co.backend.FetchHierarchy(ctx, Filter{PlantID: s.PlantID, ContainerID: containerID})
	if err != nil || len(containers) == 0 {
		co.log.WithUser(s.UserID).Warn().Err(err).
			Str("container_id", containerID).
			Msg("recarga de contenedor falló; la sesión conserva el último estado conocido")
		return
	}
	drafts, err := co.drafts.ListByUser(ctx, s.UserID)
	if err != nil {
		drafts = nil
	}
	MergeDrafts(containers, drafts)
	for _, g := range containers[0].Groups {
		RecomputeCategoryCounts(g)
	}
	s.ReplaceContainer(containers[0])
}

// draftFromLine snapshot desnormalizado de la posición tras la mutación.
func draftFromLine(userID string, l *entity.LineItem) *entity.Draft {
	return &entity.Draft{
		UserID:      userID,
		ContainerID: l.ContainerID,
		GroupID:     l.GroupID,
		LineID:      l.LineID,
		Material:    l.Material,
		Quantity:    l.CountedQty,
		TargetQty:   l.TargetQty,
		Unit:        l.Unit,
		Approved:    l.Approved,
		Reason:      l.Reason,
		UpdatedAt:   time.Now(),
	}
}

// findAggregate construye las vistas para la selección y devuelve la del material.
func findAggregate(c *entity.Container, groups []string, material string) *entity.AggregateView {
	for _, v := range BuildAggregates(c, toSet(groups)) {
		if v.Material == material {
			return v
		}
	}
	return nil
}

// orderByTreeWalk ordena los borradores según el orden de recorrido del
// árbol del contenedor (agrupación, luego posición), no el orden de la
// tabla: el backend ve el mismo orden que usó el distribuidor.
func orderByTreeWalk(c *entity.Container, drafts []*entity.Draft) []*entity.Draft {
	if c == nil {
		return drafts
	}
	byLine := make(map[string]*entity.Draft, len(drafts))
	for _, d := range drafts {
		byLine[d.LineID] = d
	}
	ordered := make([]*entity.Draft, 0, len(drafts))
	for _, g := range c.Groups {
		for _, l := range g.Lines {
			if d, ok := byLine[l.LineID]; ok {
				ordered = append(ordered, d)
				delete(byLine, l.LineID)
			}
		}
	}
	// Borradores de posiciones que ya no están en el árbol van al final
	for _, d := range drafts {
		if _, ok := byLine[d.LineID]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered
}

// overlayGroup aplica los borradores del usuario a una sola agrupación.
func overlayGroup(g *entity.DeliveryGroup, drafts []*entity.Draft) {
	byLine := make(map[string]*entity.Draft, len(drafts))
	for _, d := range drafts {
		byLine[d.LineID] = d
	}
	for _, l := range g.Lines {
		if d, ok := byLine[l.LineID]; ok {
			l.CountedQty = d.Quantity
			l.Approved = d.Approved
			l.Reason = d.Reason
		}
	}
}

func distinctGroups(lines []*entity.LineItem) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range lines {
		if !seen[l.GroupID] {
			seen[l.GroupID] = true
			out = append(out, l.GroupID)
		}
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
