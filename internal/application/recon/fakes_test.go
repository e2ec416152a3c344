package recon_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/conteo-api/internal/application/recon"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
	"github.com/jhoicas/conteo-api/internal/domain/repository"
	"github.com/jhoicas/conteo-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes para Backend y DraftRepository. Los tests del coordinador no tocan
// red ni base de datos: verifican el contrato (qué llamadas salen y qué
// borradores quedan) contra estos dobles.
// ──────────────────────────────────────────────────────────────────────────────

type fakeBackend struct {
	mu sync.Mutex

	hierarchy  []*entity.Container   // respuesta de FetchHierarchy
	freshGroup *entity.DeliveryGroup // respuesta de FetchGroup

	updateErr error
	submitErr error

	updateCalls     []entity.LineKey
	fetchGroupCalls []string // "container/group"
	submitted       [][]*entity.Draft

	// submitGate: si no es nil, SubmitBatch avisa en submitStarted y espera
	// el cierre del gate antes de responder (para probar commits concurrentes)
	submitGate    chan struct{}
	submitStarted chan struct{}
}

func (f *fakeBackend) FetchHierarchy(_ context.Context, _ recon.Filter) ([]*entity.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneContainers(f.hierarchy), nil
}

func (f *fakeBackend) FetchGroup(_ context.Context, containerID, groupID string) (*entity.DeliveryGroup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchGroupCalls = append(f.fetchGroupCalls, containerID+"/"+groupID)
	if f.freshGroup == nil {
		return nil, fmt.Errorf("sin datos frescos configurados")
	}
	return cloneGroup(f.freshGroup), nil
}

func (f *fakeBackend) UpdateLine(_ context.Context, key entity.LineKey, _ recon.LineUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls = append(f.updateCalls, key)
	return f.updateErr
}

func (f *fakeBackend) SubmitBatch(_ context.Context, _, _ string, drafts []*entity.Draft) error {
	if f.submitGate != nil {
		f.submitStarted <- struct{}{}
		<-f.submitGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, drafts)
	return f.submitErr
}

type fakeDraftRepo struct {
	mu      sync.Mutex
	byKey   map[string]*entity.Draft
	putErr  error
	putN    int
	removeN int
}

func newFakeDraftRepo() *fakeDraftRepo {
	return &fakeDraftRepo{byKey: make(map[string]*entity.Draft)}
}

func (f *fakeDraftRepo) Put(_ context.Context, d *entity.Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putN++
	if f.putErr != nil {
		return f.putErr
	}
	cp := *d
	f.byKey[d.Key()] = &cp
	return nil
}

func (f *fakeDraftRepo) Get(_ context.Context, userID, lineID string) (*entity.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byKey[userID+"_"+lineID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDraftRepo) ListByUser(_ context.Context, userID string) ([]*entity.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Draft
	for _, d := range f.byKey {
		if d.UserID == userID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDraftRepo) ListByContainer(_ context.Context, userID, containerID string) ([]*entity.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entity.Draft
	for _, d := range f.byKey {
		if d.UserID == userID && d.ContainerID == containerID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeDraftRepo) Remove(_ context.Context, userID, lineID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeN++
	delete(f.byKey, userID+"_"+lineID)
	return nil
}

// fakeTxRunner ejecuta el callback contra el mismo repo, sin transacción real.
type fakeTxRunner struct{ repo repository.DraftRepository }

func (f *fakeTxRunner) Run(ctx context.Context, fn func(repository.DraftRepository) error) error {
	return fn(f.repo)
}

// ──────────────────────────────────────────────────────────────────────────────
// Constructores de datos de prueba
// ──────────────────────────────────────────────────────────────────────────────

const (
	testUser  = "OPERARIO01"
	testPlant = "AL01"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Env: "production", Level: "error"})
}

func testLine(containerID, groupID, lineID, material string, target float64) *entity.LineItem {
	return &entity.LineItem{
		ContainerID:  containerID,
		GroupID:      groupID,
		LineID:       lineID,
		Material:     material,
		MaterialText: "Material " + material,
		Category:     "GEN",
		TargetQty:    decimal.NewFromFloat(target),
		Unit:         "ST",
		PalletFactor: decimal.NewFromInt(1),
		CrateFactor:  decimal.NewFromInt(1),
	}
}

// testContainer arma la jerarquía estándar de los tests:
//
//	CONT1
//	 ├─ G1: L1 (MAT-A, objetivo 10), L2 (MAT-B, objetivo 0)
//	 └─ G2: L3 (MAT-A, objetivo 5)
func testContainer() *entity.Container {
	g1 := &entity.DeliveryGroup{
		ContainerID: "CONT1", GroupID: "G1",
		Lines: []*entity.LineItem{
			testLine("CONT1", "G1", "L1", "MAT-A", 10),
			testLine("CONT1", "G1", "L2", "MAT-B", 0),
		},
	}
	g2 := &entity.DeliveryGroup{
		ContainerID: "CONT1", GroupID: "G2",
		Lines: []*entity.LineItem{
			testLine("CONT1", "G2", "L3", "MAT-A", 5),
		},
	}
	return &entity.Container{ContainerID: "CONT1", Groups: []*entity.DeliveryGroup{g1, g2}}
}

func cloneContainers(src []*entity.Container) []*entity.Container {
	out := make([]*entity.Container, 0, len(src))
	for _, c := range src {
		cc := *c
		cc.Groups = nil
		for _, g := range c.Groups {
			cc.Groups = append(cc.Groups, cloneGroup(g))
		}
		out = append(out, &cc)
	}
	return out
}

func cloneGroup(g *entity.DeliveryGroup) *entity.DeliveryGroup {
	gg := *g
	gg.Lines = nil
	for _, l := range g.Lines {
		ll := *l
		gg.Lines = append(gg.Lines, &ll)
	}
	return &gg
}
