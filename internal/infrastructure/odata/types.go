package odata

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/conteo-api/internal/domain/entity"
)

// ── Tipos de cable OData v2 (JSON) ────────────────────────────────────────────
// Las cantidades Edm.Decimal viajan como string; un valor no numérico se
// coerciona a cero en lugar de fallar la carga completa.

type lineWire struct {
	ContainerID  string `json:"ContainerId"`
	GroupID      string `json:"GroupId"`
	LineID       string `json:"LineId"`
	Material     string `json:"Material"`
	MaterialText string `json:"MaterialText"`
	Category     string `json:"Category"`
	TargetQty    string `json:"TargetQty"`
	CountedQty   string `json:"CountedQty"`
	Unit         string `json:"Unit"`
	PalletFactor string `json:"PalletFactor"`
	CrateFactor  string `json:"CrateFactor"`
	Approved     bool   `json:"Approved"`
	Reason       string `json:"Reason"`
}

type groupWire struct {
	ContainerID string `json:"ContainerId"`
	GroupID     string `json:"GroupId"`
	Description string `json:"Description"`
	Lines       struct {
		Results []lineWire `json:"results"`
	} `json:"LineSet"`
}

type containerWire struct {
	ContainerID string `json:"ContainerId"`
	Description string `json:"Description"`
	Groups      struct {
		Results []groupWire `json:"results"`
	} `json:"GroupSet"`
}

type hierarchyEnvelope struct {
	D struct {
		Results []containerWire `json:"results"`
	} `json:"d"`
}

type groupEnvelope struct {
	D groupWire `json:"d"`
}

// lineUpdateWire cuerpo del MERGE sobre una posición.
type lineUpdateWire struct {
	CountedQty string `json:"CountedQty"`
	Approved   bool   `json:"Approved"`
	Reason     string `json:"Reason"`
}

// batchWire cuerpo del function import CommitContainer: el lote completo
// de borradores de un contenedor, en el orden en que debe aplicarse.
type batchWire struct {
	ContainerID string          `json:"ContainerId"`
	BatchID     string          `json:"BatchId"`
	Drafts      []batchLineWire `json:"Drafts"`
}

type batchLineWire struct {
	GroupID  string `json:"GroupId"`
	LineID   string `json:"LineId"`
	Material string `json:"Material"`
	Quantity string `json:"Quantity"`
	Unit     string `json:"Unit"`
	Approved bool   `json:"Approved"`
	Reason   string `json:"Reason"`
}

// jsonError envelope de error OData en JSON.
type jsonError struct {
	Error struct {
		Message struct {
			Value string `json:"value"`
		} `json:"message"`
	} `json:"error"`
}

// ── Mapeo cable → entidades ───────────────────────────────────────────────────

func toEntityContainer(w containerWire) *entity.Container {
	c := &entity.Container{
		ContainerID: w.ContainerID,
		Description: w.Description,
	}
	for _, gw := range w.Groups.Results {
		c.Groups = append(c.Groups, toEntityGroup(gw))
	}
	return c
}

func toEntityGroup(w groupWire) *entity.DeliveryGroup {
	g := &entity.DeliveryGroup{
		ContainerID: w.ContainerID,
		GroupID:     w.GroupID,
		Description: w.Description,
	}
	for _, lw := range w.Lines.Results {
		g.Lines = append(g.Lines, &entity.LineItem{
			ContainerID:  lw.ContainerID,
			GroupID:      lw.GroupID,
			LineID:       lw.LineID,
			Material:     lw.Material,
			MaterialText: lw.MaterialText,
			Category:     lw.Category,
			TargetQty:    parseQty(lw.TargetQty),
			CountedQty:   parseQty(lw.CountedQty),
			Unit:         lw.Unit,
			PalletFactor: parseQty(lw.PalletFactor),
			CrateFactor:  parseQty(lw.CrateFactor),
			Approved:     lw.Approved,
			Reason:       lw.Reason,
		})
	}
	return g
}

// parseQty convierte un Edm.Decimal serializado; inválido o vacío vale cero.
func parseQty(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
