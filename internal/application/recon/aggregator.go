package recon

import (
	"github.com/jhoicas/conteo-api/internal/domain/entity"
)

// BuildAggregates produce una AggregateView por código de material distinto
// a través de TODAS las agrupaciones seleccionadas del contenedor (no solo
// una). Objetivo y contada son sumas aritméticas; la aprobación combinada es
// true solo si todas las contribuyentes están aprobadas; el motivo combinado
// es el último no vacío en orden de recorrido.
//
// Se recalcula síncronamente en cada cambio de selección; O(posiciones).
// Las vistas salen en orden de descubrimiento del material.
func BuildAggregates(c *entity.Container, selected map[string]bool) []*entity.AggregateView {
	var views []*entity.AggregateView
	byMaterial := make(map[string]*entity.AggregateView)

	for _, g := range c.Groups {
		if len(selected) > 0 && !selected[g.GroupID] {
			continue
		}
		for _, l := range g.Lines {
			v, ok := byMaterial[l.Material]
			if !ok {
				v = &entity.AggregateView{
					Material:     l.Material,
					MaterialText: l.MaterialText,
					Unit:         l.Unit,
					Approved:     true,
					PalletFactor: l.PalletFactor,
					CrateFactor:  l.CrateFactor,
				}
				byMaterial[l.Material] = v
				views = append(views, v)
			}
			v.TargetQty = v.TargetQty.Add(l.TargetQty)
			v.CountedQty = v.CountedQty.Add(l.CountedQty)
			v.Approved = v.Approved && l.Approved
			if l.Reason != "" {
				v.Reason = l.Reason
			}
			v.Lines = append(v.Lines, l.Key())
		}
	}
	return views
}

// RecomputeCategoryCounts recalcula los contadores por categoría de una
// agrupación (pestañas de filtrado de la UI). Artefacto derivado: nunca se
// persiste.
func RecomputeCategoryCounts(g *entity.DeliveryGroup) {
	counts := make(map[string]int)
	for _, l := range g.Lines {
		counts[l.Category]++
	}
	g.CategoryCounts = counts
}
