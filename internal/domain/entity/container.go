package entity

// DeliveryGroup agrupación intermedia (nota de entrega / unidad de embalaje)
// dentro de un contenedor. Posee sus posiciones en orden; los contadores por
// categoría se recalculan siempre, nunca se persisten.
type DeliveryGroup struct {
	ContainerID    string
	GroupID        string
	Description    string
	Lines          []*LineItem
	CategoryCounts map[string]int
}

// Container unidad física superior (matrícula / bulto) bajo reconciliación.
// RefreshTrigger es monotónico: se incrementa tras cada refetch parcial para
// que las vistas dependientes se vuelvan a renderizar.
type Container struct {
	ContainerID    string
	Description    string
	Expanded       bool
	RefreshTrigger int64
	Groups         []*DeliveryGroup
}

// FindGroup devuelve la agrupación con el ID dado, o nil si no existe.
func (c *Container) FindGroup(groupID string) *DeliveryGroup {
	for _, g := range c.Groups {
		if g.GroupID == groupID {
			return g
		}
	}
	return nil
}
