package dto

// LoadRequest carga de jerarquía para la sesión del operario.
type LoadRequest struct {
	Mode        string `json:"mode"`         // "IMMEDIATE" (salida) | "DEFERRED" (entrada)
	ContainerID string `json:"container_id"` // opcional: un solo contenedor
	Queue       string `json:"queue"`        // opcional: cola de trabajo
}

// LineKeyDTO identidad completa de una posición.
type LineKeyDTO struct {
	ContainerID string `json:"container_id"`
	GroupID     string `json:"group_id"`
	LineID      string `json:"line_id"`
}

// LineItemResponse posición con estado y severidad derivados.
type LineItemResponse struct {
	ContainerID  string `json:"container_id"`
	GroupID      string `json:"group_id"`
	LineID       string `json:"line_id"`
	Material     string `json:"material"`
	MaterialText string `json:"material_text"`
	Category     string `json:"category"`
	TargetQty    string `json:"target_qty"`
	CountedQty   string `json:"counted_qty"`
	Unit         string `json:"unit"`
	Approved     bool   `json:"approved"`
	Reason       string `json:"reason,omitempty"`
	Status       string `json:"status"`
	Severity     string `json:"severity"`
}

// GroupResponse agrupación con sus posiciones y contadores por categoría.
type GroupResponse struct {
	GroupID        string             `json:"group_id"`
	Description    string             `json:"description,omitempty"`
	CategoryCounts map[string]int     `json:"category_counts"`
	Lines          []LineItemResponse `json:"lines"`
}

// ContainerResponse contenedor completo para renderizar.
type ContainerResponse struct {
	ContainerID    string          `json:"container_id"`
	Description    string          `json:"description,omitempty"`
	Expanded       bool            `json:"expanded"`
	RefreshTrigger int64           `json:"refresh_trigger"`
	Groups         []GroupResponse `json:"groups"`
}

// LoadResponse jerarquía cargada con borradores ya superpuestos.
type LoadResponse struct {
	Mode       string              `json:"mode"`
	Containers []ContainerResponse `json:"containers"`
}

// AggregateResponse vista agregada por material para la selección actual.
type AggregateResponse struct {
	Material     string       `json:"material"`
	MaterialText string       `json:"material_text"`
	Unit         string       `json:"unit"`
	TargetQty    string       `json:"target_qty"`
	CountedQty   string       `json:"counted_qty"`
	Approved     bool         `json:"approved"`
	Reason       string       `json:"reason,omitempty"`
	Lines        []LineKeyDTO `json:"lines"`
}

// EnterQuantityRequest captura de cantidad sobre una vista agregada.
// base/pallets/crates se combinan con los factores del material; si
// override es true, base es el total editado a mano.
type EnterQuantityRequest struct {
	Groups   []string `json:"groups"`
	Base     string   `json:"base"`
	Pallets  string   `json:"pallets"`
	Crates   string   `json:"crates"`
	Override bool     `json:"override"`
}

// ShareResponse parte repartida a una posición contribuyente.
type ShareResponse struct {
	Key      LineKeyDTO `json:"key"`
	Quantity string     `json:"quantity"`
	Status   string     `json:"status"`
	Severity string     `json:"severity"`
}

// EnterQuantityResponse resultado del reparto. Warning no vacío = la
// edición vale en memoria pero su durabilidad no está garantizada.
type EnterQuantityResponse struct {
	Total   string          `json:"total"`
	Shares  []ShareResponse `json:"shares"`
	Warning string          `json:"warning,omitempty"`
}

// FinalizeRequest aprobación de una posición individual.
type FinalizeRequest struct {
	Key     LineKeyDTO `json:"key"`
	Counted string     `json:"counted"`
	Reason  string     `json:"reason"`
}

// FinalizeResponse estado resultante de la posición.
type FinalizeResponse struct {
	Status   string `json:"status"`
	Severity string `json:"severity"`
	Warning  string `json:"warning,omitempty"`
}

// CommitResponse confirmación del envío en lote.
type CommitResponse struct {
	BatchID string `json:"batch_id"`
	Drafts  int    `json:"drafts"`
}
