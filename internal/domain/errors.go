package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound       = errors.New("recurso no encontrado")
	ErrInvalidInput   = errors.New("entrada inválida")
	ErrUnauthorized   = errors.New("no autorizado")
	ErrNoSession      = errors.New("no hay jerarquía cargada para el usuario")
	ErrNoDrafts       = errors.New("no hay borradores pendientes para el contenedor")
	ErrCommitInFlight = errors.New("ya hay un envío en curso para el contenedor")

	// ErrApprovalNeedsReason: no se puede aprobar con diferencia de cantidad
	// y sin motivo. Se rechaza localmente, nunca llega al backend.
	ErrApprovalNeedsReason = errors.New("cantidad distinta al objetivo: se requiere un motivo")

	// ErrBackend envuelve fallas del servicio OData; el mensaje original
	// del backend se conserva en la cadena de error tal cual llegó.
	ErrBackend = errors.New("error del backend")

	// ErrDraftStorage indica que el borrador no pudo persistirse. No es fatal:
	// el estado optimista en memoria se conserva, pero la durabilidad de esa
	// edición no está garantizada tras un reinicio.
	ErrDraftStorage = errors.New("no se pudo persistir el borrador")
)
