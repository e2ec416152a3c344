package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/conteo-api/internal/application/dto"
	appRecon "github.com/jhoicas/conteo-api/internal/application/recon"
	"github.com/jhoicas/conteo-api/internal/domain"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
	domRecon "github.com/jhoicas/conteo-api/internal/domain/recon"
)

// ReconHandler maneja las peticiones HTTP del núcleo de reconciliación:
// carga de jerarquía, vistas agregadas y las cuatro acciones primarias.
type ReconHandler struct {
	loadUC      *appRecon.LoadUseCase
	coordinator *appRecon.Coordinator
}

// NewReconHandler construye el handler.
func NewReconHandler(loadUC *appRecon.LoadUseCase, coordinator *appRecon.Coordinator) *ReconHandler {
	return &ReconHandler{loadUC: loadUC, coordinator: coordinator}
}

// Load godoc
// @Summary      Cargar jerarquía con borradores superpuestos
// @Tags         recon
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.LoadRequest  true  "mode IMMEDIATE|DEFERRED, filtros opcionales"
// @Success      200   {object}  dto.LoadResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      502   {object}  dto.ErrorResponse
// @Router       /api/containers/load [post]
func (h *ReconHandler) Load(c *fiber.Ctx) error {
	userID, plantID := GetUserID(c), GetPlantID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.LoadRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	mode, ok := parseMode(in.Mode)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "mode debe ser IMMEDIATE o DEFERRED"})
	}

	s, err := h.loadUC.Load(c.Context(), userID, plantID, mode, appRecon.Filter{
		PlantID:     plantID,
		ContainerID: in.ContainerID,
		Queue:       in.Queue,
	})
	if err != nil {
		return mapError(c, err)
	}

	resp := dto.LoadResponse{Mode: string(s.Mode)}
	for _, cont := range s.Containers {
		resp.Containers = append(resp.Containers, toContainerDTO(cont))
	}
	return c.JSON(resp)
}

// Aggregates godoc
// @Summary      Vistas agregadas por material para la selección de agrupaciones
// @Tags         recon
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "ID de contenedor"
// @Param        groups  query  string  false  "IDs de agrupación separados por coma; vacío = todas"
// @Success      200  {array}   dto.AggregateResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/containers/{id}/aggregates [get]
func (h *ReconHandler) Aggregates(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	views, _, err := h.coordinator.Aggregates(userID, c.Params("id"), splitGroups(c.Query("groups")))
	if err != nil {
		return mapError(c, err)
	}

	out := make([]dto.AggregateResponse, 0, len(views))
	for _, v := range views {
		out = append(out, toAggregateDTO(v))
	}
	return c.JSON(fiber.Map{"total": len(out), "aggregates": out})
}

// EnterQuantity godoc
// @Summary      Capturar cantidad agregada y repartirla entre posiciones
// @Description  Convierte base + pallets + cajas en una cantidad única con los
//
//	factores del material y la reparte proporcionalmente a los
//	objetivos originales; el resto va a la última posición.
//
// @Tags         recon
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id        path  string                   true  "ID de contenedor"
// @Param        material  path  string                   true  "Código de material"
// @Param        body      body  dto.EnterQuantityRequest true  "captura"
// @Success      200  {object}  dto.EnterQuantityResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/containers/{id}/aggregates/{material}/quantity [post]
func (h *ReconHandler) EnterQuantity(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.EnterQuantityRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	res, err := h.coordinator.EnterAggregateQuantity(c.Context(), userID, appRecon.QuantityInput{
		ContainerID: c.Params("id"),
		Material:    c.Params("material"),
		Groups:      in.Groups,
		Base:        parseQty(in.Base),
		Pallets:     parseQty(in.Pallets),
		Crates:      parseQty(in.Crates),
		Override:    in.Override,
	})
	if err != nil {
		return mapError(c, err)
	}

	resp := dto.EnterQuantityResponse{Total: res.Total.String(), Warning: res.Warning}
	for _, s := range res.Shares {
		resp.Shares = append(resp.Shares, dto.ShareResponse{
			Key:      toKeyDTO(s.Key),
			Quantity: s.Quantity.String(),
			Status:   s.Status,
			Severity: s.Severity,
		})
	}
	return c.JSON(resp)
}

// Finalize godoc
// @Summary      Finalizar (aprobar) una posición individual
// @Description  Con diferencia de cantidad y sin motivo se rechaza localmente,
//
//	sin llamada al backend.
//
// @Tags         recon
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.FinalizeRequest  true  "clave, cantidad contada, motivo"
// @Success      200  {object}  dto.FinalizeResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/lines/finalize [post]
func (h *ReconHandler) Finalize(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.FinalizeRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	res, err := h.coordinator.FinalizeLine(c.Context(), userID, appRecon.FinalizeInput{
		Key: entity.LineKey{
			ContainerID: in.Key.ContainerID,
			GroupID:     in.Key.GroupID,
			LineID:      in.Key.LineID,
		},
		Counted: parseQty(in.Counted),
		Reason:  strings.TrimSpace(in.Reason),
	})
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(dto.FinalizeResponse{Status: res.Status, Severity: res.Severity, Warning: res.Warning})
}

// Commit godoc
// @Summary      Enviar en lote los borradores del contenedor
// @Description  Todos los borradores del usuario para el contenedor van en una
//
//	sola llamada; si falla, ninguno se elimina y quedan locales
//	para reintentar.
//
// @Tags         recon
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de contenedor"
// @Success      200  {object}  dto.CommitResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Router       /api/containers/{id}/commit [post]
func (h *ReconHandler) Commit(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	batchID, n, err := h.coordinator.CommitBatch(c.Context(), userID, c.Params("id"))
	if err != nil {
		return mapError(c, err)
	}
	return c.JSON(dto.CommitResponse{BatchID: batchID, Drafts: n})
}

// Discard godoc
// @Summary      Descartar las ediciones locales del contenedor
// @Tags         recon
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "ID de contenedor"
// @Success      200  {object}  map[string]string
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/containers/{id}/discard [post]
func (h *ReconHandler) Discard(c *fiber.Ctx) error {
	userID := GetUserID(c)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	if err := h.coordinator.DiscardContainer(c.Context(), userID, c.Params("id")); err != nil {
		return mapError(c, err)
	}
	return c.JSON(fiber.Map{"message": "contenedor descartado y recargado"})
}

// ── Mapeo de errores y DTOs ───────────────────────────────────────────────────

// mapError traduce los sentinelas de dominio a códigos HTTP. Los mensajes
// del backend llegan intactos dentro del texto del error.
func mapError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrApprovalNeedsReason), errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNoDrafts):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "NO_DRAFTS", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrNoSession):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NO_SESSION", Message: err.Error()})
	case errors.Is(err, domain.ErrCommitInFlight):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "COMMIT_IN_FLIGHT", Message: err.Error()})
	case errors.Is(err, domain.ErrBackend):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "BACKEND", Message: err.Error()})
	case errors.Is(err, domain.ErrDraftStorage):
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "STORAGE", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

func parseMode(s string) (appRecon.Mode, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(appRecon.ModeImmediate):
		return appRecon.ModeImmediate, true
	case string(appRecon.ModeDeferred), "":
		return appRecon.ModeDeferred, true
	}
	return "", false
}

// parseQty cantidad del operario: entrada no numérica se coerciona a cero.
func parseQty(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func splitGroups(q string) []string {
	if q == "" {
		return nil
	}
	var out []string
	for _, g := range strings.Split(q, ",") {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

func toKeyDTO(k entity.LineKey) dto.LineKeyDTO {
	return dto.LineKeyDTO{ContainerID: k.ContainerID, GroupID: k.GroupID, LineID: k.LineID}
}

func toLineDTO(l *entity.LineItem) dto.LineItemResponse {
	return dto.LineItemResponse{
		ContainerID:  l.ContainerID,
		GroupID:      l.GroupID,
		LineID:       l.LineID,
		Material:     l.Material,
		MaterialText: l.MaterialText,
		Category:     l.Category,
		TargetQty:    l.TargetQty.String(),
		CountedQty:   l.CountedQty.String(),
		Unit:         l.Unit,
		Approved:     l.Approved,
		Reason:       l.Reason,
		Status:       domRecon.StatusOf(l),
		Severity:     domRecon.SeverityOf(l),
	}
}

func toContainerDTO(c *entity.Container) dto.ContainerResponse {
	out := dto.ContainerResponse{
		ContainerID:    c.ContainerID,
		Description:    c.Description,
		Expanded:       c.Expanded,
		RefreshTrigger: c.RefreshTrigger,
	}
	for _, g := range c.Groups {
		gd := dto.GroupResponse{
			GroupID:        g.GroupID,
			Description:    g.Description,
			CategoryCounts: g.CategoryCounts,
		}
		for _, l := range g.Lines {
			gd.Lines = append(gd.Lines, toLineDTO(l))
		}
		out.Groups = append(out.Groups, gd)
	}
	return out
}

func toAggregateDTO(v *entity.AggregateView) dto.AggregateResponse {
	out := dto.AggregateResponse{
		Material:     v.Material,
		MaterialText: v.MaterialText,
		Unit:         v.Unit,
		TargetQty:    v.TargetQty.String(),
		CountedQty:   v.CountedQty.String(),
		Approved:     v.Approved,
		Reason:       v.Reason,
	}
	for _, k := range v.Lines {
		out.Lines = append(out.Lines, toKeyDTO(k))
	}
	return out
}
