package odata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/conteo-api/internal/application/recon"
	"github.com/jhoicas/conteo-api/internal/domain/entity"
	"github.com/jhoicas/conteo-api/pkg/config"
)

var _ recon.Backend = (*Client)(nil)

// Client implementa el puerto Backend contra un servicio OData v2 estilo
// SAP Gateway. Usa net/http de la stdlib con basic auth y el handshake de
// token CSRF del gateway (fetch en un GET, replay en cada escritura, un
// reintento si el token expiró).
//
// La red del almacén es intermitente: el timeout viene de configuración y
// los mensajes de error del backend se devuelven tal cual, sin traducir.
type Client struct {
	httpClient *http.Client
	serviceURL string
	user       string
	password   string

	mu   sync.Mutex
	csrf string
}

// NewClient construye el cliente OData con la configuración del backend.
func NewClient(cfg config.BackendConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		serviceURL: cfg.ServiceURL(),
		user:       cfg.User,
		password:   cfg.Password,
	}
}

// FetchHierarchy lee los contenedores con agrupaciones y posiciones anidadas
// ($expand de dos niveles).
func (c *Client) FetchHierarchy(ctx context.Context, f recon.Filter) ([]*entity.Container, error) {
	q := url.Values{}
	q.Set("$expand", "GroupSet/LineSet")
	q.Set("$format", "json")
	if filter := buildFilter(f); filter != "" {
		q.Set("$filter", filter)
	}

	body, err := c.do(ctx, http.MethodGet, c.serviceURL+"/ContainerSet?"+q.Encode(), nil, false)
	if err != nil {
		return nil, err
	}

	var env hierarchyEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("odata: respuesta de jerarquía ilegible: %w", err)
	}
	out := make([]*entity.Container, 0, len(env.D.Results))
	for _, cw := range env.D.Results {
		out = append(out, toEntityContainer(cw))
	}
	return out, nil
}

// FetchGroup relee una sola agrupación con sus posiciones (refetch dirigido).
func (c *Client) FetchGroup(ctx context.Context, containerID, groupID string) (*entity.DeliveryGroup, error) {
	u := fmt.Sprintf("%s/GroupSet(ContainerId='%s',GroupId='%s')?$expand=LineSet&$format=json",
		c.serviceURL, escapeKey(containerID), escapeKey(groupID))

	body, err := c.do(ctx, http.MethodGet, u, nil, false)
	if err != nil {
		return nil, err
	}
	var env groupEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("odata: respuesta de agrupación ilegible: %w", err)
	}
	return toEntityGroup(env.D), nil
}

// UpdateLine actualiza una posición exacta con MERGE (tunneling vía
// X-HTTP-Method, como exigen los gateways v2 antiguos).
func (c *Client) UpdateLine(ctx context.Context, key entity.LineKey, upd recon.LineUpdate) error {
	u := fmt.Sprintf("%s/LineSet(ContainerId='%s',GroupId='%s',LineId='%s')",
		c.serviceURL, escapeKey(key.ContainerID), escapeKey(key.GroupID), escapeKey(key.LineID))

	payload, err := json.Marshal(lineUpdateWire{
		CountedQty: upd.Quantity.String(),
		Approved:   upd.Approved,
		Reason:     upd.Reason,
	})
	if err != nil {
		return fmt.Errorf("odata: serializar actualización: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, u, payload, true)
	return err
}

// SubmitBatch envía el lote completo de borradores de un contenedor en una
// sola llamada al function import CommitContainer, en el orden recibido.
func (c *Client) SubmitBatch(ctx context.Context, containerID, batchID string, drafts []*entity.Draft) error {
	batch := batchWire{ContainerID: containerID, BatchID: batchID}
	for _, d := range drafts {
		batch.Drafts = append(batch.Drafts, batchLineWire{
			GroupID:  d.GroupID,
			LineID:   d.LineID,
			Material: d.Material,
			Quantity: d.Quantity.String(),
			Unit:     d.Unit,
			Approved: d.Approved,
			Reason:   d.Reason,
		})
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("odata: serializar lote: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, c.serviceURL+"/CommitContainer", payload, false)
	return err
}

// ── Transporte ────────────────────────────────────────────────────────────────

// do ejecuta la petición con auth, CSRF en escrituras y un reintento si el
// gateway invalidó el token. Devuelve el cuerpo en éxito y el mensaje de
// error del backend, sin modificar, en fallo.
func (c *Client) do(ctx context.Context, method, u string, payload []byte, merge bool) ([]byte, error) {
	isWrite := method != http.MethodGet

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("odata: construir petición: %w", err)
		}
		req.SetBasicAuth(c.user, c.password)
		req.Header.Set("Accept", "application/json")
		if isWrite {
			req.Header.Set("Content-Type", "application/json")
			if merge {
				req.Header.Set("X-HTTP-Method", "MERGE")
			}
			token, err := c.csrfToken(ctx, false)
			if err != nil {
				return nil, err
			}
			req.Header.Set("X-CSRF-Token", token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("odata: %s %s: %w", method, u, err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("odata: leer respuesta: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		// Token CSRF vencido: refrescar y reintentar una sola vez
		if isWrite && attempt == 0 && resp.StatusCode == http.StatusForbidden &&
			strings.EqualFold(resp.Header.Get("X-CSRF-Token"), "Required") {
			if _, err := c.csrfToken(ctx, true); err != nil {
				return nil, err
			}
			continue
		}

		return nil, fmt.Errorf("odata: %s", backendMessage(resp.Header.Get("Content-Type"), body, resp.StatusCode))
	}
}

// csrfToken devuelve el token cacheado o lo trae del servicio con el
// handshake estándar (GET con X-CSRF-Token: Fetch).
func (c *Client) csrfToken(ctx context.Context, refresh bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.csrf != "" && !refresh {
		return c.csrf, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serviceURL+"/", nil)
	if err != nil {
		return "", fmt.Errorf("odata: construir fetch de token: %w", err)
	}
	req.SetBasicAuth(c.user, c.password)
	req.Header.Set("X-CSRF-Token", "Fetch")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("odata: fetch de token CSRF: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	token := resp.Header.Get("X-CSRF-Token")
	if token == "" || strings.EqualFold(token, "Required") {
		return "", fmt.Errorf("odata: el servicio no entregó token CSRF (HTTP %d)", resp.StatusCode)
	}
	c.csrf = token
	return token, nil
}

// backendMessage extrae el mensaje de error del backend sin traducirlo.
// Los gateways v2 responden XML por defecto y JSON si se negoció; se
// intentan ambos y, si ninguno aplica, se devuelve el cuerpo crudo.
func backendMessage(contentType string, body []byte, status int) string {
	if strings.Contains(contentType, "json") {
		var e jsonError
		if err := json.Unmarshal(body, &e); err == nil && e.Error.Message.Value != "" {
			return e.Error.Message.Value
		}
	}
	if strings.Contains(contentType, "xml") {
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(body); err == nil {
			if el := doc.FindElement("//message"); el != nil && strings.TrimSpace(el.Text()) != "" {
				return strings.TrimSpace(el.Text())
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Sprintf("HTTP %d sin detalle", status)
	}
	return msg
}

// buildFilter arma el $filter del gateway a partir de los criterios.
func buildFilter(f recon.Filter) string {
	var parts []string
	if f.PlantID != "" {
		parts = append(parts, fmt.Sprintf("Plant eq '%s'", escapeKey(f.PlantID)))
	}
	if f.ContainerID != "" {
		parts = append(parts, fmt.Sprintf("ContainerId eq '%s'", escapeKey(f.ContainerID)))
	}
	if f.Queue != "" {
		parts = append(parts, fmt.Sprintf("Queue eq '%s'", escapeKey(f.Queue)))
	}
	return strings.Join(parts, " and ")
}

// escapeKey duplica comillas simples según la convención de literales OData.
func escapeKey(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
