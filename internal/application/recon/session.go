package recon

import (
	"sync"

	"github.com/jhoicas/conteo-api/internal/domain/entity"
)

// Mode modo de sincronización de la pantalla que cargó la sesión.
type Mode string

const (
	// ModeImmediate estilo salida de mercancía: cada edición dispara una
	// actualización individual contra el backend.
	ModeImmediate Mode = "IMMEDIATE"
	// ModeDeferred estilo entrada de mercancía: las ediciones van a
	// borradores durables y se envían en lote con el commit explícito.
	ModeDeferred Mode = "DEFERRED"
)

// Session espacio de trabajo en memoria de un operario: el árbol de
// contenedores cargado más un índice por clave de posición. No hay
// referencias inversas vivas entre niveles; toda búsqueda es por clave.
type Session struct {
	UserID     string
	PlantID    string
	Mode       Mode
	Containers []*entity.Container

	mu         sync.RWMutex
	index      map[entity.LineKey]*entity.LineItem
	committing map[string]bool // contenedores con envío diferido en curso
}

// NewSession construye la sesión e indexa todas las posiciones.
func NewSession(userID, plantID string, mode Mode, containers []*entity.Container) *Session {
	s := &Session{
		UserID:     userID,
		PlantID:    plantID,
		Mode:       mode,
		Containers: containers,
		committing: make(map[string]bool),
	}
	s.rebuildIndex()
	return s
}

// rebuildIndex reconstruye el índice por clave. Llamar con mu tomado
// (o antes de publicar la sesión).
func (s *Session) rebuildIndex() {
	idx := make(map[entity.LineKey]*entity.LineItem)
	for _, c := range s.Containers {
		for _, g := range c.Groups {
			for _, l := range g.Lines {
				idx[l.Key()] = l
			}
		}
	}
	s.index = idx
}

// Line busca una posición por clave. Devuelve nil si no está cargada.
func (s *Session) Line(key entity.LineKey) *entity.LineItem {
	return s.index[key]
}

// Container busca un contenedor cargado por ID.
func (s *Session) Container(containerID string) *entity.Container {
	for _, c := range s.Containers {
		if c.ContainerID == containerID {
			return c
		}
	}
	return nil
}

// ReplaceGroup sustituye una agrupación completa tras un refetch dirigido,
// reindexa e incrementa RefreshTrigger del contenedor para forzar el
// re-render de las vistas dependientes. Llamar con mu tomado.
func (s *Session) ReplaceGroup(containerID string, fresh *entity.DeliveryGroup) {
	c := s.Container(containerID)
	if c == nil {
		return
	}
	for i, g := range c.Groups {
		if g.GroupID == fresh.GroupID {
			c.Groups[i] = fresh
			break
		}
	}
	c.RefreshTrigger++
	s.rebuildIndex()
}

// ReplaceContainer sustituye un contenedor completo tras una recarga
// autoritativa, preservando el flag de expansión de la UI. Llamar con mu tomado.
func (s *Session) ReplaceContainer(fresh *entity.Container) {
	for i, c := range s.Containers {
		if c.ContainerID == fresh.ContainerID {
			fresh.Expanded = c.Expanded
			fresh.RefreshTrigger = c.RefreshTrigger + 1
			s.Containers[i] = fresh
			s.rebuildIndex()
			return
		}
	}
}

// beginCommit marca el contenedor con envío en curso. Devuelve false si ya
// hay uno: los commits concurrentes por contenedor se rechazan.
func (s *Session) beginCommit(containerID string) bool {
	if s.committing[containerID] {
		return false
	}
	s.committing[containerID] = true
	return true
}

// endCommit limpia la marca de envío en curso, con o sin éxito.
func (s *Session) endCommit(containerID string) {
	delete(s.committing, containerID)
}

// SessionStore sesiones activas por usuario. Una sola sesión lógica por
// operario: cargar de nuevo reemplaza la anterior.
type SessionStore struct {
	mu     sync.RWMutex
	byUser map[string]*Session
}

// NewSessionStore construye el almacén de sesiones.
func NewSessionStore() *SessionStore {
	return &SessionStore{byUser: make(map[string]*Session)}
}

// Get devuelve la sesión del usuario o nil.
func (st *SessionStore) Get(userID string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.byUser[userID]
}

// Put publica (o reemplaza) la sesión del usuario.
func (st *SessionStore) Put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.byUser[s.UserID] = s
}
