package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
)

// Event types
const (
	EventCartUpdate        = "cart_update"
	EventOrderUpdate       = "order_update"
	EventParticipantUpdate = "participant_update"
	EventSessionUpdate     = "session_update"
)

// Change adalah payload satu event change feed: aksi plus citra baris
// sebelum/sesudah. OriginParticipantID dipakai klien untuk melewati
// event hasil mutasinya sendiri.
type Change struct {
	EventType           string          `json:"event_type"` // INSERT | UPDATE | DELETE
	New                 json.RawMessage `json:"new,omitempty"`
	Old                 json.RawMessage `json:"old,omitempty"`
	OriginParticipantID *uint           `json:"origin_participant_id,omitempty"`
}

type Message struct {
	Event string `json:"event"`
	Data  Change `json:"data"`
}

type client struct {
	sessionID     uint
	participantID uint
}

// Hub menampung semua koneksi klien, di-scope per sesi.
type Hub struct {
	clients map[*websocket.Conn]client
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]client),
}

// RegisterClient -> menambahkan connection untuk satu sesi
func RegisterClient(conn *websocket.Conn, sessionID, participantID uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = client{sessionID: sessionID, participantID: participantID}
}

// UnregisterClient -> melepaskan connection
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// SessionClientCount -> jumlah subscriber satu sesi
func SessionClientCount(sessionID uint) int {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	n := 0
	for _, cl := range hub.clients {
		if cl.sessionID == sessionID {
			n++
		}
	}
	return n
}

// Broadcast -> mengirim satu event ke semua subscriber sesi, termasuk
// klien milik mutator (klien itu sendiri yang memutuskan skip).
func Broadcast(sessionID uint, msg Message) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	for conn, cl := range hub.clients {
		if cl.sessionID != sessionID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			// Koneksi mati dibersihkan oleh read loop handler
			continue
		}
	}
}
