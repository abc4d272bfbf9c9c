// Package projection menampung materialized view lokal satu klien: daftar
// baris keranjang dan participant milik sesinya, dijaga tetap mutakhir lewat
// gabungan full reload dan penerapan inkremental event change feed.
package projection

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/realtime"
	"github.com/tablemate/tablemate/services"
)

// FeedState adalah status koneksi subscription change feed.
type FeedState string

const (
	FeedDisconnected FeedState = "disconnected"
	FeedConnecting   FeedState = "connecting"
	FeedSubscribed   FeedState = "subscribed"
	FeedErrored      FeedState = "errored"
)

// ViewState adalah status materialized view itu sendiri.
type ViewState string

const (
	ViewIdle    ViewState = "idle"
	ViewLoading ViewState = "loading"
	ViewReady   ViewState = "ready"
	ViewError   ViewState = "error"
)

// Loader adalah sisi baca store yang dipakai full reload.
type Loader interface {
	CartSnapshot(sessionID uint) (*models.Order, error)
	ListParticipants(sessionID uint) ([]models.Participant, error)
}

// Projection memegang view lokal {cart lines, participants} satu klien.
// Full reload ditunda sampai subscription mencapai subscribed supaya tidak
// ada event yang jatuh di celah antara fetch awal dan berdirinya
// subscription; setelah subscribed, event pihak lain diterapkan inkremental
// dan mutasi sendiri selalu diikuti reload penuh.
type Projection struct {
	mu sync.Mutex

	sessionID uint
	selfID    uint // participant id milik klien ini
	loader    Loader

	feedState FeedState
	viewState ViewState
	lastErr   error

	// reloadPending menandai reload yang diminta sebelum subscribed.
	reloadPending bool

	orderID      uint
	lines        map[uint]models.OrderItem
	participants map[uint]models.Participant
}

func New(sessionID, selfID uint, loader Loader) *Projection {
	return &Projection{
		sessionID:    sessionID,
		selfID:       selfID,
		loader:       loader,
		feedState:    FeedDisconnected,
		viewState:    ViewIdle,
		lines:        make(map[uint]models.OrderItem),
		participants: make(map[uint]models.Participant),
	}
}

// OnConnecting dipanggil saat klien mulai membuka subscription.
func (p *Projection) OnConnecting() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedState = FeedConnecting
}

// OnSubscribed dipanggil saat subscription berdiri. Reload yang tertunda
// (termasuk load awal) dijalankan sekarang: subscribe dulu, baru load.
func (p *Projection) OnSubscribed() error {
	p.mu.Lock()
	p.feedState = FeedSubscribed
	needReload := p.reloadPending || p.viewState == ViewIdle
	p.reloadPending = false
	p.mu.Unlock()

	if needReload {
		return p.Reload()
	}
	return nil
}

// OnFeedError menandai subscription gagal. View yang sudah ada dibiarkan;
// klien bertanggung jawab reload manual dan/atau mencoba subscribe ulang.
func (p *Projection) OnFeedError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedState = FeedErrored
	p.lastErr = err
}

// Close melepas subscription dan mengembalikan status ke disconnected.
// Tidak ada efek apa pun ke state server; keluar dari sesi adalah panggilan
// Leave yang eksplisit, bukan akibat putus koneksi.
func (p *Projection) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.feedState = FeedDisconnected
}

// Reload mengganti seluruh view dengan hasil fetch otoritatif. Dipanggil
// setelah setiap mutasi milik klien sendiri (write-then-reload). Sebelum
// subscribed, reload hanya dicatat dan dijalankan saat OnSubscribed.
func (p *Projection) Reload() error {
	p.mu.Lock()
	if p.feedState != FeedSubscribed {
		p.reloadPending = true
		p.mu.Unlock()
		return nil
	}
	p.viewState = ViewLoading
	p.mu.Unlock()

	order, err := p.loader.CartSnapshot(p.sessionID)
	if err != nil {
		p.fail(err)
		return err
	}
	participants, err := p.loader.ListParticipants(p.sessionID)
	if err != nil {
		p.fail(err)
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.orderID = order.ID
	p.lines = make(map[uint]models.OrderItem, len(order.OrderItems))
	for _, line := range order.OrderItems {
		p.lines[line.ID] = line
	}
	p.participants = make(map[uint]models.Participant, len(participants))
	for _, participant := range participants {
		p.participants[participant.ID] = participant
	}
	p.viewState = ViewReady
	p.lastErr = nil
	return nil
}

func (p *Projection) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.viewState = ViewError
	p.lastErr = err
}

// selfOriginated melaporkan apakah event berasal dari mutasi klien ini
// sendiri; mutator sudah reconcile lewat reload, jadi event-nya dilewati.
func (p *Projection) selfOriginated(change realtime.Change) bool {
	return change.OriginParticipantID != nil && *change.OriginParticipantID == p.selfID
}

// ApplyCartChange menerapkan satu event order_items langsung ke view:
// insert/replace/remove per id, tanpa round trip ke store.
func (p *Projection) ApplyCartChange(change realtime.Change) error {
	if p.selfOriginated(change) {
		return nil
	}

	raw := change.New
	if change.EventType == models.ActionDelete {
		raw = change.Old
	}
	var line models.OrderItem
	if err := json.Unmarshal(raw, &line); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch change.EventType {
	case models.ActionInsert, models.ActionUpdate:
		if p.orderID == 0 {
			p.orderID = line.OrderID
		}
		if line.OrderID != p.orderID {
			// Baris milik cart lain (cart baru setelah submit): adopsi
			// order barunya dan mulai dari kosong.
			p.orderID = line.OrderID
			p.lines = make(map[uint]models.OrderItem)
		}
		p.lines[line.ID] = line
	case models.ActionDelete:
		delete(p.lines, line.ID)
	}
	return nil
}

// ApplyOrderChange menangani transisi status order. Saat cart yang sedang
// ditampilkan keluar dari status cart (disubmit), view keranjang dikosongkan
// sampai ada cart baru.
func (p *Projection) ApplyOrderChange(change realtime.Change) error {
	var order models.Order
	if err := json.Unmarshal(change.New, &order); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if order.ID == p.orderID && order.Status != models.OrderStatusCart {
		p.orderID = 0
		p.lines = make(map[uint]models.OrderItem)
	}
	return nil
}

// ApplyParticipantChange menerapkan event participant; yang sudah keluar
// tetap disimpan (has_left) demi atribusi.
func (p *Projection) ApplyParticipantChange(change realtime.Change) error {
	if p.selfOriginated(change) {
		return nil
	}

	var participant models.Participant
	if err := json.Unmarshal(change.New, &participant); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.participants[participant.ID] = participant
	return nil
}

// Lines mengembalikan baris keranjang terurut id (urutan penambahan).
func (p *Projection) Lines() []models.OrderItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	lines := make([]models.OrderItem, 0, len(p.lines))
	for _, line := range p.lines {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines
}

// Participants mengembalikan participant terurut waktu bergabung.
func (p *Projection) Participants() []models.Participant {
	p.mu.Lock()
	defer p.mu.Unlock()

	participants := make([]models.Participant, 0, len(p.participants))
	for _, participant := range p.participants {
		participants = append(participants, participant)
	}
	sort.Slice(participants, func(i, j int) bool {
		if participants[i].JoinedAt.Equal(participants[j].JoinedAt) {
			return participants[i].ID < participants[j].ID
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	return participants
}

// Total menurunkan total keranjang dari baris yang ada di view, tidak pernah
// dari subtotal denormalisasi.
func (p *Projection) Total() float64 {
	return services.Total(p.Lines())
}

func (p *Projection) FeedState() FeedState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feedState
}

func (p *Projection) ViewState() ViewState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewState
}

func (p *Projection) LastErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}
