package projection

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tablemate/tablemate/models"
	"github.com/tablemate/tablemate/realtime"
)

// fakeLoader membalas snapshot statis dan menghitung berapa kali dipanggil.
type fakeLoader struct {
	order        *models.Order
	participants []models.Participant
	snapshotErr  error
	calls        int
}

func (f *fakeLoader) CartSnapshot(sessionID uint) (*models.Order, error) {
	f.calls++
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.order, nil
}

func (f *fakeLoader) ListParticipants(sessionID uint) ([]models.Participant, error) {
	return f.participants, nil
}

func newLoader() *fakeLoader {
	return &fakeLoader{
		order: &models.Order{
			ID:        10,
			SessionID: 1,
			Status:    models.OrderStatusCart,
			OrderItems: []models.OrderItem{
				{ID: 1, OrderID: 10, MenuID: 5, Quantity: 2, UnitPrice: 5.00, TotalPrice: 10.00},
			},
		},
		participants: []models.Participant{
			{ID: 1, SessionID: 1, DisplayName: "Andi", JoinedAt: time.Now()},
		},
	}
}

func mustJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	assert.NoError(t, err)
	return raw
}

func TestReloadDeferredUntilSubscribed(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)

	assert.Equal(t, FeedDisconnected, p.FeedState())
	assert.Equal(t, ViewIdle, p.ViewState())

	// Reload sebelum subscribed tidak boleh menyentuh store.
	assert.NoError(t, p.Reload())
	assert.Zero(t, loader.calls)
	assert.Equal(t, ViewIdle, p.ViewState())

	p.OnConnecting()
	assert.Equal(t, FeedConnecting, p.FeedState())
	assert.Zero(t, loader.calls)

	assert.NoError(t, p.OnSubscribed())
	assert.Equal(t, FeedSubscribed, p.FeedState())
	assert.Equal(t, ViewReady, p.ViewState())
	assert.Equal(t, 1, loader.calls)
	assert.Len(t, p.Lines(), 1)
	assert.Len(t, p.Participants(), 1)
	assert.InDelta(t, 10.00, p.Total(), 0.001)
}

func TestOnSubscribedSkipsReloadWhenViewReady(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())
	assert.Equal(t, 1, loader.calls)

	// Putus lalu subscribe ulang tanpa reload tertunda: view ready dibiarkan.
	p.OnFeedError(errors.New("connection reset"))
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())
	assert.Equal(t, 1, loader.calls)
	assert.Equal(t, ViewReady, p.ViewState())
}

func TestFeedErrorKeepsExistingView(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())

	p.OnFeedError(errors.New("websocket closed"))
	assert.Equal(t, FeedErrored, p.FeedState())
	assert.Equal(t, ViewReady, p.ViewState())
	assert.Len(t, p.Lines(), 1)
	assert.EqualError(t, p.LastErr(), "websocket closed")
}

func TestReloadFailureMarksViewError(t *testing.T) {
	loader := newLoader()
	loader.snapshotErr = errors.New("store unavailable")
	p := New(1, 1, loader)
	p.OnConnecting()

	err := p.OnSubscribed()
	assert.EqualError(t, err, "store unavailable")
	assert.Equal(t, ViewError, p.ViewState())
	assert.Equal(t, FeedSubscribed, p.FeedState())

	// Reload manual setelah store pulih memperbaiki view.
	loader.snapshotErr = nil
	assert.NoError(t, p.Reload())
	assert.Equal(t, ViewReady, p.ViewState())
	assert.NoError(t, p.LastErr())
}

func TestApplyCartChangeIncremental(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())

	other := uint(2)
	inserted := models.OrderItem{ID: 2, OrderID: 10, MenuID: 6, Quantity: 1, UnitPrice: 3.50, TotalPrice: 3.50}
	assert.NoError(t, p.ApplyCartChange(realtime.Change{
		EventType:           models.ActionInsert,
		New:                 mustJSON(t, inserted),
		OriginParticipantID: &other,
	}))
	assert.Len(t, p.Lines(), 2)
	assert.InDelta(t, 13.50, p.Total(), 0.001)

	updated := inserted
	updated.Quantity = 3
	updated.TotalPrice = 10.50
	assert.NoError(t, p.ApplyCartChange(realtime.Change{
		EventType:           models.ActionUpdate,
		New:                 mustJSON(t, updated),
		OriginParticipantID: &other,
	}))
	assert.InDelta(t, 20.50, p.Total(), 0.001)

	assert.NoError(t, p.ApplyCartChange(realtime.Change{
		EventType:           models.ActionDelete,
		Old:                 mustJSON(t, updated),
		OriginParticipantID: &other,
	}))
	assert.Len(t, p.Lines(), 1)
	assert.InDelta(t, 10.00, p.Total(), 0.001)
}

func TestApplyCartChangeSkipsOwnEvents(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())

	self := uint(1)
	line := models.OrderItem{ID: 2, OrderID: 10, Quantity: 1, UnitPrice: 3.50, TotalPrice: 3.50}
	assert.NoError(t, p.ApplyCartChange(realtime.Change{
		EventType:           models.ActionInsert,
		New:                 mustJSON(t, line),
		OriginParticipantID: &self,
	}))

	// Mutator reconcile lewat reload, bukan lewat event-nya sendiri.
	assert.Len(t, p.Lines(), 1)
}

func TestApplyCartChangeAdoptsNewOrder(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())

	other := uint(2)
	fresh := models.OrderItem{ID: 9, OrderID: 11, Quantity: 1, UnitPrice: 2.00, TotalPrice: 2.00}
	assert.NoError(t, p.ApplyCartChange(realtime.Change{
		EventType:           models.ActionInsert,
		New:                 mustJSON(t, fresh),
		OriginParticipantID: &other,
	}))

	lines := p.Lines()
	assert.Len(t, lines, 1)
	assert.Equal(t, uint(9), lines[0].ID)
	assert.InDelta(t, 2.00, p.Total(), 0.001)
}

func TestApplyOrderChangeClearsSubmittedCart(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())
	assert.Len(t, p.Lines(), 1)

	submitted := models.Order{ID: 10, SessionID: 1, Status: models.OrderStatusSubmitted}
	assert.NoError(t, p.ApplyOrderChange(realtime.Change{
		EventType: models.ActionUpdate,
		New:       mustJSON(t, submitted),
	}))
	assert.Empty(t, p.Lines())
	assert.Zero(t, p.Total())

	// Submit order lain tidak menyentuh view.
	foreign := models.Order{ID: 99, SessionID: 1, Status: models.OrderStatusSubmitted}
	assert.NoError(t, p.ApplyOrderChange(realtime.Change{
		EventType: models.ActionUpdate,
		New:       mustJSON(t, foreign),
	}))
	assert.Empty(t, p.Lines())
}

func TestApplyParticipantChangeUpsert(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())

	other := uint(2)
	joined := models.Participant{ID: 2, SessionID: 1, DisplayName: "Budi", JoinedAt: time.Now()}
	assert.NoError(t, p.ApplyParticipantChange(realtime.Change{
		EventType:           models.ActionInsert,
		New:                 mustJSON(t, joined),
		OriginParticipantID: &other,
	}))
	assert.Len(t, p.Participants(), 2)

	left := joined
	left.HasLeft = true
	assert.NoError(t, p.ApplyParticipantChange(realtime.Change{
		EventType:           models.ActionUpdate,
		New:                 mustJSON(t, left),
		OriginParticipantID: &other,
	}))

	// Yang keluar tetap ada demi atribusi baris keranjang.
	participants := p.Participants()
	assert.Len(t, participants, 2)
	assert.True(t, participants[1].HasLeft)
}

func TestCloseReturnsToDisconnected(t *testing.T) {
	loader := newLoader()
	p := New(1, 1, loader)
	p.OnConnecting()
	assert.NoError(t, p.OnSubscribed())

	p.Close()
	assert.Equal(t, FeedDisconnected, p.FeedState())
	// View terakhir tetap bisa dibaca setelah putus.
	assert.Len(t, p.Lines(), 1)
}
