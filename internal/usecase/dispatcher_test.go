package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/romanzzaa/bybit-orderbook-monitor/internal/domain"
)

type sentMessage struct {
	recipient domain.Recipient
	text      string
	noPreview bool
}

type fakeNotifier struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn map[domain.Recipient]bool
}

func (n *fakeNotifier) Send(_ context.Context, recipient domain.Recipient, text string, noPreview bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMessage{recipient, text, noPreview})
	if n.failOn[recipient] {
		return errors.New("telegram: chat not found")
	}
	return nil
}

type journalEntry struct {
	alert             domain.Alert
	delivered, failed int
}

type fakeJournal struct {
	entries []journalEntry
	err     error
}

func (j *fakeJournal) Record(_ context.Context, a domain.Alert, delivered, failed int) error {
	j.entries = append(j.entries, journalEntry{a, delivered, failed})
	return j.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func twoAlerts(t *testing.T) []domain.Alert {
	t.Helper()
	ask, err := domain.ParseOrderLine([]string{"90000", "20"}, domain.SideSell)
	require.NoError(t, err)
	bid, err := domain.ParseOrderLine([]string{"89000", "30"}, domain.SideBuy)
	require.NoError(t, err)

	update := domain.RawUpdate{Topic: "orderbook.500.BTCUSDT", Asks: []domain.OrderLine{ask}, Bids: []domain.OrderLine{bid}}
	alerts := domain.RenderAlerts(update, domain.FilterConfig{}, time.Now())
	require.Len(t, alerts, 2)
	return alerts
}

func TestDeliverFanOutWithOneFailure(t *testing.T) {
	notifier := &fakeNotifier{failOn: map[domain.Recipient]bool{2: true}}
	journal := &fakeJournal{}
	d := NewDispatcher(notifier, domain.NewSubscriberSet(), journal, testLogger())
	for _, id := range []domain.Recipient{1, 2, 3} {
		d.Register(id)
	}

	alerts := twoAlerts(t)
	report := d.Deliver(context.Background(), alerts)

	assert.Equal(t, 6, report.Attempted)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, notifier.sent, 6)

	// порядок: алерт за алертом, внутри - по получателям
	assert.Equal(t, domain.Recipient(1), notifier.sent[0].recipient)
	assert.Equal(t, domain.Recipient(3), notifier.sent[2].recipient)
	assert.Equal(t, alerts[1].Text(), notifier.sent[5].text)
	for _, s := range notifier.sent {
		assert.True(t, s.noPreview)
	}

	require.Len(t, journal.entries, 2)
	assert.Equal(t, 2, journal.entries[0].delivered)
	assert.Equal(t, 1, journal.entries[0].failed)
}

func TestDeliverSingleFailureDoesNotBlockOthers(t *testing.T) {
	notifier := &fakeNotifier{failOn: map[domain.Recipient]bool{1: true}}
	d := NewDispatcher(notifier, domain.NewSubscriberSet(), nil, testLogger())

	alerts := twoAlerts(t)[:1]
	report := d.DeliverTo(context.Background(), alerts, []domain.Recipient{1, 2, 3})
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 1, report.Failed)
}

func TestDeliverSkipsAfterCancel(t *testing.T) {
	notifier := &fakeNotifier{}
	d := NewDispatcher(notifier, domain.NewSubscriberSet(), nil, testLogger())
	d.Register(1)
	d.Register(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := d.Deliver(ctx, twoAlerts(t))
	assert.Equal(t, 0, report.Attempted)
	assert.Equal(t, 4, report.Skipped)
	assert.Empty(t, notifier.sent)
}

func TestDeliverNoRecipients(t *testing.T) {
	journal := &fakeJournal{}
	d := NewDispatcher(&fakeNotifier{}, domain.NewSubscriberSet(), journal, testLogger())
	report := d.Deliver(context.Background(), twoAlerts(t))
	assert.Zero(t, report.Attempted)
	assert.Empty(t, journal.entries)
}

func TestJournalErrorIsNotFatal(t *testing.T) {
	notifier := &fakeNotifier{}
	journal := &fakeJournal{err: errors.New("db down")}
	d := NewDispatcher(notifier, domain.NewSubscriberSet(), journal, testLogger())
	d.Register(7)

	report := d.Deliver(context.Background(), twoAlerts(t))
	assert.Equal(t, 2, report.Attempted)
	assert.Zero(t, report.Failed)
	assert.Len(t, journal.entries, 2)
}

func TestRegisterDedup(t *testing.T) {
	d := NewDispatcher(&fakeNotifier{}, domain.NewSubscriberSet(), nil, testLogger())
	assert.True(t, d.Register(5))
	assert.False(t, d.Register(5))
	assert.Equal(t, 1, d.Subscribers())
}
