package watch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"portfolio-drop-alerts/internal/alerting"
	"portfolio-drop-alerts/internal/storage"
)

type fakeWatchStore struct {
	mu      sync.Mutex
	watches []storage.Watch
}

func (f *fakeWatchStore) add(userID int64, address, lastHash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watches = append(f.watches, storage.Watch{UserID: userID, Address: address, LastTxHash: lastHash})
}

func (f *fakeWatchStore) cursor(userID int64, address string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.watches {
		if w.UserID == userID && w.Address == address {
			return w.LastTxHash
		}
	}
	return ""
}

func (f *fakeWatchStore) AddWatch(_ context.Context, userID int64, address string) error {
	f.add(userID, address, "")
	return nil
}

func (f *fakeWatchStore) RemoveWatch(_ context.Context, userID int64, address string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.watches {
		if w.UserID == userID && w.Address == address {
			f.watches = append(f.watches[:i], f.watches[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeWatchStore) ListWatches(_ context.Context, userID int64) ([]storage.Watch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storage.Watch
	for _, w := range f.watches {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeWatchStore) ListAllWatches(_ context.Context) ([]storage.Watch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]storage.Watch(nil), f.watches...), nil
}

func (f *fakeWatchStore) SetLastTxHash(_ context.Context, userID int64, address, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, w := range f.watches {
		if w.UserID == userID && w.Address == address {
			f.watches[i].LastTxHash = hash
		}
	}
	return nil
}

var _ storage.WatchStore = (*fakeWatchStore)(nil)

type fakeSource struct {
	mu  sync.Mutex
	txs map[string][]Transaction
	err map[string]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{txs: make(map[string][]Transaction), err: make(map[string]error)}
}

func (f *fakeSource) set(address string, txs ...Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs[address] = txs
	delete(f.err, address)
}

func (f *fakeSource) fail(address string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err[address] = err
}

func (f *fakeSource) RecentTransactions(_ context.Context, address string) ([]Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err[address]; err != nil {
		return nil, err
	}
	return f.txs[address], nil
}

type fakeTxNotifier struct {
	mu   sync.Mutex
	sent []alerting.TxNotification
	fail bool
}

func (f *fakeTxNotifier) NotifyTransaction(_ context.Context, note alerting.TxNotification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("delivery failed")
	}
	f.sent = append(f.sent, note)
	return nil
}

func (f *fakeTxNotifier) sentHashes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	hashes := make([]string, len(f.sent))
	for i, note := range f.sent {
		hashes[i] = note.Hash
	}
	return hashes
}

type watchFixture struct {
	monitor  *Monitor
	store    *fakeWatchStore
	source   *fakeSource
	notifier *fakeTxNotifier
}

func newWatchFixture(t *testing.T) *watchFixture {
	t.Helper()

	store := &fakeWatchStore{}
	source := newFakeSource()
	notifier := &fakeTxNotifier{}
	m := New(Options{
		Interval:     time.Minute,
		ExplorerBase: "https://seitrace.com",
		ChainID:      "atlantic-2",
	}, store, source, notifier, zerolog.Nop())

	return &watchFixture{monitor: m, store: store, source: source, notifier: notifier}
}

func (f *watchFixture) tick(t *testing.T) {
	t.Helper()
	if err := f.monitor.Tick(context.Background(), time.Now()); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
}

func tx(hash, direction string) Transaction {
	return Transaction{Hash: hash, Kind: KindEVM, Direction: direction, Block: "10", AmountSEI: decimal.NewFromInt(1)}
}

func TestWatchFirstScanSeedsCursorSilently(t *testing.T) {
	f := newWatchFixture(t)
	f.store.add(1, testEVMAddr, "")
	f.source.set(testEVMAddr, tx("0xnew", DirectionIncoming), tx("0xold", DirectionOutgoing))

	f.tick(t)

	if len(f.notifier.sentHashes()) != 0 {
		t.Fatalf("first scan must not replay history, sent %v", f.notifier.sentHashes())
	}
	if got := f.store.cursor(1, testEVMAddr); got != "0xnew" {
		t.Fatalf("cursor should record the newest hash, got %q", got)
	}
}

func TestWatchNotifiesNewTransactionsOldestFirst(t *testing.T) {
	f := newWatchFixture(t)
	f.store.add(1, testEVMAddr, "0xseen")
	f.source.set(testEVMAddr,
		tx("0xnewest", DirectionIncoming),
		tx("0xnewer", DirectionOutgoing),
		tx("0xseen", DirectionIncoming),
		tx("0xancient", DirectionIncoming),
	)

	f.tick(t)

	hashes := f.notifier.sentHashes()
	if len(hashes) != 2 {
		t.Fatalf("expected 2 notifications, got %v", hashes)
	}
	if hashes[0] != "0xnewer" || hashes[1] != "0xnewest" {
		t.Fatalf("expected oldest-first delivery, got %v", hashes)
	}
	if got := f.store.cursor(1, testEVMAddr); got != "0xnewest" {
		t.Fatalf("cursor should advance to the newest hash, got %q", got)
	}

	note := f.notifier.sent[0]
	if note.UserID != 1 || note.Address != testEVMAddr {
		t.Fatalf("wrong recipient: %+v", note)
	}
	if note.ExplorerURL != "https://seitrace.com/tx/0xnewer?chain=atlantic-2" {
		t.Fatalf("wrong explorer url: %s", note.ExplorerURL)
	}
}

func TestWatchNoNewTransactionsStaysQuiet(t *testing.T) {
	f := newWatchFixture(t)
	f.store.add(1, testEVMAddr, "0xseen")
	f.source.set(testEVMAddr, tx("0xseen", DirectionIncoming), tx("0xancient", DirectionOutgoing))

	f.tick(t)

	if len(f.notifier.sentHashes()) != 0 {
		t.Fatalf("cursor match should stay quiet, sent %v", f.notifier.sentHashes())
	}
	if got := f.store.cursor(1, testEVMAddr); got != "0xseen" {
		t.Fatalf("cursor must not move, got %q", got)
	}
}

func TestWatchCursorFallenOutOfRangeReportsAll(t *testing.T) {
	f := newWatchFixture(t)
	f.store.add(1, testEVMAddr, "0xlong-gone")
	f.source.set(testEVMAddr, tx("0xb", DirectionIncoming), tx("0xa", DirectionOutgoing))

	f.tick(t)

	hashes := f.notifier.sentHashes()
	if len(hashes) != 2 || hashes[0] != "0xa" || hashes[1] != "0xb" {
		t.Fatalf("everything in range is fresh when the cursor is gone, got %v", hashes)
	}
}

func TestWatchScanFailureLeavesCursorUntouched(t *testing.T) {
	f := newWatchFixture(t)
	f.store.add(1, testEVMAddr, "0xseen")
	f.store.add(2, testBech32Addr, "HASH_OLD")
	f.source.fail(testEVMAddr, errors.New("rpc down"))
	f.source.set(testBech32Addr, tx("HASH_NEW", DirectionIncoming), tx("HASH_OLD", DirectionOutgoing))

	f.tick(t)

	if got := f.store.cursor(1, testEVMAddr); got != "0xseen" {
		t.Fatalf("failed scan must not move the cursor, got %q", got)
	}

	hashes := f.notifier.sentHashes()
	if len(hashes) != 1 || hashes[0] != "HASH_NEW" {
		t.Fatalf("other watches should still be scanned, got %v", hashes)
	}
}

func TestWatchDeliveryFailureStillAdvancesCursor(t *testing.T) {
	f := newWatchFixture(t)
	f.store.add(1, testEVMAddr, "0xseen")
	f.notifier.fail = true
	f.source.set(testEVMAddr, tx("0xnew", DirectionIncoming), tx("0xseen", DirectionOutgoing))

	f.tick(t)

	if got := f.store.cursor(1, testEVMAddr); got != "0xnew" {
		t.Fatalf("delivery is best effort, cursor should advance, got %q", got)
	}
}
