package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

const changeFeedCallback = "changefeed:notify"

// ChangeFeed signals subscribers after committed writes to a table. Signals are
// coalescing: a subscriber that is busy re-querying sees at most one pending signal.
type ChangeFeed struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan struct{}]struct{}
	cascades    map[string][]string
}

// NewChangeFeed creates a feed with no subscribers.
func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{
		subscribers: make(map[string]map[chan struct{}]struct{}),
		cascades:    make(map[string][]string),
	}
}

// Cascade declares that deleting rows of parent also changes child.
func (f *ChangeFeed) Cascade(parent, child string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cascades[parent] = append(f.cascades[parent], child)
}

// Attach registers gorm callbacks that publish after create, update and delete.
func (f *ChangeFeed) Attach(db *gorm.DB) error {
	after := "gorm:commit_or_rollback_transaction"

	if err := db.Callback().Create().After(after).Register(changeFeedCallback, f.onWrite(false)); err != nil {
		return err
	}
	if err := db.Callback().Update().After(after).Register(changeFeedCallback, f.onWrite(false)); err != nil {
		return err
	}
	return db.Callback().Delete().After(after).Register(changeFeedCallback, f.onWrite(true))
}

func (f *ChangeFeed) onWrite(isDelete bool) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Error != nil || tx.Statement == nil {
			return
		}
		table := tx.Statement.Table
		if table == "" && tx.Statement.Schema != nil {
			table = tx.Statement.Schema.Table
		}
		if table == "" {
			return
		}

		f.Publish(table)
		if isDelete {
			f.mu.RLock()
			children := append([]string(nil), f.cascades[table]...)
			f.mu.RUnlock()
			for _, child := range children {
				f.Publish(child)
			}
		}
	}
}

// Publish signals every subscriber of table.
func (f *ChangeFeed) Publish(table string) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for ch := range f.subscribers[table] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a signal channel for table and a cleanup func.
func (f *ChangeFeed) Subscribe(table string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	f.mu.Lock()
	if _, ok := f.subscribers[table]; !ok {
		f.subscribers[table] = make(map[chan struct{}]struct{})
	}
	f.subscribers[table][ch] = struct{}{}
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if subscribers, ok := f.subscribers[table]; ok {
				delete(subscribers, ch)
				if len(subscribers) == 0 {
					delete(f.subscribers, table)
				}
			}
		})
	}
}

// watch runs load now and after every signal on table, sending results on the
// returned channel until ctx is done. The channel is closed on exit; a load
// error also ends the stream.
func watch[T any](ctx context.Context, feed *ChangeFeed, table string, load func(context.Context) (T, error)) (<-chan T, error) {
	signals, cancel := feed.Subscribe(table)

	initial, err := load(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan T, 1)
	out <- initial

	go func() {
		defer close(out)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				return
			case <-signals:
				value, err := load(ctx)
				if err != nil {
					return
				}
				select {
				case out <- value:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
