package session

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Cleaner returns abandoned mid-flow sessions to the main menu. The chosen
// language survives so the user is not asked for it again.
type Cleaner struct {
	storage  Storage
	locker   Locker
	log      *slog.Logger
	idleTTL  time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewCleaner constructs a Cleaner instance. locker must be the one the
// transport holds while running a turn.
func NewCleaner(storage Storage, locker Locker, log *slog.Logger, idleTTL, interval time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if locker == nil {
		locker = NewLocalLocker()
	}

	return &Cleaner{
		storage:  storage,
		locker:   locker,
		log:      log,
		idleTTL:  idleTTL,
		interval: interval,
		now:      time.Now,
	}
}

// Run starts the cleanup loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c == nil || c.storage == nil || c.interval <= 0 || c.idleTTL <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("session cleaner stopped", slog.Any("reason", ctx.Err()))
			return
		case <-ticker.C:
			if _, err := c.Sweep(ctx); err != nil {
				c.log.Error("session cleaner sweep failed", slog.Any("error", err))
			}
		}
	}
}

// Sweep resets every mid-flow session idle for longer than the TTL and
// returns how many were reset. Chats with a turn in progress are skipped and
// picked up by a later sweep.
func (c *Cleaner) Sweep(ctx context.Context) (int, error) {
	records, err := c.storage.All(ctx)
	if err != nil {
		return 0, err
	}

	reset := 0
	for _, rec := range records {
		if ctx.Err() != nil {
			return reset, ctx.Err()
		}
		if !c.idle(rec) {
			continue
		}

		ok, err := c.resetChat(ctx, rec)
		if err != nil {
			c.log.Error("session cleaner failed to reset session", slog.Int64("chat_id", rec.ChatID), slog.Any("error", err))
			continue
		}
		if ok {
			reset++
			c.log.Info("idle session returned to menu", slog.Int64("chat_id", rec.ChatID))
		}
	}

	return reset, nil
}

// resetChat re-reads the record under the chat lock and resets it only when
// nothing was written since the scan.
func (c *Cleaner) resetChat(ctx context.Context, scanned *Record) (bool, error) {
	if err := c.locker.Lock(ctx, scanned.ChatID); err != nil {
		if errors.Is(err, ErrLocked) {
			return false, nil
		}
		return false, err
	}
	defer c.locker.Unlock(ctx, scanned.ChatID)

	current, err := c.storage.Get(ctx, scanned.ChatID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !current.UpdatedAt.Equal(scanned.UpdatedAt) || !c.idle(current) {
		return false, nil
	}

	current.Session.ResetFlow()
	if err := c.storage.Set(ctx, current); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cleaner) idle(rec *Record) bool {
	return !rec.Session.AtMenu() && c.now().Sub(rec.UpdatedAt) > c.idleTTL
}
