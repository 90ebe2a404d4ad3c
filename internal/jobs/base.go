package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"viralshorts/manager-go/internal/config"
	"viralshorts/manager-go/internal/db"
	"viralshorts/manager-go/internal/queue"
	"viralshorts/manager-go/internal/utils"
)

// ErrDeferred tells the queue loop to put a message back and try again later.
var ErrDeferred = errors.New("deferred")

// Store is the subset of *db.Store the jobs use.
type Store interface {
	GetShortByID(ctx context.Context, id int64) (db.Short, error)
	FindFirstShort(ctx context.Context, where string, args ...any) (db.Short, error)
	CountShorts(ctx context.Context, where string, args ...any) (int, error)
	ListShorts(ctx context.Context, where string, limit int, args ...any) ([]db.Short, error)
	ListBatchShorts(ctx context.Context, batchID string) ([]db.Short, error)
	CreateShort(ctx context.Context, batchID string, meta map[string]any) (int64, error)
	UpdateShortMetaStatus(ctx context.Context, id int64, status string, meta map[string]any) error
	UpdateShortScript(ctx context.Context, id int64, title, category string, score float64, status string, meta map[string]any) error
}

type Queue interface {
	Publish(queueName string, payload []byte) error
	Pop(queueName string) (*queue.Message, error)
}

type JobContext struct {
	Config   config.Config
	Store    Store
	Queue    Queue
	Services *Services
}

type JobOptions struct {
	ShortID   int64
	Sleep     int
	Queue     bool
	Info      bool
	QueueOnce bool
}

type BaseJob struct {
	QueueInput      string
	QueueOutput     string
	IgnoreHostCheck bool
}

type QueuePayload struct {
	ShortID  int64  `json:"short_id"`
	Hostname string `json:"hostname"`
}

type QueueHandler func(ctx context.Context, shortID int64, hostname string) error

func (b BaseJob) RunQueue(ctx context.Context, jctx JobContext, opts JobOptions, handler QueueHandler) error {
	if jctx.Queue == nil {
		return fmt.Errorf("queue client is not configured")
	}

	sleep := opts.Sleep
	if sleep <= 0 {
		sleep = 30
	}
	pause := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(sleep) * time.Second):
			return nil
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, err := jctx.Queue.Pop(b.QueueInput)
		if err != nil {
			return err
		}
		if msg == nil {
			utils.Debug("queue empty", "queue", b.QueueInput, "sleep_s", sleep)
			if err := pause(); err != nil {
				return err
			}
			if opts.QueueOnce {
				return nil
			}
			continue
		}

		var payload QueuePayload
		if err := json.Unmarshal(msg.Body, &payload); err != nil {
			utils.Warn("queue payload json decode failed", "queue", b.QueueInput, "err", err)
			_ = msg.Ack()
			continue
		}
		if payload.ShortID == 0 {
			utils.Warn("queue payload invalid (missing short_id)", "queue", b.QueueInput)
			_ = msg.Ack()
			continue
		}

		if !b.IgnoreHostCheck && payload.Hostname != "" && payload.Hostname != jctx.Config.Hostname {
			utils.Warn("queue host mismatch", "queue", b.QueueInput, "message_host", payload.Hostname, "local_host", jctx.Config.Hostname)
			_ = msg.Nack(true)
			if err := pause(); err != nil {
				return err
			}
			continue
		}

		err = handler(ctx, payload.ShortID, payload.Hostname)
		switch {
		case errors.Is(err, ErrDeferred):
			utils.Info("queue message deferred", "queue", b.QueueInput, "short_id", payload.ShortID, "reason", err)
			_ = msg.Nack(true)
			if err := pause(); err != nil {
				return err
			}
		case err != nil:
			utils.Error("queue handler error", "queue", b.QueueInput, "short_id", payload.ShortID, "err", err)
			_ = msg.Nack(true)
			if err := pause(); err != nil {
				return err
			}
		default:
			_ = msg.Ack()
		}
		if opts.QueueOnce {
			return nil
		}
	}
}

// selection describes which shorts a stage may pick up.
type selection struct {
	done    []string
	pending []string
	missing []string
	extra   []string
}

func (s selection) where() string {
	conds := []string{
		db.StatusTrueCondition(s.done),
		db.StatusNotTrueCondition(s.pending),
		db.MetaKeyMissingCondition(s.missing),
	}
	return db.Where(append(conds, s.extra...)...)
}

// run dispatches to the queue loop, an explicit short id, or the oldest eligible short.
func (b BaseJob) run(ctx context.Context, jctx JobContext, opts JobOptions, name string, sel selection, process func(ctx context.Context, shortID int64) error) error {
	if opts.Queue {
		return b.RunQueue(ctx, jctx, opts, func(ctx context.Context, shortID int64, hostname string) error {
			return process(ctx, shortID)
		})
	}

	shortID := opts.ShortID
	if shortID == 0 {
		where := sel.where()
		count, err := jctx.Store.CountShorts(ctx, where)
		if err != nil {
			return err
		}
		utils.Debug(name+" waiting", "waiting", count)
		short, err := jctx.Store.FindFirstShort(ctx, where)
		if errors.Is(err, db.ErrNotFound) {
			utils.Info(name + " nothing to process")
			return nil
		}
		if err != nil {
			return err
		}
		shortID = short.ID
	}
	return process(ctx, shortID)
}

func loadShort(ctx context.Context, jctx JobContext, shortID int64) (db.Short, map[string]any, error) {
	short, err := jctx.Store.GetShortByID(ctx, shortID)
	if err != nil {
		return db.Short{}, nil, fmt.Errorf("load short %d: %w", shortID, err)
	}
	meta, err := utils.DecodeMeta(short.Meta)
	if err != nil {
		return db.Short{}, nil, fmt.Errorf("decode meta of short %d: %w", shortID, err)
	}
	return short, meta, nil
}

func requireFlags(meta map[string]any, flags ...string) error {
	for _, flag := range flags {
		if done, _ := utils.GetStatus(meta, flag); !done {
			return fmt.Errorf("%s is not set", flag)
		}
	}
	return nil
}

// complete marks the stage flag, persists meta and hands the short to the next stage.
func (b BaseJob) complete(ctx context.Context, jctx JobContext, shortID int64, meta map[string]any, next ...string) error {
	if err := b.markDone(ctx, jctx, shortID, meta); err != nil {
		return err
	}
	if len(next) == 0 {
		next = []string{b.QueueOutput}
	}
	return publish(jctx, shortID, next...)
}

func (b BaseJob) markDone(ctx context.Context, jctx JobContext, shortID int64, meta map[string]any) error {
	utils.SetStatus(meta, b.QueueOutput, true)
	return jctx.Store.UpdateShortMetaStatus(ctx, shortID, b.QueueOutput, meta)
}

func publish(jctx JobContext, shortID int64, queues ...string) error {
	if jctx.Queue == nil {
		return nil
	}
	payload, err := json.Marshal(QueuePayload{ShortID: shortID, Hostname: jctx.Config.Hostname})
	if err != nil {
		return err
	}
	for _, name := range queues {
		if err := jctx.Queue.Publish(name, payload); err != nil {
			return fmt.Errorf("publish %s: %w", name, err)
		}
	}
	return nil
}
