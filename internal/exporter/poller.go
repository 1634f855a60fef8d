package exporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danmuck/fahctl/internal/fah"
	"github.com/danmuck/fahctl/internal/observability"
	"github.com/danmuck/fahctl/internal/protocol/session"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

const snapshotKey = "snapshot"

// Daemon is the part of fah.Client the exporter uses.
type Daemon interface {
	SlotInfo() ([]fah.SlotInfo, error)
	QueueInfo() ([]fah.SlotQueueInfo, error)
	PPD() (float64, error)
	PauseSlot(slot int) error
	UnpauseSlot(slot int) error
	FinishSlot(slot int) error
	Reconnect() error
}

// Snapshot is the daemon state gathered by one poll.
type Snapshot struct {
	Slots   []fah.SlotInfo      `json:"slots"`
	Queue   []fah.SlotQueueInfo `json:"queue"`
	PPD     float64             `json:"ppd"`
	TakenAt time.Time           `json:"taken_at"`
}

// Poller fetches snapshots from the daemon and caches the latest one.
type Poller struct {
	daemon   Daemon
	interval time.Duration
	cache    *cache.Cache

	mu       sync.Mutex
	lastErr  error
	lastPoll time.Time
}

func NewPoller(daemon Daemon, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ttl := 2 * interval
	return &Poller{
		daemon:   daemon,
		interval: interval,
		cache:    cache.New(ttl, ttl),
	}
}

// Poll fetches a fresh snapshot, caches it and updates the gauges. A session
// left disconnected by a failed reconnect is reopened first.
func (p *Poller) Poll() (Snapshot, error) {
	snap, err := p.fetch()
	if errors.Is(err, session.ErrNotConnected) {
		if rerr := p.daemon.Reconnect(); rerr != nil {
			err = fmt.Errorf("%w (reconnect: %v)", err, rerr)
		} else {
			log.Info().Str("component", "exporter").Msg("reconnected to daemon")
			snap, err = p.fetch()
		}
	}
	observability.RecordPoll(err)

	p.mu.Lock()
	p.lastErr = err
	p.lastPoll = time.Now()
	p.mu.Unlock()

	if err != nil {
		log.Warn().Str("component", "exporter").Err(err).Msg("poll failed")
		return Snapshot{}, err
	}
	p.cache.SetDefault(snapshotKey, snap)
	observability.SetDaemonSnapshot(snap.PPD, slotSamples(snap.Slots), unitSamples(snap.Queue))
	log.Debug().
		Str("component", "exporter").
		Int("slots", len(snap.Slots)).
		Int("units", len(snap.Queue)).
		Float64("ppd", snap.PPD).
		Msg("poll complete")
	return snap, nil
}

// Snapshot returns the cached snapshot, polling when it has expired.
func (p *Poller) Snapshot() (Snapshot, error) {
	if v, ok := p.cache.Get(snapshotKey); ok {
		return v.(Snapshot), nil
	}
	return p.Poll()
}

// Invalidate drops the cached snapshot so the next read polls.
func (p *Poller) Invalidate() {
	p.cache.Delete(snapshotKey)
}

// Status reports when the last poll ran and how it ended.
func (p *Poller) Status() (time.Time, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPoll, p.lastErr
}

// Run polls every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	_, _ = p.Poll()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = p.Poll()
		}
	}
}

func (p *Poller) fetch() (Snapshot, error) {
	slots, err := p.daemon.SlotInfo()
	if err != nil {
		return Snapshot{}, fmt.Errorf("slot-info: %w", err)
	}
	queue, err := p.daemon.QueueInfo()
	if err != nil {
		return Snapshot{}, fmt.Errorf("queue-info: %w", err)
	}
	ppd, err := p.daemon.PPD()
	if err != nil {
		return Snapshot{}, fmt.Errorf("ppd: %w", err)
	}
	return Snapshot{Slots: slots, Queue: queue, PPD: ppd, TakenAt: time.Now()}, nil
}

func slotSamples(slots []fah.SlotInfo) []observability.SlotSample {
	out := make([]observability.SlotSample, 0, len(slots))
	for _, s := range slots {
		out = append(out, observability.SlotSample{
			Slot:    s.ID,
			Status:  s.Status,
			Running: s.Status == "RUNNING",
		})
	}
	return out
}

func unitSamples(queue []fah.SlotQueueInfo) []observability.UnitSample {
	out := make([]observability.UnitSample, 0, len(queue))
	for _, u := range queue {
		pct, err := u.Percent()
		if err != nil {
			continue
		}
		out = append(out, observability.UnitSample{
			Slot:        u.Slot,
			Unit:        u.ID,
			PercentDone: pct,
			ETA:         u.ETA.Duration,
			ETAKnown:    u.ETA.Known,
		})
	}
	return out
}
