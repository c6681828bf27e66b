package scheduler

import (
	"container/heap"
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PENDING QUEUE
// ══════════════════════════════════════════════════════════════════════════════

type pending struct {
	key         string
	semesterID  string
	reminder    reminder.Reminder
	fingerprint string
	fireAt      time.Time
	index       int
}

// queue is a min-heap on fireAt.
type queue []*pending

func (q queue) Len() int           { return len(q) }
func (q queue) Less(i, j int) bool { return q[i].fireAt.Before(q[j].fireAt) }
func (q queue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *queue) Push(x any) {
	p := x.(*pending)
	p.index = len(*q)
	*q = append(*q, p)
}

func (q *queue) Pop() any {
	old := *q
	n := len(old)
	p := old[n-1]
	old[n-1] = nil
	p.index = -1
	*q = old[:n-1]
	return p
}

func reminderKey(semesterID, id string) string {
	return semesterID + "/" + id
}

// fingerprint changes whenever a field that affects delivery changes.
func fingerprint(r reminder.Reminder) string {
	fp := r.Title + "\x00" + r.Date + "\x00" + r.Time
	if r.TriggerAt != nil {
		fp += "\x00" + strconv.FormatInt(r.TriggerAt.UnixMilli(), 10)
	}
	return fp
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDER SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// ReminderConfig configures a ReminderScheduler.
type ReminderConfig struct {
	// Location resolves reminders without a stored trigger time.
	Location *time.Location

	// OnFired is called after delivery, typically to remove the reminder.
	OnFired func(semesterID, reminderID string) error

	Logger *logger.Logger
}

// PendingReminder describes one scheduled delivery.
type PendingReminder struct {
	SemesterID string
	ReminderID string
	Title      string
	FireAt     time.Time
}

// ReminderScheduler fires each undelivered reminder once at its trigger
// time. A single goroutine waits for the earliest entry.
type ReminderScheduler struct {
	agent   DeliveryAgent
	loc     *time.Location
	onFired func(semesterID, reminderID string) error
	log     *logger.Logger
	now     func() time.Time

	mu    sync.Mutex
	queue queue
	byKey map[string]*pending
	// fired holds key -> fingerprint of deliveries already made, so a
	// reminder still present in the next Sync is not delivered twice.
	fired   map[string]string
	stopped bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

// NewReminderScheduler creates a scheduler and starts its timer goroutine.
func NewReminderScheduler(agent DeliveryAgent, cfg ReminderConfig) *ReminderScheduler {
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	s := &ReminderScheduler{
		agent:   agent,
		loc:     cfg.Location,
		onFired: cfg.OnFired,
		log:     cfg.Logger.With(logger.Component("reminder_scheduler")),
		now:     time.Now,
		byKey:   make(map[string]*pending),
		fired:   make(map[string]string),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.loop()
	return s
}

// Sync reconciles the queue with the given reminders. Entries that
// disappeared or changed are cancelled; new undelivered reminders are
// scheduled with a delay computed now.
func (s *ReminderScheduler) Sync(bySemester map[string][]reminder.Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	want := make(map[string]*pending)
	for semID, list := range bySemester {
		for _, r := range list {
			if r.Delivered || r.ID == "" {
				continue
			}
			key := reminderKey(semID, r.ID)
			want[key] = &pending{key: key, semesterID: semID, reminder: r.Clone(), fingerprint: fingerprint(r)}
		}
	}

	for key, p := range s.byKey {
		if w, ok := want[key]; !ok || w.fingerprint != p.fingerprint {
			heap.Remove(&s.queue, p.index)
			delete(s.byKey, key)
		}
	}
	for key, fp := range s.fired {
		if w, ok := want[key]; !ok || w.fingerprint != fp {
			delete(s.fired, key)
		}
	}

	now := s.now()
	for key, w := range want {
		if _, ok := s.byKey[key]; ok {
			continue
		}
		if _, ok := s.fired[key]; ok {
			continue
		}
		delay, err := w.reminder.Delay(now, s.loc)
		if err != nil {
			s.log.Warn("reminder has no valid trigger time",
				logger.SemesterID(w.semesterID), logger.ReminderID(w.reminder.ID), logger.Err(err))
			continue
		}
		w.fireAt = now.Add(delay)
		heap.Push(&s.queue, w)
		s.byKey[key] = w
	}

	s.signal()
}

// Pending returns scheduled deliveries ordered by fire time.
func (s *ReminderScheduler) Pending() []PendingReminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PendingReminder, 0, len(s.queue))
	for _, p := range s.queue {
		out = append(out, PendingReminder{
			SemesterID: p.semesterID,
			ReminderID: p.reminder.ID,
			Title:      p.reminder.Title,
			FireAt:     p.fireAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out
}

// Stop cancels every pending delivery and waits for the timer goroutine.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		<-s.done
		return
	}
	s.stopped = true
	s.queue = nil
	s.byKey = make(map[string]*pending)
	close(s.stop)
	s.mu.Unlock()
	<-s.done
}

func (s *ReminderScheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *ReminderScheduler) loop() {
	defer close(s.done)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.stop
		cancel()
	}()

	for {
		due, next := s.takeDue()
		for _, p := range due {
			s.deliver(ctx, p)
		}

		if !next.IsZero() {
			timer.Reset(max(next.Sub(s.now()), 0))
		}
		select {
		case <-s.stop:
			return
		case <-s.wake:
		case <-timer.C:
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}
}

// takeDue pops every entry whose time has come and returns the next fire
// time, or zero when the queue is empty.
func (s *ReminderScheduler) takeDue() ([]*pending, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, time.Time{}
	}

	now := s.now()
	var due []*pending
	for len(s.queue) > 0 && !s.queue[0].fireAt.After(now) {
		p := heap.Pop(&s.queue).(*pending)
		delete(s.byKey, p.key)
		s.fired[p.key] = p.fingerprint
		due = append(due, p)
	}
	if len(s.queue) == 0 {
		return due, time.Time{}
	}
	return due, s.queue[0].fireAt
}

func (s *ReminderScheduler) deliver(ctx context.Context, p *pending) {
	notified := Deliver(ctx, s.agent, p.reminder)
	s.log.Info("reminder delivered",
		logger.SemesterID(p.semesterID),
		logger.ReminderID(p.reminder.ID),
		logger.Bool("notified", notified),
	)
	if s.onFired == nil {
		return
	}
	if err := s.onFired(p.semesterID, p.reminder.ID); err != nil {
		s.log.Warn("fired reminder not removed",
			logger.SemesterID(p.semesterID), logger.ReminderID(p.reminder.ID), logger.Err(err))
	}
}
