package workers

import (
	"log"
	"time"

	"ranked-match-system/models"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

// Janitor is the out-of-band cleanup the matchmaking tables rely on: players
// who lose connectivity leave queue entries behind, and settled matches stay
// in the hot table until something archives them.
type Janitor struct {
	DB *gorm.DB

	QueueEntryTTL  time.Duration // how long a queue entry may sit before it is considered abandoned
	MatchRetention time.Duration // how long a terminal match stays unarchived
	SweepInterval  time.Duration
}

func NewJanitor(db *gorm.DB) *Janitor {
	return &Janitor{
		DB:             db,
		QueueEntryTTL:  10 * time.Minute,
		MatchRetention: 1 * time.Hour,
		SweepInterval:  1 * time.Minute,
	}
}

// Start schedules the sweeps. The returned shutdown func stops the scheduler.
func (j *Janitor) Start() (func() error, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	if _, err := sched.NewJob(
		gocron.DurationJob(j.SweepInterval),
		gocron.NewTask(j.sweep),
	); err != nil {
		return nil, err
	}

	sched.Start()
	return sched.Shutdown, nil
}

func (j *Janitor) sweep() {
	j.reapStaleQueueEntries()
	j.archiveSettledMatches()
}

func (j *Janitor) reapStaleQueueEntries() {
	cutoff := time.Now().UTC().Add(-j.QueueEntryTTL)
	res := j.DB.Where("created_at < ?", cutoff).Delete(&models.QueueEntry{})
	if res.Error != nil {
		log.Printf("[JANITOR] ❌ failed to reap stale queue entries: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("[JANITOR] 🧹 removed %d abandoned queue entrie(s)", res.RowsAffected)
	}
}

func (j *Janitor) archiveSettledMatches() {
	cutoff := time.Now().UTC().Add(-j.MatchRetention)
	now := time.Now().UTC()
	res := j.DB.Model(&models.MatchRecord{}).
		Where("archived_at IS NULL AND confirmed IN ? AND updated_at < ?",
			[]models.ConfirmationStatus{models.ConfirmationConfirmed, models.ConfirmationNonConfirmed},
			cutoff).
		Update("archived_at", &now)
	if res.Error != nil {
		log.Printf("[JANITOR] ❌ failed to archive settled matches: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		log.Printf("[JANITOR] 📦 archived %d settled match(es)", res.RowsAffected)
	}
}
