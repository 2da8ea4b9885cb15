package jobs

import (
	"log"

	"github.com/robfig/cron/v3"
)

// Sweeper drops expired buffered queues, collector locks and dedup markers.
// The services.MessageBuffer satisfies it.
type Sweeper interface {
	SweepExpired() (queues, locks, markers int)
}

// MaintenanceJob periodically sweeps the message buffer so orphaned queues
// and stale dedup markers do not accumulate between webhook deliveries.
type MaintenanceJob struct {
	cron    *cron.Cron
	sweeper Sweeper
}

// NewMaintenanceJob creates the scheduled maintenance job
func NewMaintenanceJob(sweeper Sweeper) *MaintenanceJob {
	return &MaintenanceJob{
		cron:    cron.New(),
		sweeper: sweeper,
	}
}

// Start schedules the sweeps and begins running them.
func (m *MaintenanceJob) Start() {
	// Every minute: queue/lock TTLs are measured in seconds.
	_, err := m.cron.AddFunc("* * * * *", m.sweep)
	if err != nil {
		log.Printf("Failed to schedule buffer sweep: %v", err)
		return
	}
	m.cron.Start()
	log.Println("Maintenance jobs scheduled")
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (m *MaintenanceJob) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
	log.Println("Maintenance jobs stopped")
}

func (m *MaintenanceJob) sweep() {
	queues, locks, markers := m.sweeper.SweepExpired()
	if queues+locks+markers > 0 {
		log.Printf("🧹 Buffer sweep: %d stale queues, %d expired locks, %d old dedup markers", queues, locks, markers)
	}
}
