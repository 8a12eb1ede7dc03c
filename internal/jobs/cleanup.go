package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const taskTimeout = 30 * time.Second

// Task is one periodic cleanup. Run returns the number of records it removed.
type Task struct {
	Name       string
	Interval   time.Duration
	RunOnStart bool
	Run        func(ctx context.Context) (int64, error)
}

// CleanupJob runs each task on its own ticker until Stop.
type CleanupJob struct {
	tasks []Task
	done  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once
}

func NewCleanupJob(tasks ...Task) *CleanupJob {
	return &CleanupJob{
		tasks: tasks,
		done:  make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	for _, task := range j.tasks {
		if task.Interval <= 0 || task.Run == nil {
			log.Warn().Str("task", task.Name).Msg("cleanup task disabled")
			continue
		}
		j.wg.Add(1)
		go j.run(task)
		log.Info().Str("task", task.Name).Dur("interval", task.Interval).Msg("cleanup task started")
	}
}

// Stop signals every task and waits for in-flight runs to finish.
func (j *CleanupJob) Stop() {
	j.once.Do(func() {
		close(j.done)
		j.wg.Wait()
		log.Info().Msg("cleanup job stopped")
	})
}

func (j *CleanupJob) run(task Task) {
	defer j.wg.Done()

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	if task.RunOnStart {
		runCleanup(task)
	}

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			runCleanup(task)
		}
	}
}

func runCleanup(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), taskTimeout)
	defer cancel()

	count, err := task.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msgf("failed to cleanup %s", task.Name)
	} else if count > 0 {
		log.Info().Int64("count", count).Msgf("cleaned up %s", task.Name)
	}
}
