package cron

import (
	"context"
	"os"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/reviewloop/reviewloop/dto"
	cron_config "github.com/reviewloop/reviewloop/internal/cron/config"
	"github.com/reviewloop/reviewloop/internal/logger"
	"github.com/reviewloop/reviewloop/internal/tracing"
	"github.com/reviewloop/reviewloop/internal/utils"
)

const (
	// GroupScheduling serializes jobs that send email
	GroupScheduling = "scheduling"
	// GroupReviews serializes jobs that fetch review pages
	GroupReviews = "reviews"

	LeaseName = "reviewloop-cron-leader"
	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second
)

var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupScheduling: new(sync.Mutex),
		GroupReviews:    new(sync.Mutex),
	},
}

type CycleRunner interface {
	RunCycle(ctx context.Context, now time.Time) (dto.CycleSummary, error)
}

type SnapshotTaker interface {
	SnapshotAll(ctx context.Context) (int, error)
}

type CronManager struct {
	cfg       *cron_config.Config
	log       logger.Logger
	cron      *cronv3.Cron
	k8s       kubernetes.Interface
	stopCh    chan struct{}
	stopOnce  sync.Once
	jobIDs    map[string]cronv3.EntryID
	cycles    CycleRunner
	snapshots SnapshotTaker
}

func NewCronManager(cfg *cron_config.Config, log logger.Logger, k8s kubernetes.Interface, cycles CycleRunner, snapshots SnapshotTaker) *CronManager {
	if cfg == nil {
		cfg = &cron_config.Config{}
	}
	return &CronManager{
		cfg:       cfg,
		log:       log,
		k8s:       k8s,
		stopCh:    make(chan struct{}),
		jobIDs:    make(map[string]cronv3.EntryID),
		cycles:    cycles,
		snapshots: snapshots,
	}
}

// Start runs the crons under leader election so that one replica drives the
// daily cycle. If k8s is nil it starts in local mode.
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		return cm.StartCron()
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      LeaseName,
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					if err := cm.StartCron(); err != nil {
						cm.log.Errorf("Could not start crons: %v", err)
					}
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(context.Background())
	}()

	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		return cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop waits for running jobs; it is safe to call more than once
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		if cm.cron != nil {
			cm.log.Info("Stopping cron manager")
			<-cm.cron.Stop().Done()
		}
		close(cm.stopCh)
	})
}

func (cm *CronManager) registerJobs(c *cronv3.Cron) error {
	if cm.cfg.CronScheduleHeartbeat != "" {
		podName := os.Getenv("POD_NAME")
		if podName == "" {
			podName = "local"
		}
		if err := cm.addJob(c, "heartbeat", cm.cfg.CronScheduleHeartbeat, func() {
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		}); err != nil {
			return err
		}
	}

	if cm.cfg.CronScheduleDailyCycle != "" && cm.cycles != nil {
		if err := cm.addJob(c, "daily_cycle", cm.cfg.CronScheduleDailyCycle, func() {
			jobLocks.locks[GroupScheduling].Lock()
			defer jobLocks.locks[GroupScheduling].Unlock()
			cm.runDailyCycle()
		}); err != nil {
			return err
		}
	}

	if cm.cfg.CronScheduleReviewSnapshots != "" && cm.snapshots != nil {
		if err := cm.addJob(c, "review_snapshots", cm.cfg.CronScheduleReviewSnapshots, func() {
			jobLocks.locks[GroupReviews].Lock()
			defer jobLocks.locks[GroupReviews].Unlock()
			cm.takeReviewSnapshots()
		}); err != nil {
			return err
		}
	}
	return nil
}

func (cm *CronManager) addJob(c *cronv3.Cron, name, schedule string, fn func()) error {
	id, err := c.AddFunc(schedule, func() {
		defer tracing.RecoverAndLogToJaeger(cm.log)
		fn()
	})
	if err != nil {
		cm.log.Errorf("Could not add %s cron job: %v", name, err)
		return err
	}
	cm.jobIDs[name] = id
	cm.log.Infof("Registered %s job with schedule: %s", name, schedule)
	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() error {
	cm.log.Info("Starting cron manager")
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithLocation(time.UTC),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	if err := cm.registerJobs(c); err != nil {
		return err
	}
	c.Start()
	cm.cron = c
	return nil
}

func (cm *CronManager) runDailyCycle() {
	cm.log.Info("Running daily scheduling cycle")

	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.runDailyCycle")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	summary, err := cm.cycles.RunCycle(ctx, utils.Now())
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Daily cycle stopped early: %v", err)
	}
	tracing.LogObjectAsJson(span, "summary", summary)
	cm.log.Infof("Daily cycle done: processed=%d sent=%d failed=%d skipped=%d",
		summary.Processed, summary.Sent, summary.Failed, summary.Skipped)
}

func (cm *CronManager) takeReviewSnapshots() {
	span, ctx := tracing.StartTracerSpan(context.Background(), "CronManager.takeReviewSnapshots")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	stored, err := cm.snapshots.SnapshotAll(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Review snapshots failed: %v", err)
		return
	}
	cm.log.Infof("Stored %d review snapshots", stored)
}
