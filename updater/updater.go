package updater

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"vavoo-proxy/catalog"
	"vavoo-proxy/config"
	"vavoo-proxy/logger"
)

type Reloader interface {
	Reload(ctx context.Context) (*catalog.Snapshot, error)
}

type Updater struct {
	sync.Mutex
	ctx    context.Context
	store  Reloader
	logger logger.Logger
	Cron   *cron.Cron
}

// Initialize schedules catalog refreshes on cfg.RefreshCron. An empty
// schedule or "none" leaves the catalog to load lazily on first request.
func Initialize(ctx context.Context, store Reloader, cfg *config.Config, logger logger.Logger) (*Updater, error) {
	updateInstance := &Updater{
		ctx:    ctx,
		store:  store,
		logger: logger,
	}

	cronSched := strings.TrimSpace(cfg.RefreshCron)
	if cronSched == "" || strings.EqualFold(cronSched, "none") {
		logger.Log("CATALOG_REFRESH_CRON disabled. Catalog refreshes only on restart.")
	} else {
		c := cron.New()
		_, err := c.AddFunc(cronSched, func() {
			go updateInstance.UpdateCatalog(ctx)
		})
		if err != nil {
			logger.Errorf("Error initializing background processes: %v", err)
			return nil, err
		}
		c.Start()
		updateInstance.Cron = c
		logger.Logf("Catalog refresh scheduled: %s", cronSched)
	}

	if cfg.WarmOnBoot {
		logger.Log("CATALOG_WARM_ON_BOOT enabled. Starting initial catalog load.")
		go updateInstance.UpdateCatalog(ctx)
	}

	return updateInstance, nil
}

// UpdateCatalog reloads the catalog. A failed reload keeps the current
// snapshot.
func (instance *Updater) UpdateCatalog(ctx context.Context) {
	// Ensure only one job is running at a time
	instance.Lock()
	defer instance.Unlock()

	select {
	case <-ctx.Done():
		return
	default:
	}

	instance.logger.Log("Background process: Refreshing catalog...")
	snapshot, err := instance.store.Reload(ctx)
	if err != nil {
		instance.logger.Errorf("Background process: Error refreshing catalog: %v", err)
		return
	}
	instance.logger.Logf("Background process: Catalog refreshed with %d channels at %s.", snapshot.Len(), snapshot.LoadedAt.Format(time.RFC3339))
}

// Stop halts the schedule and waits for a running job to return.
func (instance *Updater) Stop() {
	if instance.Cron != nil {
		<-instance.Cron.Stop().Done()
	}
	instance.Lock()
	defer instance.Unlock()
}
