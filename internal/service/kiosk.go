package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"kiosk-sync/internal/client"
	"kiosk-sync/internal/config"
	"kiosk-sync/internal/consumer"
	"kiosk-sync/internal/database"
	"kiosk-sync/internal/models"
	"kiosk-sync/internal/outbox"
	"kiosk-sync/internal/repository"
	"kiosk-sync/internal/resolver"
	"kiosk-sync/internal/session"
	syncengine "kiosk-sync/internal/sync"
	mqttcommon "kiosk-sync/pkg/mqtt"
)

// Version reported in the status heartbeat.
const Version = "1.2.0"

// KioskService is the composition root: it owns the store, the remote
// clients and every process-scoped state object, and schedules the
// periodic tasks.
type KioskService struct {
	config     *config.Config
	logger     *zap.Logger
	db         *sql.DB
	mqttClient *mqttcommon.Client

	exhibitionID uuid.UUID
	deviceID     uuid.UUID

	settingsRepo *repository.SettingsRepository
	layoutRepo   *repository.LayoutRepository
	pageRepo     *repository.PageRepository
	mutationRepo *repository.MutationRepository

	api      client.ExhibitionAPI
	engine   *syncengine.Engine
	consumer *consumer.MQTTConsumer
	sessions *session.Manager
	tags     *session.TagTracker
	outbox   *outbox.Outbox
	resolver *resolver.PageResolver

	resyncMu sync.Mutex
	antennas struct {
		mu   sync.RWMutex
		list []models.RfidAntenna
	}
	wg sync.WaitGroup
}

// NewKioskService wires the full component graph. Device identity comes
// from config on first run and is persisted as device settings, so later
// runs can start offline.
func NewKioskService(cfg *config.Config, tokens client.TokenSource, logger *zap.Logger) (*KioskService, error) {
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	if err := database.Prepare(db, cfg.Database.Destructive); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare store: %w", err)
	}

	settingsRepo := repository.NewSettingsRepository(db, logger)
	layoutRepo := repository.NewLayoutRepository(db, logger)
	pageRepo := repository.NewPageRepository(db, logger)
	mutationRepo := repository.NewMutationRepository(db, logger)

	s := &KioskService{
		config:       cfg,
		logger:       logger,
		db:           db,
		settingsRepo: settingsRepo,
		layoutRepo:   layoutRepo,
		pageRepo:     pageRepo,
		mutationRepo: mutationRepo,
	}

	if err := s.bootstrapIdentity(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	s.api = client.NewClient(client.Options{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.RetryCount,
		TokenWait:  cfg.API.TokenWait,
	}, tokens, logger)

	s.engine = syncengine.NewEngine(s.api, layoutRepo, pageRepo, settingsRepo, logger)
	s.sessions = session.NewManager(logger)
	s.tags = session.NewTagTracker(logger)
	s.outbox = outbox.New(mutationRepo, s.api, s.sessions, s.exhibitionID, logger)
	s.resolver = resolver.NewPageResolver(pageRepo, layoutRepo, settingsRepo, logger)

	mqttClient, err := mqttcommon.NewClient(mqttcommon.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: fmt.Sprintf("%s-%s", cfg.MQTT.ClientID, s.deviceID),
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
	}, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	s.mqttClient = mqttClient

	s.consumer = consumer.NewMQTTConsumer(
		mqttClient, s.engine, s.exhibitionID, cfg.MQTT.TopicPrefix, cfg.MQTT.QoS, logger,
	)
	s.consumer.OnGroupEvent(s.handleGroupEvent)
	s.consumer.OnAntennaChange(func() { s.refreshAntennas(context.Background()) })

	return s, nil
}

// bootstrapIdentity writes config-provided identity into the settings
// repository and resolves the ids this process runs under. Settings
// persisted by an earlier run are used when the environment is silent.
func (s *KioskService) bootstrapIdentity(ctx context.Context) error {
	pairs := []struct {
		name  models.SettingName
		value string
	}{
		{models.SettingExhibitionID, s.config.Device.ExhibitionID},
		{models.SettingDeviceID, s.config.Device.DeviceID},
		{models.SettingRoomID, s.config.Device.RoomID},
	}
	for _, p := range pairs {
		if p.value == "" {
			continue
		}
		if err := s.settingsRepo.Set(ctx, p.name, p.value); err != nil {
			return err
		}
	}

	exhibitionID, found, err := s.settingsRepo.GetUUID(ctx, models.SettingExhibitionID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("exhibition id is not configured")
	}
	deviceID, found, err := s.settingsRepo.GetUUID(ctx, models.SettingDeviceID)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("device id is not configured")
	}

	s.exhibitionID = exhibitionID
	s.deviceID = deviceID
	return nil
}

// Start launches the push listener and the periodic tasks, then returns.
// Shutdown happens through ctx cancellation followed by Stop.
func (s *KioskService) Start(ctx context.Context) error {
	s.logger.Info("Starting kiosk sync service",
		zap.String("exhibition_id", s.exhibitionID.String()),
		zap.String("device_id", s.deviceID.String()),
	)

	// Group filtering needs the device record; without connectivity the
	// consumer still starts and the filter is set on a later resync.
	if device, err := s.api.FindDevice(ctx, s.exhibitionID, s.deviceID); err == nil {
		s.consumer.SetGroupID(device.GroupID)
	} else {
		s.logger.Warn("Could not resolve device group, group triggers disabled until resync", zap.Error(err))
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.consumer.Start(ctx); err != nil {
			s.logger.Error("Push listener terminated", zap.Error(err))
		}
	}()

	s.runResync(ctx)
	s.refreshAntennas(ctx)

	s.startLoop(ctx, "resync", s.config.Sync.ResyncInterval, s.runResync)
	s.startLoop(ctx, "outbox_drain", s.config.Outbox.DrainInterval, func(ctx context.Context) {
		if err := s.outbox.Drain(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Outbox drain failed", zap.Error(err))
		}
	})
	s.startLoop(ctx, "session_sweep", s.config.Session.SweepInterval, func(ctx context.Context) {
		s.sessions.RemoveExpired()
		s.tags.SweepExpired()
	})
	s.startLoop(ctx, "session_poll", s.config.Sync.SessionPollInterval, s.pollSessions())
	s.startLoop(ctx, "heartbeat", s.config.Sync.ResyncInterval, s.publishStatus)

	s.logger.Info("Kiosk sync service started")
	return nil
}

// startLoop runs task on every tick until ctx is cancelled. A slow run
// delays but never blocks the next one; overlap protection, where needed,
// lives inside the task itself.
func (s *KioskService) startLoop(ctx context.Context, name string, interval time.Duration, task func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.logger.Debug("Started periodic task",
			zap.String("task", name),
			zap.Duration("interval", interval),
		)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()
}

// runResync performs one full resync; overlapping calls are skipped, the
// periodic schedule is the retry policy.
func (s *KioskService) runResync(ctx context.Context) {
	if !s.resyncMu.TryLock() {
		return
	}
	defer s.resyncMu.Unlock()

	if err := s.engine.FullResync(ctx, s.exhibitionID, s.deviceID); err != nil {
		if ctx.Err() == nil {
			s.logger.Error("Full resync failed", zap.Error(err))
		}
		return
	}

	if device, err := s.api.FindDevice(ctx, s.exhibitionID, s.deviceID); err == nil {
		s.consumer.SetGroupID(device.GroupID)
	}
}

// pollSessions merges remotely-modified visitor sessions into the cache,
// complementing push updates. Only sessions modified since the previous
// successful poll are fetched.
func (s *KioskService) pollSessions() func(ctx context.Context) {
	var since *time.Time
	return func(ctx context.Context) {
		start := time.Now().UTC()
		sessions, err := s.api.ListVisitorSessions(ctx, s.exhibitionID, since)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("Visitor session poll failed", zap.Error(err))
			}
			return
		}
		for i := range sessions {
			s.sessions.MergeRemote(sessions[i])
		}
		since = &start
	}
}

func (s *KioskService) publishStatus(ctx context.Context) {
	payload, err := json.Marshal(models.DeviceStatus{
		DeviceID: s.deviceID,
		Status:   "ONLINE",
		Version:  Version,
	})
	if err != nil {
		return
	}
	topic := fmt.Sprintf("%s/%s/devices/%s/status", s.config.MQTT.TopicPrefix, s.exhibitionID, s.deviceID)
	if err := s.mqttClient.Publish(topic, s.config.MQTT.QoS, false, payload); err != nil {
		s.logger.Warn("Status heartbeat failed", zap.Error(err))
	}
}

// refreshAntennas re-lists the exhibition's RFID antennas into the local
// cache. Triggered at startup and by antenna push events.
func (s *KioskService) refreshAntennas(ctx context.Context) {
	antennas, err := s.api.ListRfidAntennas(ctx, s.exhibitionID)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("Antenna refresh failed", zap.Error(err))
		}
		return
	}
	s.antennas.mu.Lock()
	s.antennas.list = antennas
	s.antennas.mu.Unlock()
	s.logger.Debug("Refreshed antenna cache", zap.Int("count", len(antennas)))
}

// Antennas returns the cached RFID antennas for this exhibition.
func (s *KioskService) Antennas() []models.RfidAntenna {
	s.antennas.mu.RLock()
	defer s.antennas.mu.RUnlock()
	return append([]models.RfidAntenna(nil), s.antennas.list...)
}

// handleGroupEvent reacts to a device-group trigger by adopting the
// broadcast session as this device's current session.
func (s *KioskService) handleGroupEvent(event models.DeviceGroupEvent) {
	ctx := context.Background()
	remote, err := s.api.FindVisitorSession(ctx, s.exhibitionID, event.SessionID)
	if err != nil {
		s.logger.Warn("Group trigger references an unknown session",
			zap.String("session_id", event.SessionID.String()),
			zap.Error(err),
		)
		return
	}
	s.sessions.StartSession(remote, remote.Tags)
}

// StartVisitorSession creates a session remotely, then caches it as the
// current session.
func (s *KioskService) StartVisitorSession(ctx context.Context, language string, tags []string) (*models.VisitorSession, error) {
	created, err := s.api.CreateVisitorSession(ctx, s.exhibitionID, &models.VisitorSession{
		State:    models.SessionActive,
		Language: language,
		Tags:     tags,
	})
	if err != nil {
		return nil, err
	}
	s.sessions.StartSession(created, tags)
	return created, nil
}

// SetUserValue applies a user-value mutation local-first and queues the
// durable outbox record that carries it to the remote API.
func (s *KioskService) SetUserValue(ctx context.Context, name, value string, priority int64) error {
	current := s.sessions.Current()
	if current == nil {
		return fmt.Errorf("no active visitor session")
	}
	s.sessions.SetVariable(name, &value)
	return s.outbox.Enqueue(ctx, current.ID, name, value, priority)
}

// TagSeen records an RFID detection, refreshing the tag's visibility TTL.
func (s *KioskService) TagSeen(tag string) {
	s.tags.Seen(tag, s.config.Session.TagTTL)
}

// Resolver exposes page resolution to the display layer.
func (s *KioskService) Resolver() *resolver.PageResolver {
	return s.resolver
}

// Sessions exposes the session manager for change subscriptions.
func (s *KioskService) Sessions() *session.Manager {
	return s.sessions
}

// VisibleTags exposes the tag tracker for observers.
func (s *KioskService) VisibleTags() *session.TagTracker {
	return s.tags
}

// Stop shuts the service down: unsubscribe, disconnect, close the store.
func (s *KioskService) Stop(ctx context.Context) error {
	s.logger.Info("Stopping kiosk sync service")

	if s.consumer != nil {
		if err := s.consumer.Stop(ctx); err != nil {
			s.logger.Error("Error stopping push listener", zap.Error(err))
		}
	}
	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	s.wg.Wait()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Error closing store", zap.Error(err))
		}
	}

	s.logger.Info("Kiosk sync service stopped")
	return nil
}
