package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/tenant-session-core/internal/clientinfo"
	"github.com/sandeepkv93/tenant-session-core/internal/config"
	"github.com/sandeepkv93/tenant-session-core/internal/domain"
	"github.com/sandeepkv93/tenant-session-core/internal/notify"
	"github.com/sandeepkv93/tenant-session-core/internal/observability"
	"github.com/sandeepkv93/tenant-session-core/internal/repository"
	"github.com/sandeepkv93/tenant-session-core/internal/security"
)

const (
	newDeviceTemplate  = "new-device-alert"
	newDeviceSubject   = "New Device Login Detected"
	blockedByUser      = "Manually blocked by user"
	removedByUser      = "User removed device"
	unknownGeoLocation = "Unknown"
)

type DeviceView struct {
	ID              string            `json:"id"`
	DeviceName      string            `json:"device_name"`
	DeviceType      domain.DeviceType `json:"device_type"`
	OperatingSystem string            `json:"operating_system"`
	Browser         string            `json:"browser"`
	LastIPAddress   string            `json:"last_ip_address"`
	GeoLocation     string            `json:"geo_location,omitempty"`
	FirstSeen       time.Time         `json:"first_seen"`
	LastSeen        time.Time         `json:"last_seen"`
	IsTrusted       bool              `json:"is_trusted"`
	TrustScore      int               `json:"trust_score"`
	IsBlocked       bool              `json:"is_blocked"`
	BlockReason     string            `json:"block_reason,omitempty"`
}

type DeviceService struct {
	devices  repository.DeviceRepository
	users    repository.UserRepository
	audit    *SecurityAuditService
	parser   clientinfo.Parser
	email    notify.EmailSender
	async    AsyncRunner
	locker   UserLocker
	ids      security.PublicIDCodec
	digester security.Digester
	policy   config.DevicePolicy
	logger   *slog.Logger
	now      func() time.Time
}

func NewDeviceService(
	devices repository.DeviceRepository,
	users repository.UserRepository,
	audit *SecurityAuditService,
	parser clientinfo.Parser,
	email notify.EmailSender,
	async AsyncRunner,
	locker UserLocker,
	ids security.PublicIDCodec,
	digester security.Digester,
	policy config.DevicePolicy,
	logger *slog.Logger,
) *DeviceService {
	if logger == nil {
		logger = slog.Default()
	}
	if locker == nil {
		locker = NewNoopUserLocker()
	}
	if digester == nil {
		digester = security.SHA256Digester{}
	}
	return &DeviceService{
		devices:  devices,
		users:    users,
		audit:    audit,
		parser:   parser,
		email:    email,
		async:    async,
		locker:   locker,
		ids:      ids,
		digester: digester,
		policy:   policy,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *DeviceService) Fingerprint(deviceID, userAgent, ipAddress string) string {
	return security.DeviceFingerprint(s.digester, deviceID, userAgent, ipAddress)
}

// RegisterOrUpdate records a visit from a known fingerprint or stores a new
// device. New devices are subject to the per-user cap and raise an alert.
func (s *DeviceService) RegisterOrUpdate(ctx context.Context, userID uuid.UUID, deviceHash, userAgent, ipAddress string) (*domain.UserDevice, error) {
	existing, err := s.devices.FindByUserAndHash(ctx, userID, deviceHash)
	switch {
	case err == nil:
		return s.recordVisit(ctx, existing, ipAddress)
	case !errors.Is(err, repository.ErrDeviceNotFound):
		observability.RecordDeviceRegistration(ctx, "error")
		return nil, fmt.Errorf("find device: %w", err)
	}

	unlock, err := s.locker.Lock(ctx, lockScopeDevice, userID)
	if err != nil {
		observability.RecordDeviceRegistration(ctx, "error")
		return nil, fmt.Errorf("lock devices: %w", err)
	}
	device, created, err := s.registerLocked(ctx, userID, deviceHash, userAgent, ipAddress)
	unlock()
	if err != nil || !created {
		return device, err
	}

	observability.RecordDeviceRegistration(ctx, "new")
	s.logger.InfoContext(ctx, "new device registered",
		"user_id", userID.String(),
		"device_id", device.ID.String(),
		"device_type", string(device.DeviceType),
	)
	if s.audit != nil {
		s.audit.LogNewDevice(ctx, device, userAgent)
	}
	if s.policy.AlertOnNewDevice {
		s.dispatchAlert(ctx, device)
	}
	return device, nil
}

func (s *DeviceService) registerLocked(ctx context.Context, userID uuid.UUID, deviceHash, userAgent, ipAddress string) (*domain.UserDevice, bool, error) {
	// Another request may have stored the fingerprint while we waited.
	if existing, err := s.devices.FindByUserAndHash(ctx, userID, deviceHash); err == nil {
		device, err := s.recordVisit(ctx, existing, ipAddress)
		return device, false, err
	}
	allowed, err := s.CanAddDevice(ctx, userID, s.policy.MaxDevicesPerUser)
	if err != nil {
		observability.RecordDeviceRegistration(ctx, "error")
		return nil, false, err
	}
	if !allowed {
		observability.RecordDeviceRegistration(ctx, "limit_exceeded")
		s.logger.WarnContext(ctx, "device limit reached", "user_id", userID.String(), "max_devices", s.policy.MaxDevicesPerUser)
		return nil, false, ErrDeviceLimitExceeded
	}

	info := s.parser.Parse(userAgent)
	deviceType := clientinfo.ClassifyDevice(info.DeviceFamily)
	now := s.now()
	device := &domain.UserDevice{
		ID:              uuid.New(),
		UserID:          userID,
		DeviceHash:      deviceHash,
		DeviceName:      clientinfo.DeviceName(info, deviceType),
		DeviceType:      deviceType,
		OperatingSystem: info.OS,
		Browser:         info.Browser,
		LastIPAddress:   ipAddress,
		FirstSeen:       now,
		LastSeen:        now,
		LastTrustBumpAt: &now,
		TrustScore:      domain.ClampTrustScore(s.policy.InitialTrustScore),
	}
	if err := s.devices.Create(ctx, device); err != nil {
		observability.RecordDeviceRegistration(ctx, "error")
		return nil, false, fmt.Errorf("create device: %w", err)
	}
	return device, true, nil
}

func (s *DeviceService) recordVisit(ctx context.Context, device *domain.UserDevice, ipAddress string) (*domain.UserDevice, error) {
	now := s.now()
	visit := repository.DeviceVisit{
		IPAddress:       ipAddress,
		SeenAt:          now,
		TrustScore:      device.TrustScore,
		LastTrustBumpAt: device.LastTrustBumpAt,
	}
	outcome := "known"
	if device.IsBlocked {
		outcome = "blocked"
		s.logger.WarnContext(ctx, "visit from blocked device",
			"user_id", device.UserID.String(),
			"device_id", device.ID.String(),
		)
	} else if s.trustBumpDue(device, now) {
		visit.TrustScore = domain.ClampTrustScore(device.TrustScore + s.policy.TrustIncrement)
		visit.LastTrustBumpAt = &now
	}
	if err := s.devices.RecordVisit(ctx, device.ID, visit); err != nil {
		observability.RecordDeviceRegistration(ctx, "error")
		return nil, fmt.Errorf("record device visit: %w", err)
	}
	observability.RecordDeviceRegistration(ctx, outcome)
	device.LastSeen = visit.SeenAt
	device.LastIPAddress = visit.IPAddress
	device.TrustScore = visit.TrustScore
	device.LastTrustBumpAt = visit.LastTrustBumpAt
	return device, nil
}

func (s *DeviceService) trustBumpDue(device *domain.UserDevice, now time.Time) bool {
	if s.policy.TrustBumpInterval <= 0 || device.LastTrustBumpAt == nil {
		return true
	}
	return now.Sub(*device.LastTrustBumpAt) >= s.policy.TrustBumpInterval
}

func (s *DeviceService) dispatchAlert(ctx context.Context, device *domain.UserDevice) {
	if s.async == nil || s.email == nil || s.users == nil {
		return
	}
	snapshot := *device
	s.async.Go(ctx, "new_device_alert", func(ctx context.Context) error {
		return s.sendNewDeviceAlert(ctx, &snapshot)
	})
}

func (s *DeviceService) sendNewDeviceAlert(ctx context.Context, device *domain.UserDevice) error {
	user, err := s.users.FindByID(ctx, device.UserID)
	if err != nil {
		return fmt.Errorf("load user for device alert: %w", err)
	}
	if !user.EmailConfirmed || user.Email == "" {
		return nil
	}
	location := device.GeoLocation
	if location == "" {
		location = unknownGeoLocation
	}
	return s.email.SendTemplate(ctx, notify.EmailMessage{
		To:       user.Email,
		Subject:  newDeviceSubject,
		Template: newDeviceTemplate,
		Data: map[string]string{
			"deviceName": device.DeviceName,
			"ipAddress":  device.LastIPAddress,
			"location":   location,
			"dateTime":   device.FirstSeen.UTC().Format("2006-01-02 15:04:05 UTC"),
		},
	})
}

// CanAddDevice reports whether the user is below maxDevices non-blocked
// devices. A non-positive limit disables the cap.
func (s *DeviceService) CanAddDevice(ctx context.Context, userID uuid.UUID, maxDevices int) (bool, error) {
	if maxDevices <= 0 {
		return true, nil
	}
	n, err := s.devices.CountActiveByUser(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("count devices: %w", err)
	}
	return n < int64(maxDevices), nil
}

// IsRecognized reports whether the address and client descriptor map to a
// known, non-blocked device.
func (s *DeviceService) IsRecognized(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) (bool, error) {
	device, err := s.devices.FindByUserAndHash(ctx, userID, s.Fingerprint("", userAgent, ipAddress))
	if errors.Is(err, repository.ErrDeviceNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !device.IsBlocked, nil
}

func (s *DeviceService) ListDevices(ctx context.Context, userID uuid.UUID) ([]DeviceView, error) {
	devices, err := s.devices.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]DeviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, DeviceView{
			ID:              s.ids.ToPublicID("device", d.ID),
			DeviceName:      d.DeviceName,
			DeviceType:      d.DeviceType,
			OperatingSystem: d.OperatingSystem,
			Browser:         d.Browser,
			LastIPAddress:   d.LastIPAddress,
			GeoLocation:     d.GeoLocation,
			FirstSeen:       d.FirstSeen,
			LastSeen:        d.LastSeen,
			IsTrusted:       d.IsTrusted,
			TrustScore:      d.TrustScore,
			IsBlocked:       d.IsBlocked,
			BlockReason:     d.BlockReason,
		})
	}
	return views, nil
}

func (s *DeviceService) TrustDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	return s.mutate(ctx, "trust", userID, deviceID, func(d *domain.UserDevice) {
		d.IsTrusted = true
		d.TrustScore = domain.MaxTrustScore
	})
}

func (s *DeviceService) BlockDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	return s.mutate(ctx, "block", userID, deviceID, func(d *domain.UserDevice) {
		d.IsBlocked = true
		d.IsTrusted = false
		d.TrustScore = domain.MinTrustScore
		d.BlockReason = blockedByUser
	})
}

// RemoveDevice retires a device by blocking it. The row and its score are
// kept so the fingerprint stays unrecognized.
func (s *DeviceService) RemoveDevice(ctx context.Context, userID, deviceID uuid.UUID) error {
	return s.mutate(ctx, "remove", userID, deviceID, func(d *domain.UserDevice) {
		d.IsBlocked = true
		d.IsTrusted = false
		d.BlockReason = removedByUser
	})
}

func (s *DeviceService) mutate(ctx context.Context, op string, userID, deviceID uuid.UUID, apply func(*domain.UserDevice)) error {
	device, err := s.devices.FindByIDForUser(ctx, userID, deviceID)
	if errors.Is(err, repository.ErrDeviceNotFound) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return err
	}
	apply(device)
	if err := s.devices.Update(ctx, device); err != nil {
		return fmt.Errorf("%s device: %w", op, err)
	}
	s.logger.InfoContext(ctx, "device updated",
		"operation", op,
		"user_id", userID.String(),
		"device_id", deviceID.String(),
	)
	return nil
}
