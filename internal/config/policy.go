package config

import "time"

type LockoutPolicy struct {
	MaxFailedAttempts int           `yaml:"max_failed_attempts"`
	Duration          time.Duration `yaml:"duration"`
}

type SessionPolicy struct {
	MaxConcurrent     int           `yaml:"max_concurrent"`
	NormalTTL         time.Duration `yaml:"normal_ttl"`
	ExtendedTTL       time.Duration `yaml:"extended_ttl"`
	AdminTTL          time.Duration `yaml:"admin_ttl"`
	InactivityTimeout time.Duration `yaml:"inactivity_timeout"`
}

type TokenPolicy struct {
	AccessTTL  time.Duration `yaml:"access_ttl"`
	RefreshTTL time.Duration `yaml:"refresh_ttl"`
}

// DevicePolicy controls fingerprint trust growth. A zero TrustBumpInterval
// raises the score on every recognized visit.
type DevicePolicy struct {
	MaxDevicesPerUser int           `yaml:"max_devices_per_user"`
	InitialTrustScore int           `yaml:"initial_trust_score"`
	TrustIncrement    int           `yaml:"trust_increment"`
	TrustBumpInterval time.Duration `yaml:"trust_bump_interval"`
	AlertOnNewDevice  bool          `yaml:"alert_on_new_device"`
}

type AuditPolicy struct {
	BruteForceWindow    time.Duration `yaml:"brute_force_window"`
	BruteForceThreshold int           `yaml:"brute_force_threshold"`
}

type SecurityPolicy struct {
	Lockout LockoutPolicy `yaml:"lockout"`
	Session SessionPolicy `yaml:"session"`
	Token   TokenPolicy   `yaml:"token"`
	Device  DevicePolicy  `yaml:"device"`
	Audit   AuditPolicy   `yaml:"audit"`
}

func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		Lockout: LockoutPolicy{MaxFailedAttempts: 5, Duration: 15 * time.Minute},
		Session: SessionPolicy{
			MaxConcurrent:     5,
			NormalTTL:         8 * time.Hour,
			ExtendedTTL:       7 * 24 * time.Hour,
			AdminTTL:          time.Hour,
			InactivityTimeout: 30 * time.Minute,
		},
		Token: TokenPolicy{AccessTTL: 15 * time.Minute, RefreshTTL: 30 * 24 * time.Hour},
		Device: DevicePolicy{
			MaxDevicesPerUser: 10,
			InitialTrustScore: 20,
			TrustIncrement:    5,
			AlertOnNewDevice:  true,
		},
		Audit: AuditPolicy{BruteForceWindow: 15 * time.Minute, BruteForceThreshold: 5},
	}
}
