package security

import "time"

// SigningAlgorithm is the only JWT algorithm the engine issues or accepts.
const SigningAlgorithm = "HS256"

type PasswordReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
	PoolSize    int
}

// Report is a point-in-time summary of the engine's security posture.
type Report struct {
	SigningAlgorithm       string
	AccessTTL              time.Duration
	Leeway                 time.Duration
	RefreshTTL             time.Duration
	RefreshRotation        string
	RefreshRotationEnabled bool
	Argon2                 PasswordReport
	PasswordUpgradeActive  bool
	LoginRateLimitActive   bool
	IPThrottleActive       bool
	AuditActive            bool
}

type ReportInput struct {
	AccessTTL             time.Duration
	Leeway                time.Duration
	RefreshTTL            time.Duration
	RefreshRotation       string
	Rotating              bool
	Password              PasswordReport
	UpgradeOnLogin        bool
	LimiterConfigured     bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
	EnableIPThrottle      bool
	AuditEnabled          bool
}

// BuildReport derives the report. Limits count as active only when a
// limiter backend is wired and the thresholds are positive.
func BuildReport(input ReportInput) Report {
	rateLimiting := input.LimiterConfigured &&
		input.MaxLoginAttempts > 0 &&
		input.LoginCooldownDuration > 0

	return Report{
		SigningAlgorithm:       SigningAlgorithm,
		AccessTTL:              input.AccessTTL,
		Leeway:                 input.Leeway,
		RefreshTTL:             input.RefreshTTL,
		RefreshRotation:        input.RefreshRotation,
		RefreshRotationEnabled: input.Rotating,
		Argon2:                 input.Password,
		PasswordUpgradeActive:  input.UpgradeOnLogin,
		LoginRateLimitActive:   rateLimiting,
		IPThrottleActive:       rateLimiting && input.EnableIPThrottle,
		AuditActive:            input.AuditEnabled,
	}
}
