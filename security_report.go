package authcore

import "github.com/MrEthical07/authcore/internal/security"

// SecurityReport summarizes the security posture of a built engine.
type SecurityReport = security.Report

// PasswordReport is the argon2id part of SecurityReport.
type PasswordReport = security.PasswordReport

// SecurityReport describes the engine's effective security settings. It
// contains no secrets.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return security.BuildReport(security.ReportInput{})
	}

	cfg := e.config
	poolSize := 0
	if e.hasher != nil {
		poolSize = e.hasher.Size()
	}

	return security.BuildReport(security.ReportInput{
		AccessTTL:       cfg.JWT.AccessTTL,
		Leeway:          cfg.JWT.Leeway,
		RefreshTTL:      cfg.Refresh.TTL,
		RefreshRotation: cfg.Refresh.Rotation.String(),
		Rotating:        cfg.Refresh.Rotation == RotationRotating,
		Password: security.PasswordReport{
			Memory:      cfg.Password.Memory,
			Time:        cfg.Password.Time,
			Parallelism: cfg.Password.Parallelism,
			SaltLength:  cfg.Password.SaltLength,
			KeyLength:   cfg.Password.KeyLength,
			PoolSize:    poolSize,
		},
		UpgradeOnLogin:        cfg.Password.UpgradeOnLogin,
		LimiterConfigured:     e.limiter != nil,
		MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		EnableIPThrottle:      cfg.Security.EnableIPThrottle,
		AuditEnabled:          e.audit != nil && cfg.Audit.Enabled,
	})
}
