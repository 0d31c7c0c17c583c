package handlers

import (
	pkgauth "github.com/BradenHooton/authguard/pkg/auth"
)

// Password DTOs

// EvaluatePasswordRequest asks for a password to be scored.
// Requirements falls back to the server policy when omitted.
type EvaluatePasswordRequest struct {
	Password     string                        `json:"password" validate:"max=1024"`
	Requirements *PasswordRequirementsOverride `json:"requirements"`
}

// PasswordRequirementsOverride is a partial policy. Fields left out keep the server value.
type PasswordRequirementsOverride struct {
	MinLength           *int  `json:"min_length" validate:"omitempty,gte=0,lte=1024"`
	MaxLength           *int  `json:"max_length" validate:"omitempty,gte=0,lte=1024"`
	RequireUppercase    *bool `json:"require_uppercase"`
	RequireLowercase    *bool `json:"require_lowercase"`
	RequireNumbers      *bool `json:"require_numbers"`
	RequireSpecialChars *bool `json:"require_special_chars"`
}

// Apply merges the override onto base
func (o *PasswordRequirementsOverride) Apply(base pkgauth.PasswordRequirements) pkgauth.PasswordRequirements {
	if o == nil {
		return base
	}
	if o.MinLength != nil {
		base.MinLength = *o.MinLength
	}
	if o.MaxLength != nil {
		base.MaxLength = *o.MaxLength
	}
	if o.RequireUppercase != nil {
		base.RequireUppercase = *o.RequireUppercase
	}
	if o.RequireLowercase != nil {
		base.RequireLowercase = *o.RequireLowercase
	}
	if o.RequireNumbers != nil {
		base.RequireNumbers = *o.RequireNumbers
	}
	if o.RequireSpecialChars != nil {
		base.RequireSpecialChars = *o.RequireSpecialChars
	}
	return base
}

// Lockout DTOs

// LockoutRequest identifies a login attempt stream.
// Origin defaults to the caller's client IP.
type LockoutRequest struct {
	Identity string `json:"identity" validate:"required,max=320"`
	Origin   string `json:"origin" validate:"omitempty,max=255"`
}

// UnlockRequest asks an administrator action to clear every lockout for an identity
type UnlockRequest struct {
	Identity string `json:"identity" validate:"required,max=320"`
}

// UnlockResponse reports how many lockout records were removed
type UnlockResponse struct {
	Identity string `json:"identity"`
	Removed  int    `json:"removed"`
}

// TOTP DTOs

// EnrollTOTPRequest starts a TOTP enrollment
type EnrollTOTPRequest struct {
	AccountLabel string `json:"account_label" validate:"required,max=255"`
}

// EnrollTOTPResponse carries everything an authenticator app needs
type EnrollTOTPResponse struct {
	EnrollmentID string   `json:"enrollment_id"`
	Secret       string   `json:"secret"`  // Base32 secret for manual entry
	URI          string   `json:"uri"`     // otpauth:// provisioning URI
	QRCode       string   `json:"qr_code"` // PNG data URL
	BackupCodes  []string `json:"backup_codes"`
}

// VerifyTOTPRequest checks a TOTP code against a secret.
// When Identity is set, the attempt counts towards that identity's lockout.
// LastStep enables replay protection.
type VerifyTOTPRequest struct {
	Secret   string  `json:"secret" validate:"required,max=256"`
	Code     string  `json:"code" validate:"required,len=6,numeric"`
	Identity string  `json:"identity" validate:"omitempty,max=320"`
	LastStep *uint64 `json:"last_step"`
}

// VerifyTOTPResponse is returned for every well-formed verification
type VerifyTOTPResponse struct {
	Valid             bool    `json:"valid"`
	TimeStep          *uint64 `json:"time_step,omitempty"`
	RemainingAttempts *int    `json:"remaining_attempts,omitempty"`
}

// Backup code DTOs

// GenerateBackupCodesRequest asks for a fresh set of backup codes
type GenerateBackupCodesRequest struct {
	Count int `json:"count" validate:"gte=0,lte=50"`
}

// GenerateBackupCodesResponse returns codes with the hashes to store
type GenerateBackupCodesResponse struct {
	Codes  []string `json:"codes"`
	Hashes []string `json:"hashes"`
}

// VerifyBackupCodeRequest checks a backup code against a stored hash
type VerifyBackupCodeRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Hash string `json:"hash" validate:"required,len=64,hexadecimal"`
}

// VerifyBackupCodeResponse reports whether the code matched
type VerifyBackupCodeResponse struct {
	Valid bool `json:"valid"`
}
