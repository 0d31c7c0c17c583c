package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	pkgauth "github.com/BradenHooton/authguard/pkg/auth"
	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/crypto/hkdf"
)

const (
	TOTPPeriod      = 30 // seconds per time step
	TOTPDigits      = 6
	TOTPSecretSize  = 20 // 160-bit secret
	TOTPAlgorithm   = "SHA1"
	DefaultTOTPSkew = 1 // ±1 time step

	codeModulus       = 1_000_000
	encryptionKeySize = 32 // AES-256
	qrCodeSize        = 256
)

var (
	ErrEncryptionKeyNotSet = errors.New("TOTP encryption key not set")
	ErrCodeReplayed        = errors.New("code replay detected")
)

// hkdfInfo binds derived keys to their purpose
var hkdfInfo = []byte("authguard totp secret encryption v1")

// GenerateSecret returns a new random secret, Base32-encoded without padding
func GenerateSecret() (string, error) {
	secret := make([]byte, TOTPSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return pkgauth.Base32Encode(secret), nil
}

// TimeStep returns floor(unix(t) / 30) as the HOTP counter
func TimeStep(t time.Time) uint64 {
	unix := t.Unix()
	step := unix / TOTPPeriod
	if unix%TOTPPeriod < 0 {
		step--
	}
	return uint64(step)
}

// HOTP computes the RFC 4226 code for key and counter
func HOTP(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	digest := mac.Sum(nil)

	// Dynamic truncation: low nibble of the last byte selects a 4-byte window
	offset := digest[len(digest)-1] & 0x0f
	code := binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", TOTPDigits, code%codeModulus)
}

// GenerateCode returns the 6-digit code for the time step containing t
func GenerateCode(secret string, t time.Time) string {
	return HOTP(pkgauth.Base32Decode(secret), TimeStep(t))
}

// GenerateCodeNow returns the code for the current time step
func GenerateCodeNow(secret string) string {
	return GenerateCode(secret, time.Now())
}

// VerifyCode checks code against the current time with ±window steps of tolerance
func VerifyCode(secret, code string, window int) bool {
	return VerifyCodeAt(secret, code, time.Now(), window)
}

// VerifyCodeAt checks code against the time steps around t
func VerifyCodeAt(secret, code string, t time.Time, window int) bool {
	_, ok := MatchTimeStep(secret, code, t, window)
	return ok
}

// MatchTimeStep returns the time step whose code equals code.
// Every offset in [-window, window] is computed and compared, so the work done
// does not reveal which offset matched. A negative window counts as zero.
func MatchTimeStep(secret, code string, t time.Time, window int) (uint64, bool) {
	if window < 0 {
		window = 0
	}

	key := pkgauth.Base32Decode(secret)
	base := TimeStep(t)

	var step uint64
	matched := false
	for i := -window; i <= window; i++ {
		candidate := base + uint64(int64(i))
		equal := pkgauth.ConstantTimeEquals(code, HOTP(key, candidate))
		if equal && !matched {
			step = candidate
			matched = true
		}
	}

	return step, matched
}

// ProvisioningURI builds the otpauth:// URI understood by authenticator apps
func ProvisioningURI(secret, accountLabel, issuer string) string {
	encodedIssuer := encodeURIComponent(issuer)
	encodedAccount := encodeURIComponent(accountLabel)
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=%s&digits=%d&period=%d",
		encodedIssuer, encodedAccount, secret, encodedIssuer, TOTPAlgorithm, TOTPDigits, TOTPPeriod)
}

// uriComponentUnescaper undoes QueryEscape for the sub-delims that stay literal in a URI component
var uriComponentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent percent-encodes s, using %20 for spaces and leaving ! ' ( ) * as is
func encodeURIComponent(s string) string {
	return uriComponentUnescaper.Replace(url.QueryEscape(s))
}

// TOTPConfig configures a TOTPManager
type TOTPConfig struct {
	Issuer        string // Issuer shown in authenticator apps
	Skew          int    // Accepted time steps on either side of now
	EncryptionKey string // Optional passphrase or 32-byte key for at-rest secret encryption
}

// Enrollment bundles everything a user needs to set up an authenticator
type Enrollment struct {
	ID          string
	Secret      string
	URI         string
	QRCode      string // PNG data URL
	BackupCodes []string
}

// TOTPManager handles TOTP enrollment, verification and secret encryption
type TOTPManager struct {
	encryptionKey []byte // 32-byte AES-256 key, nil when encryption is disabled
	issuer        string
	skew          int
	now           func() time.Time
}

// NewTOTPManager creates a new TOTP manager.
// A configured encryption key that is not exactly 32 bytes is stretched with HKDF-SHA256.
func NewTOTPManager(cfg TOTPConfig) (*TOTPManager, error) {
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("TOTP issuer is required")
	}
	if cfg.Skew < 0 {
		return nil, fmt.Errorf("TOTP skew must not be negative, got %d", cfg.Skew)
	}

	tm := &TOTPManager{
		issuer: cfg.Issuer,
		skew:   cfg.Skew,
		now:    time.Now,
	}

	if cfg.EncryptionKey != "" {
		key, err := deriveEncryptionKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		tm.encryptionKey = key
	}

	return tm, nil
}

// SetClock replaces the time source used for verification
func (tm *TOTPManager) SetClock(now func() time.Time) {
	tm.now = now
}

func deriveEncryptionKey(secret string) ([]byte, error) {
	if len(secret) == encryptionKeySize {
		return []byte(secret), nil
	}

	key := make([]byte, encryptionKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	return key, nil
}

// Issuer returns the configured issuer
func (tm *TOTPManager) Issuer() string {
	return tm.issuer
}

// Enroll generates a secret, its provisioning URI and QR code, and a fresh set of backup codes
func (tm *TOTPManager) Enroll(accountLabel string, backupCodeCount int) (*Enrollment, error) {
	secret, err := GenerateSecret()
	if err != nil {
		return nil, err
	}

	uri := ProvisioningURI(secret, accountLabel, tm.issuer)
	qr, err := ProvisioningQR(uri)
	if err != nil {
		return nil, err
	}

	codes, err := GenerateBackupCodes(backupCodeCount)
	if err != nil {
		return nil, err
	}

	return &Enrollment{
		ID:          uuid.NewString(),
		Secret:      secret,
		URI:         uri,
		QRCode:      qr,
		BackupCodes: codes,
	}, nil
}

// ProvisioningQR renders uri as a PNG data URL
func ProvisioningQR(uri string) (string, error) {
	png, err := qrcode.Encode(uri, qrcode.Medium, qrCodeSize)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// Verify checks code against the manager's clock and skew
func (tm *TOTPManager) Verify(secret, code string) bool {
	return VerifyCodeAt(secret, code, tm.now(), tm.skew)
}

// VerifyWithReplayGuard verifies code and rejects it when its time step is not newer
// than lastStep, the step of the last code accepted for this secret.
// The accepted step is returned so callers can persist it.
func (tm *TOTPManager) VerifyWithReplayGuard(secret, code string, lastStep *uint64) (uint64, bool, error) {
	step, ok := MatchTimeStep(secret, code, tm.now(), tm.skew)
	if !ok {
		return 0, false, nil
	}
	if lastStep != nil && step <= *lastStep {
		return 0, false, ErrCodeReplayed
	}
	return step, true, nil
}

// EncryptSecret encrypts a TOTP secret using AES-256-GCM
// Returns: (encryptedBytes, nonce, error)
func (tm *TOTPManager) EncryptSecret(secret []byte) ([]byte, []byte, error) {
	gcm, err := tm.gcm()
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nil, nonce, secret, nil), nonce, nil
}

// DecryptSecret decrypts an encrypted TOTP secret
func (tm *TOTPManager) DecryptSecret(encrypted, nonce []byte) ([]byte, error) {
	gcm, err := tm.gcm()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("failed to decrypt secret: nonce must be %d bytes, got %d", gcm.NonceSize(), len(nonce))
	}

	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return plaintext, nil
}

func (tm *TOTPManager) gcm() (cipher.AEAD, error) {
	if tm.encryptionKey == nil {
		return nil, ErrEncryptionKeyNotSet
	}

	block, err := aes.NewCipher(tm.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
