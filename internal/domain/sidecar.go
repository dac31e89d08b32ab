package domain

import "time"

// SidecarMetadata is the one-line JSON object written beside every
// published artifact.
type SidecarMetadata struct {
	Timestamp       time.Time `json:"timestamp"`
	ContainerName   string    `json:"container_name"`
	Engine          string    `json:"engine"`
	Database        string    `json:"database"`
	FileSize        int64     `json:"file_size"`
	Checksum        string    `json:"checksum"`
	BackupFile      string    `json:"backup_file"`
	Compressed      bool      `json:"compressed"`
	CompressionType *string   `json:"compression_type"`
}

// EncryptedSidecarMetadata is written beside an encrypted artifact, in
// addition to the plain SidecarMetadata.
type EncryptedSidecarMetadata struct {
	Algorithm      string    `json:"algorithm"`
	OriginalFile   string    `json:"original_file"`
	OriginalSize   int64     `json:"original_size"`
	EncryptedSize  int64     `json:"encrypted_size"`
	EncryptedAt    time.Time `json:"encrypted_at"`
	KeyFingerprint string    `json:"key_fingerprint"`
}

// Encrypted container format constants (see the data model's byte layout).
const (
	EncryptionMagic     = "BAKT"
	EncryptionVersion   = byte(1)
	EncryptionAlgorithm = "aes-256-gcm"
	EncryptionIVSize    = 12
	EncryptionTagSize   = 16
)
