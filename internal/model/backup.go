package model

import "time"

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// Backup records one encrypted database snapshot uploaded to object storage.
type Backup struct {
	ID           int64        `json:"id" db:"id"`
	Filename     string       `json:"filename" db:"filename"`
	S3Key        string       `json:"s3_key" db:"s3_key"`
	SizeBytes    int64        `json:"size_bytes" db:"size_bytes"`
	Status       BackupStatus `json:"status" db:"status"`
	ErrorMessage string       `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time    `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}
