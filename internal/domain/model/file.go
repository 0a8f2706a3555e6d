package model

import "time"

// FileRecord links one user to one content identifier.
// The same CID may appear in several records, one per owner; filename and
// MIME type are the owner's own and may differ between owners.
// A record is never updated after insert.
type FileRecord struct {
	// ID: UUID of the record
	ID string
	// CID: content identifier returned by the pinning service
	CID string
	// UserID: owner
	UserID string
	// Filename: original filename supplied by the owner
	Filename string
	// Size: file size in bytes
	Size int64
	// MimeType: MIME type reported by the client (optional)
	MimeType *string
	// UploadedAt: insert time
	UploadedAt time.Time
	// Owner: owner details, filled only by lookups that join users
	Owner *FileOwner
}

// FileOwner is the public part of the owning user shown on by-CID lookups.
type FileOwner struct {
	Email string
	Name  *string
}
