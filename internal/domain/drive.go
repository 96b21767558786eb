package domain

import (
	"context"
	"encoding/json"
)

type FileType string

const (
	FileTypeFile   FileType = "file"
	FileTypeFolder FileType = "folder"
)

type FileEntry struct {
	FileID       string   `json:"file_id"`
	Name         string   `json:"name"`
	Type         FileType `json:"type"`
	Size         int64    `json:"size"`
	ParentFileID string   `json:"parent_file_id,omitempty"`
	DriveID      string   `json:"drive_id,omitempty"`
}

type Identity struct {
	UserID          string `json:"user_id"`
	NickName        string `json:"nick_name"`
	DefaultDriveID  string `json:"default_drive_id"`
	ResourceDriveID string `json:"resource_drive_id"`
}

// DriveID prefers the resource drive, which is where the web client keeps
// user files since the drive split.
func (i Identity) DriveID() string {
	if i.ResourceDriveID != "" {
		return i.ResourceDriveID
	}
	return i.DefaultDriveID
}

type Capacity struct {
	TotalSize int64 `json:"drive_total_size"`
	UsedSize  int64 `json:"drive_used_size"`
}

func (c Capacity) FreeSize() int64 {
	return c.TotalSize - c.UsedSize
}

type DeleteStatus int

const (
	DeleteSucceeded DeleteStatus = iota
	DeleteFailed
	DeleteUnknown
)

func (s DeleteStatus) String() string {
	switch s {
	case DeleteSucceeded:
		return "succeeded"
	case DeleteFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DeleteOutcome is the per-item result of a batch delete. Details holds the
// raw sub-response and is only set for DeleteFailed.
type DeleteOutcome struct {
	Status     DeleteStatus
	StatusCode int
	Details    json.RawMessage
}

// Drive is the provider surface the cleanup loop depends on. An empty
// driveID selects the default drive.
type Drive interface {
	ResolveDefaultDrive(ctx context.Context) (string, error)
	Capacity(ctx context.Context) (*Capacity, error)
	List(ctx context.Context, folderID, driveID string) ([]FileEntry, error)
	PathOf(ctx context.Context, fileID, driveID string) ([]FileEntry, error)
	Delete(ctx context.Context, fileID, driveID string) (DeleteOutcome, error)
}
