package aliyundrive

import (
	"encoding/json"

	"github.com/semmidev/alipan-runner/internal/domain"
)

const (
	capacityPath = "/adrive/v1/user/driveCapacityDetails"
	listPath     = "/adrive/v2/file/list"
	getPathPath  = "/adrive/v1/file/get_path"
	batchPath    = "/v3/batch"

	batchDeleteURL = "/file/delete"
	batchResource  = "file"
)

// Logger is the subset of the application logger the adapter writes to.
type Logger interface {
	Debugf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	RefreshToken string `json:"refresh_token"`
}

type driveFileRequest struct {
	DriveID string `json:"drive_id"`
	FileID  string `json:"file_id"`
}

type listRequest struct {
	DriveID      string `json:"drive_id"`
	ParentFileID string `json:"parent_file_id"`
	Marker       string `json:"marker,omitempty"`
}

type itemsResponse struct {
	Items      []domain.FileEntry `json:"items"`
	NextMarker string             `json:"next_marker"`
}

type batchRequest struct {
	Requests []batchItem `json:"requests"`
	Resource string      `json:"resource"`
}

type batchItem struct {
	Body    interface{}       `json:"body"`
	Headers map[string]string `json:"headers"`
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
}

type batchResponse struct {
	Responses []json.RawMessage `json:"responses"`
}

type batchItemStatus struct {
	ID     string `json:"id"`
	Status int    `json:"status"`
}
