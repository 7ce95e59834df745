package models

import "time"

// RootFolderID is the implicit root of the folder forest. It is never
// persisted; folders with ParentID == RootFolderID are top-level.
const RootFolderID int64 = 0

// Subject types for grants.
const (
	SubjectUser  = "user"
	SubjectGroup = "group"
)

// RoleAdmin is the distinguished role that bypasses grant checks.
const RoleAdmin = "admin"

// Reserved group names that always exist and cannot be deleted.
const (
	DefaultGroupName    = "Default"
	ManagementGroupName = "Management"
)

// Principal is the acting identity, supplied by the caller. Group
// memberships are resolved through the membership index, not carried here.
type Principal struct {
	ID          int64
	Role        string
	DisplayName string
	Contact     string
}

// IsAdmin reports whether the principal bypasses grant checks entirely.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Folder is a node in the folder forest.
type Folder struct {
	ID        int64
	Name      string
	ParentID  int64
	CreatorID int64
	CreatedAt time.Time
}

// Document belongs to exactly one folder. StoragePath names the backing
// blob in the blob store; ContentType is the lowercase file extension.
type Document struct {
	ID          int64
	Title       string
	StoragePath string
	ContentType string
	Size        int64
	UploaderID  int64
	FolderID    int64
	CreatedAt   time.Time
}

// Group is a named set of users.
type Group struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Grant binds a subject (user or group) to view/download flags. The
// resource it applies to is carried by the repository call, so the same
// shape serves folder grants and document grants.
type Grant struct {
	SubjectID   int64
	SubjectType string
	CanView     bool
	CanDownload bool
}

// DocumentAccess is a document row joined with the principal's effective
// flags, as produced by the per-folder listing aggregation.
type DocumentAccess struct {
	Document
	CanView     bool
	CanDownload bool
}

// AuditEvent is one append-only audit row. DocumentID is zero for events
// that do not reference a document; folder mutations record a
// human-readable detail in TraceToken instead.
type AuditEvent struct {
	ID         int64
	ActorID    int64
	DocumentID int64
	Action     string
	TraceToken string
	CreatedAt  time.Time
}

// Audit action kinds written by the delivery pipeline and the
// administrative mutation paths.
const (
	ActionPreview      = "PREVIEW"
	ActionDownload     = "DOWNLOAD"
	ActionUpload       = "UPLOAD"
	ActionReplace      = "UPLOAD_REPLACE"
	ActionDeleteFile   = "DELETE"
	ActionRenameFile   = "RENAME_FILE"
	ActionCreateFolder = "CREATE_FOLDER"
	ActionRenameFolder = "RENAME_FOLDER"
	ActionDeleteFolder = "DELETE_FOLDER"
	ActionFilePerm     = "UPDATE_FILE_PERM"
	ActionFolderPerm   = "UPDATE_FOLDER_PERM"
)
