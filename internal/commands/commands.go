// Package commands defines the closed set of operations the backup engine answers
// and the JSON envelope they travel in.
package commands

// Type is the envelope tag of a command.
type Type string

const (
	TypeListTargets    Type = "ListTargets"
	TypeGetTarget      Type = "GetTarget"
	TypeRegisterTarget Type = "RegisterTarget"
	TypeBackupTarget   Type = "BackupTarget"
	TypeRestoreTarget  Type = "RestoreTarget"
	TypeDeleteBackup   Type = "DeleteBackup"
	TypeDeleteTarget   Type = "DeleteTarget"
)

// Types lists every tag in the protocol.
var Types = []Type{
	TypeListTargets,
	TypeGetTarget,
	TypeRegisterTarget,
	TypeBackupTarget,
	TypeRestoreTarget,
	TypeDeleteBackup,
	TypeDeleteTarget,
}

// Command is implemented only by the structs in this package.
type Command interface {
	Type() Type
	isCommand()
}

// ListTargets returns every target. Result: []models.Target.
type ListTargets struct{}

// GetTarget looks up one target. Result: *models.Target, nil when absent.
type GetTarget struct {
	TargetID string `json:"target_id"`
}

// RegisterTarget creates a target. Result: models.Target.
type RegisterTarget struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// BackupTarget archives a target and appends an entry. Result: models.Target.
type BackupTarget struct {
	TargetID string `json:"target_id"`
	Note     string `json:"note"`
}

// RestoreTarget extracts a backup over the target directory. Result: models.Target.
type RestoreTarget struct {
	TargetID string `json:"target_id"`
	BackupID int    `json:"backup_id"`
}

// DeleteBackup removes one entry and its archive. Result: models.BackupEntry.
type DeleteBackup struct {
	TargetID string `json:"target_id"`
	BackupID int    `json:"backup_id"`
}

// DeleteTarget removes a target and all of its backups. Result: models.Target.
type DeleteTarget struct {
	TargetID string `json:"target_id"`
}

func (ListTargets) Type() Type    { return TypeListTargets }
func (GetTarget) Type() Type      { return TypeGetTarget }
func (RegisterTarget) Type() Type { return TypeRegisterTarget }
func (BackupTarget) Type() Type   { return TypeBackupTarget }
func (RestoreTarget) Type() Type  { return TypeRestoreTarget }
func (DeleteBackup) Type() Type   { return TypeDeleteBackup }
func (DeleteTarget) Type() Type   { return TypeDeleteTarget }

func (ListTargets) isCommand()    {}
func (GetTarget) isCommand()      {}
func (RegisterTarget) isCommand() {}
func (BackupTarget) isCommand()   {}
func (RestoreTarget) isCommand()  {}
func (DeleteBackup) isCommand()   {}
func (DeleteTarget) isCommand()   {}

// IsMutation reports whether the command changes engine state or the filesystem.
func IsMutation(c Command) bool {
	switch c.(type) {
	case ListTargets, GetTarget:
		return false
	}
	return true
}
