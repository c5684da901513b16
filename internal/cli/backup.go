package cli

import (
	"fmt"
	"path/filepath"

	"github.com/julianstephens/habitkit/internal/backup"
)

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List available backups."`
	Restore BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
}

type BackupCreateCmd struct{}

func (c *BackupCreateCmd) Run(ctx *Context) error {
	path, err := backup.NewManager(ctx.Store, ctx.clock()).CreateBackup()
	if err != nil {
		return err
	}
	ctx.printf("Backup created: %s\n", path)
	return nil
}

type BackupListCmd struct{}

func (c *BackupListCmd) Run(ctx *Context) error {
	backups, err := backup.NewManager(ctx.Store, ctx.clock()).ListBackups()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		ctx.println("No backups found.")
		return nil
	}
	for _, b := range backups {
		ctx.printf("%s  %s  %d bytes\n", b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), b.Size)
	}
	return nil
}

type BackupRestoreCmd struct {
	Path string `arg:"" help:"Backup file to restore."`
}

func (c *BackupRestoreCmd) Run(ctx *Context) error {
	mgr := backup.NewManager(ctx.Store, ctx.clock())
	path := c.Path
	if filepath.Base(path) == path {
		path = filepath.Join(mgr.GetBackupDir(), path)
	}
	if err := mgr.RestoreBackup(path); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	ctx.printf("Restored from %s\n", filepath.Base(path))
	return nil
}
