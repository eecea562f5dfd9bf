package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajaxzhan/simos/internal/fusemount"
	"github.com/ajaxzhan/simos/internal/logging"
)

var (
	mountPoint  string
	mountAsUser string
)

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Export the filesystem through FUSE",
	Long: `Boot the system and mount its filesystem read-only on the host. Entries
are visible exactly as they are to the chosen user: unreadable directories
cannot be listed and unreadable files cannot be opened.

The mount stays up until the process receives SIGINT or SIGTERM.

Examples:
  # Mount as root using the configured mount point
  simos mount

  # Mount as alice somewhere else
  simos mount --mount-point /mnt/simos --as alice`,
	RunE: runMount,
}

func init() {
	mountCmd.Flags().StringVar(&mountPoint, "mount-point", "", "host directory to mount on (overrides config)")
	mountCmd.Flags().StringVar(&mountAsUser, "as", "", "user whose permissions filter the mount (overrides config)")
}

func runMount(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := boot(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		m.shutdown(shutdownCtx)
	}()

	cfg := fusemount.Config{
		MountPoint: m.cfg.FUSE.MountPoint,
		AsUser:     m.cfg.FUSE.AsUser,
	}
	if mountPoint != "" {
		cfg.MountPoint = mountPoint
	}
	if mountAsUser != "" {
		cfg.AsUser = mountAsUser
	}

	export, err := fusemount.New(m.sys, cfg)
	if err != nil {
		return err
	}
	logging.Info("Mounting filesystem", logging.String("mount_point", cfg.MountPoint), logging.String("as_user", cfg.AsUser))
	if err := export.Mount(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
