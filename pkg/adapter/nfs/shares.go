package nfs

import (
	"github.com/marmos91/nfsv3d/internal/logger"
	"github.com/marmos91/nfsv3d/internal/protocol/nfs"
	"github.com/marmos91/nfsv3d/pkg/fsfacade"
	"github.com/marmos91/nfsv3d/pkg/session"
	"github.com/spf13/afero"
)

// desiredShares builds every nfs.Share named in the current
// configuration's share list, confining each to its export path with
// afero.NewBasePathFs. This is the ShareRegistry's
// Rescan source: it is safe to call repeatedly, including concurrently
// with the server serving requests off the registry it feeds.
func (a *Adapter) desiredShares() map[string]*nfs.Share {
	cfg := a.config()
	out := make(map[string]*nfs.Share, len(cfg.Shares))

	for _, sc := range cfg.Shares {
		base := afero.NewBasePathFs(afero.NewOsFs(), sc.Path)

		var opts []fsfacade.Option
		if sc.Symlinks {
			opts = append(opts, fsfacade.WithSymlinks(true))
		}
		if sc.DiskSize {
			opts = append(opts, fsfacade.WithDiskSize(true))
		}
		fs := fsfacade.NewAferoFS(base, opts...)

		permission := session.ReadWrite
		if sc.ReadOnly {
			permission = session.ReadOnly
		}

		out[sc.Name] = nfs.NewShare(sc.Name, fs, permission)
		logger.Info("configured share", "name", sc.Name, "path", sc.Path, "read_only", sc.ReadOnly)
	}
	return out
}
