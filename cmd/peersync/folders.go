package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joe/peersync/internal/config"
	"github.com/joe/peersync/internal/syncengine"
	"github.com/joe/peersync/pkg/filesystem"
)

// ErrFolderInUse is returned when the configured directory is already bound
// to another folder.
var ErrFolderInUse = errors.New("folder directory already in use")

// folderEngine is the part of the engine used to bind folders at startup.
type folderEngine interface {
	AddFolder(name string, dest filesystem.Destination) (syncengine.Folder, error)
	Folders() []syncengine.Folder
	GrantAccess(id string, dest filesystem.Destination) (syncengine.Folder, error)
}

// folderAcquirer binds the configured directory to the first folder a peer
// announces that this device does not know yet.
type folderAcquirer struct {
	location string
	open     func(location string) (filesystem.Destination, error)
	log      *zap.Logger

	mu    sync.Mutex
	taken bool
}

func newFolderAcquirer(location string, log *zap.Logger) *folderAcquirer {
	return &folderAcquirer{
		location: location,
		open:     openDestination,
		log:      log,
	}
}

// Acquire implements syncengine.DestinationAcquirer.
func (a *folderAcquirer) Acquire(_ context.Context, folderID, folderName string) (filesystem.Destination, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.taken {
		return nil, fmt.Errorf("%w: cannot receive folder %q", ErrFolderInUse, folderName)
	}

	dest, err := a.open(a.location)
	if err != nil {
		return nil, err
	}

	a.taken = true
	a.log.Info("receiving new folder",
		zap.String("folder", folderID),
		zap.String("name", folderName),
		zap.String("location", a.location))

	return dest, nil
}

func (a *folderAcquirer) take() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.taken = true
}

// bindFolders gives restored folders their directories back and returns the
// ID of the folder at the configured location. An offering node adds the
// location as a new folder when no restored folder uses it; an answering
// node leaves it for the acquirer.
func bindFolders(engine folderEngine, cfg *config.Config, acquirer *folderAcquirer, log *zap.Logger) (string, error) {
	folderID := ""

	for _, folder := range engine.Folders() {
		if folder.Location == "" {
			continue
		}

		dest, err := acquirer.open(folder.Location)
		if err == nil {
			_, err = engine.GrantAccess(folder.ID, dest)
			if err != nil {
				_ = dest.Close()
			}
		}

		if err != nil {
			log.Warn("restored folder needs access",
				zap.String("folder", folder.ID),
				zap.String("location", folder.Location),
				zap.Error(err))

			continue
		}

		if folder.Location == cfg.Folder {
			folderID = folder.ID
			acquirer.take()
		}
	}

	if folderID != "" || cfg.Role == config.RoleAnswer {
		return folderID, nil
	}

	parsed, err := filesystem.ParsePath(cfg.Folder)
	if err != nil {
		return "", err
	}

	dest, err := acquirer.open(cfg.Folder)
	if err != nil {
		return "", err
	}

	folder, err := engine.AddFolder(parsed.BaseName(), dest)
	if err != nil {
		_ = dest.Close()
		return "", err
	}

	acquirer.take()

	return folder.ID, nil
}

func openDestination(location string) (filesystem.Destination, error) {
	return filesystem.OpenDestination(location)
}
