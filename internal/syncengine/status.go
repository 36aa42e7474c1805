package syncengine

// FolderFlags are the explicit inputs to status derivation besides the
// file entries.
type FolderFlags struct {
	// HasDestination is false until a local directory is granted.
	HasDestination bool
	Paused         bool
	// Faulted is set by an unrecoverable local I/O failure.
	Faulted bool
}

// DeriveStatus computes a folder status. Permission outranks pause, pause
// outranks a fault, and files in Error do not keep the folder Syncing.
func DeriveStatus(flags FolderFlags, files []FileEntry) FolderStatus {
	switch {
	case !flags.HasDestination:
		return FolderPermissionNeeded
	case flags.Paused:
		return FolderPaused
	case flags.Faulted:
		return FolderError
	}

	for _, entry := range files {
		if entry.Status.IsPending() {
			return FolderSyncing
		}
	}

	return FolderSynced
}
