/*
Package filesystem provides the file operations glimpse performs against
photo folders, the cache and export destinations.

Photo folders frequently live on NFS or SMB mounts, so reads go through
retry helpers (StatWithRetry, OpenWithRetry, ReadDirWithRetry,
ReadFileWithRetry) that retry ESTALE errors with exponential backoff and
pass every other error straight through.

Writes into the cache use WriteAtomic, which writes a temporary sibling
and renames it into place. Export uses CopyFile and MoveFile; MoveFile
falls back to copy then remove when the destination is on another device.

Retry metrics are labeled by volume. Register the known roots once at
startup:

	filesystem.SetDefaultVolumeResolver(filesystem.NewVolumeResolver(map[string]string{
	    "cache": cacheDir,
	    "data":  dataDir,
	}))

Paths outside every registered root are labeled "unknown".
*/
package filesystem
