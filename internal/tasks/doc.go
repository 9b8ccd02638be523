// Package tasks holds the background work of the service: retrying blob
// deletions the registry could not finish and pruning expired tokens.
//
// # Blob reaping
//
// Reaper implements registry.BlobReaper by enqueueing a purge_blob job.
// Jobs are deduplicated per blob key, so repeated failures for the same
// blob do not pile up:
//
//	reaper := tasks.NewReaper(manager)
//	reg := registry.New(files, ledger, blobs, identities, registry.WithReaper(reaper))
//
// # Token pruning
//
// PruneTokens runs on a cron schedule and removes tokens past their TTL.
// It is a no-op when tokens never expire.
package tasks
