// Package storage is the blob store behind file records.
//
// A Storage puts, gets and deletes opaque byte streams by key. S3Storage
// talks to any S3-compatible service through aws-sdk-go-v2; MemoryStorage
// keeps blobs in a map for tests and local runs.
//
// # Keys
//
// Unless WithKey is given, Put generates {tenant}/{prefix}/{ulid}{ext}.
// Tenant and prefix are sanitized so they cannot contain separators or
// traversal sequences. The extension is derived from the sniffed content
// type, falling back to ".bin".
//
//	info, err := store.Put(ctx, r, size,
//		storage.WithTenant(ownerID),
//		storage.WithPrefix("files"),
//		storage.WithValidation(storage.NotEmpty(), storage.MaxSize(10<<20)),
//	)
//
// # Errors
//
// Backend failures are reported with the package sentinels (ErrNotFound,
// ErrUploadFailed, ErrDeleteFailed, ...). Validation failures are returned
// as *FileValidationError.
package storage
