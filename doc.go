// Package filevault is a multi-tenant file storage service with per-file
// access control.
//
// Users authenticate with opaque bearer tokens, upload files they own and
// grant other users read, write or delete capabilities on them. The owner
// of a file passes every permission check; admins bypass the per-file
// ledger at the registry.
//
// # Components
//
// [Core] wires four components over a set of [Stores] and a blob store:
//
//   - identity.Service, the credential store with bcrypt password hashes
//   - token.Authority, issuing "<tokenID>|<secret>" bearers and keeping
//     only a BLAKE3 digest of each secret
//   - permission.Ledger, the per-file capability grants
//   - registry.Registry, the file catalog every file operation goes through
//
// Stores are implemented in memory, on Postgres, and for tokens also on
// Redis. Blobs live in S3-compatible object storage or in memory.
//
// # Quick Start
//
//	core, err := filevault.NewMemoryCore(filevault.WithLogger(log))
//	if err != nil {
//		return err
//	}
//
//	srv := httpapi.New(
//		httpapi.WithLogger(log),
//		httpapi.WithMiddleware(httpapi.RequestID(), httpapi.Recover(), httpapi.AccessLog()),
//		httpapi.WithHandlers(core.Handlers()...),
//	)
//	return httpapi.Run(ctx, srv, httpapi.Address(":8080"))
//
// # Deleting identities
//
// [Core.DeleteIdentity] purges the identity's files and blobs, revokes its
// tokens and then removes the identity. Grants it held on other files go
// with it.
package filevault
