// Package httpapi is the HTTP boundary of filevault.
//
// Handlers return errors instead of writing failure responses. A single
// ErrorHandler maps domain sentinels to status codes and renders
//
//	{"error": {"code": "...", "message": "...", "request_id": "..."}}
//
// Protected routes sit behind Authenticate, which reads
// "Authorization: Bearer <tokenID>|<secret>", resolves it through the
// token authority and stores the principal in the request context.
// Handlers obtain the registry actor with CurrentActor.
//
// Wiring:
//
//	srv := httpapi.New(
//		httpapi.WithLogger(log),
//		httpapi.WithMiddleware(httpapi.RequestID(), httpapi.Recover(), httpapi.AccessLog()),
//		httpapi.WithHandlers(
//			httpapi.NewAuthHandler(identities, tokens),
//			httpapi.NewUsersHandler(identities, tokens, core),
//			httpapi.NewFilesHandler(files, tokens, maxUpload),
//		),
//	)
//	err := httpapi.Run(ctx, srv, httpapi.Address(":8080"), httpapi.Logger(log))
package httpapi
