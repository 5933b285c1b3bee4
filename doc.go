// Package exmdb is a client for the EXMDB protocol spoken by gromox mail
// store servers.
//
// A Client holds one connection to one store (a public domain store or a
// private user store) identified by its directory prefix. Requests are
// typed: each Request[R] encodes one call and decodes its response R, and
// Send pairs them. Folder operations build on that.
//
// # Basic Usage
//
//	c, err := exmdb.Connect(ctx, "mail.example.com", exmdb.DefaultPort,
//	    "/var/lib/gromox/domain/1", false,
//	    exmdb.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close(ctx)
//
//	resp, err := exmdb.ListFolders(ctx, c, "/Projects",
//	    exmdb.WithProptags(propval.TagDisplayName, propval.TagFolderID))
//	for _, row := range resp.Rows {
//	    fmt.Println(row.Text(propval.TagDisplayName))
//	}
//
//	created, err := exmdb.CreatePublicFolder(ctx, c, "/Projects",
//	    "IPF.Note", "Budget", "quarterly numbers")
//
// Connect can also be driven by a TOML file, see LoadConfig and
// ConnectConfig.
//
// # Failure
//
// A transport failure (network error, short read, non-success response
// code) moves the client to a terminal failed state: every later call
// returns the same *TransportError without touching the network. Create a
// new client to recover, or use the retry package, whose Session does so
// automatically. Errors in a response payload (*ProtocolError) and
// semantic failures (*QueryError) leave the client usable.
//
// Use errors.Is against ErrNotFound, ErrAlreadyExists, ErrAuth and the
// other sentinels, and IsRetryableError to decide whether to reconnect.
//
// # Concurrency
//
// A Client is safe for concurrent use. Calls are serialized on the single
// connection; a multi-call operation such as ListFolders holds the
// connection for each call, not for the whole operation.
//
// # Events
//
// Each client owns an event bus (github.com/rbaliyan/event/v3) publishing
// FolderCreated after CreatePublicFolder succeeds and ClientFailed when the
// client enters the failed state. Pass WithRedisClient or
// WithEventTransport to deliver them beyond the process.
//
//	c.Events().FolderCreated.Subscribe(ctx, handler)
//	c.Events().ClientFailed.Subscribe(ctx, handler)
//
// # Observability
//
// Tracing and metrics are off by default; WithOTel enables both using the
// global providers.
//
// # Subpackages
//
//   - propval: tagged property values and their wire codec
//   - wire: ext buffer primitives and request framing
//   - cache/memory, cache/redis: PathCache implementations
//   - retry: reconnect with backoff
//   - snapshot: recorded folder hierarchies with SQL, NoSQL and object
//     storage backends
//   - exmdbtest: an in-memory store server for tests
package exmdb
