// Package nonce records which single-use link nonces have been consumed.
//
// Every backend implements Store with an atomic insert-if-absent Claim, so
// concurrent attempts to consume the same link produce exactly one winner
// even across service instances:
//
//	MemoryStore    mutex-guarded map, single instance only
//	RedisStore     SET NX with a TTL
//	PostgresStore  INSERT ... ON CONFLICT on the consumed_nonces table
//	MongoStore     upsert on _id with a TTL index
//
// Raw nonces never reach storage. Records are keyed by the hex SHA-256 of the
// nonce (see Key) and hold the subject ID and consumption time.
//
// Records must outlive the tokens they guard. Configure WithTTL to at least
// the token lifetime or an expired record could let a still-valid link be
// consumed twice.
//
// Backend failures are returned wrapped in ErrStoreUnavailable. Callers must
// treat them as "cannot decide" and reject the request.
//
// PostgresStore expects the schema in Migrations; apply it with goose:
//
//	err := pg.Migrate(ctx, pool, nonce.Migrations, nonce.MigrationsDir, log)
//
// MongoStore relies on EnsureIndexes for TTL expiry. PostgresStore and
// MemoryStore implement Purger; run RunPurger for Postgres in a goroutine.
package nonce
