// Package mongo connects to MongoDB with the v2 driver.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
//
//	store := nonce.NewMongoStore(db)
//	if err := store.EnsureIndexes(ctx); err != nil {
//		return err
//	}
//
// Config is populated from MONGODB_* environment variables.
package mongo
