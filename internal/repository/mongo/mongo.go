// Package mongo implements the repository interfaces on MongoDB using the
// official v2 driver.
//
// COLLECTIONS:
//   - users          unique on clerkId and username
//   - posts          owner in "user", like set in "likes", comment ids in "comments"
//   - comments       parent in "post"
//   - notifications  recipient in "to"
//
// Multi-document writes (comment create/delete, post cascade delete, follow
// toggle) run inside a transaction when the deployment supports one (replica
// set or sharded cluster). On a standalone server they run as ordered
// single-document writes; each method documents what a partial failure
// leaves behind in that mode.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/repository"
)

var _ repository.Store = (*DB)(nil)

const (
	usersCollection         = "users"
	postsCollection         = "posts"
	commentsCollection      = "comments"
	notificationsCollection = "notifications"
)

// DB owns the client connection pool and the collection handles. It is
// opened once at process start and closed on shutdown.
type DB struct {
	client        *mongo.Client
	db            *mongo.Database
	users         *mongo.Collection
	posts         *mongo.Collection
	comments      *mongo.Collection
	notifications *mongo.Collection
	transactions  bool
	logger        *slog.Logger
	now           func() time.Time
}

// New connects to uri, verifies the connection with a ping and detects
// whether multi-document transactions are available.
func New(ctx context.Context, uri, database string, logger *slog.Logger) (*DB, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connecting: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: pinging deployment: %w", err)
	}

	mdb := client.Database(database)
	db := &DB{
		client:        client,
		db:            mdb,
		users:         mdb.Collection(usersCollection),
		posts:         mdb.Collection(postsCollection),
		comments:      mdb.Collection(commentsCollection),
		notifications: mdb.Collection(notificationsCollection),
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
	db.transactions = db.supportsTransactions(ctx)

	logger.Info("connected to MongoDB",
		slog.String("database", database),
		slog.Bool("transactions", db.transactions),
	)
	return db, nil
}

func (db *DB) Users() repository.UserRepository                 { return (*userRepo)(db) }
func (db *DB) Posts() repository.PostRepository                 { return (*postRepo)(db) }
func (db *DB) Comments() repository.CommentRepository           { return (*commentRepo)(db) }
func (db *DB) Notifications() repository.NotificationRepository { return (*notificationRepo)(db) }

func (db *DB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx, readpref.Primary())
}

func (db *DB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes the queries rely on. CreateMany is
// idempotent for identical specifications, so this runs on every start.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{db.users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "clerkId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		}},
		{db.posts, []mongo.IndexModel{
			{Keys: bson.D{{Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{db.comments, []mongo.IndexModel{
			{Keys: bson.D{{Key: "post", Value: 1}, {Key: "createdAt", Value: -1}}},
		}},
		{db.notifications, []mongo.IndexModel{
			{Keys: bson.D{{Key: "to", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "post", Value: 1}}},
			{Keys: bson.D{{Key: "comment", Value: 1}}},
		}},
	}

	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.models); err != nil {
			return fmt.Errorf("mongo: creating indexes on %s: %w", s.coll.Name(), err)
		}
	}
	return nil
}

// supportsTransactions asks the server whether it is a replica set member or
// a mongos router; standalone servers reject transactions.
func (db *DB) supportsTransactions(ctx context.Context) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	if err := db.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		db.logger.Warn("could not detect transaction support",
			slog.String("error", err.Error()),
		)
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}

// withTransaction runs fn in a transaction when available, otherwise runs it
// directly. fn may be invoked more than once on transient transaction errors
// and must not keep state across invocations.
func (db *DB) withTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !db.transactions {
		return fn(ctx)
	}

	sess, err := db.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo: starting session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc context.Context) (any, error) {
		return nil, fn(sc)
	})
	return err
}

// objectID parses a hex id. Malformed ids cannot match any document, so they
// are reported as not found.
func objectID(resource, id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, apperror.NotFound(resource, id)
	}
	return oid, nil
}

// objectIDs parses ids, dropping malformed ones.
func objectIDs(ids []string) []bson.ObjectID {
	out := make([]bson.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := bson.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}

func hexIDs(oids []bson.ObjectID) []string {
	out := make([]string, 0, len(oids))
	for _, oid := range oids {
		out = append(out, oid.Hex())
	}
	return out
}

func hexOrEmpty(oid bson.ObjectID) string {
	if oid.IsZero() {
		return ""
	}
	return oid.Hex()
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// newestFirst is the sort used by every listing.
func newestFirst() *options.FindOptionsBuilder {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
}
