package mongo

import (
	"context"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

var _ repository.CommentRepository = (*commentRepo)(nil)

type commentRepo DB

// Create pushes the new id onto the post first so a missing post fails
// before anything is written. Without transactions a failed insert is
// compensated by pulling the id back off.
func (r *commentRepo) Create(ctx context.Context, comment *model.Comment) error {
	pid, err := objectID("post", comment.PostID)
	if err != nil {
		return err
	}
	author, err := objectID("user", comment.UserID)
	if err != nil {
		return err
	}

	now := r.now()
	doc := commentDoc{
		ID:        bson.NewObjectID(),
		User:      author,
		Post:      pid,
		Content:   comment.Content,
		Likes:     []bson.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	db := (*DB)(r)
	err = db.withTransaction(ctx, func(ctx context.Context) error {
		res, err := r.posts.UpdateOne(ctx,
			bson.M{"_id": pid},
			bson.M{"$push": bson.M{"comments": doc.ID}, "$set": bson.M{"updatedAt": now}},
		)
		if err != nil {
			return fmt.Errorf("mongo: attaching comment to post %s: %w", comment.PostID, err)
		}
		if res.MatchedCount == 0 {
			return apperror.NotFound("post", comment.PostID)
		}

		if _, err := r.comments.InsertOne(ctx, doc); err != nil {
			if !db.transactions {
				r.detach(ctx, pid, doc.ID)
			}
			return fmt.Errorf("mongo: creating comment: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	*comment = *doc.model()
	return nil
}

func (r *commentRepo) detach(ctx context.Context, pid, cid bson.ObjectID) {
	if _, err := r.posts.UpdateOne(ctx, bson.M{"_id": pid}, bson.M{"$pull": bson.M{"comments": cid}}); err != nil {
		r.logger.Error("failed to detach comment after insert failure",
			slog.String("post_id", pid.Hex()),
			slog.String("comment_id", cid.Hex()),
			slog.String("error", err.Error()),
		)
	}
}

func (r *commentRepo) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	oid, err := objectID("comment", id)
	if err != nil {
		return nil, err
	}

	var doc commentDoc
	if err := r.comments.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("mongo: finding comment %s: %w", id, err)
	}
	return doc.model(), nil
}

func (r *commentRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Comment, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []model.Comment{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *commentRepo) ListByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	pid, err := bson.ObjectIDFromHex(postID)
	if err != nil {
		return []model.Comment{}, nil
	}
	return r.find(ctx, bson.M{"post": pid})
}

func (r *commentRepo) find(ctx context.Context, filter bson.M) ([]model.Comment, error) {
	cur, err := r.comments.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("mongo: listing comments: %w", err)
	}
	var docs []commentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding comments: %w", err)
	}

	out := make([]model.Comment, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].model())
	}
	return out, nil
}

// Delete detaches the comment from its post, drops notifications pointing at
// it, then removes it. Without transactions a failure after the first step
// leaves an orphaned comment that no post lists.
func (r *commentRepo) Delete(ctx context.Context, comment *model.Comment) error {
	cid, err := objectID("comment", comment.ID)
	if err != nil {
		return err
	}

	return (*DB)(r).withTransaction(ctx, func(ctx context.Context) error {
		if pid, err := bson.ObjectIDFromHex(comment.PostID); err == nil {
			if _, err := r.posts.UpdateOne(ctx,
				bson.M{"_id": pid},
				bson.M{"$pull": bson.M{"comments": cid}},
			); err != nil {
				return fmt.Errorf("mongo: detaching comment %s: %w", comment.ID, err)
			}
		}
		if _, err := r.notifications.DeleteMany(ctx, bson.M{"comment": cid}); err != nil {
			return fmt.Errorf("mongo: deleting notifications of comment %s: %w", comment.ID, err)
		}
		res, err := r.comments.DeleteOne(ctx, bson.M{"_id": cid})
		if err != nil {
			return fmt.Errorf("mongo: deleting comment %s: %w", comment.ID, err)
		}
		if res.DeletedCount == 0 {
			return apperror.NotFound("comment", comment.ID)
		}
		return nil
	})
}
