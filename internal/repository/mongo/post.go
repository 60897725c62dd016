package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

var _ repository.PostRepository = (*postRepo)(nil)

// maxToggleAttempts bounds the like and follow retry loops when concurrent
// toggles keep flipping the set between our two conditional updates.
const maxToggleAttempts = 3

type postRepo DB

func (r *postRepo) Create(ctx context.Context, post *model.Post) error {
	owner, err := objectID("user", post.UserID)
	if err != nil {
		return err
	}

	now := r.now()
	doc := postDoc{
		ID:        bson.NewObjectID(),
		User:      owner,
		Content:   post.Content,
		Image:     post.Image,
		ImageID:   post.ImageID,
		Likes:     []bson.ObjectID{},
		Comments:  []bson.ObjectID{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: creating post: %w", err)
	}

	*post = *doc.model()
	return nil
}

func (r *postRepo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	oid, err := objectID("post", id)
	if err != nil {
		return nil, err
	}

	var doc postDoc
	if err := r.posts.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("mongo: finding post %s: %w", id, err)
	}
	return doc.model(), nil
}

func (r *postRepo) List(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	filter := bson.M{}
	if opts.UserID != "" {
		owner, err := bson.ObjectIDFromHex(opts.UserID)
		if err != nil {
			return []model.Post{}, nil
		}
		filter["user"] = owner
	}
	return r.find(ctx, filter)
}

func (r *postRepo) ListByIDs(ctx context.Context, ids []string) ([]model.Post, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []model.Post{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": oids}})
}

func (r *postRepo) find(ctx context.Context, filter bson.M) ([]model.Post, error) {
	cur, err := r.posts.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("mongo: listing posts: %w", err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding posts: %w", err)
	}

	out := make([]model.Post, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].model())
	}
	return out, nil
}

// ToggleLike never reads the like set into the application. The first
// update only matches when the user is absent from the set, the second only
// when present, so two concurrent toggles can never insert the user twice.
// If neither matches, either the post is gone or another request flipped the
// set in between; the loop tells the two apart.
func (r *postRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, error) {
	pid, err := objectID("post", postID)
	if err != nil {
		return false, err
	}
	uid, err := objectID("user", userID)
	if err != nil {
		return false, err
	}

	for attempt := 0; attempt < maxToggleAttempts; attempt++ {
		now := r.now()

		res, err := r.posts.UpdateOne(ctx,
			bson.M{"_id": pid, "likes": bson.M{"$ne": uid}},
			bson.M{"$addToSet": bson.M{"likes": uid}, "$set": bson.M{"updatedAt": now}},
		)
		if err != nil {
			return false, fmt.Errorf("mongo: liking post %s: %w", postID, err)
		}
		if res.MatchedCount == 1 {
			return true, nil
		}

		res, err = r.posts.UpdateOne(ctx,
			bson.M{"_id": pid, "likes": uid},
			bson.M{"$pull": bson.M{"likes": uid}, "$set": bson.M{"updatedAt": now}},
		)
		if err != nil {
			return false, fmt.Errorf("mongo: unliking post %s: %w", postID, err)
		}
		if res.MatchedCount == 1 {
			return false, nil
		}

		n, err := r.posts.CountDocuments(ctx, bson.M{"_id": pid})
		if err != nil {
			return false, fmt.Errorf("mongo: checking post %s: %w", postID, err)
		}
		if n == 0 {
			return false, apperror.NotFound("post", postID)
		}
	}
	return false, apperror.Conflict("post", postID)
}

// DeleteCascade removes comments, then notifications referencing the post,
// then the post. Without transactions a failure after the first step leaves
// a post whose comment list names deleted comments; readers skip those.
func (r *postRepo) DeleteCascade(ctx context.Context, postID string) error {
	pid, err := objectID("post", postID)
	if err != nil {
		return err
	}

	return (*DB)(r).withTransaction(ctx, func(ctx context.Context) error {
		if _, err := r.comments.DeleteMany(ctx, bson.M{"post": pid}); err != nil {
			return fmt.Errorf("mongo: deleting comments of post %s: %w", postID, err)
		}
		if _, err := r.notifications.DeleteMany(ctx, bson.M{"post": pid}); err != nil {
			return fmt.Errorf("mongo: deleting notifications of post %s: %w", postID, err)
		}
		res, err := r.posts.DeleteOne(ctx, bson.M{"_id": pid})
		if err != nil {
			return fmt.Errorf("mongo: deleting post %s: %w", postID, err)
		}
		if res.DeletedCount == 0 {
			return apperror.NotFound("post", postID)
		}
		return nil
	})
}
