package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo DB

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	now := r.now()
	doc := userDoc{
		ID:             bson.NewObjectID(),
		ClerkID:        user.ClerkID,
		Email:          user.Email,
		Username:       user.Username,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		ProfilePicture: user.ProfilePicture,
		BannerImage:    user.BannerImage,
		Bio:            user.Bio,
		Location:       user.Location,
		Followers:      []bson.ObjectID{},
		Following:      []bson.ObjectID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := r.users.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("mongo: creating user: %w", err)
	}

	*user = *doc.model()
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	oid, err := objectID("user", id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid}, apperror.NotFound("user", id))
}

func (r *userRepo) GetByClerkID(ctx context.Context, clerkID string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"clerkId": clerkID}, apperror.NotFoundMessage("user not found"))
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, bson.M{"username": username}, apperror.NotFoundMessage("user not found"))
}

func (r *userRepo) findOne(ctx context.Context, filter bson.M, notFound error) (*model.User, error) {
	var doc userDoc
	if err := r.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, notFound
		}
		return nil, fmt.Errorf("mongo: finding user: %w", err)
	}
	return doc.model(), nil
}

func (r *userRepo) ListByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return []model.User{}, nil
	}

	cur, err := r.users.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("mongo: listing users: %w", err)
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding users: %w", err)
	}

	out := make([]model.User, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].model())
	}
	return out, nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id string, patch model.ProfilePatch) (*model.User, error) {
	oid, err := objectID("user", id)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": r.now()}
	if patch.FirstName != nil {
		set["firstName"] = *patch.FirstName
	}
	if patch.LastName != nil {
		set["lastName"] = *patch.LastName
	}
	if patch.Bio != nil {
		set["bio"] = *patch.Bio
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}

	var doc userDoc
	err = r.users.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("mongo: updating user %s: %w", id, err)
	}
	return doc.model(), nil
}

// ToggleFollow flips the follower's "following" entry with a conditional
// update (guarded by membership), then mirrors the result onto the
// followee's "followers". Without transactions a failure between the two
// writes leaves the two sets out of step for this pair.
//
// As with ToggleLike, a round where neither update matches means the
// follower is gone or a concurrent toggle got in between; only the first is
// reported as not found.
func (r *userRepo) ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	follower, err := objectID("user", followerID)
	if err != nil {
		return false, err
	}
	followee, err := objectID("user", followeeID)
	if err != nil {
		return false, err
	}

	var following bool
	err = (*DB)(r).withTransaction(ctx, func(ctx context.Context) error {
		for attempt := 0; attempt < maxToggleAttempts; attempt++ {
			now := r.now()

			res, err := r.users.UpdateOne(ctx,
				bson.M{"_id": follower, "following": bson.M{"$ne": followee}},
				bson.M{"$addToSet": bson.M{"following": followee}, "$set": bson.M{"updatedAt": now}},
			)
			if err != nil {
				return fmt.Errorf("mongo: following user: %w", err)
			}
			if res.MatchedCount == 1 {
				following = true
				return r.mirrorFollow(ctx, followee, follower, "$addToSet", now)
			}

			res, err = r.users.UpdateOne(ctx,
				bson.M{"_id": follower, "following": followee},
				bson.M{"$pull": bson.M{"following": followee}, "$set": bson.M{"updatedAt": now}},
			)
			if err != nil {
				return fmt.Errorf("mongo: unfollowing user: %w", err)
			}
			if res.MatchedCount == 1 {
				following = false
				return r.mirrorFollow(ctx, followee, follower, "$pull", now)
			}

			n, err := r.users.CountDocuments(ctx, bson.M{"_id": follower})
			if err != nil {
				return fmt.Errorf("mongo: checking user %s: %w", followerID, err)
			}
			if n == 0 {
				return apperror.NotFound("user", followerID)
			}
		}
		return apperror.Conflict("user", followerID)
	})
	if err != nil {
		return false, err
	}
	return following, nil
}

func (r *userRepo) mirrorFollow(ctx context.Context, followee, follower bson.ObjectID, op string, now time.Time) error {
	res, err := r.users.UpdateOne(ctx,
		bson.M{"_id": followee},
		bson.M{op: bson.M{"followers": follower}, "$set": bson.M{"updatedAt": now}},
	)
	if err != nil {
		return fmt.Errorf("mongo: updating followers: %w", err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", followee.Hex())
	}
	return nil
}
