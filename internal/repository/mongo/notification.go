package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sakif/social-backend/internal/apperror"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

var _ repository.NotificationRepository = (*notificationRepo)(nil)

type notificationRepo DB

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) error {
	from, err := objectID("user", n.From)
	if err != nil {
		return err
	}
	to, err := objectID("user", n.To)
	if err != nil {
		return err
	}

	doc := notificationDoc{
		ID:        bson.NewObjectID(),
		From:      from,
		To:        to,
		Type:      string(n.Type),
		CreatedAt: r.now(),
	}
	if n.PostID != "" {
		if doc.Post, err = objectID("post", n.PostID); err != nil {
			return err
		}
	}
	if n.CommentID != "" {
		if doc.Comment, err = objectID("comment", n.CommentID); err != nil {
			return err
		}
	}

	if _, err := r.notifications.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("mongo: creating notification: %w", err)
	}
	*n = *doc.model()
	return nil
}

func (r *notificationRepo) GetByID(ctx context.Context, id string) (*model.Notification, error) {
	oid, err := objectID("notification", id)
	if err != nil {
		return nil, err
	}

	var doc notificationDoc
	if err := r.notifications.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, apperror.NotFound("notification", id)
		}
		return nil, fmt.Errorf("mongo: finding notification %s: %w", id, err)
	}
	return doc.model(), nil
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, userID string) ([]model.Notification, error) {
	to, err := bson.ObjectIDFromHex(userID)
	if err != nil {
		return []model.Notification{}, nil
	}

	cur, err := r.notifications.Find(ctx, bson.M{"to": to}, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("mongo: listing notifications: %w", err)
	}
	var docs []notificationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongo: decoding notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(docs))
	for i := range docs {
		out = append(out, *docs[i].model())
	}
	return out, nil
}

func (r *notificationRepo) Delete(ctx context.Context, id string) error {
	oid, err := objectID("notification", id)
	if err != nil {
		return err
	}

	res, err := r.notifications.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("mongo: deleting notification %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("notification", id)
	}
	return nil
}
