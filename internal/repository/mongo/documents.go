package mongo

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/sakif/social-backend/internal/model"
)

// Stored document shapes. References are ObjectIDs on disk and hex strings
// in the model package.

type userDoc struct {
	ID             bson.ObjectID   `bson:"_id,omitempty"`
	ClerkID        string          `bson:"clerkId"`
	Email          string          `bson:"email"`
	Username       string          `bson:"username"`
	FirstName      string          `bson:"firstName"`
	LastName       string          `bson:"lastName"`
	ProfilePicture string          `bson:"profilePicture"`
	BannerImage    string          `bson:"bannerImage"`
	Bio            string          `bson:"bio"`
	Location       string          `bson:"location"`
	Followers      []bson.ObjectID `bson:"followers"`
	Following      []bson.ObjectID `bson:"following"`
	CreatedAt      time.Time       `bson:"createdAt"`
	UpdatedAt      time.Time       `bson:"updatedAt"`
}

func (d *userDoc) model() *model.User {
	return &model.User{
		ID:             d.ID.Hex(),
		ClerkID:        d.ClerkID,
		Email:          d.Email,
		Username:       d.Username,
		FirstName:      d.FirstName,
		LastName:       d.LastName,
		ProfilePicture: d.ProfilePicture,
		BannerImage:    d.BannerImage,
		Bio:            d.Bio,
		Location:       d.Location,
		Followers:      hexIDs(d.Followers),
		Following:      hexIDs(d.Following),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

type postDoc struct {
	ID        bson.ObjectID   `bson:"_id,omitempty"`
	User      bson.ObjectID   `bson:"user"`
	Content   string          `bson:"content"`
	Image     string          `bson:"image"`
	ImageID   string          `bson:"imageId,omitempty"`
	Likes     []bson.ObjectID `bson:"likes"`
	Comments  []bson.ObjectID `bson:"comments"`
	CreatedAt time.Time       `bson:"createdAt"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

func (d *postDoc) model() *model.Post {
	return &model.Post{
		ID:        d.ID.Hex(),
		UserID:    d.User.Hex(),
		Content:   d.Content,
		Image:     d.Image,
		ImageID:   d.ImageID,
		Likes:     hexIDs(d.Likes),
		Comments:  hexIDs(d.Comments),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type commentDoc struct {
	ID        bson.ObjectID   `bson:"_id,omitempty"`
	User      bson.ObjectID   `bson:"user"`
	Post      bson.ObjectID   `bson:"post"`
	Content   string          `bson:"content"`
	Likes     []bson.ObjectID `bson:"likes"`
	CreatedAt time.Time       `bson:"createdAt"`
	UpdatedAt time.Time       `bson:"updatedAt"`
}

func (d *commentDoc) model() *model.Comment {
	return &model.Comment{
		ID:        d.ID.Hex(),
		UserID:    d.User.Hex(),
		PostID:    d.Post.Hex(),
		Content:   d.Content,
		Likes:     hexIDs(d.Likes),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type notificationDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	From      bson.ObjectID `bson:"from"`
	To        bson.ObjectID `bson:"to"`
	Type      string        `bson:"type"`
	Post      bson.ObjectID `bson:"post,omitempty"`
	Comment   bson.ObjectID `bson:"comment,omitempty"`
	CreatedAt time.Time     `bson:"createdAt"`
}

func (d *notificationDoc) model() *model.Notification {
	return &model.Notification{
		ID:        d.ID.Hex(),
		From:      d.From.Hex(),
		To:        d.To.Hex(),
		Type:      model.NotificationType(d.Type),
		PostID:    hexOrEmpty(d.Post),
		CommentID: hexOrEmpty(d.Comment),
		CreatedAt: d.CreatedAt,
	}
}
