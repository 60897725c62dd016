package media

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// postTransformation limits images to 800x600 and lets the service pick
// quality and format.
const postTransformation = "c_limit,h_600,w_800/q_auto/f_auto"

// CloudinaryUploader uploads to a Cloudinary account.
type CloudinaryUploader struct {
	cld *cloudinary.Cloudinary
}

var _ Uploader = (*CloudinaryUploader)(nil)

func NewCloudinaryUploader(cloudName, apiKey, apiSecret string) (*CloudinaryUploader, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("media: configuring cloudinary: %w", err)
	}
	return &CloudinaryUploader{cld: cld}, nil
}

func (u *CloudinaryUploader) Upload(ctx context.Context, data []byte, _ string) (Asset, error) {
	res, err := u.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		Folder:         Folder,
		ResourceType:   "image",
		Transformation: postTransformation,
	})
	if err != nil {
		return Asset{}, fmt.Errorf("media: cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return Asset{}, fmt.Errorf("media: cloudinary upload: %s", res.Error.Message)
	}
	return Asset{URL: res.SecureURL, ID: res.PublicID}, nil
}

func (u *CloudinaryUploader) Delete(ctx context.Context, id string) error {
	res, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: id})
	if err != nil {
		return fmt.Errorf("media: cloudinary destroy %s: %w", id, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("media: cloudinary destroy %s: %s", id, res.Error.Message)
	}
	return nil
}
