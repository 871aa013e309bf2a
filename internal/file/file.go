package file

import (
	"context"
	"errors"
	"log"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

var ErrUploaderNotConfigured = errors.New("file uploader credentials are not configured")

type Uploader interface {
	UploadFile(ctx context.Context, fileName, folder string) (string, error)
}

type FileUploader struct {
	cloud_name string
	api_key    string
	api_secret string
}

func New(cloud_name, api_key, api_secret string) *FileUploader {
	return &FileUploader{
		cloud_name: cloud_name,
		api_key:    api_key,
		api_secret: api_secret,
	}
}

// UploadFile pushes a local file to cloud storage under folder and returns its
// secure URL. KYC documents are uploaded as private "authenticated" assets.
func (f *FileUploader) UploadFile(ctx context.Context, fileName, folder string) (string, error) {
	if f.cloud_name == "" || f.api_key == "" || f.api_secret == "" {
		return "", ErrUploaderNotConfigured
	}

	cld, err := cloudinary.NewFromParams(f.cloud_name, f.api_key, f.api_secret)
	if err != nil {
		return "", err
	}

	uploadResult, err := cld.Upload.Upload(ctx, fileName, uploader.UploadParams{
		Folder: folder,
		Type:   "authenticated",
	})
	if err != nil {
		return "", err
	}

	if uploadResult.Error.Message != "" {
		return "", errors.New(uploadResult.Error.Message)
	}

	log.Printf("File uploaded successfully: %s", uploadResult.PublicID)
	return uploadResult.SecureURL, nil
}
