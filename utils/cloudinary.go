package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// PropertyImagesFolder is the Cloudinary folder for property photos.
const PropertyImagesFolder = "properties"

var ErrUploadsDisabled = errors.New("image uploads are not configured")

// ImageUploader stores property images on Cloudinary.
type ImageUploader struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewImageUploader returns ErrUploadsDisabled when any credential is empty.
func NewImageUploader(cloudName, apiKey, apiSecret string) (*ImageUploader, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, ErrUploadsDisabled
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary config error: %w", err)
	}
	return &ImageUploader{cld: cld, folder: PropertyImagesFolder}, nil
}

// Upload sends one file and returns its https URL.
func (u *ImageUploader) Upload(ctx context.Context, file io.Reader, filename string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := u.cld.Upload.Upload(ctx, file, uploader.UploadParams{Folder: u.folder})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("upload %s: %s", filename, resp.Error.Message)
	}
	return resp.SecureURL, nil
}

// Delete removes an image by its delivery URL.
func (u *ImageUploader) Delete(ctx context.Context, imageURL string) error {
	publicID, err := extractPublicID(imageURL)
	if err != nil {
		return fmt.Errorf("could not extract public ID: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := u.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("delete %s: %w", publicID, err)
	}
	if resp.Error.Message != "" {
		return fmt.Errorf("delete %s: %s", publicID, resp.Error.Message)
	}
	return nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// extractPublicID maps
// https://res.cloudinary.com/demo/image/upload/v1712/properties/abc.jpg
// to "properties/abc".
func extractPublicID(imageURL string) (string, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return "", err
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	i := 0
	for i < len(parts) && parts[i] != "upload" {
		i++
	}
	if i >= len(parts)-1 {
		return "", errors.New("invalid cloudinary URL format")
	}
	rest := parts[i+1:]
	if len(rest) > 1 && versionSegment.MatchString(rest[0]) {
		rest = rest[1:]
	}

	joined := path.Join(rest...)
	return strings.TrimSuffix(joined, path.Ext(joined)), nil
}
