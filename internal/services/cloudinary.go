package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path"

	"github.com/AnshRaj112/tandem-backend/internal/models"
	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const mediaRootFolder = "tandem"

// ErrMediaDisabled is returned when no Cloudinary credentials are configured.
var ErrMediaDisabled = errors.New("media uploads are not configured")

// MediaUpload is the handle a client attaches to a media message.
type MediaUpload struct {
	MediaRef string             `json:"media_ref"`
	Kind     models.MessageKind `json:"kind"`
	FileName string             `json:"file_name,omitempty"`
	Bytes    int                `json:"bytes"`
}

// CloudinaryService stores chat attachments and returns their secure URLs as media refs.
type CloudinaryService struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryService(cloudName, apiKey, apiSecret string) (*CloudinaryService, error) {
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, ErrMediaDisabled
	}
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &CloudinaryService{cld: cld}, nil
}

// MediaFolder is the Cloudinary folder a given kind is stored under.
func MediaFolder(kind models.MessageKind) string {
	return path.Join(mediaRootFolder, string(kind))
}

// resourceType picks the Cloudinary resource type; audio goes under "video" as Cloudinary expects.
func resourceType(kind models.MessageKind) string {
	switch kind {
	case models.KindPhoto, models.KindSticker:
		return "image"
	case models.KindVideo, models.KindAudio, models.KindVoice:
		return "video"
	case models.KindDocument:
		return "raw"
	}
	return "auto"
}

// UploadFileFromHeader uploads a multipart file for a media message of the given kind.
func (s *CloudinaryService) UploadFileFromHeader(ctx context.Context, fileHeader *multipart.FileHeader, kind models.MessageKind) (*MediaUpload, error) {
	if !kind.IsMedia() {
		return nil, fmt.Errorf("%s messages carry no media", kind)
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	result, err := s.cld.Upload.Upload(ctx, file, uploader.UploadParams{
		Folder:       MediaFolder(kind),
		ResourceType: resourceType(kind),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to Cloudinary: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary rejected upload: %s", result.Error.Message)
	}

	return &MediaUpload{
		MediaRef: result.SecureURL,
		Kind:     kind,
		FileName: fileHeader.Filename,
		Bytes:    result.Bytes,
	}, nil
}
