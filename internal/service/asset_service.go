package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AssetService stores post images and hands back the public URLs that go
// into a post's image list.
type AssetService interface {
	Upload(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]string, error)
}

type assetService struct {
	r2 R2Service
}

func NewAssetService(r2 R2Service) AssetService {
	return &assetService{r2: r2}
}

var allowedImageTypes = map[string]struct{}{
	"jpeg": {}, "png": {}, "jpg": {},
}

func (s *assetService) Upload(ctx context.Context, userID int64, files []*multipart.FileHeader) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files provided")
	}

	urls := make([]string, 0, len(files))
	for _, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}

		fileBytes, err := io.ReadAll(fileContent)
		fileContent.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return nil, fmt.Errorf("unsupported file type: %w", err)
		}
		if _, ok := allowedImageTypes[fileType.Extension]; !ok {
			return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		key, err := gonanoid.New()
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}

		if err := s.r2.UploadToR2(ctx, key, fileBytes, fileType.MIME.Value); err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}

		urls = append(urls, s.r2.PublicURL(key))
	}

	return urls, nil
}
