package relief

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
)

// sniffLen is how much of the body is read to detect its type.
const sniffLen = 3072

// Upload sends one help request attachment through the pre-signed upload
// flow and returns the public file URL in the Ack. An empty fileType is
// detected from the content.
func (s *Service) Upload(ctx context.Context, kind domain.UploadKind, fileName, fileType string, body io.Reader, size int64) (domain.Ack, error) {
	failMsg := "Upload failed."

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return domain.Ack{}, s.fail(ctx, domain.KindUpload, fmt.Errorf("read upload: %w", err), failMsg, "")
	}
	head = head[:n]

	contentType, err := uploadType(kind, fileName, fileType, head)
	if err != nil {
		return domain.Ack{}, s.reject(ctx, domain.KindUpload, err)
	}

	target, err := s.backend.GetUploadURL(ctx, fileName, contentType)
	if err != nil {
		return domain.Ack{}, s.fail(ctx, domain.KindUpload, err, failMsg, "")
	}

	content := io.MultiReader(bytes.NewReader(head), body)
	if err := s.backend.PutFile(ctx, target.UploadURL, contentType, content, size); err != nil {
		return domain.Ack{}, s.fail(ctx, domain.KindUpload, err, failMsg, "")
	}

	s.accept(ctx, domain.KindUpload, target.FileURL, fileName, "")
	return domain.Ack{
		ID:      target.FileURL,
		Message: strings.ToUpper(string(kind)) + " uploaded successfully!",
		FileURL: target.FileURL,
	}, nil
}

// uploadType resolves the content type to declare and checks it fits the slot.
func uploadType(kind domain.UploadKind, fileName, fileType string, head []byte) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		return "", fmt.Errorf("%w: file name is required", domain.ErrInvalidForm)
	}
	if len(head) == 0 {
		return "", fmt.Errorf("%w: file is empty", domain.ErrInvalidForm)
	}

	contentType := strings.TrimSpace(fileType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mimetype.Detect(head).String()
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: content type %q: %v", domain.ErrInvalidForm, contentType, err)
	}
	if !strings.HasPrefix(mediaType, kind.MediaPrefix()) {
		return "", fmt.Errorf("%w: %s slot does not accept %s", domain.ErrInvalidForm, kind, mediaType)
	}
	return mediaType, nil
}
