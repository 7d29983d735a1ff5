package api

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	defaultAvatarPath = "/images/userimage.png"
	maxAvatarSize     = 10 << 20 // 10 MiB
)

// saveAvatar writes an uploaded image under the image directory with a
// uuid-prefixed name and returns its public path.
func (s *ChatApp) saveAvatar(file io.Reader, origName string) (string, error) {
	fileName := fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(origName))
	filePath := filepath.Join(s.imageDir, fileName)

	out, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("create avatar file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		os.Remove(filePath)
		return "", fmt.Errorf("write avatar file: %w", err)
	}

	return "/images/" + fileName, nil
}

// removeAvatar deletes a previously stored avatar. The shared default image
// is never deleted.
func (s *ChatApp) removeAvatar(imagePath string) error {
	if imagePath == "" || imagePath == defaultAvatarPath {
		return nil
	}

	filePath := filepath.Join(s.imageDir, filepath.Base(imagePath))
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove avatar file: %w", err)
	}

	return nil
}
