package util

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	apierrors "github.com/zfogg/traveltweets/internal/errors"
)

// MaxImageBytes caps a single uploaded image.
const MaxImageBytes = 5 << 20

var (
	ErrUnsupportedImage = errors.New("unsupported image type")
	ErrImageTooLarge    = errors.New("image exceeds 5 MiB")

	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

	imageContentTypes = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".gif":  "image/gif",
		".webp": "image/webp",
	}
)

// RegisterValidators installs the custom binding rules on gin's validator.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
	}
}

// IsValidUsername reports whether s is 3-30 letters, digits or underscores.
func IsValidUsername(s string) bool {
	return usernamePattern.MatchString(s)
}

// IsValidImageFile checks if a filename has an accepted image extension
func IsValidImageFile(filename string) bool {
	_, ok := imageContentTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ImageContentType returns the MIME type for an accepted image extension.
func ImageContentType(ext string) string {
	if ct, ok := imageContentTypes[strings.ToLower(ext)]; ok {
		return ct
	}
	return "application/octet-stream"
}

func isAcceptedImageType(contentType string) bool {
	for _, ct := range imageContentTypes {
		if ct == contentType {
			return true
		}
	}
	return false
}

// ReadImageUpload reads an uploaded image into memory after checking its
// extension, size and sniffed content type.
func ReadImageUpload(file *multipart.FileHeader) ([]byte, string, error) {
	if !IsValidImageFile(file.Filename) {
		return nil, "", ErrUnsupportedImage
	}
	if file.Size > MaxImageBytes {
		return nil, "", ErrImageTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return nil, "", ErrImageTooLarge
	}

	sniffed := http.DetectContentType(data)
	if !isAcceptedImageType(sniffed) {
		return nil, "", ErrUnsupportedImage
	}
	return data, sniffed, nil
}

// BindJSON binds the body into obj and answers 400 with the first
// validation message when it fails.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondWithAPIError(c, BindingError(err))
		return false
	}
	return true
}

// BindingError turns a gin binding error into a VALIDATION_ERROR.
func BindingError(err error) *apierrors.APIError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := jsonFieldName(fe)
		return apierrors.ValidationError(field, validationMessage(field, fe))
	}
	return apierrors.ValidationError("", "Invalid request body")
}

func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return ""
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func validationMessage(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "username":
		return "Username must be 3-30 letters, numbers or underscores"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
