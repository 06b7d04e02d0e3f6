package models

// Document is an uploaded object owned by a user.
type Document struct {
	ID           int64  `db:"id" json:"id"`
	DocumentName string `db:"document_name" json:"documentName"`
	Key          string `db:"key" json:"key"`
	S3URL        string `db:"s3_url" json:"s3Url"`
	UserID       int64  `db:"user_id" json:"userId"`
}

// UploadDocumentRequest carries the multipart form fields besides the file.
type UploadDocumentRequest struct {
	DocumentName string `form:"documentName" validate:"required"`
}

// PresignedURLResponse wraps a time-limited download link.
type PresignedURLResponse struct {
	PresignedURL string `json:"presignedUrl"`
}
