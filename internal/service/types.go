package service

import "io"

// RegisterInput holds the fields of a self-registration.
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token string `json:"token"`
}

// CreateUserInput holds parameters for administrative user creation.
// An empty Role selects the default role.
type CreateUserInput struct {
	Email    string
	Username string
	Password string
	Role     string
}

// UpdateUserInput is a partial update: nil fields are left untouched.
type UpdateUserInput struct {
	Email    *string
	Username *string
	Password *string
	Role     *string
}

// Upload is a file received with a document.
type Upload struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

// CreateDocumentInput holds parameters for creating a document.
type CreateDocumentInput struct {
	Title   string
	Content string
	File    *Upload
}

// DocumentPatch is a partial document update: nil fields are left untouched.
// A non-nil File replaces the stored file.
type DocumentPatch struct {
	Title   *string
	Content *string
	File    *Upload
}
