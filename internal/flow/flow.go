// Package flow drives the registration site's multi-step signup UI
package flow

import (
	"context"

	"github.com/shehryarbajwa/regpool/internal/logging"
)

// Profile is the data one registration submits
type Profile struct {
	Nickname   string
	RegionCode string
	DOB        string // YYYY-MM-DD
	Email      string
	Phone      string
	Password   string
	AvatarPath string // empty skips the avatar step
}

// Driver attaches to an opened browser window
type Driver interface {
	Open(ctx context.Context, endpoint string, log logging.Scoped) (Session, error)
}

// Session is one signup in progress. Begin stops once phone and password
// are submitted; SubmitCode resumes after the SMS code arrives.
type Session interface {
	Begin(ctx context.Context, p Profile) error
	SubmitCode(ctx context.Context, code string) error
	UploadCertificate(ctx context.Context, path string) error
	Close()
}
