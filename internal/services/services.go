// package services defines the Studio interface for talking to the studio backend over HTTP
package services

import (
	"context"

	"github.com/desertthunder/proofs/internal/models"
)

// Studio is the photographer and client facing surface of the studio backend.
type Studio interface {
	// Login checks credentials; the caller stores the token on success.
	Login(ctx context.Context, username, password string) error

	ListSessions(ctx context.Context, q SessionQuery) (*models.SessionPage, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	DeleteSession(ctx context.Context, sessionID string) error
	FinishSession(ctx context.Context, sessionID string) error
	GenerateQRCode(ctx context.Context, sessionID string) (string, error)

	ListPhotos(ctx context.Context, sessionID string, as ClientType) ([]models.Photo, error)
	DeletePhoto(ctx context.Context, sessionID, photoID string) error
	SubmitSelection(ctx context.Context, sessionID string, photoIDs []string) error

	ListPortfolio(ctx context.Context, category string) ([]models.PortfolioItem, error)
	DeletePortfolioItem(ctx context.Context, id string) error

	// Upload sends a single file; batches go through the upload engine.
	Upload(ctx context.Context, endpoint string, file LocalFile, fields map[string]string, progress ProgressFunc) (*UploadReceipt, error)
}

var _ Studio = (*StudioService)(nil)
