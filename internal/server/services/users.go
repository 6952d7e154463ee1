package services

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/dmitrijs2005/saraha/internal/dbx"
	"github.com/dmitrijs2005/saraha/internal/server/config"
	"github.com/dmitrijs2005/saraha/internal/server/imagex"
	"github.com/dmitrijs2005/saraha/internal/server/models"
	"github.com/dmitrijs2005/saraha/internal/server/storage"
)

// UserService covers what an authenticated account does to itself: reading
// its profile, replacing its picture and deleting itself.
type UserService struct {
	Deps
	revocationTTL time.Duration
}

func NewUserService(d Deps, cfg *config.Config) *UserService {
	return &UserService{Deps: d.withDefaults(), revocationTTL: cfg.RevocationTTL}
}

// Profile returns the account and the URL of its picture in the requested
// size. The URL is empty when no picture was uploaded.
func (s *UserService) Profile(ctx context.Context, accountID string, size imagex.Size) (*models.Account, string, error) {
	acc, err := s.Repos.Accounts(s.DB).GetByID(ctx, accountID, false)
	if err != nil {
		return nil, "", notFound(err, "User not found")
	}
	url, err := s.pictureURL(ctx, acc.ProfilePicture, size)
	if err != nil {
		return nil, "", err
	}
	return acc, url, nil
}

// UploadProfilePicture stores every size variant of data under a fresh key,
// points the account at it and drops the previous picture.
func (s *UserService) UploadProfilePicture(ctx context.Context, accountID string, data []byte, size imagex.Size) (string, error) {
	if len(data) == 0 {
		return "", badRequest("No file uploaded")
	}
	ct, err := imagex.Sniff(data, imagex.ProfileTypes)
	if err != nil {
		return "", err
	}
	variants, err := imagex.Variants(data, ct)
	if err != nil {
		return "", err
	}

	base := storage.NewKey(fmt.Sprintf("users/%s/profile", accountID), s.Now())
	stored := make([]string, 0, len(variants))
	for _, v := range variants {
		key := path.Join(base, string(v.Size))
		if err := s.Store.Put(ctx, key, v.ContentType, v.Data); err != nil {
			s.deleteKeys(ctx, stored)
			return "", fmt.Errorf("error storing %s picture: %w", v.Size, err)
		}
		stored = append(stored, key)
	}

	var old string
	err = s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.Repos.Accounts(tx)
		acc, err := repo.GetByID(ctx, accountID, true)
		if err != nil {
			return notFound(err, "User not found")
		}
		old = acc.ProfilePicture
		acc.ProfilePicture = base
		acc.UpdatedAt = s.Now()
		return repo.Update(ctx, acc)
	})
	if err != nil {
		s.deleteKeys(ctx, stored)
		return "", err
	}

	s.deletePicture(ctx, old)
	s.Log.Info(ctx, "profile picture updated", "account_id", accountID)
	return s.pictureURL(ctx, base, size)
}

// DeleteAccount removes the account with its messages, revokes its refresh
// tokens and denylists the access token used for the request.
func (s *UserService) DeleteAccount(ctx context.Context, accountID, accessToken string) error {
	var picture string
	err := s.Tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		acc, err := s.Repos.Accounts(tx).GetByID(ctx, accountID, true)
		if err != nil {
			return notFound(err, "User not found")
		}
		picture = acc.ProfilePicture

		if err := s.Repos.Messages(tx).DeleteForAccount(ctx, accountID); err != nil {
			return fmt.Errorf("error deleting messages: %w", err)
		}
		if err := s.Repos.Accounts(tx).Delete(ctx, accountID); err != nil {
			return notFound(err, "User not found")
		}

		repo := s.Repos.Tokens(tx)
		if _, err := repo.RevokeAllForAccount(ctx, accountID, models.TokenRefresh); err != nil {
			return fmt.Errorf("error revoking refresh tokens: %w", err)
		}
		if accessToken == "" {
			return nil
		}
		return denylistAccess(ctx, repo, s.Issuer, accessToken, accountID, s.Now(), s.revocationTTL)
	})
	if err != nil {
		return err
	}

	s.deletePicture(ctx, picture)
	s.Log.Info(ctx, "account deleted", "account_id", accountID)
	return nil
}

func (s *UserService) pictureURL(ctx context.Context, base string, size imagex.Size) (string, error) {
	if base == "" {
		return "", nil
	}
	url, err := s.Store.URL(ctx, path.Join(base, string(size)))
	if err != nil {
		return "", fmt.Errorf("error building picture url: %w", err)
	}
	return url, nil
}

func (s *UserService) deletePicture(ctx context.Context, base string) {
	if base == "" {
		return
	}
	keys := make([]string, 0, len(imagex.Sizes))
	for _, size := range imagex.Sizes {
		keys = append(keys, path.Join(base, string(size)))
	}
	s.deleteKeys(ctx, keys)
}

func (s *UserService) deleteKeys(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.Store.Delete(ctx, key); err != nil {
			s.Log.Warn(ctx, "object not deleted", "key", key, "error", err)
		}
	}
}
