package services

import (
	"time"

	"notebox/config"
	"notebox/repositories"
	"notebox/storage"
	"notebox/utils"
)

type Container struct {
	Auth AuthService
	File FileService
	Note NoteService
}

func NewContainer(cfg *config.Config, repos repositories.Container, blobs storage.BlobStore) *Container {
	var thumbnails ThumbnailService
	if cfg.Thumbnail.Enabled {
		thumbnails = NewThumbnailService(blobs, cfg.Thumbnail)
	}

	signer := utils.NewTokenSigner(cfg.JWT.Secret, cfg.JWT.Issuer)
	return &Container{
		Auth: NewAuthService(repos.TxManager, repos.Users, repos.Revocations, signer, AuthConfig{
			AccessTTL:  time.Duration(cfg.JWT.ExpireHours) * time.Hour,
			RefreshTTL: time.Duration(cfg.JWT.RefreshExpireHours) * time.Hour,
		}),
		File: NewFileService(repos.TxManager, repos.Files, repos.Notes, blobs, thumbnails, FileServiceConfig{
			PublicURL:         cfg.Server.PublicURL,
			MaxFileSize:       cfg.Storage.MaxFileSize,
			AllowedExtensions: cfg.Storage.AllowedExtensions,
			InlineTypes:       cfg.Storage.InlineTypes,
			MaxPageSize:       cfg.Pagination.MaxPageSize,
		}),
		Note: NewNoteService(repos.TxManager, repos.Notes, repos.Files, cfg.Server.PublicURL, cfg.Pagination.MaxPageSize),
	}
}
