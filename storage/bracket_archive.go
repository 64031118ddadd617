package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

const bracketPrefix = "brackets/"

// BracketArchive keeps the final bracket of finished lobbies as JSON objects.
type BracketArchive struct {
	uploader FileUploader
}

func NewBracketArchive(uploader FileUploader) *BracketArchive {
	return &BracketArchive{uploader: uploader}
}

// BracketKey is the object key of a lobby's archived bracket.
func BracketKey(lobbyID string) string {
	return bracketPrefix + lobbyID + ".json"
}

// Archive uploads the snapshot and returns where it can be fetched, if the
// bucket is public.
func (a *BracketArchive) Archive(ctx context.Context, lobbyID string, snapshot interface{}) (string, error) {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode bracket of lobby %s: %w", lobbyID, err)
	}
	res, err := a.uploader.Upload(ctx, BracketKey(lobbyID), "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	return res.Location, nil
}

func (a *BracketArchive) Remove(ctx context.Context, lobbyID string) error {
	return a.uploader.Delete(ctx, BracketKey(lobbyID))
}
