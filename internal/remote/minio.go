package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/trilheiros/trilheiros/internal/db"
	"github.com/trilheiros/trilheiros/pkg/models"
)

const docSuffix = ".json"

// document is the wire shape of an item. The remote ID is the object key,
// not a field.
type document struct {
	Description string `json:"description"`
	OwnerID     string `json:"owner_id"`
	UpdatedAt   int64  `json:"updated_at"`
}

// MinioStore keeps one JSON document per item under items/<owner>/<id>.json.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore creates a remote store client from a connection profile.
func NewMinioStore(p *db.Profile) (*MinioStore, error) {
	tr := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client, err := minio.New(p.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(p.AccessKey, p.SecretKey, ""),
		Secure:       !p.Insecure,
		Transport:    tr,
		Region:       "auto",
		BucketLookup: minio.BucketLookupAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote client: %v", err)
	}

	return &MinioStore{client: client, bucket: p.Bucket}, nil
}

func ownerPrefix(ownerID string) string {
	return "items/" + ownerID + "/"
}

func objectKey(ownerID, remoteID string) string {
	return ownerPrefix(ownerID) + remoteID + docSuffix
}

// classify maps transport and server errors onto the engine's taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "":
		// No server response at all: timeouts, DNS, refused connections.
		return fmt.Errorf("%v: %w", err, ErrUnreachable)
	case "NoSuchKey":
		return fmt.Errorf("%s: %w", resp.Key, ErrNotFound)
	default:
		return fmt.Errorf("%s: %s: %w", resp.Code, resp.Message, ErrRemoteRejected)
	}
}

// Get fetches and decodes a single document.
func (s *MinioStore) Get(ctx context.Context, ownerID, remoteID string) (models.Item, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(ownerID, remoteID), minio.GetObjectOptions{})
	if err != nil {
		return models.Item{}, classify(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return models.Item{}, classify(err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.Item{}, fmt.Errorf("corrupt document %s: %w", remoteID, ErrRemoteRejected)
	}

	return models.Item{
		RemoteID:    remoteID,
		Description: doc.Description,
		OwnerID:     doc.OwnerID,
		UpdatedAt:   doc.UpdatedAt,
		SyncState:   models.StateSynced,
	}, nil
}

// Put writes the item's document, deriving a real key when the item only has
// a placeholder or no remote ID yet.
func (s *MinioStore) Put(ctx context.Context, item models.Item) (string, error) {
	remoteID := item.RemoteID
	if !item.HasRealRemoteID() {
		remoteID = DocumentID(item.OwnerID, item.Description, item.UpdatedAt)
	}

	data, err := json.Marshal(document{
		Description: item.Description,
		OwnerID:     item.OwnerID,
		UpdatedAt:   item.UpdatedAt,
	})
	if err != nil {
		return "", fmt.Errorf("encode document: %w", ErrRemoteRejected)
	}

	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		objectKey(item.OwnerID, remoteID),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return "", classify(err)
	}
	return remoteID, nil
}

// Delete removes the item's document.
func (s *MinioStore) Delete(ctx context.Context, ownerID, remoteID string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey(ownerID, remoteID), minio.RemoveObjectOptions{})
	return classify(err)
}

// snapshot lists and fetches the owner's entire collection.
func (s *MinioStore) snapshot(ctx context.Context, ownerID string) ([]models.Item, error) {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    ownerPrefix(ownerID),
		Recursive: true,
	})

	var items []models.Item
	for obj := range objects {
		if obj.Err != nil {
			return nil, classify(obj.Err)
		}
		name := path.Base(obj.Key)
		if !strings.HasSuffix(name, docSuffix) {
			continue
		}
		remoteID := strings.TrimSuffix(name, docSuffix)
		item, err := s.Get(ctx, ownerID, remoteID)
		if err != nil {
			// A document removed between list and get is not an error.
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Subscribe emits the current remote set, then a fresh snapshot after every
// bucket notification under the owner's prefix.
func (s *MinioStore) Subscribe(ctx context.Context, ownerID string) (<-chan []models.Item, error) {
	events := s.client.ListenBucketNotification(ctx, s.bucket, ownerPrefix(ownerID), docSuffix, []string{
		"s3:ObjectCreated:*",
		"s3:ObjectRemoved:*",
	})

	out := make(chan []models.Item, 1)
	go func() {
		defer close(out)

		emit := func() bool {
			snap, err := s.snapshot(ctx, ownerID)
			if err != nil {
				log.Printf("remote snapshot failed: %v", err)
				return true
			}
			select {
			case out <- snap:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case info, ok := <-events:
				if !ok {
					return
				}
				if info.Err != nil {
					log.Printf("remote notification error: %v", info.Err)
					continue
				}
				if !emit() {
					return
				}
			}
		}
	}()

	return out, nil
}

// IsNotFound reports whether err is the remote miss case.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
