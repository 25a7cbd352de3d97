package remote

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"

	"github.com/trilheiros/trilheiros/pkg/models"
)

func TestDocumentID(t *testing.T) {
	id := DocumentID("u1", "Rope", 1700000000000)
	if !strings.HasPrefix(id, "u1_") {
		t.Errorf("id = %q; want owner prefix", id)
	}
	if !strings.HasSuffix(id, "_1700000000000") {
		t.Errorf("id = %q; want timestamp suffix", id)
	}
	if models.IsTempRemoteID(id) {
		t.Errorf("derived key %q must not look like a placeholder", id)
	}

	// Same inputs, same key: retried creates stay idempotent.
	if other := DocumentID("u1", "Rope", 1700000000000); other != id {
		t.Errorf("derivation not stable: %q vs %q", id, other)
	}
	if other := DocumentID("u1", "Tent", 1700000000000); other == id {
		t.Error("different descriptions should derive different keys")
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey("u1", "r1"); got != "items/u1/r1.json" {
		t.Errorf("objectKey = %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "nil stays nil",
			err:  nil,
			want: nil,
		},
		{
			name: "transport error is unreachable",
			err:  &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			want: ErrUnreachable,
		},
		{
			name: "missing key is not found",
			err:  minio.ErrorResponse{Code: "NoSuchKey", Key: "items/u1/r1.json"},
			want: ErrNotFound,
		},
		{
			name: "access denied is rejected",
			err:  minio.ErrorResponse{Code: "AccessDenied", Message: "denied"},
			want: ErrRemoteRejected,
		},
		{
			name: "missing bucket is rejected",
			err:  minio.ErrorResponse{Code: "NoSuchBucket"},
			want: ErrRemoteRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Errorf("classify = %v; want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("classify(%v) = %v; want %v", tt.err, got, tt.want)
			}
		})
	}
}
