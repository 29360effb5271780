package archive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// blobClient is the subset of [*azblob.Client] the archive uses.
type blobClient interface {
	CreateContainer(ctx context.Context, containerName string, o *azblob.CreateContainerOptions) (azblob.CreateContainerResponse, error)
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// BlobArchive uploads raw transcripts to an Azure Storage container.
type BlobArchive struct {
	client     blobClient
	accountURL string
	container  string
}

// NewBlobArchive authenticates with the default Azure credential chain and
// makes sure the container exists.
func NewBlobArchive(ctx context.Context, accountURL, container string) (*BlobArchive, error) {
	if accountURL == "" || container == "" {
		return nil, errors.New("blob archive requires an account URL and a container")
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get Azure credential: %w", err)
	}

	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return newBlobArchive(ctx, client, accountURL, container)
}

func newBlobArchive(ctx context.Context, client blobClient, accountURL, container string) (*BlobArchive, error) {
	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !isConflict(err) {
		return nil, fmt.Errorf("failed to create container %s: %w", container, err)
	}

	return &BlobArchive{
		client:     client,
		accountURL: strings.TrimRight(accountURL, "/"),
		container:  container,
	}, nil
}

func (a *BlobArchive) Put(ctx context.Context, name string, data []byte, metadata map[string]string) (string, error) {
	md := make(map[string]*string, len(metadata))
	for k, v := range metadata {
		md[k] = &v
	}

	if _, err := a.client.UploadBuffer(ctx, a.container, name, data, &azblob.UploadBufferOptions{Metadata: md}); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	return a.accountURL + "/" + a.container + "/" + name, nil
}

// isConflict reports whether err is the 409 returned for an existing container.
func isConflict(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusConflict
}
