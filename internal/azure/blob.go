package azure

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"go.uber.org/zap"
)

const reportPrefix = "reports"

// BlobStorageClient stores rendered adherence reports in Azure Blob Storage
type BlobStorageClient struct {
	client        *azblob.Client
	containerName string
	logger        *zap.Logger
}

// NewBlobStorageClient creates a new Azure Blob Storage client
func NewBlobStorageClient(accountName, accountKey, containerName string, logger *zap.Logger) (*BlobStorageClient, error) {
	if accountName == "" || accountKey == "" || containerName == "" {
		return nil, fmt.Errorf("accountName, accountKey, and containerName are required")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", accountName)

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &BlobStorageClient{
		client:        client,
		containerName: containerName,
		logger:        logger,
	}, nil
}

// ReportBlobName returns the blob path of a patient's report
func ReportBlobName(patientID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", reportPrefix, patientID, filename)
}

// UploadReport uploads a PDF report and returns its blob name
func (c *BlobStorageClient) UploadReport(ctx context.Context, patientID, filename string, data []byte) (string, error) {
	if patientID == "" || filename == "" {
		return "", fmt.Errorf("patientID and filename are required")
	}

	blobName := ReportBlobName(patientID, filename)
	c.logger.Info("uploading report to blob storage",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(data)),
	)

	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	_, err := blobClient.UploadBuffer(ctx, data, &azblob.UploadBufferOptions{
		Metadata: map[string]*string{
			"contenttype": toPtr("application/pdf"),
			"patientid":   toPtr(patientID),
		},
	})
	if err != nil {
		c.logger.Error("failed to upload report", zap.String("blob_name", blobName), zap.Error(err))
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	return blobName, nil
}

// DownloadReport downloads a PDF report
func (c *BlobStorageClient) DownloadReport(ctx context.Context, blobName string) ([]byte, error) {
	if blobName == "" {
		return nil, fmt.Errorf("blobName is required")
	}

	blobClient := c.client.ServiceClient().NewContainerClient(c.containerName).NewBlockBlobClient(blobName)

	downloadResponse, err := blobClient.DownloadStream(ctx, nil)
	if err != nil {
		c.logger.Error("failed to download report", zap.String("blob_name", blobName), zap.Error(err))
		return nil, fmt.Errorf("failed to download report: %w", err)
	}
	defer downloadResponse.Body.Close()

	data, err := io.ReadAll(downloadResponse.Body)
	if err != nil {
		c.logger.Error("failed to read report data", zap.String("blob_name", blobName), zap.Error(err))
		return nil, fmt.Errorf("failed to read report data: %w", err)
	}

	c.logger.Info("report downloaded",
		zap.String("blob_name", blobName),
		zap.Int("size_bytes", len(data)),
	)

	return data, nil
}

// DeletePatientReports removes every report blob of a patient and returns how many were deleted
func (c *BlobStorageClient) DeletePatientReports(ctx context.Context, patientID string) (int, error) {
	if patientID == "" {
		return 0, fmt.Errorf("patientID is required")
	}

	prefix := fmt.Sprintf("%s/%s/", reportPrefix, patientID)
	container := c.client.ServiceClient().NewContainerClient(c.containerName)
	pager := c.client.NewListBlobsFlatPager(c.containerName, &azblob.ListBlobsFlatOptions{Prefix: &prefix})

	deleted := 0
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return deleted, fmt.Errorf("failed to list report blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if _, err := container.NewBlobClient(*item.Name).Delete(ctx, nil); err != nil {
				c.logger.Error("failed to delete report blob", zap.String("blob_name", *item.Name), zap.Error(err))
				return deleted, fmt.Errorf("failed to delete report blob: %w", err)
			}
			deleted++
		}
	}

	c.logger.Info("patient reports deleted", zap.String("patient_id", patientID), zap.Int("count", deleted))
	return deleted, nil
}

func toPtr(s string) *string {
	return &s
}
