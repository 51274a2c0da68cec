package azure

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// MemoryReportStorage is an in-memory ReportStorage for tests and local runs
type MemoryReportStorage struct {
	Storage map[string][]byte
	mu      sync.RWMutex
	logger  *zap.Logger
}

// NewMemoryReportStorage creates an empty in-memory report store
func NewMemoryReportStorage(logger *zap.Logger) *MemoryReportStorage {
	return &MemoryReportStorage{
		Storage: make(map[string][]byte),
		logger:  logger,
	}
}

// UploadReport stores a copy of data under the patient's report path
func (c *MemoryReportStorage) UploadReport(ctx context.Context, patientID, filename string, data []byte) (string, error) {
	if patientID == "" || filename == "" {
		return "", fmt.Errorf("patientID and filename are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	blobName := ReportBlobName(patientID, filename)
	c.Storage[blobName] = bytes.Clone(data)

	if c.logger != nil {
		c.logger.Debug("memory: report stored", zap.String("blob_name", blobName), zap.Int("size_bytes", len(data)))
	}
	return blobName, nil
}

// DownloadReport returns a copy of a stored report
func (c *MemoryReportStorage) DownloadReport(ctx context.Context, blobName string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, exists := c.Storage[blobName]
	if !exists {
		return nil, fmt.Errorf("blob not found: %s", blobName)
	}
	return bytes.Clone(data), nil
}

// DeletePatientReports removes every stored report of a patient
func (c *MemoryReportStorage) DeletePatientReports(ctx context.Context, patientID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := fmt.Sprintf("%s/%s/", reportPrefix, patientID)
	deleted := 0
	for name := range c.Storage {
		if strings.HasPrefix(name, prefix) {
			delete(c.Storage, name)
			deleted++
		}
	}
	return deleted, nil
}

// ListBlobs returns all blob names in storage
func (c *MemoryReportStorage) ListBlobs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blobs := make([]string, 0, len(c.Storage))
	for name := range c.Storage {
		blobs = append(blobs, name)
	}
	return blobs
}
