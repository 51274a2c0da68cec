package azure

import "context"

// ReportStorage stores rendered adherence reports
type ReportStorage interface {
	UploadReport(ctx context.Context, patientID, filename string, data []byte) (string, error)
	DownloadReport(ctx context.Context, blobName string) ([]byte, error)
	DeletePatientReports(ctx context.Context, patientID string) (int, error)
}

var (
	_ ReportStorage = (*BlobStorageClient)(nil)
	_ ReportStorage = (*MemoryReportStorage)(nil)
)
