package usecase

const (
	// MaxReportedErrors caps the row errors kept in an IngestReport.
	MaxReportedErrors = 100
)
