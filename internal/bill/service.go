package bill

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDGenerator generates unique IDs for bills and receipt files
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

// defaultIDGenerator generates random UUIDs
type defaultIDGenerator struct{}

func (g *defaultIDGenerator) Generate() string {
	return uuid.NewString()
}

// defaultTimeSource provides the current time
type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// FileRef points at a stored receipt file
type FileRef struct {
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
}

// Service handles bill operations
type Service struct {
	db          DB
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, storage Storage) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: &defaultIDGenerator{},
		timeSource:  &defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	// Keep only alphanumeric, spaces, hyphens, and underscores
	reg := regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	base = reg.ReplaceAllString(base, "")

	reg = regexp.MustCompile(`\s+`)
	base = reg.ReplaceAllString(base, " ")

	base = strings.TrimSpace(base)

	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "justificatif"
	}

	return base + ext
}

// SaveReceiptFile stores a receipt file and returns the reference a bill
// carries. The file is saved under a generated prefix so phone uploads with
// identical names cannot collide.
func (s *Service) SaveReceiptFile(filename string, data []byte) (FileRef, error) {
	id := s.idGenerator.Generate()
	cleanFilename := sanitizeFilename(filename)

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, cleanFilename), data)
	if err != nil {
		return FileRef{}, fmt.Errorf("saving file: %w", err)
	}

	return FileRef{
		FileURL:  fmt.Sprintf("/api/files/%s", savedPath),
		FileName: cleanFilename,
	}, nil
}

// GetReceiptFile retrieves the stored data for a receipt file reference
func (s *Service) GetReceiptFile(path string) ([]byte, error) {
	data, err := s.storage.Get(path)
	if err != nil {
		return nil, fmt.Errorf("getting receipt file: %w", err)
	}
	return data, nil
}

// CreateBill assigns an ID, stamps timestamps, validates and persists a bill
func (s *Service) CreateBill(bill *Bill) (*Bill, error) {
	now := s.timeSource.Now()

	if bill.ID == "" {
		bill.ID = s.idGenerator.Generate()
	}
	if bill.Status == "" {
		bill.Status = StatusPending
	}
	bill.CreatedAt = now
	bill.UpdatedAt = now

	if err := bill.Validate(); err != nil {
		return nil, fmt.Errorf("validating bill: %w", err)
	}

	if err := s.db.SaveBill(bill); err != nil {
		// Clean up the stored receipt so a failed create leaves no orphan
		if bill.FileName != "" {
			if delErr := s.storage.Delete(strings.TrimPrefix(bill.FileURL, "/api/files/")); delErr != nil {
				slog.Warn("Failed to delete receipt file", "fileUrl", bill.FileURL, "error", delErr)
			}
		}
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	return bill, nil
}

// UpdateBill validates and persists changes to an existing bill
func (s *Service) UpdateBill(bill *Bill) (*Bill, error) {
	existing, err := s.db.GetBill(bill.ID)
	if err != nil {
		return nil, fmt.Errorf("getting bill for update: %w", err)
	}

	bill.CreatedAt = existing.CreatedAt
	bill.UpdatedAt = s.timeSource.Now()

	if err := bill.Validate(); err != nil {
		return nil, fmt.Errorf("validating bill: %w", err)
	}

	if err := s.db.SaveBill(bill); err != nil {
		return nil, fmt.Errorf("saving bill to database: %w", err)
	}

	return bill, nil
}

// GetBill retrieves a bill by ID
func (s *Service) GetBill(id string) (*Bill, error) {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return nil, fmt.Errorf("getting bill: %w", err)
	}
	return bill, nil
}

// ListBills returns all bills
func (s *Service) ListBills() ([]*Bill, error) {
	bills, err := s.db.ListBills()
	if err != nil {
		return nil, fmt.Errorf("listing bills: %w", err)
	}
	return bills, nil
}

// DeleteBill removes a bill and its receipt file
func (s *Service) DeleteBill(id string) error {
	bill, err := s.db.GetBill(id)
	if err != nil {
		return fmt.Errorf("getting bill for deletion: %w", err)
	}

	if bill.FileURL != "" {
		if err := s.storage.Delete(strings.TrimPrefix(bill.FileURL, "/api/files/")); err != nil {
			// Log error but continue with database deletion
			slog.Warn("Failed to delete receipt file", "fileUrl", bill.FileURL, "error", err)
		}
	}

	if err := s.db.DeleteBill(id); err != nil {
		return fmt.Errorf("deleting bill from database: %w", err)
	}
	return nil
}
