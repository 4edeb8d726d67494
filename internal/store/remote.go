package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/jimmylelievre/billed/internal/bill"
)

// Remote implements Store against the bills HTTP API
type Remote struct {
	baseURL string
	client  *http.Client
}

// NewRemote creates a Remote store for the API at baseURL
func NewRemote(baseURL string) *Remote {
	return &Remote{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Bills returns the bill accessor
func (r *Remote) Bills() BillsAccessor {
	return &remoteBills{remote: r}
}

// apiError turns a non-2xx response into the diagnostic error convention the
// controllers surface verbatim ("Erreur 404", "Erreur 500", ...)
func apiError(resp *http.Response) error {
	return fmt.Errorf("Erreur %d", resp.StatusCode)
}

// Upload sends a receipt file to the API and returns its reference
func (r *Remote) Upload(ctx context.Context, filename, contentType string, data []byte) (bill.FileRef, error) {
	if !AcceptedMime(contentType) {
		return bill.FileRef{}, fmt.Errorf("unsupported receipt type %q", contentType)
	}

	var b bytes.Buffer
	writer := multipart.NewWriter(&b)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return bill.FileRef{}, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return bill.FileRef{}, fmt.Errorf("writing form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return bill.FileRef{}, fmt.Errorf("closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.baseURL+"/api/files", &b)
	if err != nil {
		return bill.FileRef{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return bill.FileRef{}, fmt.Errorf("calling bills API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return bill.FileRef{}, apiError(resp)
	}

	var ref bill.FileRef
	if err := json.NewDecoder(resp.Body).Decode(&ref); err != nil {
		return bill.FileRef{}, fmt.Errorf("decoding response: %w", err)
	}
	return ref, nil
}

type remoteBills struct {
	remote *Remote
}

func (a *remoteBills) List(ctx context.Context) ([]*bill.Bill, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", a.remote.baseURL+"/api/bills", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := a.remote.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling bills API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var bills []*bill.Bill
	if err := json.NewDecoder(resp.Body).Decode(&bills); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return bills, nil
}

func (a *remoteBills) Create(ctx context.Context, b *bill.Bill) (*bill.Bill, error) {
	return a.send(ctx, "POST", a.remote.baseURL+"/api/bills", b, http.StatusCreated)
}

func (a *remoteBills) Update(ctx context.Context, b *bill.Bill) (*bill.Bill, error) {
	return a.send(ctx, "PUT", fmt.Sprintf("%s/api/bills/%s", a.remote.baseURL, b.ID), b, http.StatusOK)
}

func (a *remoteBills) send(ctx context.Context, method, url string, b *bill.Bill, wantStatus int) (*bill.Bill, error) {
	jsonData, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshaling bill: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.remote.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling bills API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return nil, apiError(resp)
	}

	var saved bill.Bill
	if err := json.NewDecoder(resp.Body).Decode(&saved); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &saved, nil
}
