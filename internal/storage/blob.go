package storage

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// BlobItem is one object in a customer's export container.
type BlobItem struct {
	Name         string
	LastModified time.Time
	Size         int64
}

// BlobStore lists and reads billing export objects. The engine never writes.
type BlobStore interface {
	List(ctx context.Context, prefix string) ([]BlobItem, error)
	Get(ctx context.Context, name string) ([]byte, error)
}

// BlobClient talks to the Azure Blob REST surface for a single container,
// authenticating with a bearer token from the AAD token source.
type BlobClient struct {
	account        string
	container      string
	endpointSuffix string
	tokens         TokenSource
	httpClient     *http.Client
}

func NewBlobClient(account, container, endpointSuffix string, tokens TokenSource) *BlobClient {
	return &BlobClient{
		account:        account,
		container:      container,
		endpointSuffix: endpointSuffix,
		tokens:         tokens,
		httpClient:     &http.Client{Timeout: 2 * time.Minute},
	}
}

type listBlobsResponse struct {
	XMLName    xml.Name        `xml:"EnumerationResults"`
	Blobs      []listBlobEntry `xml:"Blobs>Blob"`
	NextMarker string          `xml:"NextMarker"`
}

type listBlobEntry struct {
	Name       string `xml:"Name"`
	Properties struct {
		LastModified  string `xml:"Last-Modified"`
		ContentLength int64  `xml:"Content-Length"`
	} `xml:"Properties"`
}

func (c *BlobClient) List(ctx context.Context, prefix string) ([]BlobItem, error) {
	var items []BlobItem
	marker := ""

	for {
		query := url.Values{}
		query.Set("restype", "container")
		query.Set("comp", "list")
		if prefix != "" {
			query.Set("prefix", prefix)
		}
		if marker != "" {
			query.Set("marker", marker)
		}

		endpoint := fmt.Sprintf("https://%s.%s/%s?%s", c.account, c.endpointSuffix, c.container, query.Encode())
		body, err := c.do(ctx, endpoint)
		if err != nil {
			return nil, err
		}

		var page listBlobsResponse
		if err := xml.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode blob list: %w", err)
		}

		for _, entry := range page.Blobs {
			lastModified, _ := time.Parse(time.RFC1123, entry.Properties.LastModified)
			items = append(items, BlobItem{
				Name:         entry.Name,
				LastModified: lastModified,
				Size:         entry.Properties.ContentLength,
			})
		}

		if page.NextMarker == "" {
			return items, nil
		}
		marker = page.NextMarker
	}
}

func (c *BlobClient) Get(ctx context.Context, name string) ([]byte, error) {
	endpoint := fmt.Sprintf("https://%s.%s/%s/%s", c.account, c.endpointSuffix, c.container, name)
	return c.do(ctx, endpoint)
}

func (c *BlobClient) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob request: %w", err)
	}

	token, err := c.tokens.Token(ctx, "https://storage.azure.com/.default")
	if err != nil {
		return nil, fmt.Errorf("acquire storage token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("x-ms-version", "2023-11-03")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blob request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("blob request failed: %d %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
