// Copyright (c) 2024 santosr2
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const rubyGemsURL = "https://rubygems.org"

// RubyGemsClient downloads .gem archives from rubygems.org for the
// bundler packager's FetchSource step.
type RubyGemsClient struct {
	client  *http.Client
	baseURL string
}

// NewRubyGemsClient returns a client with the same request timeout the
// other registry clients use.
func NewRubyGemsClient() *RubyGemsClient {
	return &RubyGemsClient{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: rubyGemsURL,
	}
}

// DownloadGem streams name-version.gem into w.
func (c *RubyGemsClient) DownloadGem(ctx context.Context, name, version string, w io.Writer) error {
	url := fmt.Sprintf("%s/downloads/%s-%s.gem", c.baseURL, name, version)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s-%s.gem: %w", name, version, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s-%s.gem: status %d", name, version, resp.StatusCode)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download %s-%s.gem: %w", name, version, err)
	}
	return nil
}
