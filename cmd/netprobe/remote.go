// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/siemens/netprobe/scan"
)

// submitTimeout limits how long submitting a scan to a backend may take.
const submitTimeout = 5 * time.Second

// submitRemote submits the scan request to the netprobe service at the
// specified base URL, returning the ID of the queued scan.
func submitRemote(ctx context.Context, backend string, req scan.Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(backend, "/")+"/api/scan", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		var failure struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &failure) == nil && failure.Error != "" {
			return "", fmt.Errorf("backend rejected scan: %s", failure.Error)
		}
		return "", fmt.Errorf("backend rejected scan: %s", resp.Status)
	}
	var accepted struct {
		ScanID string `json:"scan_id"`
	}
	if err := json.Unmarshal(data, &accepted); err != nil || accepted.ScanID == "" {
		return "", fmt.Errorf("malformed backend response: %q", string(data))
	}
	return accepted.ScanID, nil
}
