package steps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type processRequestBody struct {
	UploadID      string `json:"upload_id"`
	R2Key         string `json:"r2_key"`
	FileName      string `json:"file_name"`
	UserID        string `json:"user_id"`
	DataConsent   bool   `json:"data_consent"`
	DetectionMode string `json:"detection_mode,omitempty"`
}

// SubmitProcessRequest POSTs /process for a fixture already staged in the
// fake object store under uploadID's key (§4.1, §6).
func (s *StepContext) SubmitProcessRequest(uploadID string) error {
	s.latestUploadID = uploadID
	body, err := json.Marshal(processRequestBody{
		UploadID:    uploadID,
		R2Key:       uploadID + "/source.mp4",
		FileName:    uploadID + ".mp4",
		UserID:      "e2e-user",
		DataConsent: true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, s.BaseURL+"/process", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.WorkerToken)
	s.pendingRequest = req
	return s.CallAPI()
}

// CallAPI issues the pending request built by a prior step, the same
// pending-then-call split the reference uses.
func (s *StepContext) CallAPI() error {
	client := http.DefaultClient
	resp, err := client.Do(s.pendingRequest)
	if err != nil {
		return err
	}
	s.latestResponse = resp
	s.pendingRequest = nil
	return nil
}

func (s *StepContext) CheckHTTPResponseCode(code int) error {
	if s.latestResponse.StatusCode != code {
		body, _ := io.ReadAll(s.latestResponse.Body)
		return fmt.Errorf("expected HTTP response code %d but got %d. Body: %s", code, s.latestResponse.StatusCode, body)
	}
	return nil
}

type statusPayload struct {
	UploadID string          `json:"uploadId"`
	Status   string          `json:"status"`
	Progress int             `json:"progress"`
	Error    string          `json:"error,omitempty"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

// pollStatus fetches the status row for uploadID once.
func (s *StepContext) pollStatus(uploadID string) (statusPayload, error) {
	req, err := http.NewRequest(http.MethodGet, s.BaseURL+"/status/"+uploadID, nil)
	if err != nil {
		return statusPayload{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.WorkerToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return statusPayload{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusPayload{}, fmt.Errorf("status lookup for %q returned %d", uploadID, resp.StatusCode)
	}

	var payload statusPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return statusPayload{}, err
	}
	return payload, nil
}

// WaitForStatus polls /status/{upload_id} until it reaches want or the
// timeout elapses (§4.9), recording the final payload for subsequent
// assertion steps.
func (s *StepContext) WaitForStatus(uploadID, want string, timeout time.Duration) (statusPayload, error) {
	deadline := time.Now().Add(timeout)
	var last statusPayload
	for time.Now().Before(deadline) {
		payload, err := s.pollStatus(uploadID)
		if err != nil {
			return statusPayload{}, err
		}
		last = payload
		if payload.Status == want {
			return payload, nil
		}
		if payload.Status == "error" && want != "error" {
			return payload, fmt.Errorf("job %q failed: %s", uploadID, payload.Error)
		}
		time.Sleep(250 * time.Millisecond)
	}
	return last, fmt.Errorf("job %q did not reach status %q within %s (last status %q)", uploadID, want, timeout, last.Status)
}
