package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"

	"github.com/videoreport/api/errors"
	"github.com/videoreport/api/log"
	"github.com/videoreport/api/middleware"
)

type uploadsRequest struct {
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

type uploadsResponse struct {
	UploadID  string            `json:"upload_id"`
	UploadURL string            `json:"upload_url"`
	Fields    map[string]string `json:"fields"`
}

// Uploads implements POST /v1/uploads (§6): mints an upload_id and hands
// back a pre-signed URL the caller PUTs the source file to directly,
// bypassing the gateway for the (potentially large) file body.
func (c *Collection) Uploads() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		var body uploadsRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			errors.WriteHTTPBadRequest(w, "invalid request body", err)
			return
		}
		if body.FileName == "" {
			errors.WriteHTTPBadRequest(w, "file_name is required", nil)
			return
		}

		userID := middleware.UserIDFromContext(req.Context())
		uploadID := uuid.NewString()
		key := fmt.Sprintf("uploads/%s/%s/source.mp4", userID, uploadID)

		uploadURL, err := c.Objects.PresignPost(req.Context(), key, uploadURLExpiry)
		if err != nil {
			errors.WriteHTTPInternalServerError(w, "failed to presign upload URL", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(uploadsResponse{
			UploadID:  uploadID,
			UploadURL: uploadURL,
			Fields:    map[string]string{},
		}); err != nil {
			log.LogError(uploadID, "failed to write uploads response", err)
		}
	}
}
