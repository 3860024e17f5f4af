package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/videoreport/api/log"
	"github.com/xeipuuv/gojsonschema"
)

type APIError struct {
	Msg    string `json:"message"`
	Status int    `json:"status"`
	Err    error  `json:"-"`
}

func writeHttpError(w http.ResponseWriter, msg string, status int, err error) APIError {
	w.WriteHeader(status)

	var errorDetail string
	if err != nil {
		errorDetail = err.Error()
	}

	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg, "error_detail": errorDetail}); err != nil {
		log.LogNoRequestID("error writing HTTP error", "http_error_msg", msg, "error", err)
	}
	return APIError{msg, status, err}
}

// HTTP Errors
func WriteHTTPUnauthorized(w http.ResponseWriter, msg string, err error) APIError {
	return writeHttpError(w, msg, http.StatusUnauthorized, err)
}

func WriteHTTPBadRequest(w http.ResponseWriter, msg string, err error) APIError {
	return writeHttpError(w, msg, http.StatusBadRequest, err)
}

func WriteHTTPUnsupportedMediaType(w http.ResponseWriter, msg string, err error) APIError {
	return writeHttpError(w, msg, http.StatusUnsupportedMediaType, err)
}

func WriteHTTPNotFound(w http.ResponseWriter, msg string, err error) APIError {
	return writeHttpError(w, msg, http.StatusNotFound, err)
}

func WriteHTTPInternalServerError(w http.ResponseWriter, msg string, err error) APIError {
	return writeHttpError(w, msg, http.StatusInternalServerError, err)
}

func WriteHTTPBadBodySchema(where string, w http.ResponseWriter, errors []gojsonschema.ResultError) APIError {
	sb := strings.Builder{}
	sb.WriteString("Body validation error in ")
	sb.WriteString(where)
	sb.WriteString(" ")
	for i := 0; i < len(errors); i++ {
		sb.WriteString(errors[i].String())
		sb.WriteString(" ")
	}
	return writeHttpError(w, sb.String(), http.StatusBadRequest, nil)
}

// Special wrapper marking an error as not worth retrying; IsUnretriable
// detects it through any wrapping.
type UnretriableError struct{ error }

func Unretriable(err error) error {
	return UnretriableError{err}
}

func (e UnretriableError) Unwrap() error {
	return e.error
}

// Returns whether the given error is an unretriable error.
func IsUnretriable(err error) bool {
	return errors.As(err, &UnretriableError{})
}

type ObjectNotFoundError struct {
	msg   string
	cause error
}

func (e ObjectNotFoundError) Error() string {
	return e.msg
}

func (e ObjectNotFoundError) Unwrap() error {
	return e.cause
}

func NewObjectNotFoundError(msg string, cause error) error {
	if cause != nil {
		msg = fmt.Sprintf("ObjectNotFoundError: %s: %s", msg, cause)
	} else {
		msg = fmt.Sprintf("ObjectNotFoundError: %s", msg)
	}
	// every not found is unretriable
	return Unretriable(ObjectNotFoundError{msg: msg, cause: cause})
}

// IsObjectNotFound checks if the error is an ObjectNotFoundError.
func IsObjectNotFound(err error) bool {
	return errors.As(err, &ObjectNotFoundError{})
}

var (
	UnauthorisedError = errors.New("UnauthorisedError")
	InvalidJWT        = errors.New("InvalidJWTError")
)

// JobErrorCode is the closed set of codes a job can terminate with (§4.10,
// §7). The worker never invents a code outside this set, so the UI can
// pattern-match it to one of a handful of lay-person-readable buckets.
type JobErrorCode string

const (
	ErrServerShutdown       JobErrorCode = "SERVER_SHUTDOWN"
	ErrManualStop           JobErrorCode = "MANUAL_STOP"
	ErrResourceLimit        JobErrorCode = "RESOURCE_LIMIT"
	ErrUncaughtException    JobErrorCode = "UNCAUGHT_EXCEPTION"
	ErrUnknownSignal        JobErrorCode = "UNKNOWN_SIGNAL"
	ErrDownloadFailed       JobErrorCode = "DOWNLOAD_FAILED"
	ErrDecodeFailed         JobErrorCode = "DECODE_FAILED"
	ErrAudioExtractFailed   JobErrorCode = "AUDIO_EXTRACT_FAILED"
	ErrAllProvidersDown     JobErrorCode = "ALL_PROVIDERS_UNAVAILABLE"
	ErrStatusStoreUnwritable JobErrorCode = "STATUS_STORE_UNWRITABLE"
	ErrReportAssemblyFailed JobErrorCode = "REPORT_ASSEMBLY_FAILED"
)

// userMessages maps each closed error code to the lay-person-readable string
// surfaced to the caller (§7, "User-visible messages"). The UI pattern-matches
// substrings of these ("maintenance", "scaling", "resource limit", "stopped
// unexpectedly") so the wording here is part of the behavioral contract and
// must not be paraphrased per call site.
var userMessages = map[JobErrorCode]string{
	ErrServerShutdown:        "Processing was interrupted for server maintenance or scaling. Please try again.",
	ErrManualStop:            "Processing was stopped manually. Please try again.",
	ErrResourceLimit:         "Processing hit a resource limit and could not continue.",
	ErrUncaughtException:     "Something stopped unexpectedly while processing your video.",
	ErrUnknownSignal:         "Something stopped unexpectedly while processing your video.",
	ErrDownloadFailed:        "We couldn't download your video. Please check the file and try again.",
	ErrDecodeFailed:          "We couldn't read your video file. It may be corrupted or in an unsupported format.",
	ErrAudioExtractFailed:    "We couldn't process the audio in your video.",
	ErrAllProvidersDown:      "Our text-recognition service is temporarily unavailable. Please try again shortly.",
	ErrStatusStoreUnwritable: "We're experiencing a temporary service issue. Please try again.",
	ErrReportAssemblyFailed:  "We couldn't generate your report. Please try again.",
}

// JobFatalError wraps a JobErrorCode with the technical cause, so that
// `failStatus` (pipeline package) can record both the user-visible message
// and the log-only detail in one value.
type JobFatalError struct {
	Code  JobErrorCode
	cause error
}

func NewJobFatalError(code JobErrorCode, cause error) *JobFatalError {
	return &JobFatalError{Code: code, cause: cause}
}

func (e *JobFatalError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.cause)
	}
	return string(e.Code)
}

func (e *JobFatalError) Unwrap() error { return e.cause }

// UserMessage returns the closed-set, lay-person-readable message for this
// error's code.
func (e *JobFatalError) UserMessage() string {
	return UserMessageForCode(e.Code)
}

// UserMessageForCode looks up the lay-person-readable message for a code,
// falling back to the UNCAUGHT_EXCEPTION message for an unrecognized code.
func UserMessageForCode(code JobErrorCode) string {
	if msg, ok := userMessages[code]; ok {
		return msg
	}
	return userMessages[ErrUncaughtException]
}
