package ggerr

import "fmt"

// Error codes the nucleus reports in the `_errorCode` field of an
// application error.
const (
	CodeServiceError                  = "ServiceError"
	CodeResourceNotFound              = "ResourceNotFoundError"
	CodeUnauthorized                  = "UnauthorizedError"
	CodeInvalidArguments              = "InvalidArgumentsError"
	CodeConflict                      = "ConflictError"
	CodeComponentNotFound             = "ComponentNotFoundError"
	CodeFailedUpdateConditionCheck    = "FailedUpdateConditionCheckError"
	CodeInvalidToken                  = "InvalidTokenError"
	CodeInvalidRecipeDirectoryPath    = "InvalidRecipeDirectoryPathError"
	CodeInvalidArtifactsDirectoryPath = "InvalidArtifactsDirectoryPathError"
	CodeInvalidClientDeviceAuthToken  = "InvalidClientDeviceAuthTokenError"
	CodeInvalidCredential             = "InvalidCredentialError"
	CodeUnknownErrorCode              = "UnknownError"
)

// RemoteError is an application-level error reported by the nucleus.
type RemoteError struct {
	// Code is the `_errorCode` reported by the peer.
	Code string
	// Message is the optional `_message` reported by the peer.
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error: %s", e.Code)
	}
	return fmt.Sprintf("remote error: %s: %s", e.Code, e.Message)
}

// Is reports whether target is Remote.
func (e *RemoteError) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == Remote
}

// CodeMap translates remote error codes into local kinds for one operation.
// Codes absent from the map translate to Fallback.
type CodeMap struct {
	Codes    map[string]Kind
	Fallback Kind
}

// Translate returns the local error for a remote error.
// The returned error wraps both the kind and the remote error.
func (m CodeMap) Translate(re *RemoteError) error {
	k, ok := m.Codes[re.Code]
	if !ok {
		k = m.Fallback
	}
	if k == 0 {
		k = Failure
	}
	return &Error{Kind: k, Msg: "remote", Err: re}
}
