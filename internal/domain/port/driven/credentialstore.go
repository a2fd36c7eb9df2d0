package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/hookrelay/internal/domain/model"
)

// DefaultCredentialName is the credential used for routing entries that do
// not name one explicitly.
const DefaultCredentialName = "default"

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// HOOKRELAY_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set HOOKRELAY_SECRET_KEY")

// CredentialStore defines the driven port for encrypted token persistence.
// The adapter layer is responsible for encryption/decryption; this interface
// operates on plaintext tokens at the domain boundary.
type CredentialStore interface {
	// Set stores or replaces the token for the given credential name.
	// Returns ErrEncryptionKeyNotSet if the adapter was constructed without
	// an encryption key.
	Set(ctx context.Context, name, token string) error

	// Get retrieves the plaintext token for the given credential name.
	// Returns ("", nil) if no credential exists under that name.
	Get(ctx context.Context, name string) (string, error)

	// GetDefault retrieves the token stored under DefaultCredentialName.
	GetDefault(ctx context.Context) (string, error)

	// List returns all stored credentials. Tokens are decrypted plaintext.
	List(ctx context.Context) ([]model.Credential, error)

	// Delete removes the credential with the given name.
	Delete(ctx context.Context, name string) error
}
