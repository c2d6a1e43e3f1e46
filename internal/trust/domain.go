package trust

import "time"

// AlgorithmEd25519 is the only signature algorithm currently produced.
// Verification rejects any other value rather than guessing.
const AlgorithmEd25519 = "ed25519"

// Signature is a detached signature over a module artifact's content digest.
// It is invalid the moment the artifact digest no longer matches FileHash.
type Signature struct {
	ModuleName  string    `json:"module_name"`
	Version     string    `json:"version"`
	FileHash    string    `json:"file_hash"`
	Signature   []byte    `json:"signature"`
	SignerKeyID string    `json:"signer_key_id"`
	Timestamp   time.Time `json:"timestamp"`
	Algorithm   string    `json:"algorithm"`
}

// Signer is a registered signing identity. Membership in the registry is what
// makes a cryptographically valid signature also a trusted one; validity and
// trust stay orthogonal.
type Signer struct {
	KeyID         string `json:"key_id"`
	DisplayName   string `json:"display_name"`
	Contact       string `json:"contact"`
	ReputationTag string `json:"reputation_tag"`
}
