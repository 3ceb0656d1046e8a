package stferrors

import (
	"errors"
	"strings"
)

// Mempool (M) Errors
var (
	ErrMMempoolFull             = errors.New("M1|MempoolFull: Mempool is at capacity, retry later.")
	ErrMWorkingSetUninitialized = errors.New("M2|WorkingSetUninitialized: Batch builder used before a working set was attached.")
)

// Transaction (X) Errors
var (
	ErrXTransactionDecode = errors.New("X1|TransactionDecodeError: Raw transaction bytes do not decode.")
	ErrXSignatureInvalid  = errors.New("X2|SignatureInvalid: Signature does not verify against the embedded public key.")
	ErrXCallDecode        = errors.New("X3|CallDecodeError: Runtime message does not decode into a module call.")
	ErrXBatchDecode       = errors.New("X4|BatchDecodeError: Blob payload does not decode into a batch.")
	ErrXRefutedHint       = errors.New("X5|RefutedMisbehaviorHint: Hinted transaction verifies or is out of range, the hint is dropped.")
)

// Hook & Dispatch (H) Errors
var (
	ErrHPreDispatchHook = errors.New("H1|PreDispatchHookFailed: Pre-dispatch transaction hook rejected the transaction.")
	ErrHBeginBlobHook   = errors.New("H2|BeginBlobHookFailed: Begin-blob hook rejected the sequencer.")
	ErrHEndBlobHook     = errors.New("H3|EndBlobHookFailed: End-blob hook failed on consistent state.")
	ErrHDispatch        = errors.New("H4|DispatchError: Module rejected the call.")
)

// Working set (W) Errors
var (
	ErrWScopesOpen        = errors.New("W1|ScopesOpen: Working set cannot be frozen while nested scopes are open.")
	ErrWScopeNotInnermost = errors.New("W2|ScopeNotInnermost: Only the innermost open scope can be committed or reverted.")
	ErrWScopeConsumed     = errors.New("W3|ScopeConsumed: Scope has already been committed or reverted.")
	ErrWWorkingSetFrozen  = errors.New("W4|WorkingSetFrozen: Working set was already frozen.")
	ErrWValueDecode       = errors.New("W5|ValueDecode: Stored value does not decode into the expected type.")
)

// Storage (S) Errors
var (
	ErrSStorageCommit       = errors.New("S1|StorageCommitError: Persisting the change log failed.")
	ErrSWitnessExhausted    = errors.New("S2|WitnessExhausted: Witness has no more hints.")
	ErrSWitnessRootMismatch = errors.New("S3|WitnessRootMismatch: Witness trie does not hash to the prior state root.")
	ErrSWitnessReadMismatch = errors.New("S4|WitnessReadMismatch: A read value is not proven by the witness trie.")
	ErrSIncompleteWitness   = errors.New("S5|IncompleteWitness: Witness trie does not cover a touched key.")
	ErrSMalformedWitness    = errors.New("S6|MalformedWitness: Witness hint does not decode.")
)

// Fatal (F) Errors. A node must halt on these.
var (
	ErrFatal = errors.New("F1|Fatal: Unrecoverable state transition failure.")
)

var allErrors = []error{
	ErrMMempoolFull, ErrMWorkingSetUninitialized,
	ErrXTransactionDecode, ErrXSignatureInvalid, ErrXCallDecode, ErrXBatchDecode, ErrXRefutedHint,
	ErrHPreDispatchHook, ErrHBeginBlobHook, ErrHEndBlobHook, ErrHDispatch,
	ErrWScopesOpen, ErrWScopeNotInnermost, ErrWScopeConsumed, ErrWWorkingSetFrozen, ErrWValueDecode,
	ErrSStorageCommit, ErrSWitnessExhausted, ErrSWitnessRootMismatch, ErrSWitnessReadMismatch, ErrSIncompleteWitness, ErrSMalformedWitness,
	ErrFatal,
}

// sentinel returns the first known error wrapped by err, or err itself.
func sentinel(err error) error {
	for _, s := range allErrors {
		if errors.Is(err, s) {
			return s
		}
	}
	return err
}

// IsFatal reports whether err must stop the node.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatal) || errors.Is(err, ErrSStorageCommit)
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := sentinel(err).Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := sentinel(err).Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}
