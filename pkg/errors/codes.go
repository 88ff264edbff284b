package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeValidation         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeTimeout            ErrorCode = "COMMON_005"
	ErrCodeSerialization      ErrorCode = "COMMON_006"
	ErrCodeDatabaseError      ErrorCode = "COMMON_007"
	ErrCodeCacheError         ErrorCode = "COMMON_008"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_009"
	ErrCodeNotImplemented     ErrorCode = "COMMON_010"
	ErrCodeOK                 ErrorCode = "OK"
	ErrCodeUnknown            ErrorCode = "UNKNOWN"
)

// Calculation (oracle attempt) error codes.  All of these are recoverable at
// the candidate level: the current strategy or scan point gives up and the
// caller falls through to the next one.
const (
	ErrCodeCalcNotConverged ErrorCode = "CALC_001" // oracle reported abnormal termination
	ErrCodeCalcNoGeometry   ErrorCode = "CALC_002" // no final geometry in the oracle output
	ErrCodeCalcNoEnergy     ErrorCode = "CALC_003"
	ErrCodeCalcNoHessian    ErrorCode = "CALC_004"
	ErrCodeCalcTimeout      ErrorCode = "CALC_005" // exceeded the caller-supplied time budget
)

// Graph oracle error codes
const (
	ErrCodeGraphBuildFailed ErrorCode = "GRAPH_001"
	ErrCodeGraphIsomorphism ErrorCode = "GRAPH_002"
	ErrCodeGraphMalformed   ErrorCode = "GRAPH_003"
)

// Transition-state search error codes
const (
	ErrCodeNoRearrangement   ErrorCode = "TS_001" // enumerator found no forming/breaking bond set
	ErrCodeNoTSGuess         ErrorCode = "TS_002" // a strategy produced no candidate geometry
	ErrCodeModeInvalid       ErrorCode = "TS_003" // imaginary-mode validation rejected the candidate
	ErrCodeNoTransitionState ErrorCode = "TS_004" // every rearrangement exhausted
	ErrCodePrecondition      ErrorCode = "TS_005" // programming-contract violation, fail fast
	ErrCodeUnbalanced        ErrorCode = "TS_006" // reactant/product atom or charge count mismatch
)

// Scan error codes
const (
	ErrCodeScanMonotonic        ErrorCode = "SCAN_001" // profile has no interior maximum
	ErrCodeScanAllPointsFailed  ErrorCode = "SCAN_002"
	ErrCodeScanNoSaddle         ErrorCode = "SCAN_003" // 2-D surface has no saddle-shaped point
	ErrCodeOrientationDiverged  ErrorCode = "SCAN_004" // pose minimisation failed on every restart
	ErrCodeTruncationImpossible ErrorCode = "SCAN_005"
)

// Template store error codes
const (
	ErrCodeTemplateNotFound ErrorCode = "STORE_001"
	ErrCodeTemplateInvalid  ErrorCode = "STORE_002"
)

// perAttempt lists the codes that abort only the current candidate: the
// pipeline absorbs them at the smallest enclosing retry boundary and moves on.
var perAttempt = map[ErrorCode]bool{
	ErrCodeCalcNotConverged:    true,
	ErrCodeCalcNoGeometry:      true,
	ErrCodeCalcNoEnergy:        true,
	ErrCodeCalcNoHessian:       true,
	ErrCodeCalcTimeout:         true,
	ErrCodeGraphIsomorphism:    true,
	ErrCodeScanMonotonic:       true,
	ErrCodeScanAllPointsFailed: true,
	ErrCodeScanNoSaddle:        true,
	ErrCodeOrientationDiverged: true,
	ErrCodeNoTSGuess:           true,
	ErrCodeModeInvalid:         true,
}

// IsPerAttempt reports whether err only invalidates the current
// strategy/candidate rather than the whole search.  Precondition violations
// are never per-attempt.
func IsPerAttempt(err error) bool {
	return perAttempt[GetCode(err)]
}
