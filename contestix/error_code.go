package contestix

const (
	// INVALID_ARGUMENT_ERROR_CODE represents an error for invalid input arguments.
	INVALID_ARGUMENT_ERROR_CODE = 3
	// NOT_FOUND_ERROR_CODE represents an error for a resource not being found.
	NOT_FOUND_ERROR_CODE = 5
	// FAILED_PRECONDITION_ERROR_CODE represents an error for a failed precondition.
	FAILED_PRECONDITION_ERROR_CODE = 9
	// ABORTED_ERROR_CODE represents an error for an aborted concurrent operation.
	ABORTED_ERROR_CODE = 10
	// UNIMPLEMENTED_ERROR_CODE represents an error for an operation with no implementation.
	UNIMPLEMENTED_ERROR_CODE = 12
	// INTERNAL_ERROR_CODE represents an internal server error.
	INTERNAL_ERROR_CODE = 13
	// UNAUTHENTICATED_ERROR_CODE represents an error for a missing identity.
	UNAUTHENTICATED_ERROR_CODE = 16
)
