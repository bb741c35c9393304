package schemaerr

// Reason is a stable machine-readable code describing why a validation
// failure was raised. Codes are part of the report format.
type Reason string

const (
	ReasonWrongDType            Reason = "wrong_dtype"
	ReasonCoercionError         Reason = "coercion_error"
	ReasonMissingColumn         Reason = "missing_column"
	ReasonExtraColumn           Reason = "extra_column"
	ReasonWrongColumnOrder      Reason = "wrong_column_order"
	ReasonDuplicateColumnLabels Reason = "duplicate_column_labels"
	ReasonMissingIndex          Reason = "missing_index"
	ReasonNullableViolation     Reason = "nullable_violation"
	ReasonDuplicates            Reason = "duplicates"
	ReasonCheckError            Reason = "check_error"
	ReasonBackendNotFound       Reason = "backend_not_found"
	ReasonInvalidCheck          Reason = "invalid_check_definition"
	ReasonMissingDefault        Reason = "add_missing_column_without_default"
)

// ContextKind identifies which part of the schema raised a failure.
type ContextKind string

const (
	ContextTable  ContextKind = "table"
	ContextColumn ContextKind = "column"
	ContextIndex  ContextKind = "index"
)

// Stage orders failures by the pipeline stage that produced them so lazy
// reports render deterministically.
type Stage int

const (
	StageSchema Stage = iota
	StageCoerce
	StageIndex
	StageColumnChecks
	StageTableChecks
	StageUniqueness
)
