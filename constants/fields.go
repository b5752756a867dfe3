package constants

// Field names the pipeline reads from or writes into an invoice record.
const (
	FieldFileName    = "File Name"
	FieldVendor      = "Vendor"
	FieldShipFrom    = "Ship From"
	FieldWhatSold    = "What is being sold"
	FieldTotalAmount = "Total Amount"
	FieldTaxApplied  = "Tax Applied"
	FieldError       = "Error"
)

// Sentinel values placed into records and extraction text.
const (
	VendorFileError = "FILE_ERROR"
	VendorAIError   = "AI_ERROR"

	// ErrorTextPrefix marks extraction text that must not be sent to the model.
	ErrorTextPrefix = "Error"
	OCRErrorPrefix  = "Error Details: "
	UnreadableText  = "Unable to read the file."

	MissingValue = "N/A"
	UnknownValue = "Unknown"

	DefaultBusinessType = "General"
	DefaultState        = "CA"
)
